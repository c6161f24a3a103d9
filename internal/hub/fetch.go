package hub

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgekit-ml/edgekit/internal/interfaces"
	"github.com/edgekit-ml/edgekit/pkg/models"
)

var _ interfaces.ModelFetcher = (*Client)(nil)

// tokenizer and config files fetched alongside model weights
var supportFiles = map[string]bool{
	"config.json":             true,
	"vocab.txt":               true,
	"tokenizer.json":          true,
	"tokenizer_config.json":   true,
	"special_tokens_map.json": true,
}

// FetchModel downloads everything a token-classification pipeline needs from
// repo into destDir: tokenizer/config support files plus any ONNX exports
// (root-level or under onnx/, flattened into destDir). Returns the manifest
// of what was fetched; Converted is false when the repo held no ONNX file,
// signalling that a conversion step is required.
func (c *Client) FetchModel(ctx context.Context, repo, revision, task, destDir string) (*models.Manifest, error) {
	info, err := c.ModelInfo(ctx, repo)
	if err != nil {
		return nil, err
	}
	if revision == "" {
		revision = "main"
	}

	files, err := c.Tree(ctx, repo, revision)
	if err != nil {
		return nil, err
	}

	manifest := &models.Manifest{
		Repo:      repo,
		Task:      task,
		Revision:  revision,
		CreatedAt: time.Now(),
	}
	if info.SHA != "" {
		manifest.Revision = info.SHA
	}

	hasONNX := false
	for _, file := range files {
		if file.Type == "directory" {
			continue
		}

		local, wanted := localName(file.Path)
		if !wanted {
			continue
		}

		destPath := filepath.Join(destDir, local)
		if err := c.DownloadFile(ctx, repo, revision, file, destPath); err != nil {
			return nil, err
		}
		manifest.Files = append(manifest.Files, local)
		if strings.HasSuffix(local, ".onnx") {
			hasONNX = true
		}
	}

	if len(manifest.Files) == 0 {
		return nil, fmt.Errorf("repository %s has no usable model files", repo)
	}

	manifest.Converted = hasONNX
	if err := models.WriteManifest(destDir, manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

// localName maps a repo path to its destination filename, flattening the
// onnx/ export directory. Returns false for files the pipeline cannot use.
func localName(repoPath string) (string, bool) {
	if supportFiles[repoPath] {
		return repoPath, true
	}
	if strings.HasSuffix(repoPath, ".onnx") {
		if !strings.Contains(repoPath, "/") {
			return repoPath, true
		}
		if dir, name := filepath.Split(repoPath); dir == "onnx/" {
			return name, true
		}
	}
	return "", false
}

// LocalDir returns the cache directory name for a repo ("owner/name" becomes
// "owner--name")
func LocalDir(modelDir, repo string) string {
	return filepath.Join(modelDir, strings.ReplaceAll(repo, "/", "--"))
}
