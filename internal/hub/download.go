package hub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"

	"github.com/edgekit-ml/edgekit/pkg/models"
)

// DownloadFile fetches one repository file into destPath. Transient failures
// are retried with exponential backoff; 4xx responses are not. When the file
// carries an LFS pointer, the downloaded bytes are verified against its
// sha256 oid.
func (c *Client) DownloadFile(ctx context.Context, repo, revision string, file models.RepoFile, destPath string) error {
	if revision == "" {
		revision = "main"
	}
	u := fmt.Sprintf("%s/%s/resolve/%s/%s", c.endpoint, repoPath(repo), url.PathEscape(revision), file.Path)

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxRetry

	operation := func() error {
		return c.downloadOnce(ctx, u, file, destPath)
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("failed to download %s: %w", file.Path, err)
	}
	return nil
}

func (c *Client) downloadOnce(ctx context.Context, u string, file models.RepoFile, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("hub returned status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	// Write into a temp file first so a partial download never lands at
	// the final path.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	total := resp.ContentLength
	hasher := sha256.New()
	writer := io.MultiWriter(tmp, hasher)

	var written int64
	buf := make([]byte, 128*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := writer.Write(buf[:n]); writeErr != nil {
				tmp.Close()
				return backoff.Permanent(fmt.Errorf("failed to write file: %w", writeErr))
			}
			written += int64(n)
			if c.progress != nil {
				c.progress(file.Path, written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			tmp.Close()
			return readErr
		}
	}

	if err := tmp.Close(); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to close temp file: %w", err))
	}

	if file.LFS != nil && file.LFS.OID != "" {
		sum := hex.EncodeToString(hasher.Sum(nil))
		if sum != file.LFS.OID {
			return backoff.Permanent(fmt.Errorf("checksum mismatch for %s: got %s, want %s", file.Path, sum, file.LFS.OID))
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to move file into place: %w", err))
	}
	return nil
}
