package hub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgekit-ml/edgekit/pkg/models"
)

var (
	testConfig = []byte(`{"id2label": {"0": "O"}}`)
	testVocab  = []byte("[PAD]\n[UNK]\n[CLS]\n[SEP]\n")
	testONNX   = []byte("fake-onnx-model-bytes")
)

func oid(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// newTestServer serves a minimal hub with one repo, test/ner-model
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/test/ner-model", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.RepoInfo{
			ID:  "test/ner-model",
			SHA: "rev123",
			Siblings: []models.Sibling{
				{Rfilename: "config.json"},
				{Rfilename: "vocab.txt"},
				{Rfilename: "onnx/model.onnx"},
			},
		})
	})
	mux.HandleFunc("/api/models/test/ner-model/tree/main", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.RepoFile{
			{Path: "config.json", Type: "file", Size: int64(len(testConfig))},
			{Path: "vocab.txt", Type: "file", Size: int64(len(testVocab))},
			{Path: "onnx", Type: "directory"},
			{Path: "onnx/model.onnx", Type: "file", Size: int64(len(testONNX)),
				LFS: &models.LFS{OID: oid(testONNX), Size: int64(len(testONNX))}},
			{Path: "pytorch_model.bin", Type: "file", Size: 9999},
		})
	})
	mux.HandleFunc("/test/ner-model/resolve/main/", func(w http.ResponseWriter, r *http.Request) {
		switch filepath.Base(r.URL.Path) {
		case "config.json":
			w.Write(testConfig)
		case "vocab.txt":
			w.Write(testVocab)
		case "model.onnx":
			w.Write(testONNX)
		default:
			http.NotFound(w, r)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestModelInfo(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL)

	info, err := client.ModelInfo(context.Background(), "test/ner-model")
	if err != nil {
		t.Fatalf("ModelInfo failed: %v", err)
	}
	if info.ID != "test/ner-model" || info.SHA != "rev123" {
		t.Errorf("Unexpected info: %+v", info)
	}
	if len(info.Siblings) != 3 {
		t.Errorf("Expected 3 siblings, got %d", len(info.Siblings))
	}
}

func TestModelInfoNotFound(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL)

	_, err := client.ModelInfo(context.Background(), "test/missing")
	if err == nil {
		t.Fatal("Expected error for missing repo")
	}
}

func TestTree(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL)

	files, err := client.Tree(context.Background(), "test/ner-model", "")
	if err != nil {
		t.Fatalf("Tree failed: %v", err)
	}
	if len(files) != 5 {
		t.Errorf("Expected 5 entries, got %d", len(files))
	}
}

func TestFetchModel(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL)
	destDir := t.TempDir()

	manifest, err := client.FetchModel(context.Background(), "test/ner-model", "main", "token-classification", destDir)
	if err != nil {
		t.Fatalf("FetchModel failed: %v", err)
	}

	// onnx/model.onnx is flattened; pytorch_model.bin skipped
	for _, name := range []string{"config.json", "vocab.txt", "model.onnx", models.ManifestFilename} {
		if _, err := os.Stat(filepath.Join(destDir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(destDir, "pytorch_model.bin")); err == nil {
		t.Error("pytorch_model.bin should not have been downloaded")
	}

	if !manifest.Converted {
		t.Error("Expected Converted=true when an ONNX export exists")
	}
	if manifest.Revision != "rev123" {
		t.Errorf("Expected resolved revision rev123, got %s", manifest.Revision)
	}
	if len(manifest.Files) != 3 {
		t.Errorf("Expected 3 files in manifest, got %v", manifest.Files)
	}

	loaded, err := models.ReadManifest(destDir)
	if err != nil {
		t.Fatalf("Failed to read written manifest: %v", err)
	}
	if loaded.Repo != "test/ner-model" {
		t.Errorf("Unexpected manifest repo: %s", loaded.Repo)
	}
}

func TestDownloadChecksumMismatch(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL, WithRetryWindow(time.Second))
	destDir := t.TempDir()

	file := models.RepoFile{
		Path: "onnx/model.onnx",
		Type: "file",
		LFS:  &models.LFS{OID: oid([]byte("different-bytes"))},
	}
	err := client.DownloadFile(context.Background(), "test/ner-model", "main", file, filepath.Join(destDir, "model.onnx"))
	if err == nil {
		t.Fatal("Expected checksum mismatch error")
	}
	if _, statErr := os.Stat(filepath.Join(destDir, "model.onnx")); statErr == nil {
		t.Error("Corrupt download must not land at the final path")
	}
}

func TestDownloadRetriesTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("content"))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetryWindow(5*time.Second))
	dest := filepath.Join(t.TempDir(), "file.txt")

	file := models.RepoFile{Path: "file.txt", Type: "file"}
	if err := client.DownloadFile(context.Background(), "test/repo", "main", file, dest); err != nil {
		t.Fatalf("Expected retry to succeed: %v", err)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Errorf("Expected at least 2 attempts, got %d", calls)
	}

	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "content" {
		t.Errorf("Unexpected file content: %q, %v", data, err)
	}
}

func TestDownloadDoesNotRetryClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetryWindow(5*time.Second))
	file := models.RepoFile{Path: "missing.txt", Type: "file"}
	err := client.DownloadFile(context.Background(), "test/repo", "main", file, filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("Expected error for 404")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected exactly 1 attempt for a 4xx, got %d", calls)
	}
}

func TestAuthTokenSent(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, "{}")
	}))
	defer server.Close()

	client := NewClient(server.URL, WithToken("hf_secret"))
	client.ModelInfo(context.Background(), "test/repo")

	if gotAuth != "Bearer hf_secret" {
		t.Errorf("Expected bearer token header, got %q", gotAuth)
	}
}

func TestDownloadProgressReported(t *testing.T) {
	server := newTestServer(t)

	var lastWritten, lastTotal int64
	client := NewClient(server.URL, WithProgress(func(path string, written, total int64) {
		lastWritten, lastTotal = written, total
	}))

	dest := filepath.Join(t.TempDir(), "vocab.txt")
	file := models.RepoFile{Path: "vocab.txt", Type: "file"}
	if err := client.DownloadFile(context.Background(), "test/ner-model", "main", file, dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if lastWritten != int64(len(testVocab)) {
		t.Errorf("Expected final progress %d, got %d", len(testVocab), lastWritten)
	}
	if lastTotal != int64(len(testVocab)) {
		t.Errorf("Expected total %d, got %d", len(testVocab), lastTotal)
	}
}

func TestLocalDir(t *testing.T) {
	got := LocalDir("/models", "dslim/bert-base-NER")
	want := filepath.Join("/models", "dslim--bert-base-NER")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestLocalName(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wanted bool
	}{
		{"config.json", "config.json", true},
		{"vocab.txt", "vocab.txt", true},
		{"model.onnx", "model.onnx", true},
		{"onnx/model.onnx", "model.onnx", true},
		{"pytorch_model.bin", "", false},
		{"subdir/other/model.onnx", "", false},
		{"README.md", "", false},
	}

	for _, tt := range tests {
		got, wanted := localName(tt.path)
		if got != tt.want || wanted != tt.wanted {
			t.Errorf("localName(%q) = (%q, %v), want (%q, %v)", tt.path, got, wanted, tt.want, tt.wanted)
		}
	}
}
