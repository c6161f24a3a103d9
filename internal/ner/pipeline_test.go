package ner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edgekit-ml/edgekit/internal/backend"
	"github.com/edgekit-ml/edgekit/internal/config"
	"github.com/edgekit-ml/edgekit/internal/tokenizer"
)

// fakeSession returns canned logits regardless of input
type fakeSession struct {
	output *backend.Output
	err    error
	closed bool
	gotIn  backend.Input
}

func (s *fakeSession) Run(_ context.Context, input backend.Input) (*backend.Output, error) {
	s.gotIn = input
	return s.output, s.err
}

func (s *fakeSession) Inputs() []backend.TensorInfo  { return nil }
func (s *fakeSession) Outputs() []backend.TensorInfo { return nil }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func setupPipeline(t *testing.T, session backend.Session, minConfidence float64) *Pipeline {
	t.Helper()
	dir := t.TempDir()
	vocab := "[PAD]\n[UNK]\n[CLS]\n[SEP]\njohn\nparis\n"
	if err := os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(vocab), 0644); err != nil {
		t.Fatalf("Failed to write vocab: %v", err)
	}

	tok, err := tokenizer.Load(filepath.Join(dir, "vocab.txt"), 8, true)
	if err != nil {
		t.Fatalf("Failed to load tokenizer: %v", err)
	}
	return New(tok, session, testLabels, minConfidence)
}

func TestPipelineRecognize(t *testing.T) {
	// 8 positions: [CLS] john [SEP] then padding
	session := &fakeSession{output: makeOutput([]int{tagO, tagBPER, tagO, tagO, tagO, tagO, tagO, tagO})}
	p := setupPipeline(t, session, 0)

	entities, timings, err := p.Recognize(context.Background(), "John")
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if len(entities) != 1 || entities[0].Type != "PER" {
		t.Fatalf("Expected one PER entity, got %+v", entities)
	}
	if timings.Tokenize < 0 || timings.Run < 0 || timings.Decode < 0 {
		t.Error("Expected non-negative timings")
	}

	// Encoded input is padded to the tokenizer's max length
	if len(session.gotIn.IDs) != 8 || len(session.gotIn.AttentionMask) != 8 {
		t.Errorf("Expected padded inputs of length 8, got %d", len(session.gotIn.IDs))
	}
}

func TestPipelineMinConfidenceFilter(t *testing.T) {
	// Weak logits: confidence well below 0.9
	numLabels := len(testLabels)
	logits := make([]float32, 8*numLabels)
	logits[1*numLabels+tagBPER] = 0.5
	session := &fakeSession{output: &backend.Output{Logits: logits, SeqLen: 8, NumLabels: numLabels}}
	p := setupPipeline(t, session, 0.9)

	entities, _, err := p.Recognize(context.Background(), "John")
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("Expected low-confidence entity to be filtered, got %+v", entities)
	}
}

func TestPipelineRunError(t *testing.T) {
	session := &fakeSession{err: errors.New("boom")}
	p := setupPipeline(t, session, 0)

	_, _, err := p.Recognize(context.Background(), "John")
	if err == nil {
		t.Fatal("Expected error from failing session")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Expected wrapped session error, got: %v", err)
	}
}

func TestPipelineClose(t *testing.T) {
	session := &fakeSession{}
	p := setupPipeline(t, session, 0)

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !session.closed {
		t.Error("Expected underlying session to be closed")
	}
}

func TestLoadMissingConfig(t *testing.T) {
	// A directory without config.json must fail before touching the backend
	cfg := config.Default()
	cfg.Backend = "onnx"

	_, err := Load(context.Background(), cfg, t.TempDir())
	if err == nil {
		t.Error("Expected error for missing config.json")
	}
}
