package ner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edgekit-ml/edgekit/internal/backend"
	"github.com/edgekit-ml/edgekit/internal/config"
	"github.com/edgekit-ml/edgekit/internal/interfaces"
	"github.com/edgekit-ml/edgekit/internal/tokenizer"
	"github.com/edgekit-ml/edgekit/pkg/models"
)

var _ interfaces.EntityRecognizer = (*Pipeline)(nil)

// Pipeline runs token classification end to end: tokenize, infer, decode
type Pipeline struct {
	tok           *tokenizer.WordPieceTokenizer
	session       backend.Session
	labels        []string
	minConfidence float64
}

// New assembles a pipeline from pre-built parts
func New(tok *tokenizer.WordPieceTokenizer, session backend.Session, labels []string, minConfidence float64) *Pipeline {
	return &Pipeline{
		tok:           tok,
		session:       session,
		labels:        labels,
		minConfidence: minConfidence,
	}
}

// Load opens a token-classification model directory with the configured
// backend. The directory must hold model.onnx (or model_quantized.onnx),
// vocab.txt and config.json.
func Load(ctx context.Context, cfg *config.Config, modelDir string) (*Pipeline, error) {
	labels, err := LoadLabels(modelDir)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.Load(filepath.Join(modelDir, "vocab.txt"), cfg.MaxSeqLen, Lowercase(modelDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	be, err := backend.New(cfg.Backend)
	if err != nil {
		return nil, err
	}

	session, err := be.Open(ctx, backend.Spec{
		ModelPath:      findModelFile(modelDir),
		LibraryPath:    cfg.ONNXLibrary,
		IntraOpThreads: cfg.IntraOpThreads,
		MaxSeqLen:      cfg.MaxSeqLen,
	})
	if err != nil {
		return nil, err
	}

	return New(tok, session, labels, cfg.MinConfidence), nil
}

// findModelFile picks the ONNX file inside a model directory, preferring the
// full-precision export over quantized variants.
func findModelFile(modelDir string) string {
	for _, name := range []string{"model.onnx", "model_quantized.onnx", "model_optimized.onnx"} {
		path := filepath.Join(modelDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(modelDir, "model.onnx")
}

// Labels returns the model's ordered BIO tag list
func (p *Pipeline) Labels() []string {
	return p.labels
}

// Session exposes the underlying inference session (for tensor metadata)
func (p *Pipeline) Session() backend.Session {
	return p.session
}

// Recognize extracts named entities from text
func (p *Pipeline) Recognize(ctx context.Context, text string) ([]models.Entity, models.Timings, error) {
	var timings models.Timings

	start := time.Now()
	enc := p.tok.Encode(text)
	timings.Tokenize = time.Since(start)

	start = time.Now()
	out, err := p.session.Run(ctx, backend.Input{
		IDs:           enc.IDs,
		AttentionMask: enc.AttentionMask,
		TokenTypeIDs:  enc.TokenTypeIDs,
	})
	timings.Run = time.Since(start)
	if err != nil {
		return nil, timings, fmt.Errorf("inference failed: %w", err)
	}

	start = time.Now()
	entities := Decode(out, enc.Tokens, enc.AttentionMask, p.labels)
	if p.minConfidence > 0 {
		kept := entities[:0]
		for _, e := range entities {
			if e.Confidence >= p.minConfidence {
				kept = append(kept, e)
			}
		}
		entities = kept
	}
	timings.Decode = time.Since(start)

	return entities, timings, nil
}

// Close releases the underlying session
func (p *Pipeline) Close() error {
	return p.session.Close()
}
