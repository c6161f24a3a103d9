package interfaces

import (
	"context"

	"github.com/edgekit-ml/edgekit/pkg/models"
)

// EntityRecognizer extracts named entities from text
type EntityRecognizer interface {
	// Recognize runs the full tokenize/infer/decode pipeline
	Recognize(ctx context.Context, text string) ([]models.Entity, models.Timings, error)
	// Labels returns the model's ordered BIO tag list
	Labels() []string
	// Close releases the underlying session
	Close() error
}

// ModelFetcher downloads model files from a hub
type ModelFetcher interface {
	// FetchModel downloads a repo's pipeline files into destDir
	FetchModel(ctx context.Context, repo, revision, task, destDir string) (*models.Manifest, error)
}

// ModelCatalog records locally available models
type ModelCatalog interface {
	Put(rec models.ModelRecord) error
	Get(id string) (*models.ModelRecord, error)
	List() ([]models.ModelRecord, error)
	Remove(id string) error
}

// Converter turns a transformers checkpoint into an ONNX export
type Converter interface {
	// Check verifies the conversion toolchain is present
	Check(ctx context.Context) error
	// Run performs the conversion
	Run(ctx context.Context, repo, task, outDir string) error
}
