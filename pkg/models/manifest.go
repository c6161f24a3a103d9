package models

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFilename is written into every fetched model directory.
const ManifestFilename = "edgekit.yaml"

// Manifest records where a local model directory came from
type Manifest struct {
	Repo      string    `yaml:"repo"`
	Task      string    `yaml:"task"`
	Revision  string    `yaml:"revision"`
	Files     []string  `yaml:"files"`
	Converted bool      `yaml:"converted,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}

// WriteManifest saves the manifest into dir
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFilename), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest from dir
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
