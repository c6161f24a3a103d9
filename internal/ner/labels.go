package ner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// modelConfig is the subset of a transformers config.json the pipeline reads
type modelConfig struct {
	ID2Label     map[string]string `json:"id2label"`
	DoLowerCase  *bool             `json:"do_lower_case"`
	MaxPosition  int               `json:"max_position_embeddings"`
	ModelType    string            `json:"model_type"`
	NumLabelsAlt int               `json:"num_labels"`
}

// LoadLabels reads the ordered BIO label list from a model directory's
// config.json id2label map. Index i of the result is the tag for class i.
func LoadLabels(modelDir string) ([]string, error) {
	cfg, err := readConfig(modelDir)
	if err != nil {
		return nil, err
	}

	if len(cfg.ID2Label) == 0 {
		return nil, fmt.Errorf("config.json in %s has no id2label map", modelDir)
	}

	labels := make([]string, len(cfg.ID2Label))
	for key, tag := range cfg.ID2Label {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("id2label key %q is not an index: %w", key, err)
		}
		if idx < 0 || idx >= len(labels) {
			return nil, fmt.Errorf("id2label index %d out of range for %d labels", idx, len(labels))
		}
		labels[idx] = tag
	}

	for i, tag := range labels {
		if tag == "" {
			return nil, fmt.Errorf("id2label is missing index %d", i)
		}
	}

	return labels, nil
}

// Lowercase reports whether the model's tokenizer expects lowercased input.
// Defaults to true when config.json does not say (BERT-base-uncased lineage).
func Lowercase(modelDir string) bool {
	cfg, err := readConfig(modelDir)
	if err != nil || cfg.DoLowerCase == nil {
		return true
	}
	return *cfg.DoLowerCase
}

func readConfig(modelDir string) (*modelConfig, error) {
	path := filepath.Join(modelDir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}

	var cfg modelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}
