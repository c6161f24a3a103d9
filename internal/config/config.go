package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	ModelDir       string  `yaml:"model_dir"`
	CatalogPath    string  `yaml:"catalog_path"`
	Backend        string  `yaml:"backend"`
	ONNXLibrary    string  `yaml:"onnx_library,omitempty"`
	IntraOpThreads int     `yaml:"intra_op_threads"`
	MaxSeqLen      int     `yaml:"max_seq_len"`
	HubEndpoint    string  `yaml:"hub_endpoint"`
	TokenEnv       string  `yaml:"token_env"`
	MinConfidence  float64 `yaml:"min_confidence"`
	TraceEnabled   bool    `yaml:"trace_enabled"`
}

// Default returns the default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	base := filepath.Join(homeDir, ".edgekit")
	return &Config{
		ModelDir:       filepath.Join(base, "models"),
		CatalogPath:    filepath.Join(base, "catalog.db"),
		Backend:        "onnx",
		IntraOpThreads: 2,
		MaxSeqLen:      128,
		HubEndpoint:    "https://huggingface.co",
		TokenEnv:       "HF_TOKEN",
		MinConfidence:  0.0,
		TraceEnabled:   false,
	}
}

// Load reads configuration from file, creating with defaults if it doesn't exist
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default() // Start with defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".edgekit", "config.yaml")
}
