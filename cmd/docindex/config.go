package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the command line flags so deployments can keep
// connection settings in a YAML file instead of repeating them per
// invocation. Flags explicitly set on the command line win over file
// values.
type fileConfig struct {
	Embedding embeddingConfig `yaml:"embedding"`
	Chunking  chunkingConfig  `yaml:"chunking,omitempty"`
	Batching  batchingConfig  `yaml:"batching,omitempty"`
}

type embeddingConfig struct {
	Host              string `yaml:"host"`
	Model             string `yaml:"model"`
	APIKey            string `yaml:"api_key,omitempty"`
	RequestsPerMinute int    `yaml:"requests_per_minute,omitempty"`
}

type chunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size,omitempty"`
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"`
}

type batchingConfig struct {
	BatchSize  int             `yaml:"batch_size,omitempty"`
	MaxRetries int             `yaml:"max_retries,omitempty"`
	Backoff    []time.Duration `yaml:"backoff,omitempty"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}
