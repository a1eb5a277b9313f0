package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"docqa-platform/models"

	"gopkg.in/yaml.v3"
)

// EmbeddingsConfig controls optional chunk embedding on upload.
type EmbeddingsConfig struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	BatchSize int  `yaml:"batch_size" json:"batch_size"`
}

// SummarizationConfig tunes the map-reduce and quick summary paths.
type SummarizationConfig struct {
	MapMaxTokens         int     `yaml:"map_max_tokens" json:"map_max_tokens"`
	MapTemperature       float32 `yaml:"map_temperature" json:"map_temperature"`
	ReduceMaxTokens      int     `yaml:"reduce_max_tokens" json:"reduce_max_tokens"`
	ReduceTemperature    float32 `yaml:"reduce_temperature" json:"reduce_temperature"`
	Temperature          float32 `yaml:"temperature" json:"temperature"`
	MaxChunksToSummarize int     `yaml:"max_chunks_to_summarize" json:"max_chunks_to_summarize"`
	BatchSize            int     `yaml:"batch_size" json:"batch_size"`
	QuickSummaryMaxChars int     `yaml:"quick_summary_max_chars" json:"quick_summary_max_chars"`
	QuickSummarySources  int     `yaml:"quick_summary_sources" json:"quick_summary_sources"`
}

// SearchConfig tunes lexical retrieval.
type SearchConfig struct {
	TopK int `yaml:"top_k" json:"top_k"`
}

// AnswerConfig tunes answer generation.
type AnswerConfig struct {
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
}

// MemoryConfig bounds conversation sessions.
type MemoryConfig struct {
	MaxMessages     int           `yaml:"max_messages" json:"max_messages"`
	SessionTimeout  time.Duration `yaml:"session_timeout" json:"session_timeout"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// EngineConfig is the tuning of the question-answering and summarization core.
// Values are copied into each component at construction and never mutated.
type EngineConfig struct {
	Chunking      models.ChunkingConfig `yaml:"chunking" json:"chunking"`
	Embeddings    EmbeddingsConfig      `yaml:"embeddings" json:"embeddings"`
	Summarization SummarizationConfig   `yaml:"summarization" json:"summarization"`
	Search        SearchConfig          `yaml:"search" json:"search"`
	Answer        AnswerConfig          `yaml:"answer" json:"answer"`
	Memory        MemoryConfig          `yaml:"memory" json:"memory"`
}

// DefaultEngineConfig returns the built-in tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Chunking: models.ChunkingConfig{
			ChunkSize:    1000,
			Overlap:      200,
			MinChunkSize: 100,
		},
		Embeddings: EmbeddingsConfig{
			Enabled:   false,
			BatchSize: 20,
		},
		Summarization: SummarizationConfig{
			MapMaxTokens:         100,
			MapTemperature:       0.2,
			ReduceMaxTokens:      1500,
			ReduceTemperature:    0.2,
			Temperature:          0.3,
			MaxChunksToSummarize: 50,
			BatchSize:            5,
			QuickSummaryMaxChars: 4000,
			QuickSummarySources:  10,
		},
		Search: SearchConfig{TopK: 5},
		Answer: AnswerConfig{
			MaxTokens:   1000,
			Temperature: 0.3,
		},
		Memory: MemoryConfig{
			MaxMessages:     10,
			SessionTimeout:  30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

// LoadEngineConfig overlays the YAML file at path on the defaults.
// A missing file yields the defaults unchanged.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read engine config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultEngineConfig(), fmt.Errorf("parse engine config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultEngineConfig(), err
	}
	return cfg, nil
}

// Validate rejects values that would disable a component outright.
// An overlap at or above the chunk size is tolerated; the chunker still terminates.
func (c EngineConfig) Validate() error {
	switch {
	case c.Chunking.ChunkSize <= 0:
		return fmt.Errorf("chunking.chunk_size must be > 0")
	case c.Search.TopK <= 0:
		return fmt.Errorf("search.top_k must be > 0")
	case c.Summarization.BatchSize <= 0:
		return fmt.Errorf("summarization.batch_size must be > 0")
	case c.Memory.MaxMessages <= 0:
		return fmt.Errorf("memory.max_messages must be > 0")
	case c.Memory.CleanupInterval <= 0:
		return fmt.Errorf("memory.cleanup_interval must be > 0")
	}
	return nil
}
