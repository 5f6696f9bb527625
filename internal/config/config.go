package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by the vector_index and llm sections.
const (
	IndexFlat   = "flat"
	IndexQdrant = "qdrant"
	LLMGemini   = "gemini"
	LLMGroq     = "groq"
)

// EmbeddingConfig points at an Ollama-compatible /api/embed endpoint.
type EmbeddingConfig struct {
	URL         string `yaml:"url"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// FlatIndexConfig - Paths of the local flat index and its metadata sidecar.
type FlatIndexConfig struct {
	IndexPath    string `yaml:"index_path"`
	MetadataPath string `yaml:"metadata_path"`
}

// QdrantConfig - Connection details for the hosted index.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Backend string          `yaml:"backend"`
	Flat    FlatIndexConfig `yaml:"flat"`
	Qdrant  QdrantConfig    `yaml:"qdrant"`
}

// RetrievalConfig - Query-time policy knobs.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// MinScore applies to similarity-score backends only; matches at or
	// below it are dropped. Default 0.5; an explicit 0 keeps every match
	// with a positive score.
	MinScore *float32 `yaml:"min_score"`
	// IncludeGenerated controls whether previously AI-generated analyses
	// are eligible as retrieval context. Default true, matching the
	// original behaviour of feeding analyses back into the corpus.
	IncludeGenerated *bool `yaml:"include_generated"`
	// StoreInteractions appends every chat query/answer pair back into
	// the index.
	StoreInteractions bool `yaml:"store_interactions"`
}

// LLMConfig selects the generative backend and its model id.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ServerConfig - HTTP listen address and the allowed frontend origin.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	FrontendOrigin string `yaml:"frontend_origin"`
}

// ReportsConfig - Where uploaded-report metadata is kept.
type ReportsConfig struct {
	MetadataPath   string `yaml:"metadata_path"`
	PersistToIndex bool   `yaml:"persist_to_index"`
}

// Config is the root configuration. Secrets (GEMINI_API_KEY, GROQ_API_KEY)
// stay in env; godotenv autoload pulls them from .env.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"vector_index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	Reports   ReportsConfig   `yaml:"reports"`
}

// Load reads a config from path. A missing file returns defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config.yaml exists: local
// flat index, Gemini, localhost embedding endpoint.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSecs) * time.Second
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSecs) * time.Second
}

// RetrievalMinScore resolves the similarity floor. This is the only place
// the 0.5 default lives; an explicit 0 in the config is honored.
func (c *Config) RetrievalMinScore() float32 {
	if c.Retrieval.MinScore == nil {
		return 0.5
	}
	return *c.Retrieval.MinScore
}

func (c *Config) RetrievalIncludesGenerated() bool {
	if c.Retrieval.IncludeGenerated == nil {
		return true
	}
	return *c.Retrieval.IncludeGenerated
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":1323"
	}
	if cfg.Server.FrontendOrigin == "" {
		cfg.Server.FrontendOrigin = "http://localhost:5173"
	}
	if cfg.Embedding.URL == "" {
		cfg.Embedding.URL = "http://localhost:11434/api/embed"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-minilm"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 384
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 15
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = IndexFlat
	}
	if cfg.Index.Flat.IndexPath == "" {
		cfg.Index.Flat.IndexPath = "assets/medical.index"
	}
	if cfg.Index.Flat.MetadataPath == "" {
		cfg.Index.Flat.MetadataPath = "assets/metadata.json"
	}
	if cfg.Index.Qdrant.Addr == "" {
		cfg.Index.Qdrant.Addr = "localhost:6334"
	}
	if cfg.Index.Qdrant.Collection == "" {
		cfg.Index.Qdrant.Collection = "medassist"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = LLMGemini
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case LLMGroq:
			cfg.LLM.Model = "meta-llama/llama-4-scout-17b-16e-instruct"
		default:
			cfg.LLM.Model = "gemini-2.0-flash-exp"
		}
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.Reports.MetadataPath == "" {
		cfg.Reports.MetadataPath = "assets/reports.json"
	}
}

func validate(cfg *Config) error {
	switch cfg.Index.Backend {
	case IndexFlat, IndexQdrant:
	default:
		return fmt.Errorf("unknown vector index backend %q", cfg.Index.Backend)
	}
	switch cfg.LLM.Provider {
	case LLMGemini, LLMGroq:
	default:
		return fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	if cfg.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	return nil
}
