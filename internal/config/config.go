// Package config provides configuration loading for corpusd.
//
// Configuration is read from a YAML file and overridden by environment
// variables. Each section has defaults applied before validation, so a
// minimal config only needs watch.root.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the complete corpusd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Catalog     CatalogConfig     `koanf:"catalog"`
	Watch       WatchConfig       `koanf:"watch"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Indexer     IndexerConfig     `koanf:"indexer"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Agent       AgentConfig       `koanf:"agent"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is the per-client request rate for the API in requests
	// per second. Zero disables rate limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
// Telemetry is disabled by default; corpusd runs fine without a collector.
type TelemetryConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Endpoint        string   `koanf:"endpoint"`
	Protocol        string   `koanf:"protocol"` // "grpc" or "http/protobuf"
	ServiceName     string   `koanf:"service_name"`
	ServiceVersion  string   `koanf:"service_version"`
	Insecure        bool     `koanf:"insecure"`
	SampleRate      float64  `koanf:"sample_rate"`
	MetricsEnabled  bool     `koanf:"metrics_enabled"`
	MetricsInterval Duration `koanf:"metrics_interval"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// CatalogConfig holds the index state catalog configuration.
type CatalogConfig struct {
	// Path is the SQLite database file. The parent directory is created
	// on first use.
	Path string `koanf:"path"`
}

// WatchConfig describes the directory tree corpusd indexes.
type WatchConfig struct {
	// Root is the directory corpusd crawls. Required, absolute.
	Root string `koanf:"root"`
	// PublicPrefix replaces Root when composing file:// links in query
	// results. Defaults to Root, for setups where corpusd sees the same
	// paths as its clients.
	PublicPrefix string `koanf:"public_prefix"`
	// Interval is the rescan period. A crawl also runs once at startup.
	Interval Duration `koanf:"interval"`
	// IgnoreFile names the gitignore-style file read from Root.
	IgnoreFile string `koanf:"ignore_file"`
}

// EmbeddingsConfig selects and configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local ONNX), "tei" (text-embeddings-inference
	// HTTP), or "openai" (OpenAI-compatible HTTP).
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	// BaseURL is the endpoint for the tei and openai providers.
	BaseURL string `koanf:"base_url"`
	APIKey  Secret `koanf:"api_key"`
	// CacheDir holds downloaded models (fastembed provider only).
	CacheDir string `koanf:"cache_dir"`
	// VectorSize overrides the dimension reported by the provider.
	// Zero means use the provider's.
	VectorSize int `koanf:"vector_size"`
}

// VectorStoreConfig selects and configures the vector store.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`
	// DefaultCollection backs the "default" pool.
	DefaultCollection string        `koanf:"default_collection"`
	Qdrant            QdrantConfig  `koanf:"qdrant"`
	Chromem           ChromemConfig `koanf:"chromem"`
}

// QdrantConfig holds qdrant gRPC client configuration.
type QdrantConfig struct {
	Host         string   `koanf:"host"`
	Port         int      `koanf:"port"`
	UseTLS       bool     `koanf:"use_tls"`
	APIKey       Secret   `koanf:"api_key"`
	MaxRetries   int      `koanf:"max_retries"`
	RetryBackoff Duration `koanf:"retry_backoff"`
}

// ChromemConfig holds embedded store configuration.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// IndexerConfig controls chunking and the index pipeline.
type IndexerConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
	// TenantID tags every indexed chunk and catalog row. Empty disables
	// tenant scoping.
	TenantID  string          `koanf:"tenant_id"`
	Redaction RedactionConfig `koanf:"redaction"`
}

// RedactionConfig controls secret scrubbing of chunks before upload.
type RedactionConfig struct {
	Enabled bool `koanf:"enabled"`
	// AllowlistPath points at a TOML allowlist of patterns to keep.
	AllowlistPath string `koanf:"allowlist_path"`
}

// RetrievalConfig controls the query interface.
type RetrievalConfig struct {
	TopK           int          `koanf:"top_k"`
	ScoreThreshold float64      `koanf:"score_threshold"`
	Rerank         RerankConfig `koanf:"rerank"`
}

// RerankConfig controls optional post-search reranking.
type RerankConfig struct {
	Enabled bool `koanf:"enabled"`
	TopN    int  `koanf:"top_n"`
}

// AgentConfig configures the retrieval agent loop.
type AgentConfig struct {
	// Backend is "ollama" or "openai" (any OpenAI-compatible endpoint).
	Backend     string  `koanf:"backend"`
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKey      Secret  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	// MaxTurns bounds agent iterations before the loop gives up.
	MaxTurns int `koanf:"max_turns"`
	// SearchTopK is the hit count for the search_documents tool, separate
	// from the query interface's top_k.
	SearchTopK int `koanf:"search_top_k"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8001
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "corpusd"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = Duration(15 * time.Second)
	}
	if cfg.Telemetry.ShutdownTimeout == 0 {
		cfg.Telemetry.ShutdownTimeout = Duration(5 * time.Second)
	}

	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "~/.config/corpusd/catalog.db"
	}

	if cfg.Watch.PublicPrefix == "" {
		cfg.Watch.PublicPrefix = cfg.Watch.Root
	}
	if cfg.Watch.Interval == 0 {
		cfg.Watch.Interval = Duration(time.Hour)
	}
	if cfg.Watch.IgnoreFile == "" {
		cfg.Watch.IgnoreFile = ".corpusignore"
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.DefaultCollection == "" {
		cfg.VectorStore.DefaultCollection = "corpus_default"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.MaxRetries == 0 {
		cfg.VectorStore.Qdrant.MaxRetries = 3
	}
	if cfg.VectorStore.Qdrant.RetryBackoff == 0 {
		cfg.VectorStore.Qdrant.RetryBackoff = Duration(time.Second)
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/corpusd/vectorstore"
	}

	if cfg.Indexer.ChunkSize == 0 {
		cfg.Indexer.ChunkSize = 512
	}
	if cfg.Indexer.ChunkOverlap == 0 {
		cfg.Indexer.ChunkOverlap = 50
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 20
	}
	if cfg.Retrieval.ScoreThreshold == 0 {
		cfg.Retrieval.ScoreThreshold = 0.5
	}
	if cfg.Retrieval.Rerank.TopN == 0 {
		cfg.Retrieval.Rerank.TopN = 3
	}

	if cfg.Agent.Backend == "" {
		cfg.Agent.Backend = "ollama"
	}
	if cfg.Agent.BaseURL == "" {
		if cfg.Agent.Backend == "ollama" {
			cfg.Agent.BaseURL = "http://localhost:11434"
		}
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "llama3.1"
	}
	if cfg.Agent.APIKey == "" {
		cfg.Agent.APIKey = "not-needed"
	}
	if cfg.Agent.Temperature == 0 {
		cfg.Agent.Temperature = 0.5
	}
	if cfg.Agent.MaxTurns == 0 {
		cfg.Agent.MaxTurns = 10
	}
	if cfg.Agent.SearchTopK == 0 {
		cfg.Agent.SearchTopK = 5
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("server shutdown_timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server rate_limit cannot be negative: %f", c.Server.RateLimit)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint required when telemetry is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
		}
	}

	if c.Watch.Root == "" {
		return errors.New("watch root is required")
	}
	if !filepath.IsAbs(c.Watch.Root) {
		return fmt.Errorf("watch root must be an absolute path, got %q", c.Watch.Root)
	}
	if c.Watch.Interval.Duration() <= 0 {
		return errors.New("watch interval must be positive")
	}

	switch c.Embeddings.Provider {
	case "fastembed", "tei", "openai":
	default:
		return fmt.Errorf("embeddings provider must be 'fastembed', 'tei', or 'openai', got %q", c.Embeddings.Provider)
	}
	if (c.Embeddings.Provider == "tei" || c.Embeddings.Provider == "openai") && c.Embeddings.BaseURL == "" {
		return fmt.Errorf("embeddings base_url required for %s provider", c.Embeddings.Provider)
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("vectorstore provider must be 'chromem' or 'qdrant', got %q", c.VectorStore.Provider)
	}

	if c.Indexer.ChunkSize <= 0 {
		return fmt.Errorf("indexer chunk_size must be positive, got %d", c.Indexer.ChunkSize)
	}
	if c.Indexer.ChunkOverlap < 0 || c.Indexer.ChunkOverlap >= c.Indexer.ChunkSize {
		return fmt.Errorf("indexer chunk_overlap must be in [0, chunk_size), got %d", c.Indexer.ChunkOverlap)
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval score_threshold must be between 0 and 1, got %f", c.Retrieval.ScoreThreshold)
	}
	if c.Retrieval.Rerank.Enabled && c.Retrieval.Rerank.TopN <= 0 {
		return fmt.Errorf("retrieval rerank top_n must be positive, got %d", c.Retrieval.Rerank.TopN)
	}

	switch c.Agent.Backend {
	case "ollama", "openai":
	default:
		return fmt.Errorf("agent backend must be 'ollama' or 'openai', got %q", c.Agent.Backend)
	}
	if c.Agent.Backend == "openai" && c.Agent.BaseURL == "" {
		return errors.New("agent base_url required for openai backend")
	}
	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent max_turns must be positive, got %d", c.Agent.MaxTurns)
	}
	if c.Agent.SearchTopK <= 0 {
		return fmt.Errorf("agent search_top_k must be positive, got %d", c.Agent.SearchTopK)
	}

	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
