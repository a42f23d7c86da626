// Package vectorstore stores and searches embedded document chunks.
package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/corpusd/internal/config"
	"go.uber.org/zap"
)

// New creates a Store from configuration.
//
// The provider field selects the backend:
//   - "chromem" (default): embedded store, no external dependencies
//   - "qdrant": external Qdrant server over gRPC
//
// Example:
//
//	store, err := vectorstore.New(cfg, embedder, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func New(cfg *config.Config, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:     cfg.VectorStore.Chromem.Path,
			Compress: cfg.VectorStore.Chromem.Compress,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:         cfg.VectorStore.Qdrant.Host,
			Port:         cfg.VectorStore.Qdrant.Port,
			UseTLS:       cfg.VectorStore.Qdrant.UseTLS,
			APIKey:       cfg.VectorStore.Qdrant.APIKey.Value(),
			MaxRetries:   cfg.VectorStore.Qdrant.MaxRetries,
			RetryBackoff: cfg.VectorStore.Qdrant.RetryBackoff.Duration(),
		}, embedder, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
