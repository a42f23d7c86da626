package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/agent"
	"github.com/fyrsmithlabs/corpusd/internal/catalog"
	"github.com/fyrsmithlabs/corpusd/internal/config"
	"github.com/fyrsmithlabs/corpusd/internal/embeddings"
	corpushttp "github.com/fyrsmithlabs/corpusd/internal/http"
	"github.com/fyrsmithlabs/corpusd/internal/indexer"
	"github.com/fyrsmithlabs/corpusd/internal/loader"
	"github.com/fyrsmithlabs/corpusd/internal/logging"
	"github.com/fyrsmithlabs/corpusd/internal/pool"
	"github.com/fyrsmithlabs/corpusd/internal/redact"
	"github.com/fyrsmithlabs/corpusd/internal/retrieval"
	"github.com/fyrsmithlabs/corpusd/internal/telemetry"
	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the corpusd daemon",
	Long: `Start the indexing and retrieval daemon.

The daemon crawls the configured watch root, keeps the vector store in
sync with it, and serves queries on the configured HTTP port until it
receives SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx)
}

// run starts the corpusd daemon and blocks until ctx is cancelled.
//
// Initialization order matters: the catalog and vector store must be up
// before the indexer starts, and the indexer before the HTTP server so a
// reindex request never races service construction.
func run(ctx context.Context) error {
	cfg, err := config.LoadWithFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info(ctx, "starting corpusd",
		zap.String("version", version),
		zap.String("commit", gitCommit))

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.ShutdownTimeout.Duration())
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	watcher, err := config.NewWatcher(configFile, logger.Underlying(), func(next *config.Config) {
		if err := logger.SetLevel(next.Logging.Level); err != nil {
			logger.Warn(ctx, "ignoring invalid log level from config reload",
				zap.String("level", next.Logging.Level), zap.Error(err))
		}
	})
	if err != nil {
		logger.Warn(ctx, "config reload disabled", zap.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn(ctx, "config reload disabled", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	if err := config.EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	catalogPath, err := config.ExpandPath(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	cat, err := catalog.New(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}
	defer cat.Close()
	logger.Info(ctx, "catalog ready", zap.String("path", catalogPath))

	embedder, err := embeddings.New(ctx, cfg.Embeddings, logger.Named("embeddings").Underlying())
	if err != nil {
		return fmt.Errorf("failed to initialize embeddings provider: %w", err)
	}
	defer embedder.Close()

	vectorSize := cfg.Embeddings.VectorSize
	if vectorSize == 0 {
		vectorSize = embedder.Dimension()
	}

	store, err := vectorstore.New(cfg, embedder, logger.Named("vectorstore").Underlying())
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer store.Close()

	// Ensure the default pool's collection exists (idempotent).
	if err := store.EnsureCollection(ctx, cfg.VectorStore.DefaultCollection, vectorSize); err != nil {
		return fmt.Errorf("failed to ensure default collection: %w", err)
	}

	var redactor *redact.Redactor
	if cfg.Indexer.Redaction.Enabled {
		redactor, err = redact.New(redact.Config{
			WatchRoot:     cfg.Watch.Root,
			AllowlistPath: cfg.Indexer.Redaction.AllowlistPath,
		}, logger.Named("redact").Underlying())
		if err != nil {
			return fmt.Errorf("failed to initialize redactor: %w", err)
		}
	}

	router := pool.NewRouter(cfg.VectorStore.DefaultCollection)
	registry := loader.New(cfg.Indexer.ChunkSize, cfg.Indexer.ChunkOverlap)

	indexSvc := indexer.NewService(indexer.Config{
		Crawler: indexer.CrawlerConfig{
			Root:       cfg.Watch.Root,
			Interval:   cfg.Watch.Interval.Duration(),
			IgnoreFile: cfg.Watch.IgnoreFile,
			TenantID:   cfg.Indexer.TenantID,
		},
		Consumer: indexer.ConsumerConfig{
			Root:       cfg.Watch.Root,
			VectorSize: vectorSize,
		},
	}, cat, store, registry, redactor, router, logger.Named("indexer").Underlying())

	retrievalSvc := retrieval.New(retrieval.Config{
		TopK:           cfg.Retrieval.TopK,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
		RerankEnabled:  cfg.Retrieval.Rerank.Enabled,
		RerankTopN:     cfg.Retrieval.Rerank.TopN,
		WatchRoot:      cfg.Watch.Root,
		PublicPrefix:   cfg.Watch.PublicPrefix,
	}, store, router, logger.Named("retrieval").Underlying())

	chatModel, err := agent.NewChatModel(agent.BackendConfig{
		Backend: cfg.Agent.Backend,
		BaseURL: cfg.Agent.BaseURL,
		Model:   cfg.Agent.Model,
		APIKey:  cfg.Agent.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat backend: %w", err)
	}
	chatAgent := agent.New(agent.Config{
		Collection:   router.CollectionFor(pool.DefaultPool),
		Temperature:  cfg.Agent.Temperature,
		MaxTurns:     cfg.Agent.MaxTurns,
		SearchTopK:   cfg.Agent.SearchTopK,
		WatchRoot:    cfg.Watch.Root,
		PublicPrefix: cfg.Watch.PublicPrefix,
	}, chatModel, store, logger.Named("agent").Underlying())

	server, err := corpushttp.NewServer(retrievalSvc, chatAgent, indexSvc, cat, store,
		logger.Named("http").Underlying(), &corpushttp.Config{
			Host:      cfg.Server.Host,
			Port:      cfg.Server.Port,
			RateLimit: cfg.Server.RateLimit,
		})
	if err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	indexSvc.Start(ctx)
	defer indexSvc.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info(ctx, "corpusd started",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.String("watch_root", cfg.Watch.Root),
		zap.String("vectorstore", cfg.VectorStore.Provider))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
