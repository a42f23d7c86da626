package indexer

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/catalog"
	"github.com/fyrsmithlabs/corpusd/internal/loader"
	"github.com/fyrsmithlabs/corpusd/internal/pool"
	"github.com/fyrsmithlabs/corpusd/internal/redact"
	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

// ConsumerConfig configures the index consumer.
type ConsumerConfig struct {
	// Root is the watch root. Pools are derived from paths relative to it.
	Root string

	// VectorSize is passed to EnsureCollection for new collections.
	VectorSize int
}

// Consumer drains the work queue into the vector store and the catalog.
// It runs as a single goroutine; per-item failures are logged and recorded,
// never fatal to the loop.
type Consumer struct {
	cfg      ConsumerConfig
	queue    *Queue
	catalog  *catalog.Catalog
	store    vectorstore.Store
	registry *loader.Registry
	redactor *redact.Redactor
	router   *pool.Router
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewConsumer creates a consumer for the given queue. redactor may be nil,
// which disables secret redaction.
func NewConsumer(
	cfg ConsumerConfig,
	queue *Queue,
	cat *catalog.Catalog,
	store vectorstore.Store,
	registry *loader.Registry,
	redactor *redact.Redactor,
	router *pool.Router,
	logger *zap.Logger,
) *Consumer {
	return &Consumer{
		cfg:      cfg,
		queue:    queue,
		catalog:  cat,
		store:    store,
		registry: registry,
		redactor: redactor,
		router:   router,
		logger:   logger,
		doneCh:   make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Returns immediately.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("starting index consumer")
	go c.run(runCtx)
}

// Stop cancels the consumer and waits for the in-flight item to finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Info("stopping index consumer")
	c.cancel()
	<-c.doneCh

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.doneCh)

	for {
		item, err := c.queue.Dequeue(ctx)
		if err != nil {
			c.logger.Info("index consumer stopped", zap.Error(err))
			return
		}
		c.process(ctx, item)
		c.queue.TaskDone()
	}
}

func (c *Consumer) process(ctx context.Context, item WorkItem) {
	switch item.Type {
	case EventTypeFile:
		c.handleFile(ctx, item)
	case EventTypePurge:
		c.handlePurge(ctx, item)
	default:
		c.logger.Warn("dropping work item of unknown type",
			zap.String("type", string(item.Type)))
	}
}

// handleFile decides whether the file needs (re)indexing and runs the
// load, redact, and upsert pipeline when it does.
func (c *Consumer) handleFile(ctx context.Context, item WorkItem) {
	poolName := c.poolFor(item.Path)
	collection := c.router.CollectionFor(poolName)

	if err := c.store.EnsureCollection(ctx, collection, c.cfg.VectorSize); err != nil {
		c.logger.Error("ensuring collection failed",
			zap.String("collection", collection),
			zap.String("path", item.Path),
			zap.Error(err))
		filesProcessed.WithLabelValues(outcomeFailed).Inc()
		return
	}

	decision, err := c.catalog.CheckNeedsIndexing(ctx, item.Path, item.LastUpdatedSeconds, item.TenantID)
	if err != nil {
		c.logger.Error("catalog check failed",
			zap.String("path", item.Path), zap.Error(err))
		filesProcessed.WithLabelValues(outcomeFailed).Inc()
		return
	}
	if decision == catalog.DecisionUnchanged {
		c.logger.Debug("skipping file, unchanged", zap.String("path", item.Path))
		filesProcessed.WithLabelValues(outcomeUnchanged).Inc()
		return
	}

	c.logger.Info("indexing file",
		zap.String("path", item.Path),
		zap.String("pool", poolName),
		zap.String("decision", decision.String()))

	start := time.Now()
	indexErr := c.indexFile(ctx, item, collection, decision)
	elapsed := time.Since(start).Seconds()

	if indexErr != nil {
		c.logger.Error("indexing failed",
			zap.String("path", item.Path), zap.Error(indexErr))
		filesProcessed.WithLabelValues(outcomeFailed).Inc()
		if err := c.catalog.RecordOutcome(ctx, item.Path, catalog.StatusFailed, elapsed); err != nil {
			c.logger.Error("recording failure outcome",
				zap.String("path", item.Path), zap.Error(err))
		}
		return
	}

	indexingDuration.Observe(elapsed)
	filesProcessed.WithLabelValues(outcomeIndexed).Inc()
	if err := c.catalog.RecordOutcome(ctx, item.Path, catalog.StatusIndexed, elapsed); err != nil {
		c.logger.Error("recording outcome",
			zap.String("path", item.Path), zap.Error(err))
	}
}

func (c *Consumer) indexFile(ctx context.Context, item WorkItem, collection string, decision catalog.Decision) error {
	if err := c.catalog.SetStatus(ctx, item.Path, catalog.StatusIndexing); err != nil {
		c.logger.Warn("setting indexing status failed",
			zap.String("path", item.Path), zap.Error(err))
	}

	// Stale chunks from the previous pass are removed best-effort: a
	// failure here leaves duplicates behind but must not block the fresh
	// content from landing.
	if decision == catalog.DecisionReindex {
		if err := c.store.DeleteByPaths(ctx, collection, []string{item.Path}); err != nil {
			c.logger.Warn("removing stale chunks failed, continuing",
				zap.String("path", item.Path), zap.Error(err))
		}
	}

	docs, err := c.registry.LoadAndSplit(ctx, item.Path)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		c.logger.Warn("no content loaded", zap.String("path", item.Path))
		return nil
	}

	chunks := make([]vectorstore.Document, 0, len(docs))
	var findings int
	for _, doc := range docs {
		content := doc.PageContent
		if c.redactor != nil {
			result := c.redactor.Redact(content, item.Path)
			findings += len(result.Findings)
			content = result.Content
		}

		meta := make(map[string]any, len(doc.Metadata)+3)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta["file_path"] = item.Path
		meta["file_id"] = item.FileID
		if item.TenantID != "" {
			meta["tenant_id"] = item.TenantID
		}

		chunks = append(chunks, vectorstore.Document{Content: content, Metadata: meta})
	}

	ids, err := c.store.AddDocuments(ctx, collection, chunks)
	if err != nil {
		return err
	}

	chunksIndexed.Add(float64(len(ids)))
	if findings > 0 {
		c.logger.Info("redacted secrets before upload",
			zap.String("path", item.Path), zap.Int("findings", findings))
	}
	c.logger.Info("indexed file",
		zap.String("path", item.Path),
		zap.Int("chunks", len(ids)))
	return nil
}

// handlePurge reconciles the catalog and the vector store against the set
// of paths the crawl actually saw.
func (c *Consumer) handlePurge(ctx context.Context, item WorkItem) {
	existing := make(map[string]struct{}, len(item.ExistingFilePaths))
	for _, p := range item.ExistingFilePaths {
		existing[p] = struct{}{}
	}

	removed, err := c.catalog.FindRemovedFiles(ctx, existing)
	if err != nil {
		c.logger.Error("finding removed files failed", zap.Error(err))
		return
	}
	if len(removed) == 0 {
		c.logger.Debug("nothing to purge")
		return
	}

	byCollection := make(map[string][]string)
	for _, path := range removed {
		collection := c.router.CollectionFor(c.poolFor(path))
		byCollection[collection] = append(byCollection[collection], path)
	}

	collections := make([]string, 0, len(byCollection))
	for name := range byCollection {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	for _, collection := range collections {
		paths := byCollection[collection]
		if err := c.store.DeleteByPaths(ctx, collection, paths); err != nil {
			c.logger.Error("purging chunks failed",
				zap.String("collection", collection),
				zap.Int("paths", len(paths)),
				zap.Error(err))
			continue
		}
		pathsPurged.Add(float64(len(paths)))
	}

	c.logger.Info("purged removed files", zap.Int("files", len(removed)))
}

// poolFor maps an absolute corpus path to its pool. Paths outside the
// watch root fall back to the default pool.
func (c *Consumer) poolFor(path string) string {
	rel, err := filepath.Rel(c.cfg.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return pool.DefaultPool
	}
	return c.router.PoolForPath(rel)
}
