package indexer

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/catalog"
	"github.com/fyrsmithlabs/corpusd/internal/loader"
	"github.com/fyrsmithlabs/corpusd/internal/pool"
	"github.com/fyrsmithlabs/corpusd/internal/redact"
	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

// Config bundles the indexing pipeline configuration.
type Config struct {
	Crawler  CrawlerConfig
	Consumer ConsumerConfig
}

// Service owns the indexing pipeline: a crawler producing work items, the
// queue between them, and the consumer draining it.
type Service struct {
	queue    *Queue
	crawler  *Crawler
	consumer *Consumer
	logger   *zap.Logger
}

// NewService wires up the pipeline. redactor may be nil to disable secret
// redaction.
func NewService(
	cfg Config,
	cat *catalog.Catalog,
	store vectorstore.Store,
	registry *loader.Registry,
	redactor *redact.Redactor,
	router *pool.Router,
	logger *zap.Logger,
) *Service {
	queue := NewQueue()

	return &Service{
		queue:    queue,
		crawler:  NewCrawler(cfg.Crawler, queue, registry, logger),
		consumer: NewConsumer(cfg.Consumer, queue, cat, store, registry, redactor, router, logger),
		logger:   logger,
	}
}

// Start launches the consumer and then the crawler, so the initial crawl
// pass already has a drain running.
func (s *Service) Start(ctx context.Context) {
	s.consumer.Start(ctx)
	s.crawler.Start(ctx)
}

// Stop halts crawling, cancels the consumer, and closes the queue. Queued
// but unprocessed items are dropped; the next crawl pass re-emits them.
func (s *Service) Stop() {
	s.crawler.Stop()
	s.consumer.Stop()
	s.queue.Close()
}

// Reindex runs one crawl pass and blocks until everything it enqueued has
// drained through the consumer, or ctx is canceled.
func (s *Service) Reindex(ctx context.Context) error {
	if err := s.crawler.RunOnce(ctx); err != nil {
		return err
	}
	return s.queue.Join(ctx)
}

// QueueLen reports the current queue depth.
func (s *Service) QueueLen() int {
	return s.queue.Len()
}
