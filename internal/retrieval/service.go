// Package retrieval answers pool-scoped similarity queries over the
// vector store and composes the link + context output callers consume.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/pool"
	"github.com/fyrsmithlabs/corpusd/internal/reranker"
	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

// outputSeparator joins hit contents in Result.Output.
const outputSeparator = ".\n\n\n "

// ErrUnknownPool is returned when the queried pool has no collection.
var ErrUnknownPool = errors.New("pool does not exist")

// Config configures the retrieval service.
type Config struct {
	// TopK is the similarity search hit count. Default: 20.
	TopK int

	// ScoreThreshold drops hits scoring below it. Zero disables the
	// cutoff.
	ScoreThreshold float64

	// RerankEnabled blends vector scores with query-term overlap and
	// keeps the top RerankTopN hits.
	RerankEnabled bool

	// RerankTopN is the hit count kept after reranking. Default: 3.
	RerankTopN int

	// WatchRoot is the indexed prefix of stored file paths.
	WatchRoot string

	// PublicPrefix replaces WatchRoot when composing file:// links, for
	// setups where clients mount the corpus at a different path.
	PublicPrefix string
}

// Result is one answered query.
type Result struct {
	// Links are file:// URIs of the source files behind the hits,
	// deduplicated, in hit order.
	Links []string

	// Output is the hit contents joined by the output separator.
	Output string
}

// Service resolves pools to collections and runs similarity search.
type Service struct {
	cfg      Config
	store    vectorstore.Store
	router   *pool.Router
	reranker *reranker.Reranker
	logger   *zap.Logger
}

// New creates a retrieval service.
func New(cfg Config, store vectorstore.Store, router *pool.Router, logger *zap.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 20
	}

	var rr *reranker.Reranker
	if cfg.RerankEnabled {
		if cfg.RerankTopN <= 0 {
			cfg.RerankTopN = 3
		}
		rr = reranker.New()
	}

	return &Service{
		cfg:      cfg,
		store:    store,
		router:   router,
		reranker: rr,
		logger:   logger,
	}
}

// Search runs a similarity query against the pool's collection. A pool
// whose collection was never created is unknown and yields ErrUnknownPool.
// No hits is not an error: the result carries no links and empty output.
func (s *Service) Search(ctx context.Context, poolName, text string) (Result, error) {
	start := time.Now()
	collection := s.router.CollectionFor(poolName)

	exists, err := s.store.CollectionExists(ctx, collection)
	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("checking collection %s: %w", collection, err)
	}
	if !exists {
		searchesTotal.WithLabelValues("unknown_pool").Inc()
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPool, poolName)
	}

	hits, err := s.store.Search(ctx, collection, text, s.cfg.TopK, float32(s.cfg.ScoreThreshold), nil)
	if err != nil {
		searchesTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("searching %s: %w", collection, err)
	}

	if s.reranker != nil {
		hits = s.reranker.Rerank(text, hits, s.cfg.RerankTopN)
	}

	var result Result
	contents := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		contents = append(contents, hit.Content)

		path, _ := hit.Metadata["file_path"].(string)
		if path == "" {
			continue
		}
		link := s.link(path)
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		result.Links = append(result.Links, link)
	}
	result.Output = strings.Join(contents, outputSeparator)

	searchesTotal.WithLabelValues("success").Inc()
	searchDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("search complete",
		zap.String("pool", poolName),
		zap.String("collection", collection),
		zap.Int("hits", len(hits)),
		zap.Int("links", len(result.Links)))
	return result, nil
}

// link converts a stored absolute path into the client-facing file URI.
func (s *Service) link(path string) string {
	if s.cfg.WatchRoot != "" && s.cfg.PublicPrefix != "" {
		if rest, ok := strings.CutPrefix(path, s.cfg.WatchRoot); ok {
			path = s.cfg.PublicPrefix + rest
		}
	}
	return "file://" + path
}
