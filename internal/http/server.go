// Package http serves the corpusd HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/corpusd/internal/agent"
	"github.com/fyrsmithlabs/corpusd/internal/catalog"
	"github.com/fyrsmithlabs/corpusd/internal/retrieval"
	"github.com/fyrsmithlabs/corpusd/internal/vectorstore"
)

// Querier answers pool searches.
type Querier interface {
	Search(ctx context.Context, pool, text string) (retrieval.Result, error)
}

// Chatter runs a chat conversation against the corpus.
type Chatter interface {
	Chat(ctx context.Context, message string) (agent.Result, error)
}

// Reindexer triggers crawl passes and reports queue pressure.
type Reindexer interface {
	Reindex(ctx context.Context) error
	QueueLen() int
}

// Server provides the corpusd HTTP endpoints.
type Server struct {
	echo      *echo.Echo
	querier   Querier
	chatter   Chatter
	reindexer Reindexer
	catalog   *catalog.Catalog
	store     vectorstore.Store
	logger    *zap.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RateLimit caps requests per second per client IP. Zero disables
	// the limiter.
	RateLimit float64
}

// NewServer creates the API server. All collaborators are required.
func NewServer(querier Querier, chatter Chatter, reindexer Reindexer, cat *catalog.Catalog, store vectorstore.Store, logger *zap.Logger, cfg *Config) (*Server, error) {
	if querier == nil {
		return nil, fmt.Errorf("querier cannot be nil")
	}
	if chatter == nil {
		return nil, fmt.Errorf("chatter cannot be nil")
	}
	if reindexer == nil {
		return nil, fmt.Errorf("reindexer cannot be nil")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8001,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(
			middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit)),
		))
	}
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		querier:   querier,
		chatter:   chatter,
		reindexer: reindexer,
		catalog:   cat,
		store:     store,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/query", s.handleQuery)
	v1.POST("/chat", s.handleChat)
	v1.POST("/reindex", s.handleReindex)
	v1.GET("/files", s.handleFiles)
	v1.POST("/files/status", s.handleFileStatus)
	v1.GET("/stats", s.handleStats)
}

// handleHealth reports liveness plus vector store reachability. An
// unreachable store degrades the response to 503 so orchestrators
// restart or route around the daemon.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", VectorStore: "ok"}

	if _, err := s.store.ListCollections(c.Request().Context()); err != nil {
		s.logger.Warn("health check: vector store unreachable", zap.Error(err))
		resp.Status = "degraded"
		resp.VectorStore = "unreachable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}

	return c.JSON(http.StatusOK, resp)
}

// handleQuery runs a retrieval search over one pool.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	result, err := s.querier.Search(c.Request().Context(), req.Pool, req.Text)
	if err != nil {
		if errors.Is(err, retrieval.ErrUnknownPool) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		s.logger.Error("search failed", zap.String("pool", req.Pool), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	links := result.Links
	if links == nil {
		links = []string{}
	}

	return c.JSON(http.StatusOK, QueryResponse{
		Links:  links,
		Output: result.Output,
	})
}

// handleChat runs the agent loop for one message.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	result, err := s.chatter.Chat(c.Request().Context(), req.Message)
	if err != nil {
		s.logger.Error("chat failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "chat backend failed")
	}

	links := result.Links
	if links == nil {
		links = []string{}
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Answer: result.Answer,
		Links:  links,
	})
}

// handleReindex kicks off a full crawl pass in the background and
// returns immediately. Duplicate passes are harmless, unchanged files
// are skipped by the consumer.
func (s *Server) handleReindex(c echo.Context) error {
	s.logger.Info("reindex requested",
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
	)

	go func() {
		if err := s.reindexer.Reindex(context.Background()); err != nil {
			s.logger.Error("reindex failed", zap.Error(err))
		}
	}()

	return c.JSON(http.StatusAccepted, ReindexResponse{Status: "reindex started"})
}

// handleFiles lists every tracked file with its indexing state.
func (s *Server) handleFiles(c echo.Context) error {
	records, err := s.catalog.ListAll(c.Request().Context())
	if err != nil {
		s.logger.Error("listing files failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "listing files failed")
	}

	files := make([]FileInfo, 0, len(records))
	for _, rec := range records {
		files = append(files, FileInfo{
			Path:               rec.Path,
			Status:             string(rec.Status),
			LastUpdatedSeconds: rec.LastUpdatedSeconds,
			IndexingSeconds:    rec.IndexingSeconds,
			TenantID:           rec.TenantID,
		})
	}

	return c.JSON(http.StatusOK, FilesResponse{
		Files: files,
		Total: len(files),
	})
}

// handleFileStatus returns the indexing status for the requested paths.
// Paths the catalog has never seen are absent from the result.
func (s *Server) handleFileStatus(c echo.Context) error {
	var req FileStatusRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid file status request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if len(req.Paths) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "paths field is required")
	}

	statuses, err := s.catalog.GetStatuses(c.Request().Context(), req.Paths)
	if err != nil {
		s.logger.Error("status lookup failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "status lookup failed")
	}

	out := make(map[string]string, len(statuses))
	for path, status := range statuses {
		out[path] = string(status)
	}

	return c.JSON(http.StatusOK, FileStatusResponse{Statuses: out})
}

// handleStats summarizes catalog contents, queue pressure, and vector
// store totals.
func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := s.catalog.GetStats(ctx)
	if err != nil {
		s.logger.Error("stats query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "stats query failed")
	}

	byStatus := make(map[string]int64, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}

	resp := StatsResponse{
		Files: FileStats{
			Total:    stats.Total,
			ByStatus: byStatus,
		},
		QueueDepth: s.reindexer.QueueLen(),
	}

	if collections, points := CollectionTotals(ctx, s.store); collections >= 0 {
		resp.VectorStore = &VectorStoreStats{
			Collections: collections,
			Points:      points,
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
