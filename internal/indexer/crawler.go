package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/ignore"
	"github.com/fyrsmithlabs/corpusd/internal/loader"
)

// skipDirs are directory basenames never crawled, regardless of what the
// ignore file says.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".cache":       true,
	".idea":        true,
	".vscode":      true,
}

// CrawlerConfig configures the periodic watch root crawler.
type CrawlerConfig struct {
	// Root is the directory to crawl. Required, absolute.
	Root string

	// Interval between crawl passes. A pass also runs at Start.
	// Default: 1 hour.
	Interval time.Duration

	// IgnoreFile is the gitignore-style file read from Root on every
	// pass. Empty disables ignore file parsing.
	IgnoreFile string

	// TenantID is stamped on every emitted work item. May be empty.
	TenantID string
}

// Crawler walks the watch root and enqueues indexing work. Each pass emits
// one FileEvent per supported file and exactly one trailing PurgeEvent.
type Crawler struct {
	cfg      CrawlerConfig
	queue    *Queue
	registry *loader.Registry
	parser   *ignore.Parser
	logger   *zap.Logger

	mu      sync.Mutex
	running bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCrawler creates a crawler feeding the given queue. Only files the
// registry supports are emitted.
func NewCrawler(cfg CrawlerConfig, queue *Queue, registry *loader.Registry, logger *zap.Logger) *Crawler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	return &Crawler{
		cfg:      cfg,
		queue:    queue,
		registry: registry,
		parser:   ignore.NewParser(cfg.IgnoreFile),
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins periodic crawling in the background. Returns immediately;
// the first pass starts right away in a goroutine.
func (c *Crawler) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.logger.Info("starting crawler",
		zap.String("root", c.cfg.Root),
		zap.Duration("interval", c.cfg.Interval))

	go c.run(ctx)
}

// Stop halts the crawler and waits for the current pass to finish.
func (c *Crawler) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Info("stopping crawler")
	close(c.stopCh)
	<-c.doneCh

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

func (c *Crawler) run(ctx context.Context) {
	defer close(c.doneCh)

	if err := c.RunOnce(ctx); err != nil {
		c.logger.Error("initial crawl failed", zap.Error(err))
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("crawler stopped: context canceled")
			return
		case <-c.stopCh:
			c.logger.Info("crawler stopped: stop requested")
			return
		case <-ticker.C:
			if err := c.RunOnce(ctx); err != nil {
				c.logger.Error("crawl pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single crawl pass. Per-file stat errors are logged and
// the file skipped; a directory-level failure abandons the whole pass,
// including the purge, so a transient filesystem error never reads as a
// mass deletion.
func (c *Crawler) RunOnce(ctx context.Context) error {
	start := time.Now()

	patterns, err := c.parser.ParseRoot(c.cfg.Root)
	if err != nil {
		return fmt.Errorf("parsing ignore files: %w", err)
	}
	matcher := ignore.NewMatcher(patterns)

	var present []string
	var skipped int

	err = filepath.WalkDir(c.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && !d.IsDir() {
				c.logger.Warn("skipping unreadable file",
					zap.String("path", path), zap.Error(err))
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(c.cfg.Root, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == c.cfg.Root {
				return nil
			}
			if skipDirs[d.Name()] || matcher.Match(rel) {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !c.registry.Supported(path) {
			return nil
		}
		if matcher.Match(rel) {
			skipped++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			c.logger.Warn("skipping file, stat failed",
				zap.String("path", path), zap.Error(err))
			return nil
		}

		if err := c.queue.Enqueue(NewFileEvent(path, info.ModTime().Unix(), c.cfg.TenantID)); err != nil {
			return err
		}
		present = append(present, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("crawling %s: %w", c.cfg.Root, err)
	}

	if err := c.queue.Enqueue(NewPurgeEvent(present, c.cfg.TenantID)); err != nil {
		return err
	}

	crawlDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("crawl pass complete",
		zap.Int("files", len(present)),
		zap.Int("ignored", skipped),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
