// internal/config/watcher.go
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize config watcher")

// Watcher reloads the configuration file when it changes on disk and hands
// the new Config to a callback. corpusd uses it to adjust the log level
// without a restart; settings that require re-wiring (ports, providers)
// still need one.
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	onChange   func(*Config)
	stop       chan struct{}
	logger     *zap.Logger
}

// NewWatcher creates a watcher for configPath. An empty path selects the
// default config location. onChange receives every successfully reloaded
// Config; reload failures keep the previous configuration.
func NewWatcher(configPath string, logger *zap.Logger, onChange func(*Config)) (*Watcher, error) {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "corpusd", "config.yaml")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		configPath: configPath,
		watcher:    fsw,
		onChange:   onChange,
		stop:       make(chan struct{}),
		logger:     logger,
	}, nil
}

// Start begins watching for config changes.
//
// Runs a background goroutine until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	// Editors replace the file on save, so the original inode disappears.
	// Watching the parent directory and filtering by name survives that.
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching config directory %s: %w", dir, err)
	}

	go w.processEvents(ctx)

	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

// processEvents processes filesystem events and triggers reloads.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.handleChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// handleChange reloads the config file and notifies the callback.
func (w *Watcher) handleChange() {
	cfg, err := LoadWithFile(w.configPath)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous configuration",
			zap.String("path", w.configPath),
			zap.Error(err))
		return
	}

	w.logger.Info("configuration reloaded", zap.String("path", w.configPath))
	w.onChange(cfg)
}
