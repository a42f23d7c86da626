package config

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

// TestWatcher_ReloadOnChange tests that rewriting the config file triggers
// the callback with the new values.
func TestWatcher_ReloadOnChange(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeTestConfig(t, home, "watch:\n  root: /srv/corpus\nlogging:\n  level: info\n")

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(configPath, zap.NewNop(), func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(configPath, []byte("watch:\n  root: /srv/corpus\nlogging:\n  level: debug\n"), 0600); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Logging.Level != "debug" {
			t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

// TestWatcher_InvalidReloadKeepsRunning tests that a broken rewrite does not
// invoke the callback or kill the watcher.
func TestWatcher_InvalidReloadKeepsRunning(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeTestConfig(t, home, "watch:\n  root: /srv/corpus\n")

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(configPath, zap.NewNop(), func(cfg *Config) {
		reloaded <- cfg
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Invalid YAML: callback must not fire.
	if err := os.WriteFile(configPath, []byte("watch: [broken\n"), 0600); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}

	select {
	case <-reloaded:
		t.Fatal("callback fired for invalid config")
	case <-time.After(500 * time.Millisecond):
	}

	// A valid rewrite afterwards still reloads.
	if err := os.WriteFile(configPath, []byte("watch:\n  root: /srv/other\n"), 0600); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Watch.Root != "/srv/other" {
			t.Errorf("Watch.Root = %q, want /srv/other", cfg.Watch.Root)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload after recovery")
	}
}

// TestWatcher_StopIdempotent tests that Stop can be called twice.
func TestWatcher_StopIdempotent(t *testing.T) {
	home, cleanup := setupTestHome(t)
	defer cleanup()

	configPath := writeTestConfig(t, home, "watch:\n  root: /srv/corpus\n")

	w, err := NewWatcher(configPath, zap.NewNop(), func(*Config) {})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	w.Stop()
	w.Stop()
}
