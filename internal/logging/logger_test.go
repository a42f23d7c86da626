package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/corpusd/internal/config"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "verbose", Format: "json"})
	if err == nil {
		t.Fatal("New() error = nil, want invalid level error")
	}
}

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := New(config.LoggingConfig{Level: "info", Format: format})
		if err != nil {
			t.Fatalf("New(%s) error = %v", format, err)
		}
		if logger.Level() != zapcore.InfoLevel {
			t.Errorf("Level() = %v, want info", logger.Level())
		}
	}
}

func TestSetLevel(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if logger.Enabled(zapcore.DebugLevel) {
		t.Error("debug enabled at info level")
	}

	if err := logger.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if !logger.Enabled(zapcore.DebugLevel) {
		t.Error("debug not enabled after SetLevel")
	}

	if err := logger.SetLevel("nonsense"); err == nil {
		t.Error("SetLevel() accepted invalid level")
	}
}

func TestSetLevel_SharedWithChildren(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	child := logger.Named("indexer").With(zap.String("component", "crawler"))
	if err := logger.SetLevel("error"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}

	if child.Enabled(zapcore.InfoLevel) {
		t.Error("child still logs info after parent level change")
	}
}

func TestContextFields_TenantAndRequest(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithTenantID(context.Background(), "acme")
	ctx = WithRequestID(ctx, "req_123")
	tl.Info(ctx, "file indexed")

	tl.AssertLogged(t, zapcore.InfoLevel, "file indexed")
	tl.AssertField(t, "file indexed", "tenant.id", "acme")
	tl.AssertField(t, "file indexed", "request.id", "req_123")
}

func TestContextFields_Empty(t *testing.T) {
	fields := ContextFields(context.Background())
	if len(fields) != 0 {
		t.Errorf("ContextFields() = %d fields, want 0", len(fields))
	}
}

func TestWithTenantID_PanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("WithTenantID did not panic for invalid ID")
		}
	}()
	WithTenantID(context.Background(), "not/valid")
}

func TestFromContext_Default(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("FromContext() returned nil")
	}
	// Nop logger must be safe to use.
	logger.Info(context.Background(), "ignored")
}

func TestFromContext_RoundTrip(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)

	got := FromContext(ctx)
	got.Warn(ctx, "queue backlog growing")

	tl.AssertLogged(t, zapcore.WarnLevel, "queue backlog growing")
}
