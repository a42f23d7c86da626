package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/corpusd/internal/mcp"
)

// mcpCmd bridges stdio MCP clients to a running daemon.
//
// The bridge delegates every tool call to the HTTP daemon, so the daemon
// keeps owning the index, the embeddings, and the vector store, and any
// number of concurrent stdio sessions can share them.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP over stdio, delegating to a running daemon",
	Long: `Serve the Model Context Protocol over stdin/stdout.

Tool calls are forwarded to a running corpusd daemon, so the daemon must
be up before clients connect. Point MCP clients at this command:

  {
    "mcpServers": {
      "corpusd": {
        "command": "corpusd",
        "args": ["mcp"]
      }
    }
  }

Use --server or CORPUSD_SERVER when the daemon is not on the default port.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries the MCP protocol, so logs must go to stderr.
	logger := newStderrLogger()
	defer func() {
		_ = logger.Sync()
	}()

	server, err := mcp.NewServer(&mcp.Config{
		Name:      "corpusd",
		Version:   version,
		DaemonURL: serverURL,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create mcp server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "corpusd mcp bridge started (delegating to daemon at %s)\n", serverURL)

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

// newStderrLogger builds a JSON zap logger writing to stderr. The daemon's
// logging package targets stdout, which the MCP transport owns here.
func newStderrLogger() *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		zap.InfoLevel,
	)
	return zap.New(core)
}
