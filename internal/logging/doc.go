// Package logging provides structured logging for corpusd.
//
// # Overview
//
// Logging wraps Zap with:
//   - Automatic context field injection (trace_id, tenant, request)
//   - A runtime-adjustable level, driven by config reloads
//   - Test observation helpers
//
// # Usage
//
// Create logger from config:
//
//	logger, err := logging.New(cfg.Logging)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Log with context:
//
//	ctx := logging.WithRequestID(ctx, "req_123")
//	logger.Info(ctx, "file indexed", zap.String("path", path))
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2025-11-24T10:15:30Z",
//	  "level": "info",
//	  "msg": "file indexed",
//	  "trace_id": "abc123",
//	  "request.id": "req_123",
//	  "path": "notes/todo.md"
//	}
package logging
