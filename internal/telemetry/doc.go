// Package telemetry provides OpenTelemetry instrumentation for corpusd.
//
// # Overview
//
// This package implements distributed tracing and metrics collection using
// the OpenTelemetry Go SDK. It exports telemetry data to an OTLP endpoint
// over gRPC or HTTP/protobuf.
//
// # Usage
//
// Create telemetry instance:
//
//	tel, err := telemetry.New(ctx, cfg.Telemetry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(ctx)
//
// Use tracer and meter:
//
//	tracer := tel.Tracer("corpusd.indexer")
//	ctx, span := tracer.Start(ctx, "IndexFile")
//	defer span.End()
//
//	meter := tel.Meter("corpusd.indexer")
//	counter, _ := meter.Int64Counter("files.indexed")
//	counter.Add(ctx, 1)
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  service_name: "corpusd"
//	  sample_rate: 1.0
//	  metrics_enabled: true
//	  metrics_interval: "15s"
//
// # Error Handling
//
// Telemetry failures do not crash the daemon. If telemetry cannot be
// initialized, the instance degrades gracefully and returns no-op providers.
package telemetry
