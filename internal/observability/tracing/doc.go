// Package tracing provides OpenTelemetry tracing integration.
//
// Features:
//   - HTTP middleware that extracts W3C trace context, opens a server span,
//     and echoes the trace ID in an X-Trace-Id response header
//   - A shared tracer for application spans (one span per source crawl)
//
// Example usage:
//
//	import "aidjobs-crawler/internal/observability/tracing"
//
//	func crawl(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "crawl.source")
//	    defer span.End()
//	    // ... fetch, extract, upsert ...
//	}
//
//	mux := http.NewServeMux()
//	server := &http.Server{Handler: tracing.Middleware(mux)}
//
// Exporter configuration is the operator's concern: without a registered
// trace provider the global tracer is a no-op, so instrumented code costs
// nothing in deployments that don't collect traces.
package tracing
