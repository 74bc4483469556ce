// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Business metrics (jobs, sources, enrichment)
//   - Database query metrics
//   - Application performance metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "aidjobs-crawler/internal/observability/metrics"
//
//	func processSource(source string) {
//	    start := time.Now()
//	    // ... crawl and extract jobs ...
//	    count := 10
//
//	    metrics.RecordJobsExtracted(source, id, count)
//	    metrics.RecordOperationDuration("crawl_source", time.Since(start))
//	}
package metrics
