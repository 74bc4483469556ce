package metrics

import (
	"fmt"
	"time"
)

// RecordJobsExtracted records the number of jobs extracted from a source.
// This metric helps track crawl productivity and source activity.
func RecordJobsExtracted(sourceName string, sourceID int64, count int) {
	JobsExtractedTotal.WithLabelValues(
		sourceName,
		fmt.Sprintf("%d", sourceID),
	).Add(float64(count))
}

// RecordJobEnriched records the result of a job enrichment operation.
// Status should be either "success" or "failure".
func RecordJobEnriched(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	JobsEnrichedTotal.WithLabelValues(status).Inc()
}

// RecordEnrichmentDuration records the time taken to enrich a job.
// This helps identify performance issues with the AI classification service.
func RecordEnrichmentDuration(duration time.Duration) {
	EnrichmentDuration.Observe(duration.Seconds())
}

// RecordSourceCrawl records metrics for one source crawl.
func RecordSourceCrawl(sourceID int64, duration time.Duration, itemsFound, itemsInserted, itemsDuplicated int64) {
	SourceCrawlDuration.WithLabelValues(
		fmt.Sprintf("%d", sourceID),
	).Observe(duration.Seconds())

	// Only itemsFound is recorded (as jobs extracted, with an empty source
	// name); the inserted and duplicated counts are not recorded.
	if itemsFound > 0 {
		RecordJobsExtracted("", sourceID, int(itemsFound))
	}
}

// RecordSourceCrawlError records an error during a source crawl.
func RecordSourceCrawlError(sourceID int64, errorType string) {
	SourceCrawlErrors.WithLabelValues(
		fmt.Sprintf("%d", sourceID),
		errorType,
	).Inc()
}

// UpdateJobsTotal updates the total count of jobs in the database.
// This gauge should be updated periodically to reflect the current state.
func UpdateJobsTotal(count int) {
	JobsTotal.Set(float64(count))
}

// UpdateSourcesTotal updates the total count of sources in the database.
// This gauge should be updated periodically to reflect the current state.
func UpdateSourcesTotal(count int) {
	SourcesTotal.Set(float64(count))
}

// RecordContentFetchSuccess records a successful content fetch operation.
// This tracks both the duration and size of fetched content.
//
// Parameters:
//   - duration: Time taken to fetch the content
//   - size: Size of fetched content in bytes
//
// Example:
//
//	start := time.Now()
//	content, err := fetcher.FetchContent(ctx, url)
//	if err == nil {
//	    RecordContentFetchSuccess(time.Since(start), len(content))
//	}
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content fetch operation.
//
// Parameters:
//   - duration: Time taken before the fetch failed
//
// Example:
//
//	start := time.Now()
//	_, err := fetcher.FetchContent(ctx, url)
//	if err != nil {
//	    RecordContentFetchFailed(time.Since(start))
//	}
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a skipped content fetch operation.
// This occurs when RSS content is sufficient (>= threshold) and fetching is unnecessary.
//
// Example:
//
//	if len(rssContent) >= threshold {
//	    RecordContentFetchSkipped()
//	    return rssContent
//	}
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_jobs", "upsert_job").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
