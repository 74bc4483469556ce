package repository

import (
	"context"
	"time"

	"aidjobs-crawler/internal/domain/entity"
)

// JobWithSource pairs a Job with its owning source's display name.
type JobWithSource struct {
	Job        *entity.Job
	SourceName string
}

// JobSearchFilters are optional filters for job search/listing.
type JobSearchFilters struct {
	SourceID    *int64
	CountryISO2 *string
	Remote      *bool
	Level       *string
	From        *time.Time // deadline >= this date
	To          *time.Time // deadline <= this date
	IncludeDeleted bool
}

// UpsertResult reports the outcome of UpsertByCanonicalHash, feeding the
// CrawlLog's found/inserted/updated/skipped counters.
type UpsertResult struct {
	Job       *entity.Job
	Inserted  bool
	Updated   bool
	Restored  bool
	Unchanged bool
}

// ImpactAnalysis counts what a destructive operation would touch, so
// callers can gate bulk deletes behind a dry-run.
type ImpactAnalysis struct {
	TotalJobs         int64
	ActiveJobs        int64
	Shortlists        int64
	EnrichmentReviews int64
	EnrichmentHistory int64
	GroundTruth       int64
}

// JobRepository persists and queries Job rows.
type JobRepository interface {
	Get(ctx context.Context, id int64) (*entity.Job, error)
	GetWithSource(ctx context.Context, id int64) (*entity.Job, string, error)
	List(ctx context.Context) ([]*entity.Job, error)
	ListWithSource(ctx context.Context) ([]JobWithSource, error)
	ListWithSourcePaginated(ctx context.Context, offset, limit int) ([]JobWithSource, error)
	CountJobs(ctx context.Context) (int64, error)
	Search(ctx context.Context, keyword string) ([]*entity.Job, error)
	SearchWithFilters(ctx context.Context, keywords []string, filters JobSearchFilters) ([]*entity.Job, error)

	// UpsertByCanonicalHash inserts a new Job, restores a previously
	// soft-deleted one (status becomes active, counted as inserted, not
	// updated), or updates an existing
	// one's mutable fields when the canonical hash already exists.
	UpsertByCanonicalHash(ctx context.Context, job *entity.Job) (UpsertResult, error)

	// ExistsByCanonicalHashBatch resolves which of the given canonical
	// hashes already exist, in a single round trip (pq.Array-backed), to
	// avoid an N+1 query per candidate job during a crawl.
	ExistsByCanonicalHashBatch(ctx context.Context, hashes []string) (map[string]bool, error)

	Update(ctx context.Context, job *entity.Job) error

	// SoftDelete marks a job deleted without removing the row, recording
	// who/why, and queues it for batched search-index removal.
	SoftDelete(ctx context.Context, id int64, deletedBy, reason string) error
	// Restore clears a job's soft-delete state.
	Restore(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error

	// MarkStaleNotSeenSince soft-deletes every active job of a source whose
	// last_seen_at is older than cutoff (the job no longer appears on a
	// re-crawl), returning the number of rows affected for CrawlLog.Skipped
	// / impact-analysis reporting.
	MarkStaleNotSeenSince(ctx context.Context, sourceID int64, cutoff time.Time) (int, error)

	// LogFailedInsert records an upsert that could not be completed (e.g. a
	// validation failure surfaced mid-batch) without aborting the crawl.
	LogFailedInsert(ctx context.Context, sourceID int64, rawURL string, cause error) error

	// AnalyzeImpact reports what the given filter would touch, for gating
	// destructive bulk operations.
	AnalyzeImpact(ctx context.Context, filters JobSearchFilters) (ImpactAnalysis, error)
}
