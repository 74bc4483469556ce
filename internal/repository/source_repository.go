package repository

import (
	"context"
	"time"

	"aidjobs-crawler/internal/domain/entity"
)

// SourceRepository persists and queries Source rows.
type SourceRepository interface {
	Get(ctx context.Context, id int64) (*entity.Source, error)
	List(ctx context.Context) ([]*entity.Source, error)
	ListActive(ctx context.Context) ([]*entity.Source, error)
	// ListDue returns active sources whose next_run_at is null or has
	// elapsed, ordered by next_run_at with nulls first, limited to limit
	// rows (orchestrator.py's get_due_sources).
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.Source, error)
	Search(ctx context.Context, keyword string) ([]*entity.Source, error)
	Create(ctx context.Context, source *entity.Source) error
	Update(ctx context.Context, source *entity.Source) error
	Delete(ctx context.Context, id int64) error
	TouchCrawledAt(ctx context.Context, id int64, t time.Time) error

	// UpdateAfterCrawl persists the post-crawl bookkeeping computed by the
	// orchestrator: last crawl status/message, failure/no-change counters,
	// and the freshly-computed next_run_at (orchestrator.py's
	// update_source_after_crawl).
	UpdateAfterCrawl(ctx context.Context, source *entity.Source) error
}
