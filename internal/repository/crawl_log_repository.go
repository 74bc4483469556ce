package repository

import (
	"context"

	"aidjobs-crawler/internal/domain/entity"
)

// CrawlLogRepository persists one CrawlLog row per orchestrator pass over a
// source.
type CrawlLogRepository interface {
	Create(ctx context.Context, log *entity.CrawlLog) error
	ListBySource(ctx context.Context, sourceID int64, limit int) ([]*entity.CrawlLog, error)
	// ConsecutiveFailures counts trailing fail-status logs for sourceID,
	// most recent first, stopping at the first non-fail entry. The
	// orchestrator does not call it; it keeps Source.ConsecutiveFailures itself.
	ConsecutiveFailures(ctx context.Context, sourceID int64) (int, error)
}
