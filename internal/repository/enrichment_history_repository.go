package repository

import (
	"context"
	"time"

	"aidjobs-crawler/internal/domain/entity"
)

// EnrichmentHistoryRecord snapshots a Job's enrichment block immediately
// before it is overwritten, so a reviewer can audit why a classification
// changed.
type EnrichmentHistoryRecord struct {
	JobID        int64
	Enrichment   entity.Enrichment
	ChangeReason string
	ChangedBy    string
	ChangedAt    time.Time
}

// EnrichmentHistoryRepository persists enrichment_history rows.
type EnrichmentHistoryRepository interface {
	Record(ctx context.Context, rec EnrichmentHistoryRecord) error
}
