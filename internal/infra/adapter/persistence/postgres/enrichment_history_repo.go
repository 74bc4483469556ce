package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"aidjobs-crawler/internal/repository"
)

// EnrichmentHistoryRepo appends prior enrichment blocks before every
// overwrite.
type EnrichmentHistoryRepo struct{ db *sql.DB }

func NewEnrichmentHistoryRepo(db *sql.DB) repository.EnrichmentHistoryRepository {
	return &EnrichmentHistoryRepo{db: db}
}

func (repo *EnrichmentHistoryRepo) Record(ctx context.Context, rec repository.EnrichmentHistoryRecord) error {
	enrichmentJSON, err := json.Marshal(rec.Enrichment)
	if err != nil {
		return fmt.Errorf("Record: marshal enrichment: %w", err)
	}
	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO enrichment_history (job_id, enrichment, change_reason, changed_by) VALUES ($1, $2, $3, $4)`,
		rec.JobID, enrichmentJSON, rec.ChangeReason, rec.ChangedBy)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}
