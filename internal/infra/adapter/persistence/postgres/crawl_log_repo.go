package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/repository"
)

// CrawlLogRepo appends to the immutable crawl_logs table.
type CrawlLogRepo struct{ db *sql.DB }

func NewCrawlLogRepo(db *sql.DB) repository.CrawlLogRepository {
	return &CrawlLogRepo{db: db}
}

func (repo *CrawlLogRepo) Create(ctx context.Context, log *entity.CrawlLog) error {
	const query = `
INSERT INTO crawl_logs (source_id, started_at, duration_ms, found, inserted, updated, skipped, failed, status, message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`
	err := repo.db.QueryRowContext(ctx, query,
		log.SourceID, log.StartedAt, log.DurationMS,
		log.Found, log.Inserted, log.Updated, log.Skipped, log.Failed,
		log.Status, log.Message,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *CrawlLogRepo) ListBySource(ctx context.Context, sourceID int64, limit int) ([]*entity.CrawlLog, error) {
	const query = `
SELECT id, source_id, started_at, duration_ms, found, inserted, updated, skipped, failed, status, message
FROM crawl_logs
WHERE source_id = $1
ORDER BY started_at DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListBySource: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*entity.CrawlLog
	for rows.Next() {
		var log entity.CrawlLog
		var message sql.NullString
		if err := rows.Scan(
			&log.ID, &log.SourceID, &log.StartedAt, &log.DurationMS,
			&log.Found, &log.Inserted, &log.Updated, &log.Skipped, &log.Failed,
			&log.Status, &message,
		); err != nil {
			return nil, fmt.Errorf("ListBySource: %w", err)
		}
		log.Message = message.String
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListBySource: %w", err)
	}
	return logs, nil
}

// ConsecutiveFailures counts the trailing run of fail-status logs, stopping
// at the first non-fail entry.
func (repo *CrawlLogRepo) ConsecutiveFailures(ctx context.Context, sourceID int64) (int, error) {
	logs, err := repo.ListBySource(ctx, sourceID, 50)
	if err != nil {
		return 0, fmt.Errorf("ConsecutiveFailures: %w", err)
	}
	count := 0
	for _, log := range logs {
		if log.Status != entity.CrawlStatusFail {
			break
		}
		count++
	}
	return count, nil
}
