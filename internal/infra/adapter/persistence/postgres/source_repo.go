// Package postgres implements the storage adapter over
// database/sql with the pgx stdlib driver: sources, jobs (upsert by
// canonical hash, soft/hard delete), crawl logs, per-source locks, taxonomy
// tables, enrichment history, and the extraction_logs failed-insert table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/repository"
)

type SourceRepo struct{ db *sql.DB }

func NewSourceRepo(db *sql.DB) repository.SourceRepository {
	return &SourceRepo{db: db}
}

const sourceColumns = `
id, org_name, base_url, kind, parser_hint, api_config, org_type, status,
cadence_days, cron_expr, etag, last_modified, last_crawled_at,
last_crawl_status, last_crawl_message, consecutive_failures,
consecutive_no_change, next_run_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*entity.Source, error) {
	var source entity.Source
	var apiConfigJSON []byte
	var cadenceDays sql.NullFloat64
	var parserHint, cronExpr, lastStatus, lastMessage sql.NullString
	var lastCrawledAt, nextRunAt sql.NullTime

	if err := row.Scan(
		&source.ID, &source.OrgName, &source.BaseURL, &source.Kind,
		&parserHint, &apiConfigJSON, &source.OrgType, &source.Status,
		&cadenceDays, &cronExpr, &source.ETag, &source.LastModified,
		&lastCrawledAt, &lastStatus, &lastMessage,
		&source.ConsecutiveFailures, &source.ConsecutiveNoChange,
		&nextRunAt, &source.CreatedAt, &source.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if parserHint.Valid {
		source.ParserHint = &parserHint.String
	}
	if cronExpr.Valid {
		source.CronExpr = &cronExpr.String
	}
	if cadenceDays.Valid {
		source.CadenceDays = &cadenceDays.Float64
	}
	if lastCrawledAt.Valid {
		source.LastCrawledAt = &lastCrawledAt.Time
	}
	if nextRunAt.Valid {
		source.NextRunAt = &nextRunAt.Time
	}
	if lastStatus.Valid {
		source.LastCrawlStatus = entity.CrawlStatus(lastStatus.String)
	}
	if lastMessage.Valid {
		source.LastCrawlMessage = lastMessage.String
	}
	if len(apiConfigJSON) > 0 {
		var cfg entity.APIConfig
		if err := json.Unmarshal(apiConfigJSON, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal api_config: %w", err)
		}
		source.APIConfig = &cfg
	}
	return &source, nil
}

func (repo *SourceRepo) Get(ctx context.Context, id int64) (*entity.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1 LIMIT 1`
	source, err := scanSource(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return source, nil
}

func (repo *SourceRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Source, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var sources []*entity.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sources, nil
}

func (repo *SourceRepo) List(ctx context.Context) ([]*entity.Source, error) {
	return repo.list(ctx, "List", `SELECT `+sourceColumns+` FROM sources ORDER BY id ASC`)
}

func (repo *SourceRepo) ListActive(ctx context.Context) ([]*entity.Source, error) {
	return repo.list(ctx, "ListActive",
		`SELECT `+sourceColumns+` FROM sources WHERE status = 'active' ORDER BY id ASC`)
}

// ListDue selects schedulable sources: active, next_run_at elapsed or never
// set, nulls first so brand-new sources crawl before everything else.
func (repo *SourceRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.Source, error) {
	return repo.list(ctx, "ListDue",
		`SELECT `+sourceColumns+` FROM sources
WHERE status = 'active' AND (next_run_at IS NULL OR next_run_at <= $1)
ORDER BY next_run_at NULLS FIRST
LIMIT $2`, now, limit)
}

func (repo *SourceRepo) Search(ctx context.Context, keyword string) ([]*entity.Source, error) {
	return repo.list(ctx, "Search",
		`SELECT `+sourceColumns+` FROM sources
WHERE org_name ILIKE '%' || $1 || '%' OR base_url ILIKE '%' || $1 || '%'
ORDER BY id ASC`, keyword)
}

func (repo *SourceRepo) Create(ctx context.Context, source *entity.Source) error {
	if err := source.Validate(); err != nil {
		return err
	}
	apiConfigJSON, err := marshalAPIConfig(source.APIConfig)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	const query = `
INSERT INTO sources (org_name, base_url, kind, parser_hint, api_config, org_type, status, cadence_days, cron_expr)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at, updated_at`
	err = repo.db.QueryRowContext(ctx, query,
		source.OrgName, source.BaseURL, source.Kind, source.ParserHint,
		apiConfigJSON, source.OrgType, source.Status,
		source.CadenceDays, source.CronExpr,
	).Scan(&source.ID, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *SourceRepo) Update(ctx context.Context, source *entity.Source) error {
	if err := source.Validate(); err != nil {
		return err
	}
	apiConfigJSON, err := marshalAPIConfig(source.APIConfig)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	const query = `
UPDATE sources SET
    org_name = $1, base_url = $2, kind = $3, parser_hint = $4, api_config = $5,
    org_type = $6, status = $7, cadence_days = $8, cron_expr = $9, updated_at = now()
WHERE id = $10`
	result, err := repo.db.ExecContext(ctx, query,
		source.OrgName, source.BaseURL, source.Kind, source.ParserHint,
		apiConfigJSON, source.OrgType, source.Status,
		source.CadenceDays, source.CronExpr, source.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return requireOneRow(result, "Update")
}

func (repo *SourceRepo) Delete(ctx context.Context, id int64) error {
	result, err := repo.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return requireOneRow(result, "Delete")
}

func (repo *SourceRepo) TouchCrawledAt(ctx context.Context, id int64, t time.Time) error {
	result, err := repo.db.ExecContext(ctx,
		`UPDATE sources SET last_crawled_at = $1, updated_at = now() WHERE id = $2`, t, id)
	if err != nil {
		return fmt.Errorf("TouchCrawledAt: %w", err)
	}
	return requireOneRow(result, "TouchCrawledAt")
}

// UpdateAfterCrawl persists the orchestrator's post-crawl bookkeeping in one
// statement.
func (repo *SourceRepo) UpdateAfterCrawl(ctx context.Context, source *entity.Source) error {
	const query = `
UPDATE sources SET
    status = $1,
    etag = $2,
    last_modified = $3,
    last_crawled_at = $4,
    last_crawl_status = $5,
    last_crawl_message = $6,
    consecutive_failures = $7,
    consecutive_no_change = $8,
    next_run_at = $9,
    updated_at = now()
WHERE id = $10`
	result, err := repo.db.ExecContext(ctx, query,
		source.Status, source.ETag, source.LastModified, source.LastCrawledAt,
		source.LastCrawlStatus, source.LastCrawlMessage,
		source.ConsecutiveFailures, source.ConsecutiveNoChange,
		source.NextRunAt, source.ID)
	if err != nil {
		return fmt.Errorf("UpdateAfterCrawl: %w", err)
	}
	return requireOneRow(result, "UpdateAfterCrawl")
}

func marshalAPIConfig(cfg *entity.APIConfig) (any, error) {
	if cfg == nil {
		return nil, nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal api_config: %w", err)
	}
	return b, nil
}

func requireOneRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, entity.ErrNotFound)
	}
	return nil
}
