package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/search"
	"aidjobs-crawler/internal/repository"
)

// JobRepo persists Job rows and keeps the external search index in sync on
// both delete paths.
type JobRepo struct {
	db    *sql.DB
	index search.Index

	// writeTable receives upserts; "jobs" normally, "jobs_shadow" in
	// shadow mode.
	// Reads and deletes always serve the production table.
	writeTable string
}

func NewJobRepo(db *sql.DB, index search.Index) repository.JobRepository {
	return newJobRepo(db, index, "jobs")
}

// NewShadowJobRepo diverts upserts to the jobs_shadow sibling table.
func NewShadowJobRepo(db *sql.DB, index search.Index) repository.JobRepository {
	return newJobRepo(db, index, "jobs_shadow")
}

func newJobRepo(db *sql.DB, index search.Index, writeTable string) *JobRepo {
	if index == nil {
		index = search.NoopIndex{}
	}
	return &JobRepo{db: db, index: index, writeTable: writeTable}
}

const jobColumns = `
id, source_id, org_name, title, apply_url, raw_location, country,
country_iso2, city, lat, lon, remote, deadline, description, level,
modality, contract_months, compensation, tags, benefits, policies, donors,
canonical_hash, dedupe_hash, first_seen_at, last_seen_at, status,
deleted_at, deleted_by, deletion_reason, enrichment, quality, raw_metadata,
created_at, updated_at`

func scanJob(row rowScanner) (*entity.Job, error) {
	var job entity.Job
	var sourceID sql.NullInt64
	var rawLocation, country, iso2, city, level, modality sql.NullString
	var dedupeHash, deletedBy, deletionReason sql.NullString
	var description sql.NullString
	var lat, lon sql.NullFloat64
	var contractMonths sql.NullInt64
	var deadline, deletedAt sql.NullTime
	var compensationJSON, enrichmentJSON, qualityJSON, rawMetadataJSON []byte

	if err := row.Scan(
		&job.ID, &sourceID, &job.OrgName, &job.Title, &job.ApplyURL,
		&rawLocation, &country, &iso2, &city, &lat, &lon, &job.Remote,
		&deadline, &description, &level, &modality, &contractMonths,
		&compensationJSON, pq.Array(&job.Tags), pq.Array(&job.Benefits),
		pq.Array(&job.Policies), pq.Array(&job.Donors),
		&job.CanonicalHash, &dedupeHash, &job.FirstSeenAt, &job.LastSeenAt,
		&job.Status, &deletedAt, &deletedBy, &deletionReason,
		&enrichmentJSON, &qualityJSON, &rawMetadataJSON,
		&job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if sourceID.Valid {
		job.SourceID = sourceID.Int64
	}
	job.RawLocation = rawLocation.String
	job.Country = country.String
	job.CountryISO2 = iso2.String
	job.City = city.String
	job.Level = level.String
	job.Modality = modality.String
	job.Description = description.String
	job.DedupeHash = dedupeHash.String
	if lat.Valid {
		job.Lat = &lat.Float64
	}
	if lon.Valid {
		job.Lon = &lon.Float64
	}
	if contractMonths.Valid {
		m := int(contractMonths.Int64)
		job.ContractMonths = &m
	}
	if deadline.Valid {
		job.Deadline = &deadline.Time
	}
	if deletedAt.Valid {
		job.SoftDelete = entity.SoftDelete{
			DeletedAt: &deletedAt.Time,
			DeletedBy: deletedBy.String,
			Reason:    deletionReason.String,
		}
	}
	if len(compensationJSON) > 0 {
		if err := json.Unmarshal(compensationJSON, &job.Compensation); err != nil {
			return nil, fmt.Errorf("unmarshal compensation: %w", err)
		}
	}
	if len(enrichmentJSON) > 0 {
		if err := json.Unmarshal(enrichmentJSON, &job.Enrichment); err != nil {
			return nil, fmt.Errorf("unmarshal enrichment: %w", err)
		}
	}
	if len(qualityJSON) > 0 {
		if err := json.Unmarshal(qualityJSON, &job.Quality); err != nil {
			return nil, fmt.Errorf("unmarshal quality: %w", err)
		}
	}
	if len(rawMetadataJSON) > 0 {
		if err := json.Unmarshal(rawMetadataJSON, &job.RawMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal raw_metadata: %w", err)
		}
	}
	return &job, nil
}

func (repo *JobRepo) Get(ctx context.Context, id int64) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 LIMIT 1`
	job, err := scanJob(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return job, nil
}

func (repo *JobRepo) GetWithSource(ctx context.Context, id int64) (*entity.Job, string, error) {
	job, err := repo.Get(ctx, id)
	if err != nil || job == nil {
		return job, "", err
	}
	var name sql.NullString
	err = repo.db.QueryRowContext(ctx,
		`SELECT org_name FROM sources WHERE id = $1`, job.SourceID).Scan(&name)
	if err != nil && err != sql.ErrNoRows {
		return job, "", fmt.Errorf("GetWithSource: %w", err)
	}
	return job, name.String, nil
}

func (repo *JobRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Job, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return jobs, nil
}

func (repo *JobRepo) List(ctx context.Context) ([]*entity.Job, error) {
	return repo.list(ctx, "List",
		`SELECT `+jobColumns+` FROM jobs WHERE deleted_at IS NULL ORDER BY last_seen_at DESC`)
}

func (repo *JobRepo) ListWithSource(ctx context.Context) ([]repository.JobWithSource, error) {
	return repo.listWithSource(ctx, "ListWithSource", -1, -1)
}

func (repo *JobRepo) ListWithSourcePaginated(ctx context.Context, offset, limit int) ([]repository.JobWithSource, error) {
	return repo.listWithSource(ctx, "ListWithSourcePaginated", offset, limit)
}

func (repo *JobRepo) listWithSource(ctx context.Context, op string, offset, limit int) ([]repository.JobWithSource, error) {
	query := `SELECT ` + prefixColumns(jobColumns, "j") + `, COALESCE(s.org_name, j.org_name)
FROM jobs j LEFT JOIN sources s ON s.id = j.source_id
WHERE j.deleted_at IS NULL
ORDER BY j.last_seen_at DESC`
	var args []any
	if limit >= 0 {
		query += ` OFFSET $1 LIMIT $2`
		args = append(args, offset, limit)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var out []repository.JobWithSource
	for rows.Next() {
		pair, err := scanJobWithSource(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanJobWithSource(rows *sql.Rows) (repository.JobWithSource, error) {
	var job entity.Job
	var sourceName string
	var sourceID sql.NullInt64
	var rawLocation, country, iso2, city, level, modality sql.NullString
	var dedupeHash, deletedBy, deletionReason, description sql.NullString
	var lat, lon sql.NullFloat64
	var contractMonths sql.NullInt64
	var deadline, deletedAt sql.NullTime
	var compensationJSON, enrichmentJSON, qualityJSON, rawMetadataJSON []byte

	if err := rows.Scan(
		&job.ID, &sourceID, &job.OrgName, &job.Title, &job.ApplyURL,
		&rawLocation, &country, &iso2, &city, &lat, &lon, &job.Remote,
		&deadline, &description, &level, &modality, &contractMonths,
		&compensationJSON, pq.Array(&job.Tags), pq.Array(&job.Benefits),
		pq.Array(&job.Policies), pq.Array(&job.Donors),
		&job.CanonicalHash, &dedupeHash, &job.FirstSeenAt, &job.LastSeenAt,
		&job.Status, &deletedAt, &deletedBy, &deletionReason,
		&enrichmentJSON, &qualityJSON, &rawMetadataJSON,
		&job.CreatedAt, &job.UpdatedAt,
		&sourceName,
	); err != nil {
		return repository.JobWithSource{}, err
	}
	if sourceID.Valid {
		job.SourceID = sourceID.Int64
	}
	job.RawLocation = rawLocation.String
	job.Country = country.String
	job.CountryISO2 = iso2.String
	job.City = city.String
	job.Description = description.String
	if deadline.Valid {
		job.Deadline = &deadline.Time
	}
	return repository.JobWithSource{Job: &job, SourceName: sourceName}, nil
}

func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (repo *JobRepo) CountJobs(ctx context.Context) (int64, error) {
	var count int64
	err := repo.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE deleted_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountJobs: %w", err)
	}
	return count, nil
}

func (repo *JobRepo) Search(ctx context.Context, keyword string) ([]*entity.Job, error) {
	return repo.list(ctx, "Search",
		`SELECT `+jobColumns+` FROM jobs
WHERE deleted_at IS NULL AND (title ILIKE '%' || $1 || '%' OR org_name ILIKE '%' || $1 || '%')
ORDER BY last_seen_at DESC`, keyword)
}

func (repo *JobRepo) SearchWithFilters(ctx context.Context, keywords []string, filters repository.JobSearchFilters) ([]*entity.Job, error) {
	query, args := buildJobFilterQuery(keywords, filters)
	return repo.list(ctx, "SearchWithFilters", query, args...)
}

func buildJobFilterQuery(keywords []string, filters repository.JobSearchFilters) (string, []any) {
	var conditions []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filters.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	for _, kw := range keywords {
		p := arg(kw)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
	}
	if filters.SourceID != nil {
		conditions = append(conditions, "source_id = "+arg(*filters.SourceID))
	}
	if filters.CountryISO2 != nil {
		conditions = append(conditions, "country_iso2 = "+arg(*filters.CountryISO2))
	}
	if filters.Remote != nil {
		conditions = append(conditions, "remote = "+arg(*filters.Remote))
	}
	if filters.Level != nil {
		conditions = append(conditions, "level = "+arg(*filters.Level))
	}
	if filters.From != nil {
		conditions = append(conditions, "deadline >= "+arg(*filters.From))
	}
	if filters.To != nil {
		conditions = append(conditions, "deadline <= "+arg(*filters.To))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY last_seen_at DESC`
	return query, args
}

// UpsertByCanonicalHash implements the upsert contract: keyed
// on canonical_hash; a hit updates mutable fields, bumps last_seen_at, and
// clears any soft-delete (a restore, counted as inserted, never updated);
// a miss inserts.
func (repo *JobRepo) UpsertByCanonicalHash(ctx context.Context, job *entity.Job) (repository.UpsertResult, error) {
	if err := job.Validate(); err != nil {
		return repository.UpsertResult{}, err
	}

	existing, err := repo.findByCanonicalHash(ctx, job.CanonicalHash)
	if err != nil {
		return repository.UpsertResult{}, fmt.Errorf("UpsertByCanonicalHash: %w", err)
	}

	if existing == nil {
		if err := repo.insert(ctx, job); err != nil {
			return repository.UpsertResult{}, fmt.Errorf("UpsertByCanonicalHash: %w", err)
		}
		return repository.UpsertResult{Job: job, Inserted: true}, nil
	}

	restored := existing.IsDeleted()
	changed := existing.Title != job.Title ||
		existing.ApplyURL != job.ApplyURL ||
		existing.RawLocation != job.RawLocation ||
		existing.Description != job.Description ||
		!timePtrEqual(existing.Deadline, job.Deadline)

	if err := repo.updateMutable(ctx, existing.ID, job); err != nil {
		return repository.UpsertResult{}, fmt.Errorf("UpsertByCanonicalHash: %w", err)
	}
	job.ID = existing.ID
	job.FirstSeenAt = existing.FirstSeenAt

	switch {
	case restored:
		return repository.UpsertResult{Job: job, Restored: true}, nil
	case changed:
		return repository.UpsertResult{Job: job, Updated: true}, nil
	default:
		return repository.UpsertResult{Job: job, Unchanged: true}, nil
	}
}

// findByCanonicalHash prefers the live row, falling back to the most
// recently seen soft-deleted one (the restore path).
func (repo *JobRepo) findByCanonicalHash(ctx context.Context, hash string) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM ` + repo.writeTable + `
WHERE canonical_hash = $1
ORDER BY (deleted_at IS NULL) DESC, last_seen_at DESC
LIMIT 1`
	job, err := scanJob(repo.db.QueryRowContext(ctx, query, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func (repo *JobRepo) insert(ctx context.Context, job *entity.Job) error {
	compensation, enrichment, quality, rawMetadata, err := marshalJobJSON(job)
	if err != nil {
		return err
	}
	query := `
INSERT INTO ` + repo.writeTable + ` (
    source_id, org_name, title, apply_url, raw_location, country,
    country_iso2, city, lat, lon, remote, deadline, description, level,
    modality, contract_months, compensation, tags, benefits, policies,
    donors, canonical_hash, dedupe_hash, status, enrichment, quality,
    raw_metadata
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
RETURNING id, first_seen_at, last_seen_at, created_at, updated_at`
	return repo.db.QueryRowContext(ctx, query,
		job.SourceID, job.OrgName, job.Title, job.ApplyURL,
		nullIfEmpty(job.RawLocation), nullIfEmpty(job.Country),
		nullIfEmpty(job.CountryISO2), nullIfEmpty(job.City),
		job.Lat, job.Lon, job.Remote, job.Deadline,
		nullIfEmpty(job.Description), nullIfEmpty(job.Level),
		nullIfEmpty(job.Modality), job.ContractMonths, compensation,
		pq.Array(textArray(job.Tags)), pq.Array(textArray(job.Benefits)),
		pq.Array(textArray(job.Policies)), pq.Array(textArray(job.Donors)),
		job.CanonicalHash, nullIfEmpty(job.DedupeHash), job.Status,
		enrichment, quality, rawMetadata,
	).Scan(&job.ID, &job.FirstSeenAt, &job.LastSeenAt, &job.CreatedAt, &job.UpdatedAt)
}

// updateMutable refreshes the fields a re-crawl may change,
// bumps last_seen_at, and clears the soft-delete triple.
func (repo *JobRepo) updateMutable(ctx context.Context, id int64, job *entity.Job) error {
	_, _, quality, rawMetadata, err := marshalJobJSON(job)
	if err != nil {
		return err
	}
	b := newUpdateBuilder(repo.writeTable).
		Set("title", job.Title).
		Set("apply_url", job.ApplyURL).
		Set("raw_location", nullIfEmpty(job.RawLocation)).
		Set("country", nullIfEmpty(job.Country)).
		Set("country_iso2", nullIfEmpty(job.CountryISO2)).
		Set("city", nullIfEmpty(job.City)).
		Set("lat", job.Lat).
		Set("lon", job.Lon).
		Set("remote", job.Remote).
		Set("deadline", job.Deadline).
		Set("description", nullIfEmpty(job.Description)).
		Set("quality", quality).
		Set("raw_metadata", rawMetadata).
		Set("status", entity.JobStatusActive).
		SetRaw("last_seen_at", "now()").
		SetRaw("deleted_at", "NULL").
		SetRaw("deleted_by", "NULL").
		SetRaw("deletion_reason", "NULL").
		SetRaw("updated_at", "now()")

	query, args := b.Build("id = $w1", id)
	result, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireOneRow(result, "updateMutable")
}

func (repo *JobRepo) ExistsByCanonicalHashBatch(ctx context.Context, hashes []string) (map[string]bool, error) {
	out := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}
	rows, err := repo.db.QueryContext(ctx,
		`SELECT canonical_hash FROM jobs WHERE deleted_at IS NULL AND canonical_hash = ANY($1)`,
		pq.Array(hashes))
	if err != nil {
		return nil, fmt.Errorf("ExistsByCanonicalHashBatch: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("ExistsByCanonicalHashBatch: %w", err)
		}
		out[h] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ExistsByCanonicalHashBatch: %w", err)
	}
	return out, nil
}

func (repo *JobRepo) Update(ctx context.Context, job *entity.Job) error {
	compensation, enrichment, quality, rawMetadata, err := marshalJobJSON(job)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	const query = `
UPDATE jobs SET
    org_name = $1, title = $2, apply_url = $3, raw_location = $4,
    country = $5, country_iso2 = $6, city = $7, lat = $8, lon = $9,
    remote = $10, deadline = $11, description = $12, level = $13,
    modality = $14, contract_months = $15, compensation = $16, tags = $17,
    benefits = $18, policies = $19, donors = $20, dedupe_hash = $21,
    status = $22, enrichment = $23, quality = $24, raw_metadata = $25,
    updated_at = now()
WHERE id = $26`
	result, err := repo.db.ExecContext(ctx, query,
		job.OrgName, job.Title, job.ApplyURL, nullIfEmpty(job.RawLocation),
		nullIfEmpty(job.Country), nullIfEmpty(job.CountryISO2),
		nullIfEmpty(job.City), job.Lat, job.Lon, job.Remote, job.Deadline,
		nullIfEmpty(job.Description), nullIfEmpty(job.Level),
		nullIfEmpty(job.Modality), job.ContractMonths, compensation,
		pq.Array(textArray(job.Tags)), pq.Array(textArray(job.Benefits)),
		pq.Array(textArray(job.Policies)), pq.Array(textArray(job.Donors)),
		nullIfEmpty(job.DedupeHash), job.Status, enrichment, quality,
		rawMetadata, job.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return requireOneRow(result, "Update")
}

// SoftDelete marks a job deleted and removes its document from the search
// index; index failures are logged, never propagated.
func (repo *JobRepo) SoftDelete(ctx context.Context, id int64, deletedBy, reason string) error {
	const query = `
UPDATE jobs SET
    deleted_at = now(), deleted_by = $1, deletion_reason = $2,
    status = 'deleted', updated_at = now()
WHERE id = $3 AND deleted_at IS NULL`
	result, err := repo.db.ExecContext(ctx, query, deletedBy, reason, id)
	if err != nil {
		return fmt.Errorf("SoftDelete: %w", err)
	}
	if err := requireOneRow(result, "SoftDelete"); err != nil {
		return err
	}
	repo.removeFromIndex(ctx, []int64{id})
	return nil
}

func (repo *JobRepo) Restore(ctx context.Context, id int64) error {
	const query = `
UPDATE jobs SET
    deleted_at = NULL, deleted_by = NULL, deletion_reason = NULL,
    status = 'active', updated_at = now()
WHERE id = $1 AND deleted_at IS NOT NULL`
	result, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Restore: %w", err)
	}
	return requireOneRow(result, "Restore")
}

// Delete is the hard-delete path: the row is gone and so is its search
// document. Callers (the admin delete_bulk operation) enforce the
// non-empty-reason requirement before reaching the adapter.
func (repo *JobRepo) Delete(ctx context.Context, id int64) error {
	result, err := repo.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if err := requireOneRow(result, "Delete"); err != nil {
		return err
	}
	repo.removeFromIndex(ctx, []int64{id})
	return nil
}

func (repo *JobRepo) MarkStaleNotSeenSince(ctx context.Context, sourceID int64, cutoff time.Time) (int, error) {
	const query = `
UPDATE jobs SET
    deleted_at = now(), deleted_by = 'orchestrator',
    deletion_reason = 'not seen on re-crawl', status = 'deleted',
    updated_at = now()
WHERE source_id = $1 AND deleted_at IS NULL AND last_seen_at < $2
RETURNING id`
	rows, err := repo.db.QueryContext(ctx, query, sourceID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("MarkStaleNotSeenSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("MarkStaleNotSeenSince: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("MarkStaleNotSeenSince: %w", err)
	}
	repo.removeFromIndex(ctx, ids)
	return len(ids), nil
}

// LogFailedInsert appends to the extraction_logs collaborator table
// with a redacted payload: identifiers
// only, never the full scraped record.
func (repo *JobRepo) LogFailedInsert(ctx context.Context, sourceID int64, rawURL string, cause error) error {
	payload, err := json.Marshal(map[string]any{"source_id": sourceID, "url": rawURL})
	if err != nil {
		return fmt.Errorf("LogFailedInsert: %w", err)
	}
	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO extraction_logs (source_url, operation, error_message, redacted_payload) VALUES ($1, $2, $3, $4)`,
		rawURL, "insert", truncateErr(cause), payload)
	if err != nil {
		return fmt.Errorf("LogFailedInsert: %w", err)
	}
	return nil
}

// AnalyzeImpact counts what filters would touch. The shortlist and
// ground-truth tables belong to collaborators and may not exist in every
// deployment; their counts degrade to zero.
func (repo *JobRepo) AnalyzeImpact(ctx context.Context, filters repository.JobSearchFilters) (repository.ImpactAnalysis, error) {
	var analysis repository.ImpactAnalysis

	withDeleted := filters
	withDeleted.IncludeDeleted = true
	query, args := buildJobCountQuery(withDeleted)
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&analysis.TotalJobs); err != nil {
		return analysis, fmt.Errorf("AnalyzeImpact: %w", err)
	}

	filters.IncludeDeleted = false
	query, args = buildJobCountQuery(filters)
	if err := repo.db.QueryRowContext(ctx, query, args...).Scan(&analysis.ActiveJobs); err != nil {
		return analysis, fmt.Errorf("AnalyzeImpact: %w", err)
	}

	analysis.EnrichmentReviews = repo.countOrZero(ctx,
		`SELECT COUNT(*) FROM jobs WHERE deleted_at IS NULL AND (quality->>'NeedsReview')::boolean`)
	analysis.EnrichmentHistory = repo.countOrZero(ctx, `SELECT COUNT(*) FROM enrichment_history`)
	analysis.Shortlists = repo.countOrZero(ctx, `SELECT COUNT(*) FROM shortlists`)
	analysis.GroundTruth = repo.countOrZero(ctx, `SELECT COUNT(*) FROM enrichment_ground_truth`)
	return analysis, nil
}

func buildJobCountQuery(filters repository.JobSearchFilters) (string, []any) {
	query, args := buildJobFilterQuery(nil, filters)
	query = strings.Replace(query, "SELECT "+jobColumns, "SELECT COUNT(*)", 1)
	query = strings.TrimSuffix(query, " ORDER BY last_seen_at DESC")
	return query, args
}

func (repo *JobRepo) countOrZero(ctx context.Context, query string) int64 {
	var count int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0
	}
	return count
}

func (repo *JobRepo) removeFromIndex(ctx context.Context, ids []int64) {
	if len(ids) == 0 {
		return
	}
	if err := repo.index.DeleteDocuments(ctx, ids); err != nil {
		slog.Warn("search index removal failed",
			slog.Int("count", len(ids)), slog.Any("error", err))
	}
}

func marshalJobJSON(job *entity.Job) (compensation, enrichment, quality, rawMetadata any, err error) {
	if job.Compensation != nil {
		b, e := json.Marshal(job.Compensation)
		if e != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal compensation: %w", e)
		}
		compensation = b
	}
	eb, e := json.Marshal(job.Enrichment)
	if e != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal enrichment: %w", e)
	}
	qb, e := json.Marshal(job.Quality)
	if e != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal quality: %w", e)
	}
	rb, e := json.Marshal(job.RawMetadata)
	if e != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal raw_metadata: %w", e)
	}
	return compensation, eb, qb, rb, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func truncateErr(err error) string {
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
