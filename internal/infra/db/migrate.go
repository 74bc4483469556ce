package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/sources.sql
var seedSourcesSQL string

// MigrateUp creates the crawler's schema: sources, jobs, an
// append-only crawl_logs table, a per-source lock table, the taxonomy
// tables plus their synonym table, and extraction_logs for failed-insert
// records. Statements are IF NOT EXISTS throughout so MigrateUp is safe to
// run on every process start.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS sources (
    id                    BIGSERIAL PRIMARY KEY,
    org_name              TEXT NOT NULL,
    base_url              TEXT NOT NULL UNIQUE,
    kind                  VARCHAR(10) NOT NULL DEFAULT 'html',
    parser_hint           TEXT,
    api_config            JSONB,
    org_type              VARCHAR(30) NOT NULL DEFAULT 'ngo',
    status                VARCHAR(10) NOT NULL DEFAULT 'active',
    cadence_days          INTEGER,
    cron_expr             TEXT,
    etag                  TEXT NOT NULL DEFAULT '',
    last_modified         TEXT NOT NULL DEFAULT '',
    last_crawled_at       TIMESTAMPTZ,
    last_crawl_status     VARCHAR(10),
    last_crawl_message    TEXT,
    consecutive_failures  INTEGER NOT NULL DEFAULT 0,
    consecutive_no_change INTEGER NOT NULL DEFAULT 0,
    next_run_at           TIMESTAMPTZ,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
    id                    BIGSERIAL PRIMARY KEY,
    source_id             BIGINT REFERENCES sources(id) ON DELETE SET NULL,
    org_name              TEXT NOT NULL,
    title                 TEXT NOT NULL,
    apply_url             TEXT NOT NULL,
    raw_location          TEXT,
    country               TEXT,
    country_iso2          VARCHAR(2),
    city                  TEXT,
    lat                   DOUBLE PRECISION,
    lon                   DOUBLE PRECISION,
    remote                BOOLEAN NOT NULL DEFAULT FALSE,
    deadline              DATE,
    description           TEXT,
    level                 TEXT,
    modality              TEXT,
    contract_months       INTEGER,
    compensation          JSONB,
    tags                  TEXT[] NOT NULL DEFAULT '{}',
    benefits              TEXT[] NOT NULL DEFAULT '{}',
    policies              TEXT[] NOT NULL DEFAULT '{}',
    donors                TEXT[] NOT NULL DEFAULT '{}',
    canonical_hash        VARCHAR(64) NOT NULL,
    dedupe_hash           VARCHAR(64),
    first_seen_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_seen_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    status                VARCHAR(10) NOT NULL DEFAULT 'active',
    deleted_at            TIMESTAMPTZ,
    deleted_by            TEXT,
    deletion_reason       TEXT,
    enrichment            JSONB,
    quality               JSONB,
    raw_metadata          JSONB,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// canonical_hash is unique only among non-deleted jobs; a soft-deleted job
	// must not block a fresh insert of the same posting.
	if _, err := db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_canonical_hash_active
    ON jobs(canonical_hash) WHERE deleted_at IS NULL`); err != nil {
		return err
	}

	jobIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_jobs_source_id ON jobs(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_last_seen_at ON jobs(last_seen_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_country_iso2 ON jobs(country_iso2)`,
	}
	for _, idx := range jobIndexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)
	searchIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_jobs_title_gin ON jobs USING gin(title gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_org_name_gin ON jobs USING gin(org_name gin_trgm_ops)`,
	}
	for _, idx := range searchIndexes {
		_, _ = db.Exec(idx)
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS crawl_logs (
    id          BIGSERIAL PRIMARY KEY,
    source_id   BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    duration_ms INTEGER NOT NULL DEFAULT 0,
    found       INTEGER NOT NULL DEFAULT 0,
    inserted    INTEGER NOT NULL DEFAULT 0,
    updated     INTEGER NOT NULL DEFAULT 0,
    skipped     INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    status      VARCHAR(10) NOT NULL,
    message     TEXT
)`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_crawl_logs_source_id ON crawl_logs(source_id, started_at DESC)`); err != nil {
		return err
	}

	// locks enforces at-most-one in-flight crawl per source;
	// Acquire is a plain INSERT relying on the primary key to raise a
	// uniqueness violation when a lock is already held.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS locks (
    source_id    BIGINT PRIMARY KEY REFERENCES sources(id) ON DELETE CASCADE,
    acquired_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS taxonomy_entries (
    id    SERIAL PRIMARY KEY,
    type  VARCHAR(20) NOT NULL,
    key   TEXT NOT NULL,
    label TEXT NOT NULL,
    UNIQUE(type, key)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS taxonomy_synonyms (
    id            SERIAL PRIMARY KEY,
    type          VARCHAR(20) NOT NULL,
    raw_value     TEXT NOT NULL,
    canonical_key TEXT NOT NULL,
    UNIQUE(type, raw_value)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS enrichment_history (
    id            BIGSERIAL PRIMARY KEY,
    job_id        BIGINT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
    enrichment    JSONB NOT NULL,
    change_reason TEXT NOT NULL,
    changed_by    TEXT NOT NULL,
    changed_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_enrichment_history_job_id ON enrichment_history(job_id, changed_at DESC)`); err != nil {
		return err
	}

	// extraction_logs is the failed-insert collaborator table.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS extraction_logs (
    id               BIGSERIAL PRIMARY KEY,
    source_url       TEXT NOT NULL,
    operation        VARCHAR(20) NOT NULL,
    error_message    TEXT NOT NULL,
    redacted_payload JSONB,
    resolved         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_extraction_logs_resolved ON extraction_logs(resolved) WHERE resolved = FALSE`); err != nil {
		return err
	}

	// jobs_shadow receives upserts in shadow mode (EXTRACTION_SHADOW_MODE)
	// so a pipeline change can be compared against production output before
	// it commits for real.
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS jobs_shadow (LIKE jobs INCLUDING ALL)`); err != nil {
		return err
	}

	// Seed data is idempotent (ON CONFLICT DO NOTHING in seeds/sources.sql).
	if _, err := db.Exec(seedSourcesSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown drops the crawler's tables in dependency order. Use with
// caution: this deletes all crawl state.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS extraction_logs CASCADE`,
		`DROP TABLE IF EXISTS enrichment_history CASCADE`,
		`DROP TABLE IF EXISTS taxonomy_synonyms CASCADE`,
		`DROP TABLE IF EXISTS taxonomy_entries CASCADE`,
		`DROP TABLE IF EXISTS jobs_shadow CASCADE`,
		`DROP TABLE IF EXISTS locks CASCADE`,
		`DROP TABLE IF EXISTS crawl_logs CASCADE`,
		`DROP TABLE IF EXISTS jobs CASCADE`,
		`DROP TABLE IF EXISTS sources CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
