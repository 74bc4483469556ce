package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"aidjobs-crawler/internal/repository"
)

// LockRepo implements the per-source advisory lock as a plain insert
// against the locks table's primary key; a conflict means the lock is held
// and the source is skipped for the tick. The table is lazily provisioned
// on first miss.
type LockRepo struct{ db *sql.DB }

func NewLockRepo(db *sql.DB) repository.LockRepository {
	return &LockRepo{db: db}
}

const uniqueViolation = "23505"
const undefinedTable = "42P01"

func (repo *LockRepo) Acquire(ctx context.Context, sourceID int64) error {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO locks (source_id, acquired_at) VALUES ($1, now())`, sourceID)
	if err == nil {
		return nil
	}
	if isPGError(err, uniqueViolation) {
		return repository.ErrLockHeld
	}
	if isPGError(err, undefinedTable) {
		if provisionErr := repo.provision(ctx); provisionErr != nil {
			return fmt.Errorf("Acquire: provision locks table: %w", provisionErr)
		}
		return repo.Acquire(ctx, sourceID)
	}
	return fmt.Errorf("Acquire: %w", err)
}

func (repo *LockRepo) Release(ctx context.Context, sourceID int64) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM locks WHERE source_id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

// SweepStale clears locks whose holder evidently died without releasing.
func (repo *LockRepo) SweepStale(ctx context.Context, ttl time.Duration) (int, error) {
	result, err := repo.db.ExecContext(ctx,
		`DELETE FROM locks WHERE acquired_at < $1`, time.Now().Add(-ttl))
	if err != nil {
		if isPGError(err, undefinedTable) {
			return 0, nil
		}
		return 0, fmt.Errorf("SweepStale: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("SweepStale: %w", err)
	}
	return int(affected), nil
}

func (repo *LockRepo) provision(ctx context.Context) error {
	_, err := repo.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS locks (
    source_id    BIGINT PRIMARY KEY,
    acquired_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return err
}

func isPGError(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	// Fallback for drivers (and sqlmock) that don't expose pgconn errors.
	switch code {
	case uniqueViolation:
		return strings.Contains(err.Error(), "duplicate key")
	case undefinedTable:
		return strings.Contains(err.Error(), "does not exist")
	}
	return false
}
