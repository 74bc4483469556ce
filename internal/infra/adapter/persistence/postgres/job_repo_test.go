package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/search"
	"aidjobs-crawler/internal/repository"
)

var jobColumnNames = []string{
	"id", "source_id", "org_name", "title", "apply_url", "raw_location",
	"country", "country_iso2", "city", "lat", "lon", "remote", "deadline",
	"description", "level", "modality", "contract_months", "compensation",
	"tags", "benefits", "policies", "donors", "canonical_hash",
	"dedupe_hash", "first_seen_at", "last_seen_at", "status", "deleted_at",
	"deleted_by", "deletion_reason", "enrichment", "quality",
	"raw_metadata", "created_at", "updated_at",
}

func existingJobRow(id int64, title string, deletedAt any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(jobColumnNames).AddRow(
		id, int64(1), "UNDP", title, "https://jobs.undp.org/p/123", "Nairobi",
		"Kenya", "KE", "Nairobi", nil, nil, false, nil, "desc", nil, nil,
		nil, nil, "{}", "{}", "{}", "{}", "abc123", nil, now, now, "active",
		deletedAt, nil, nil, nil, nil, nil, now, now,
	)
}

func validJob() *entity.Job {
	return &entity.Job{
		SourceID:      1,
		OrgName:       "UNDP",
		Title:         "Programme Officer",
		ApplyURL:      "https://jobs.undp.org/p/123",
		CanonicalHash: "abc123",
		Status:        entity.JobStatusActive,
	}
}

func TestJobRepo_Upsert_InsertsNewJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM jobs\\s+WHERE canonical_hash = \\$1").
		WithArgs("abc123").WillReturnRows(sqlmock.NewRows(jobColumnNames))
	mock.ExpectQuery("INSERT INTO jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_seen_at", "last_seen_at", "created_at", "updated_at"}).
			AddRow(int64(11), now, now, now, now))

	repo := NewJobRepo(db, nil)
	result, err := repo.UpsertByCanonicalHash(context.Background(), validJob())
	require.NoError(t, err)
	assert.True(t, result.Inserted)
	assert.False(t, result.Updated)
	assert.Equal(t, int64(11), result.Job.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_Upsert_UpdatesChangedJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT (.+) FROM jobs\\s+WHERE canonical_hash = \\$1").
		WithArgs("abc123").WillReturnRows(existingJobRow(11, "Old Title", nil))
	mock.ExpectExec("UPDATE jobs SET").WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewJobRepo(db, nil)
	result, err := repo.UpsertByCanonicalHash(context.Background(), validJob())
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.False(t, result.Inserted)
	assert.Equal(t, int64(11), result.Job.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_Upsert_UnchangedJobSkipped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	job := validJob()
	job.RawLocation = "Nairobi"
	job.Description = "desc"
	mock.ExpectQuery("SELECT (.+) FROM jobs\\s+WHERE canonical_hash = \\$1").
		WithArgs("abc123").WillReturnRows(existingJobRow(11, job.Title, nil))
	mock.ExpectExec("UPDATE jobs SET").WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewJobRepo(db, nil)
	result, err := repo.UpsertByCanonicalHash(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, result.Unchanged)
	assert.False(t, result.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_Upsert_RestoresSoftDeletedJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	deletedAt := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM jobs\\s+WHERE canonical_hash = \\$1").
		WithArgs("abc123").WillReturnRows(existingJobRow(11, "Programme Officer", deletedAt))
	mock.ExpectExec("UPDATE jobs SET").WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewJobRepo(db, nil)
	result, err := repo.UpsertByCanonicalHash(context.Background(), validJob())
	require.NoError(t, err)
	// Restore counts as inserted downstream, never updated.
	assert.True(t, result.Restored)
	assert.False(t, result.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_Upsert_ValidationRejectsShortTitle(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	job := validJob()
	job.Title = ""
	repo := NewJobRepo(db, nil)
	_, err = repo.UpsertByCanonicalHash(context.Background(), job)
	require.Error(t, err)
	var vErr *entity.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestJobRepo_SoftDelete_RemovesFromIndex(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE jobs SET").
		WithArgs("admin", "expired", int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	index := &recordingIndex{}
	repo := NewJobRepo(db, index)
	require.NoError(t, repo.SoftDelete(context.Background(), 11, "admin", "expired"))
	assert.Equal(t, [][]int64{{11}}, index.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_SoftDelete_IndexFailureDoesNotFailDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE jobs SET").WillReturnResult(sqlmock.NewResult(0, 1))

	index := &recordingIndex{err: errors.New("meili down")}
	repo := NewJobRepo(db, index)
	assert.NoError(t, repo.SoftDelete(context.Background(), 11, "admin", "expired"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_MarkStaleNotSeenSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cutoff := time.Now().Add(-48 * time.Hour)
	mock.ExpectQuery("UPDATE jobs SET(.+)RETURNING id").
		WithArgs(int64(1), cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)).AddRow(int64(6)))

	index := &recordingIndex{}
	repo := NewJobRepo(db, index)
	count, err := repo.MarkStaleNotSeenSince(context.Background(), 1, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, [][]int64{{5, 6}}, index.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepo_LogFailedInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO extraction_logs").
		WithArgs("https://x.org/p/1", "insert", "missing title or apply url", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewJobRepo(db, nil)
	err = repo.LogFailedInsert(context.Background(), 1, "https://x.org/p/1",
		errors.New("missing title or apply url"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildJobFilterQuery(t *testing.T) {
	iso := "KE"
	remote := true
	query, args := buildJobFilterQuery([]string{"wash"}, repository.JobSearchFilters{
		CountryISO2: &iso,
		Remote:      &remote,
	})
	assert.Contains(t, query, "deleted_at IS NULL")
	assert.Contains(t, query, "country_iso2 = $2")
	assert.Contains(t, query, "remote = $3")
	assert.Len(t, args, 3)
}

// recordingIndex implements search.Index.
type recordingIndex struct {
	deleted [][]int64
	err     error
}

func (r *recordingIndex) UpsertDocuments(ctx context.Context, docs []search.JobDocument) error {
	return nil
}
func (r *recordingIndex) DeleteDocuments(ctx context.Context, ids []int64) error {
	if r.err != nil {
		return r.err
	}
	r.deleted = append(r.deleted, ids)
	return nil
}
func (r *recordingIndex) ListDocumentIDs(ctx context.Context) ([]int64, error) { return nil, nil }
