package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/repository"
)

// TaxonomyRepo reads the read-mostly taxonomy tables. Empty
// results are valid: the normalize.Cache falls back to its hard-coded
// defaults.
type TaxonomyRepo struct{ db *sql.DB }

func NewTaxonomyRepo(db *sql.DB) repository.TaxonomyRepository {
	return &TaxonomyRepo{db: db}
}

func (repo *TaxonomyRepo) ListEntries(ctx context.Context, t entity.TaxonomyType) ([]entity.TaxonomyEntry, error) {
	const query = `SELECT type, key, label FROM taxonomy_entries WHERE type = $1 ORDER BY key`
	rows, err := repo.db.QueryContext(ctx, query, t)
	if err != nil {
		return nil, fmt.Errorf("ListEntries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []entity.TaxonomyEntry
	for rows.Next() {
		var e entity.TaxonomyEntry
		if err := rows.Scan(&e.Type, &e.Key, &e.Label); err != nil {
			return nil, fmt.Errorf("ListEntries: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEntries: %w", err)
	}
	return entries, nil
}

func (repo *TaxonomyRepo) ListSynonyms(ctx context.Context, t entity.TaxonomyType) ([]entity.TaxonomySynonym, error) {
	const query = `SELECT type, raw_value, canonical_key FROM taxonomy_synonyms WHERE type = $1 ORDER BY raw_value`
	rows, err := repo.db.QueryContext(ctx, query, t)
	if err != nil {
		return nil, fmt.Errorf("ListSynonyms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var synonyms []entity.TaxonomySynonym
	for rows.Next() {
		var s entity.TaxonomySynonym
		if err := rows.Scan(&s.Type, &s.RawValue, &s.CanonicalKey); err != nil {
			return nil, fmt.Errorf("ListSynonyms: %w", err)
		}
		synonyms = append(synonyms, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSynonyms: %w", err)
	}
	return synonyms, nil
}
