package repository

import (
	"context"

	"aidjobs-crawler/internal/domain/entity"
)

// TaxonomyRepository reads the read-mostly taxonomy tables:
// countries, levels, missions, modalities, benefits, policy flags, donors,
// plus the (type, raw value) synonym table. A miss (empty result, or a
// connection error) is handled by the caller (normalize.Cache) falling back
// to its hard-coded defaults, never a crawl-aborting error.
type TaxonomyRepository interface {
	ListEntries(ctx context.Context, t entity.TaxonomyType) ([]entity.TaxonomyEntry, error)
	ListSynonyms(ctx context.Context, t entity.TaxonomyType) ([]entity.TaxonomySynonym, error)
}
