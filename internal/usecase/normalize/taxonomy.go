// Package normalize canonicalizes raw extracted fields against the
// taxonomy lookup tables: countries, levels, missions, modalities,
// benefits, policy flags, donors, and a (type, raw value) synonym table.
// The cache is process-wide, loaded once, and never locked by readers.
package normalize

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/repository"
)

// Cache is the process-wide taxonomy cache. It loads each table on first use
// from repository.TaxonomyRepository; a miss (nil repo, empty table, or a
// query error) degrades to the hard-coded fallback set so the system stays
// live when taxonomy tables are empty.
type Cache struct {
	repo repository.TaxonomyRepository

	once sync.Once

	countries map[string]string // name_lower -> iso2
	levels    map[string]bool
	missions  map[string]bool
	modalities map[string]bool
	benefits  map[string]bool
	policies  map[string]bool
	donors    map[string]bool

	synonyms map[entity.TaxonomyType]map[string]string // raw_lower -> canonical
}

// NewCache constructs an unpopulated cache; the first normalization call
// triggers Load.
func NewCache(repo repository.TaxonomyRepository) *Cache {
	return &Cache{repo: repo}
}

// Load populates every table exactly once. Safe to call repeatedly and
// concurrently; subsequent calls are no-ops.
func (c *Cache) Load(ctx context.Context) {
	c.once.Do(func() {
		c.countries = c.loadCountries(ctx)
		c.levels = c.loadMembership(ctx, entity.TaxonomyLevel, fallbackLevels)
		c.missions = c.loadMembership(ctx, entity.TaxonomyMission, fallbackMissions)
		c.modalities = c.loadMembership(ctx, entity.TaxonomyModality, fallbackModalities)
		c.benefits = c.loadMembership(ctx, entity.TaxonomyBenefit, fallbackBenefits)
		c.policies = c.loadMembership(ctx, entity.TaxonomyPolicy, fallbackPolicies)
		c.donors = c.loadMembership(ctx, entity.TaxonomyDonor, nil)
		c.synonyms = c.loadSynonyms(ctx)
	})
}

func (c *Cache) loadCountries(ctx context.Context) map[string]string {
	out := make(map[string]string, len(fallbackCountries))
	for name, iso2 := range fallbackCountries {
		out[name] = iso2
	}
	if c.repo == nil {
		return out
	}
	entries, err := c.repo.ListEntries(ctx, entity.TaxonomyCountry)
	if err != nil {
		slog.Warn("taxonomy cache: countries load failed, using fallback", slog.Any("error", err))
		return out
	}
	for _, e := range entries {
		out[strings.ToLower(strings.TrimSpace(e.Label))] = e.Key
	}
	return out
}

func (c *Cache) loadMembership(ctx context.Context, t entity.TaxonomyType, fallback []string) map[string]bool {
	out := make(map[string]bool, len(fallback))
	for _, k := range fallback {
		out[k] = true
	}
	if c.repo == nil {
		return out
	}
	entries, err := c.repo.ListEntries(ctx, t)
	if err != nil {
		slog.Warn("taxonomy cache: membership load failed, using fallback", slog.String("type", string(t)), slog.Any("error", err))
		return out
	}
	for _, e := range entries {
		out[e.Key] = true
	}
	return out
}

func (c *Cache) loadSynonyms(ctx context.Context) map[entity.TaxonomyType]map[string]string {
	out := map[entity.TaxonomyType]map[string]string{
		entity.TaxonomyLevel:    cloneSynonymMap(fallbackLevelSynonyms),
		entity.TaxonomyMission:  cloneSynonymMap(fallbackMissionSynonyms),
		entity.TaxonomyModality: cloneSynonymMap(fallbackModalitySynonyms),
	}
	if c.repo == nil {
		return out
	}
	for _, t := range []entity.TaxonomyType{entity.TaxonomyLevel, entity.TaxonomyMission, entity.TaxonomyModality, entity.TaxonomyBenefit, entity.TaxonomyPolicy, entity.TaxonomyDonor} {
		syns, err := c.repo.ListSynonyms(ctx, t)
		if err != nil {
			slog.Warn("taxonomy cache: synonyms load failed for type, using fallback", slog.String("type", string(t)), slog.Any("error", err))
			continue
		}
		if out[t] == nil {
			out[t] = map[string]string{}
		}
		// DB rows take precedence; hardcoded entries fill any gaps left.
		for _, s := range syns {
			out[t][strings.ToLower(s.RawValue)] = s.CanonicalKey
		}
	}
	return out
}

func cloneSynonymMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (c *Cache) synonym(t entity.TaxonomyType, raw string) (string, bool) {
	table, ok := c.synonyms[t]
	if !ok {
		return "", false
	}
	v, ok := table[strings.ToLower(strings.TrimSpace(raw))]
	return v, ok
}
