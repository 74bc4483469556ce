package normalize

import (
	"strings"

	"aidjobs-crawler/internal/domain/entity"
)

// ToISOCountry resolves a free-form country name to its ISO-2 code. It
// returns ("", false) when the cache has no synonym or membership match for
// raw; Normalizer.Apply records such a value in job.RawMetadata.Unknown.
func (c *Cache) ToISOCountry(raw string) (string, bool) {
	key := normKey(raw)
	if key == "" {
		return "", false
	}
	if iso2, ok := c.countries[key]; ok {
		return iso2, true
	}
	return "", false
}

// NormLevel canonicalizes a free-form seniority level against the level
// synonym table and membership set.
func (c *Cache) NormLevel(raw string) (string, bool) {
	return c.normMembership(entity.TaxonomyLevel, c.levels, raw)
}

// NormModality canonicalizes a free-form work arrangement (remote/onsite/
// hybrid/field).
func (c *Cache) NormModality(raw string) (string, bool) {
	return c.normMembership(entity.TaxonomyModality, c.modalities, raw)
}

// NormTags canonicalizes a list of free-form mission/theme tags, dropping (and
// reporting via the returned unknown slice) any with no match.
func (c *Cache) NormTags(raw []string) (tags []string, unknown []string) {
	return c.normMembershipList(entity.TaxonomyMission, c.missions, raw)
}

// NormBenefits canonicalizes a list of free-form benefit descriptions.
func (c *Cache) NormBenefits(raw []string) (benefits []string, unknown []string) {
	return c.normMembershipList(entity.TaxonomyBenefit, c.benefits, raw)
}

// NormPolicy canonicalizes a list of free-form policy-flag descriptions.
func (c *Cache) NormPolicy(raw []string) (policies []string, unknown []string) {
	return c.normMembershipList(entity.TaxonomyPolicy, c.policies, raw)
}

// NormDonors canonicalizes a list of free-form donor names. Donors have no
// hard-coded fallback membership set: an empty donors table
// means every raw value is reported as unknown until the table is seeded.
func (c *Cache) NormDonors(raw []string) (donors []string, unknown []string) {
	return c.normMembershipList(entity.TaxonomyDonor, c.donors, raw)
}

func (c *Cache) normMembershipList(t entity.TaxonomyType, table map[string]bool, raw []string) (out []string, unknown []string) {
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		v, ok := c.normMembership(t, table, r)
		if !ok {
			unknown = append(unknown, r)
			continue
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, unknown
}

func (c *Cache) normMembership(t entity.TaxonomyType, table map[string]bool, raw string) (string, bool) {
	key := normKey(raw)
	if key == "" {
		return "", false
	}
	if table[key] {
		return key, true
	}
	if v, ok := c.synonym(t, key); ok && table[v] {
		return v, true
	}
	return "", false
}

func normKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
