package normalize

import (
	"context"
	"strings"

	"aidjobs-crawler/internal/domain/entity"
)

// Normalizer applies the taxonomy cache and the free-text parsers to a Job's
// raw extracted fields, producing the canonicalized values persisted on the
// Job row. It is stateless beyond its Cache; callers share one
// Normalizer (and thus one Cache.Load) across every crawl in the process.
type Normalizer struct {
	cache *Cache
}

// NewNormalizer constructs a Normalizer over an already-constructed Cache.
// Apply calls cache.Load itself, so the tables load on the first Apply and
// only once per Cache.
func NewNormalizer(cache *Cache) *Normalizer {
	return &Normalizer{cache: cache}
}

// Raw is the extraction pipeline's pre-normalization view of a posting: free
// text and loosely-typed values keyed by field name, not yet checked against
// the taxonomy tables.
type Raw struct {
	Country        string
	Level          string
	Modality       string
	Tags           []string
	Benefits       []string
	Policies       []string
	Donors         []string
	DurationText   string
	CompensationText string
	Compensation   *entity.Compensation
}

// Apply canonicalizes raw onto job, capturing every value with no taxonomy
// match into job.RawMetadata.Unknown instead of silently dropping it.
func (n *Normalizer) Apply(ctx context.Context, raw Raw, job *entity.Job) {
	n.cache.Load(ctx)

	job.Country = strings.TrimSpace(raw.Country)
	if iso2, ok := n.cache.ToISOCountry(raw.Country); ok {
		job.CountryISO2 = iso2
	} else if raw.Country != "" {
		job.RawMetadata.Unknown = append(job.RawMetadata.Unknown, entity.UnknownValue{Field: "country", Value: raw.Country})
	}

	if level, ok := n.cache.NormLevel(raw.Level); ok {
		job.Level = level
	} else if raw.Level != "" {
		job.RawMetadata.Unknown = append(job.RawMetadata.Unknown, entity.UnknownValue{Field: "level", Value: raw.Level})
	}

	if modality, ok := n.cache.NormModality(raw.Modality); ok {
		job.Modality = modality
		job.Remote = modality == "remote"
	} else if raw.Modality != "" {
		job.RawMetadata.Unknown = append(job.RawMetadata.Unknown, entity.UnknownValue{Field: "modality", Value: raw.Modality})
	}

	tags, unknownTags := n.cache.NormTags(raw.Tags)
	job.Tags = tags
	n.captureUnknownList(job, "tags", unknownTags)

	benefits, unknownBenefits := n.cache.NormBenefits(raw.Benefits)
	job.Benefits = benefits
	n.captureUnknownList(job, "benefits", unknownBenefits)

	policies, unknownPolicies := n.cache.NormPolicy(raw.Policies)
	job.Policies = policies
	n.captureUnknownList(job, "policies", unknownPolicies)

	donors, unknownDonors := n.cache.NormDonors(raw.Donors)
	job.Donors = donors
	n.captureUnknownList(job, "donors", unknownDonors)

	job.ContractMonths = ParseContractDuration(firstNonEmpty(raw.DurationText, raw.CompensationText))
	job.Compensation = ParseCompensation(raw.Compensation, raw.CompensationText)
}

func (n *Normalizer) captureUnknownList(job *entity.Job, field string, values []string) {
	for _, v := range values {
		job.RawMetadata.Unknown = append(job.RawMetadata.Unknown, entity.UnknownValue{Field: field, Value: v})
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
