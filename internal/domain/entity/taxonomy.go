package entity

// TaxonomyType identifies one of the read-mostly taxonomy tables loaded by
// the normalizer's taxonomy cache.
type TaxonomyType string

const (
	TaxonomyCountry  TaxonomyType = "country"
	TaxonomyLevel    TaxonomyType = "level"
	TaxonomyMission  TaxonomyType = "mission"
	TaxonomyModality TaxonomyType = "modality"
	TaxonomyBenefit  TaxonomyType = "benefit"
	TaxonomyPolicy   TaxonomyType = "policy"
	TaxonomyDonor    TaxonomyType = "donor"
)

// TaxonomyEntry is one canonical key row of a taxonomy table. For
// TaxonomyCountry, Key is the ISO-2 code and Label the display name.
type TaxonomyEntry struct {
	Type  TaxonomyType
	Key   string
	Label string
}

// TaxonomySynonym maps one raw value, for a given taxonomy type, to its
// canonical key.
type TaxonomySynonym struct {
	Type       TaxonomyType
	RawValue   string
	CanonicalKey string
}
