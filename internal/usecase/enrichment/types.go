// Package enrichment classifies jobs into a fixed taxonomy (impact domain,
// functional role, experience level, SDGs) via an LLM call, then reduces the
// raw classification through seven deterministic rules that encode
// editorial policy. The rules, not the model, own the final
// decision of what gets published with high confidence.
package enrichment

// ScoredItem is one candidate label with the model's confidence in it,
// before canonical-set stripping and rule application.
type ScoredItem struct {
	Value      string
	Confidence float64
}

// RawClassification is the LLM's unreduced output for one job, parsed from
// its JSON reply.
type RawClassification struct {
	ImpactDomains   []ScoredItem
	FunctionalRoles []ScoredItem
	ExperienceLevel ScoredItem
	ExperienceYears *int
	SDGs            []ScoredItem // Value is the SDG number as a string, "1".."17"
	MatchedKeywords []string
	OverallConfidence float64
}

// Canonical sets the rule engine validates against before applying rules
//. Kept small and explicit rather than loaded from a
// table: unlike the taxonomy tables in internal/usecase/normalize, this
// fixed classification schema is part of the enrichment contract itself and
// changing it bumps entity.EnrichmentVersion.
var (
	CanonicalImpactDomains = map[string]bool{
		"health": true, "education": true, "protection": true, "livelihoods": true,
		"wash": true, "climate": true, "governance": true, "nutrition": true,
		"shelter": true, "gender": true, "emergency_response": true,
		"peacebuilding": true, "food_security": true,
	}

	CanonicalFunctionalRoles = map[string]bool{
		"Programs/Technical":                         true,
		"Finance/Accounting/Audit":                    true,
		"HR/Admin/Ops":                                true,
		"IT/Digital/Systems":                          true,
		"Logistics/Supply Chain/Procurement":          true,
		"Communications & Advocacy":                   true,
		"MEAL/Research/Evidence":                      true,
		"Monitoring Officer":                          true,
		"Data & GIS":                                  true,
		"Partnerships & Fundraising":                  true,
		"Leadership/Management":                       true,
	}

	// OperationalRoles triggers rule 1 (SDG suppression for support functions
	// that don't carry a development outcome of their own).
	OperationalRoles = map[string]bool{
		"Finance/Accounting/Audit":           true,
		"HR/Admin/Ops":                       true,
		"IT/Digital/Systems":                 true,
		"Logistics/Supply Chain/Procurement": true,
		"Communications & Advocacy":          true,
	}

	// MEALRoles triggers rule 4's stricter SDG confidence gate.
	MEALRoles = map[string]bool{
		"MEAL/Research/Evidence": true,
		"Monitoring Officer":     true,
		"Data & GIS":             true,
	}

	CanonicalExperienceLevels = map[string]bool{
		"intern": true, "junior": true, "mid": true, "senior": true,
		"lead": true, "executive": true,
	}
)
