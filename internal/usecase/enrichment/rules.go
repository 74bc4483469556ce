package enrichment

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"aidjobs-crawler/internal/domain/entity"
)

const (
	sdgConfidenceFloor       = 0.60
	sdgMaxCount              = 2
	mealSDGConfidenceFloor   = 0.85
	impactDomainFloor        = 0.65
	experienceConfidenceFloor = 0.70
	overallConfidenceFloor   = 0.65
)

// Engine reduces a RawClassification into entity.Enrichment by applying the
// seven editorial rules, in order, accumulating low-confidence reasons
// as it goes.
type Engine struct {
	now func() time.Time
}

// NewEngine builds a rule Engine. now defaults to time.Now; tests may
// override it for deterministic EnrichedAt assertions.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// Apply runs the full rule pipeline over raw and returns the resulting
// entity.Enrichment. Applying Apply twice to its own output is idempotent:
// every rule here only removes or clears, never adds, so a
// second pass over an already-reduced payload changes nothing.
func (e *Engine) Apply(raw RawClassification) entity.Enrichment {
	domains := stripNonCanonicalScored(raw.ImpactDomains, CanonicalImpactDomains)
	roles := stripNonCanonicalScored(raw.FunctionalRoles, CanonicalFunctionalRoles)
	level := raw.ExperienceLevel
	if !CanonicalExperienceLevels[level.Value] {
		level = ScoredItem{}
	}
	sdgs := validSDGs(raw.SDGs)
	overall := clampConfidence(raw.OverallConfidence)

	var reasons []string

	// Rule 1: operational suppression.
	if hasOperationalRole(roles) {
		sdgs = nil
		reasons = append(reasons, "operational/support role")
	}

	// Rule 2: SDG confidence floor.
	sdgs = filterSDGFloor(sdgs, sdgConfidenceFloor)

	// Rule 3: SDG cap, keep the highest-confidence pair.
	sdgs = capHighestConfidence(sdgs, sdgMaxCount)

	// Rule 4: MEAL threshold.
	if hasMEALRole(roles) {
		if len(sdgs) == 0 || sdgs[0].Confidence < mealSDGConfidenceFloor {
			sdgs = nil
			reasons = append(reasons, "meal role requires sdg confidence >= 0.85")
		}
	}

	// Rule 5: impact-domain floor.
	domains = filterScoredFloor(domains, impactDomainFloor)
	if len(domains) == 0 && len(raw.ImpactDomains) > 0 {
		reasons = append(reasons, "all impact domains below confidence floor")
	}

	// Rule 6: experience floor.
	experienceYears := raw.ExperienceYears
	if level.Confidence < experienceConfidenceFloor {
		level = ScoredItem{}
		experienceYears = nil
		if raw.ExperienceLevel.Value != "" {
			reasons = append(reasons, "experience level below confidence floor")
		}
	}

	// Rule 7: overall floor.
	if overall < overallConfidenceFloor {
		reasons = append(reasons, fmt.Sprintf("overall confidence %.2f < 0.65", overall))
	}

	now := e.now()
	return entity.Enrichment{
		ImpactDomains:       valuesOf(domains),
		FunctionalRoles:     valuesOf(roles),
		ExperienceLevel:     level.Value,
		ExperienceYears:     experienceYears,
		SDGs:                toSDGConfidence(sdgs),
		MatchedKeywords:     raw.MatchedKeywords,
		OverallConfidence:   overall,
		LowConfidence:       len(reasons) > 0,
		LowConfidenceReason: strings.Join(reasons, "; "),
		Version:             entity.EnrichmentVersion,
		EnrichedAt:          &now,
	}
}

func stripNonCanonicalScored(items []ScoredItem, canonical map[string]bool) []ScoredItem {
	out := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		if canonical[it.Value] {
			out = append(out, ScoredItem{Value: it.Value, Confidence: clampConfidence(it.Confidence)})
		}
	}
	return out
}

func validSDGs(items []ScoredItem) []ScoredItem {
	out := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		n, err := strconv.Atoi(it.Value)
		if err != nil || n < 1 || n > 17 {
			continue
		}
		out = append(out, ScoredItem{Value: it.Value, Confidence: clampConfidence(it.Confidence)})
	}
	return out
}

func clampConfidence(c float64) float64 {
	if c < 0 || c > 1 {
		return 0
	}
	return c
}

func hasOperationalRole(roles []ScoredItem) bool {
	for _, r := range roles {
		if OperationalRoles[r.Value] {
			return true
		}
	}
	return false
}

func hasMEALRole(roles []ScoredItem) bool {
	for _, r := range roles {
		if MEALRoles[r.Value] {
			return true
		}
	}
	return false
}

func filterSDGFloor(sdgs []ScoredItem, floor float64) []ScoredItem {
	return filterScoredFloor(sdgs, floor)
}

func filterScoredFloor(items []ScoredItem, floor float64) []ScoredItem {
	out := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		if it.Confidence >= floor {
			out = append(out, it)
		}
	}
	return out
}

func capHighestConfidence(items []ScoredItem, max int) []ScoredItem {
	sorted := append([]ScoredItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

func valuesOf(items []ScoredItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Value)
	}
	return out
}

func toSDGConfidence(items []ScoredItem) []entity.SDGConfidence {
	out := make([]entity.SDGConfidence, 0, len(items))
	for _, it := range items {
		n, err := strconv.Atoi(it.Value)
		if err != nil {
			continue
		}
		out = append(out, entity.SDGConfidence{SDG: n, Confidence: it.Confidence})
	}
	return out
}
