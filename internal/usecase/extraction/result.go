// Package extraction implements the cascading, confidence-scored extractor:
// classifier, JSON-LD, meta/OpenGraph, DOM site plugins, label heuristics,
// regex, and an AI call of last resort. Each stage
// proposes per-field results; the highest-confidence proposal per field
// wins. The package also owns canonical identity, the dedupe hash,
// validation flags, and snapshotting.
package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"aidjobs-crawler/internal/domain/entity"
)

// PipelineVersion is stamped into every snapshot sidecar; bump when a stage
// change would produce different output for a previously-extracted page.
const PipelineVersion = "1.0.0"

// Field names the extractable fields of a posting.
type Field string

const (
	FieldTitle          Field = "title"
	FieldEmployer       Field = "employer"
	FieldLocation       Field = "location"
	FieldPostedOn       Field = "posted_on"
	FieldDeadline       Field = "deadline"
	FieldDescription    Field = "description"
	FieldRequirements   Field = "requirements"
	FieldApplicationURL Field = "application_url"
)

// criticalFields drive the AI-fallback gate: the call is made only when more
// than one of these is missing or below 0.5 confidence.
var criticalFields = []Field{FieldTitle, FieldEmployer, FieldLocation}

// Candidate is one job row pulled off a listing page by the DOM stage,
// before it becomes its own Result via a detail-page crawl or is upserted
// directly with the listing page's shared fields.
type Candidate struct {
	Title    string
	ApplyURL string
	RawText  string
}

// Result is the full extraction output for one page, matching the sidecar
// schema written next to each snapshot.
type Result struct {
	URL             string                        `json:"url"`
	CanonicalID     string                        `json:"canonical_id"`
	ExtractedAt     time.Time                     `json:"extracted_at"`
	PipelineVersion string                        `json:"pipeline_version"`
	Fields          map[Field]entity.FieldResult  `json:"fields"`
	IsJob           bool                          `json:"is_job"`
	ClassifierScore float64                       `json:"classifier_score"`
	DedupeHash      string                        `json:"dedupe_hash"`

	// Jobs holds listing rows from the DOM stage; empty for detail pages.
	Jobs []Candidate `json:"jobs,omitempty"`
	// URLCollisions counts listing rows dropped because their normalized
	// apply URL was already claimed by an earlier row on the same page.
	URLCollisions int `json:"url_collisions,omitempty"`

	ManualReview bool     `json:"manual_review"`
	Issues       []string `json:"validation_issues,omitempty"`
}

func newResult(pageURL string) *Result {
	return &Result{
		URL:             pageURL,
		CanonicalID:     CanonicalID(pageURL),
		ExtractedAt:     time.Now().UTC(),
		PipelineVersion: PipelineVersion,
		Fields:          make(map[Field]entity.FieldResult),
	}
}

// SetField records r as the value for name if it beats the stored result's
// confidence; earlier results win ties.
func (r *Result) SetField(name Field, fr entity.FieldResult) {
	existing, ok := r.Fields[name]
	if !ok || fr.HigherThan(existing) {
		r.Fields[name] = fr
	}
}

// Value returns the winning value for name, or "".
func (r *Result) Value(name Field) string {
	return r.Fields[name].Value
}

// fieldMissing reports whether name has no usable value or sits below the
// AI-fallback confidence bar.
func (r *Result) fieldMissing(name Field) bool {
	fr, ok := r.Fields[name]
	if !ok || strings.TrimSpace(fr.Value) == "" {
		return true
	}
	return fr.Confidence < 0.5
}

// needsAI reports whether more than one critical field is missing or
// low-confidence.
func (r *Result) needsAI() bool {
	missing := 0
	for _, f := range criticalFields {
		if r.fieldMissing(f) {
			missing++
		}
	}
	return missing > 1
}

// idParamKeywords marks query parameters that carry posting identity and so
// belong in the canonical ID (a job board that addresses postings as
// ?id=1234 must not collapse every posting to one canonical ID).
var idParamKeywords = []string{"id", "job", "position", "vacancy"}

// CanonicalID derives the short stable page identity: a 16-hex prefix of
// SHA-256 over host+path plus any id-like query parameters.
func CanonicalID(rawURL string) string {
	base := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		base = u.Host + u.Path
		if u.RawQuery != "" {
			var idParams []string
			for _, pair := range strings.Split(u.RawQuery, "&") {
				lower := strings.ToLower(pair)
				for _, kw := range idParamKeywords {
					if strings.Contains(lower, kw) {
						idParams = append(idParams, pair)
						break
					}
				}
			}
			if len(idParams) > 0 {
				base += "?" + strings.Join(idParams, "&")
			}
		}
	}
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])[:16]
}

// computeDedupeHash fills r.DedupeHash from the winning pipeline fields:
// SHA-256 over the lowercased "employer|title|location|application_url".
func (r *Result) computeDedupeHash() {
	parts := []string{
		strings.ToLower(strings.TrimSpace(r.Value(FieldEmployer))),
		strings.ToLower(strings.TrimSpace(r.Value(FieldTitle))),
		strings.ToLower(strings.TrimSpace(r.Value(FieldLocation))),
		strings.ToLower(strings.TrimSpace(r.Value(FieldApplicationURL))),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	r.DedupeHash = hex.EncodeToString(sum[:])
}

// NormalizeApplyURL reduces an apply URL to its identity for per-page
// uniqueness checks: trailing slash stripped, fragment and query dropped.
func NormalizeApplyURL(rawURL string) string {
	s := rawURL
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.IndexByte(s, '?'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimRight(s, "/")
}

func fieldResult(source entity.FieldSource, value, snippet string) entity.FieldResult {
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return entity.FieldResult{
		Value:      strings.TrimSpace(value),
		Source:     source,
		Confidence: entity.BaseConfidence[source],
		RawSnippet: snippet,
	}
}

// addIssue appends a validation issue and flags the result for review.
func (r *Result) addIssue(issue string) {
	r.ManualReview = true
	r.Issues = append(r.Issues, issue)
}

func (r *Result) String() string {
	return fmt.Sprintf("extraction(%s is_job=%t score=%.2f fields=%d jobs=%d)",
		r.CanonicalID, r.IsJob, r.ClassifierScore, len(r.Fields), len(r.Jobs))
}
