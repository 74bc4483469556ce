package entity

import "time"

// JobStatus tracks a Job's lifecycle independent of soft deletion.
type JobStatus string

const (
	JobStatusActive  JobStatus = "active"
	JobStatusStale   JobStatus = "stale"
	JobStatusDeleted JobStatus = "deleted"
)

// EnrichmentVersion is bumped whenever the rule pipeline in
// internal/usecase/enrichment changes in a way that would produce different
// output for previously-enriched jobs.
const EnrichmentVersion = 1

// SDGConfidence pairs a Sustainable Development Goal (1-17) with the LLM's
// per-item confidence, surviving the enrichment engine's confidence floor
// and two-item cap.
type SDGConfidence struct {
	SDG        int
	Confidence float64
}

// Enrichment holds the output of the enrichment engine: the
// LLM call's raw classification, reduced by seven deterministic rules into a
// confidence-gated taxonomy assignment.
type Enrichment struct {
	ImpactDomains    []string // canonical impact-domain keys surviving rule 5
	FunctionalRoles  []string // canonical functional-role keys (rule 1/4 drivers)
	ExperienceLevel  string   // cleared by rule 6 below its confidence floor
	ExperienceYears  *int
	SDGs             []SDGConfidence // at most 2 after rule 3, each >= 0.60 after rule 2
	MatchedKeywords  []string

	OverallConfidence float64
	LowConfidence     bool
	LowConfidenceReason string // accumulated reasons, "; "-joined

	Version   int
	EnrichedAt *time.Time
}

// Quality captures the extraction/normalization confidence and manual-review
// state for a Job.
type Quality struct {
	Score      float64 // 0-1
	Grade      string  // letter grade derived from Score
	Factors    map[string]float64
	Issues     []string
	NeedsReview bool
}

// SoftDelete records why and by what a Job was removed without a hard delete.
type SoftDelete struct {
	DeletedAt *time.Time
	DeletedBy string
	Reason    string
}

// Job is a single posting discovered from a Source.
type Job struct {
	ID       int64
	SourceID int64
	// OrgName is denormalized from the owning Source at insert time so a
	// Job's origin survives a Source rename or deletion.
	OrgName string

	Title         string
	ApplyURL      string
	RawLocation   string
	Country       string // free-form display name
	CountryISO2   string
	City          string
	Lat           *float64
	Lon           *float64
	Remote        bool

	Deadline    *time.Time
	Description string

	Level        string // normalized per norm_level
	Modality     string // normalized per norm_modality
	ContractMonths *int
	Compensation *Compensation

	Tags     []string
	Benefits []string
	Policies []string
	Donors   []string

	// CanonicalHash dedupes a posting across re-crawls of the same source
	// (title+org+apply-url derived). DedupeHash additionally dedupes near-
	// identical postings cross-source (title+org+location derived).
	CanonicalHash string
	DedupeHash    string

	FirstSeenAt time.Time
	LastSeenAt  time.Time
	Status      JobStatus

	SoftDelete SoftDelete

	Enrichment Enrichment
	Quality    Quality

	// RawMetadata carries normalizer.Unknown capture: raw
	// values the taxonomy normalizer dropped because they had no canonical
	// match, kept for reviewer promotion.
	RawMetadata RawMetadata

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UnknownValue is one raw value dropped by taxonomy normalization because it
// had no synonym or membership match.
type UnknownValue struct {
	Field string
	Value string
}

// RawMetadata is the job's JSON-stored extraction/normalization sidecar data.
type RawMetadata struct {
	Unknown []UnknownValue
}

// CompensationType enumerates how a parsed compensation figure is denominated.
type CompensationType string

const (
	CompensationSalary CompensationType = "salary"
	CompensationHourly CompensationType = "hourly"
	CompensationDaily  CompensationType = "daily"
	CompensationMonthly CompensationType = "monthly"
)

// Compensation is the structured result of parse_compensation (normalize.py),
// either read directly from structured source fields or parsed from free text.
type Compensation struct {
	Type       CompensationType
	MinAmount  *float64
	MaxAmount  *float64
	Currency   string
	USDMin     *float64
	USDMax     *float64
	Visible    bool
	Confidence float64
}

// IsDeleted reports whether the Job has been soft-deleted.
func (j *Job) IsDeleted() bool {
	return j.SoftDelete.DeletedAt != nil
}

// Restore clears a Job's soft-delete state. Callers are responsible for
// persisting the change and for treating the resulting upsert as an
// "inserted" count, not an "updated" one.
func (j *Job) Restore() {
	j.SoftDelete = SoftDelete{}
	j.Status = JobStatusActive
}

// Validate checks structural invariants of a Job before persistence.
func (j *Job) Validate() error {
	if j.SourceID == 0 {
		return &ValidationError{Field: "source_id", Message: "is required"}
	}
	if j.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if j.ApplyURL == "" {
		return &ValidationError{Field: "apply_url", Message: "is required"}
	}
	if err := ValidateURL(j.ApplyURL); err != nil {
		return err
	}
	if j.CanonicalHash == "" {
		return &ValidationError{Field: "canonical_hash", Message: "is required"}
	}
	switch j.Status {
	case "":
		j.Status = JobStatusActive
	case JobStatusActive, JobStatusStale, JobStatusDeleted:
	default:
		return &ValidationError{Field: "status", Message: "invalid status"}
	}
	return nil
}
