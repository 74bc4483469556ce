package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SourceKind identifies how a Source is fetched.
type SourceKind string

const (
	SourceKindHTML SourceKind = "html"
	SourceKindRSS  SourceKind = "rss"
	SourceKindAPI  SourceKind = "api"
)

// SourceStatus gates whether a Source is eligible for scheduling.
type SourceStatus string

const (
	SourceStatusActive SourceStatus = "active"
	SourceStatusPaused SourceStatus = "paused"
)

// OrgType seeds a Source's default cadence when CadenceDays is unset.
type OrgType string

const (
	OrgTypeUN      OrgType = "un"
	OrgTypeINGO    OrgType = "ingo"
	OrgTypeNGO     OrgType = "ngo"
	OrgTypeAcademic OrgType = "academic"
	OrgTypePrivate OrgType = "private"
)

// DefaultCadenceDays maps an OrgType to its default cadence in days.
// Unknown org types fall back to 3.
var DefaultCadenceDays = map[OrgType]float64{
	OrgTypeUN:       1,
	OrgTypeINGO:     2,
	OrgTypeNGO:      3,
	OrgTypeAcademic: 7,
	OrgTypePrivate:  5,
}

const defaultOrgCadenceDays = 3

// CrawlStatus is the outcome of a single source crawl, persisted on both the
// Source row (last_crawl_status) and the CrawlLog.
type CrawlStatus string

const (
	CrawlStatusOK   CrawlStatus = "ok"
	CrawlStatusWarn CrawlStatus = "warn"
	CrawlStatusFail CrawlStatus = "fail"
)

// Source is a polled origin of jobs.
type Source struct {
	ID       int64
	OrgName  string
	BaseURL  string
	Kind     SourceKind
	// ParserHint is a CSS selector for html-kind sources, or nil.
	ParserHint *string
	// APIConfig is the versioned JSON configuration for api-kind sources.
	APIConfig *APIConfig
	OrgType   OrgType
	Status    SourceStatus

	// CadenceDays is the configured base cadence; nil means "use the
	// OrgType default".
	CadenceDays *float64
	// CronExpr optionally overrides the plain day-cadence with a cron
	// expression (e.g. a source whose postings only appear on weekday
	// mornings); when set, NextRunFromCron takes precedence over the
	// adaptive-cadence calculation in orchestrator.ComputeNextRun.
	CronExpr *string

	// ETag and LastModified cache the validators from the last successful
	// fetch, sent back as If-None-Match / If-Modified-Since so unchanged
	// pages short-circuit with a 304.
	ETag         string
	LastModified string

	LastCrawledAt      *time.Time
	LastCrawlStatus    CrawlStatus
	LastCrawlMessage   string
	ConsecutiveFailures int
	ConsecutiveNoChange int
	NextRunAt          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BaseCadence returns the source's configured cadence, falling back to the
// org-type default.
func (s *Source) BaseCadence() float64 {
	if s.CadenceDays != nil && *s.CadenceDays > 0 {
		return *s.CadenceDays
	}
	if d, ok := DefaultCadenceDays[s.OrgType]; ok {
		return d
	}
	return defaultOrgCadenceDays
}

// Eligible reports whether the source may be selected by the scheduler tick.
func (s *Source) Eligible(now time.Time) bool {
	if s.Status != SourceStatusActive {
		return false
	}
	return s.NextRunAt == nil || !s.NextRunAt.After(now)
}

// Validate checks structural invariants of a Source before persistence.
func (s *Source) Validate() error {
	if s.OrgName == "" {
		return &ValidationError{Field: "org_name", Message: "is required"}
	}
	if s.BaseURL == "" {
		return &ValidationError{Field: "base_url", Message: "is required"}
	}
	if err := ValidateURL(s.BaseURL); err != nil {
		return fmt.Errorf("validate base url: %w", err)
	}

	switch s.Kind {
	case "":
		s.Kind = SourceKindHTML
	case SourceKindHTML, SourceKindRSS, SourceKindAPI:
	default:
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("invalid kind %q", s.Kind)}
	}

	if s.Kind == SourceKindAPI && s.APIConfig == nil {
		return &ValidationError{Field: "api_config", Message: "is required for api-kind sources"}
	}
	if s.Kind == SourceKindAPI {
		if err := s.APIConfig.Validate(); err != nil {
			return fmt.Errorf("validate api_config: %w", err)
		}
	}

	switch s.Status {
	case "":
		s.Status = SourceStatusActive
	case SourceStatusActive, SourceStatusPaused:
	default:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", s.Status)}
	}

	return nil
}

// APIAuthKind enumerates the authentication strategies an api-kind Source's
// configuration can declare.
type APIAuthKind string

const (
	APIAuthNone       APIAuthKind = "none"
	APIAuthHeader     APIAuthKind = "header"
	APIAuthQuery      APIAuthKind = "query"
	APIAuthBearer     APIAuthKind = "bearer"
	APIAuthBasic      APIAuthKind = "basic"
	APIAuthOAuth2CC   APIAuthKind = "oauth2_client_credentials"
)

// APIAuth describes how the API fetcher authenticates a request.
type APIAuth struct {
	Kind APIAuthKind `json:"kind"`

	Name  string `json:"name,omitempty"`  // header/query param name
	Token string `json:"token,omitempty"` // may contain {{SECRET:NAME}}

	User string `json:"user,omitempty"`
	Pass string `json:"pass,omitempty"`

	TokenURL     string `json:"token_url,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// APIPaginationKind enumerates pagination strategies.
type APIPaginationKind string

const (
	APIPaginationOffset APIPaginationKind = "offset"
	APIPaginationPage   APIPaginationKind = "page"
	APIPaginationCursor APIPaginationKind = "cursor"
)

// APIPagination configures how the API fetcher pages through results.
type APIPagination struct {
	Kind      APIPaginationKind `json:"kind"`
	Param     string            `json:"param"`
	SizeParam string            `json:"size_param,omitempty"`
	PageSize  int               `json:"page_size,omitempty"`
	// CursorPath is the dotted path to the next-page cursor in each
	// response body; required for cursor-kind pagination, where an empty
	// cursor ends the walk.
	CursorPath string `json:"cursor_path,omitempty"`
	MaxPages   int    `json:"max_pages,omitempty"`
	UntilEmpty bool   `json:"until_empty,omitempty"`
}

// APISinceFormat enumerates the incremental-filter timestamp encodings.
type APISinceFormat string

const (
	APISinceISO8601 APISinceFormat = "iso8601"
	APISinceUnix    APISinceFormat = "unix"
	APISinceUnixMS  APISinceFormat = "unix_ms"
)

// APISince configures the incremental "since last success" filter.
type APISince struct {
	Field       string         `json:"field"`
	Format      APISinceFormat `json:"format"`
	FallbackDays int           `json:"fallback_days,omitempty"`
}

// APITransform is a single per-field transform step.
type APITransform struct {
	Op        string            `json:"op"` // lower|upper|strip|join|first|map_table|default|date_parse
	Sep       string            `json:"sep,omitempty"`
	MapTable  map[string]string `json:"map_table,omitempty"`
	Default   string            `json:"default,omitempty"`
	DateParse APISinceFormat    `json:"date_parse,omitempty"`
}

// APIRetry configures the API fetcher's own retry knobs (layered on top of
// the transport-level retry budget in internal/resilience/retry).
type APIRetry struct {
	MaxRetries int `json:"max_retries"`
	BackoffMS  int `json:"backoff_ms"`
}

// APIThrottle configures the API fetcher's per-source rate limit.
type APIThrottle struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	Burst             int `json:"burst"`
}

// APIConfig is the v1 JSON schema for api-kind sources.
type APIConfig struct {
	V int `json:"v"`

	BaseURL string            `json:"base_url"`
	Path    string            `json:"path"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    string            `json:"body,omitempty"`

	Auth       APIAuth                  `json:"auth"`
	Pagination *APIPagination            `json:"pagination,omitempty"`
	Since      *APISince                 `json:"since,omitempty"`
	DataPath   string                    `json:"data_path"`
	Map        map[string]string         `json:"map"`
	Transforms map[string][]APITransform `json:"transforms,omitempty"`

	SuccessCodes []int       `json:"success_codes,omitempty"`
	Retry        *APIRetry   `json:"retry,omitempty"`
	Throttle     *APIThrottle `json:"throttle,omitempty"`
}

// Validate checks the API configuration's structural invariants:
// "v":1 mandatory, data_path and map required.
func (c *APIConfig) Validate() error {
	if c == nil {
		return errors.New("api config is nil")
	}
	if c.V != 1 {
		return &ValidationError{Field: "v", Message: "must be 1"}
	}
	if c.BaseURL == "" {
		return &ValidationError{Field: "base_url", Message: "is required"}
	}
	if c.Method == "" {
		c.Method = "GET"
	}
	switch c.Method {
	case "GET", "POST", "PUT":
	default:
		return &ValidationError{Field: "method", Message: fmt.Sprintf("unsupported method %q", c.Method)}
	}
	if c.DataPath == "" {
		return &ValidationError{Field: "data_path", Message: "is required"}
	}
	if len(c.Map) == 0 {
		return &ValidationError{Field: "map", Message: "must declare at least one field mapping"}
	}
	switch c.Auth.Kind {
	case "", APIAuthNone, APIAuthHeader, APIAuthQuery, APIAuthBearer, APIAuthBasic, APIAuthOAuth2CC:
	default:
		return &ValidationError{Field: "auth.kind", Message: fmt.Sprintf("unknown auth kind %q", c.Auth.Kind)}
	}
	if p := c.Pagination; p != nil {
		switch p.Kind {
		case APIPaginationOffset, APIPaginationPage:
			if p.Param == "" {
				return &ValidationError{Field: "pagination.param", Message: "is required"}
			}
		case APIPaginationCursor:
			if p.Param == "" || p.CursorPath == "" {
				return &ValidationError{Field: "pagination", Message: "cursor pagination requires param and cursor_path"}
			}
		default:
			return &ValidationError{Field: "pagination.kind", Message: fmt.Sprintf("unknown pagination kind %q", p.Kind)}
		}
	}
	return nil
}

// ParseAPIConfig decodes and validates a v1 API source configuration.
func ParseAPIConfig(raw []byte) (*APIConfig, error) {
	var cfg APIConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse api config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
