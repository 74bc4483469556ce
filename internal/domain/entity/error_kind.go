package entity

import "fmt"

// ErrorKind classifies a crawl/extraction failure for retry and status-
// reporting purposes.
type ErrorKind string

const (
	// ErrorKindTransient covers 5xx responses, timeouts, and network errors,
	// eligible for the fetcher's retry budget.
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindPermanent covers 4xx responses other than 429, never retried.
	ErrorKindPermanent ErrorKind = "permanent"
	// ErrorKindRateLimited covers 429 and robots/rate-limit backoff.
	ErrorKindRateLimited ErrorKind = "rate_limited"
	// ErrorKindNotModified covers a conditional GET's 304 response.
	ErrorKindNotModified ErrorKind = "not_modified"
	// ErrorKindParse covers a fetch that succeeded but whose body could not
	// be parsed by any cascade stage.
	ErrorKindParse ErrorKind = "parse"
	// ErrorKindBlocked covers a disallowed robots.txt rule.
	ErrorKindBlocked ErrorKind = "blocked"
)

// CrawlError wraps an underlying error with its ErrorKind so callers can
// branch on classification with errors.As instead of string matching.
type CrawlError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *CrawlError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *CrawlError) Unwrap() error { return e.Err }

// Retryable reports whether the fetcher's retry budget should be spent on
// this error.
func (e *CrawlError) Retryable() bool {
	return e.Kind == ErrorKindTransient || e.Kind == ErrorKindRateLimited
}
