// Package requestid generates and propagates per-crawl correlation IDs.
// Every orchestrator-initiated crawl gets one ID that appears on every log
// line the crawl produces, so one source's run can be traced across fetch,
// extraction, normalization, and storage log entries.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// New returns a fresh correlation ID (UUID v4).
func New() string {
	return uuid.NewString()
}

// WithRequestID returns a child context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the correlation ID carried by ctx, or "" when none was
// set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
