// Package llm provides the enrichment engine's AI call: a provider-agnostic
// classifier interface with Anthropic and OpenAI/OpenRouter implementations,
// wrapped in a shared circuit breaker, response cache, and per-run call
// budget.
package llm

import "context"

// ClassifyRequest is one enrichment call: a job's normalized text plus the
// fixed prompt instructions for the classification task being requested.
type ClassifyRequest struct {
	// CacheKey identifies this request for the response cache, normally a
	// hash of (prompt version, job title, job description).
	CacheKey string
	Prompt   string
}

// ClassifyResponse is the raw JSON text returned by the model, parsed by the
// enrichment engine into impact domains, functional roles, and SDGs.
type ClassifyResponse struct {
	RawJSON string
}

// Provider is implemented by each backing AI service.
type Provider interface {
	Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error)
	Name() string
}
