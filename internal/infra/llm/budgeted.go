package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sony/gobreaker"

	"aidjobs-crawler/internal/resilience/circuitbreaker"
	"aidjobs-crawler/internal/resilience/retry"
)

// ErrBudgetExhausted is returned once a run's AI_EXTRACTION_MAX_CALLS limit
// has been spent; callers fall back to non-AI confidence
// sources for any field still unresolved.
var ErrBudgetExhausted = errors.New("llm: per-run call budget exhausted")

// BudgetedProvider wraps a Provider with the three layers every LLM call
// goes through: a per-run call budget, an in-process
// response cache keyed by ClassifyRequest.CacheKey, and a circuit breaker
// that opens after a burst of failures so a single bad deploy of the
// upstream API doesn't stall every crawl behind full retry budgets.
type BudgetedProvider struct {
	inner   Provider
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config

	mu        sync.Mutex
	maxCalls  int
	callsUsed int
	cache     map[string]ClassifyResponse
}

func NewBudgetedProvider(inner Provider, maxCalls int) *BudgetedProvider {
	return &BudgetedProvider{
		inner:    inner,
		breaker:  circuitbreaker.New(circuitbreaker.LLMBreakerConfig()),
		retry:    retry.AIAPIConfig(),
		maxCalls: maxCalls,
		cache:    make(map[string]ClassifyResponse),
	}
}

// ResetBudget is called once per orchestrator scheduling tick.
func (b *BudgetedProvider) ResetBudget() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callsUsed = 0
}

func (b *BudgetedProvider) Name() string { return b.inner.Name() }

func (b *BudgetedProvider) Classify(ctx context.Context, req ClassifyRequest) (ClassifyResponse, error) {
	if req.CacheKey != "" {
		b.mu.Lock()
		cached, ok := b.cache[req.CacheKey]
		b.mu.Unlock()
		if ok {
			return cached, nil
		}
	}

	b.mu.Lock()
	if b.maxCalls > 0 && b.callsUsed >= b.maxCalls {
		b.mu.Unlock()
		return ClassifyResponse{}, ErrBudgetExhausted
	}
	b.callsUsed++
	b.mu.Unlock()

	var result ClassifyResponse
	retryErr := retry.WithBackoff(ctx, b.retry, func() error {
		cbResult, err := b.breaker.Execute(func() (interface{}, error) {
			return b.inner.Classify(ctx, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("llm circuit breaker open, request rejected",
					slog.String("provider", b.inner.Name()))
				return fmt.Errorf("llm provider unavailable: circuit breaker open")
			}
			return err
		}
		result = cbResult.(ClassifyResponse)
		return nil
	})
	if retryErr != nil {
		return ClassifyResponse{}, fmt.Errorf("llm classify failed after retries: %w", retryErr)
	}

	if req.CacheKey != "" {
		b.mu.Lock()
		b.cache[req.CacheKey] = result
		b.mu.Unlock()
	}
	return result, nil
}
