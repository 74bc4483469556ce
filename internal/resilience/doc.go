// Package resilience provides reliability and fault tolerance patterns for
// the crawl fleet. It includes circuit breakers and retry logic to keep the
// fleet making progress when dependencies fail.
//
// The package supports:
//   - Circuit breakers for external calls (LLM providers, geocoding, the database)
//   - Retry logic with exponential backoff and jitter for the crawl transport
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("my-service"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callExternalService()
//	})
//
//	retryConfig := retry.DefaultConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience
