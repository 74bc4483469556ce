package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"aidjobs-crawler/internal/resilience/retry"
)

// FetchResult is the transport-level outcome of one HTTP fetch, before any
// content-type-specific parsing.
type FetchResult struct {
	StatusCode   int
	Body         []byte
	ContentType  string
	ETag         string
	LastModified string
	NotModified  bool
	FinalURL     string
	Truncated    bool
}

// HTTPFetcher performs validated, rate-limited, conditional GET requests
// shared by the HTML and RSS fetchers, and the place where their redirect
// validation, size capping, and robots enforcement happen. APIFetcher and
// ReadabilityFetcher use their own HTTP clients.
type HTTPFetcher struct {
	client  *http.Client
	limiter *HostLimiter
	robots  *RobotsCache
	config  ContentFetchConfig

	userAgent string
}

// NewHTTPFetcher builds the shared fetch primitive. userAgent is sent on
// every request and used to select applicable robots.txt rules.
func NewHTTPFetcher(config ContentFetchConfig, limiter *HostLimiter, robots *RobotsCache, userAgent string) *HTTPFetcher {
	f := &HTTPFetcher{
		limiter:   limiter,
		robots:    robots,
		config:    config,
		userAgent: userAgent,
	}
	f.client = &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			return validateURL(req.URL.String(), config.DenyPrivateIPs)
		},
	}
	return f
}

// Get fetches rawURL, honoring robots.txt, the per-host rate limiter, and
// conditional-GET headers. etag/lastModified may be empty; when the server
// replies 304, NotModified is set and Body is nil.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL, etag, lastModified string) (*FetchResult, error) {
	if err := validateURL(rawURL, f.config.DenyPrivateIPs); err != nil {
		return nil, err
	}
	if !f.robots.Allowed(ctx, rawURL) {
		return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
	}
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}
	// Honor the host's Crawl-delay on top of the token bucket.
	if delay := f.robots.CrawlDelay(ctx, rawURL); delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	// Transient failures (network errors, timeouts, 5xx) re-enter the retry
	// budget; 4xx responses never do. The final attempt's 5xx
	// still comes back as a plain FetchResult so the orchestrator can report
	// "HTTP 500" rather than a retry error.
	var result *FetchResult
	retryErr := retry.WithBackoff(ctx, retry.WebScraperConfig(), func() error {
		var attemptErr error
		result, attemptErr = f.doGet(ctx, rawURL, etag, lastModified)
		if attemptErr != nil {
			if errors.Is(attemptErr, ErrTimeout) {
				return &retry.HTTPError{StatusCode: http.StatusRequestTimeout, Message: rawURL}
			}
			return attemptErr
		}
		if result.StatusCode >= 500 {
			return &retry.HTTPError{StatusCode: result.StatusCode, Message: rawURL}
		}
		return nil
	})
	if retryErr != nil {
		var httpErr *retry.HTTPError
		if errors.As(retryErr, &httpErr) && result != nil {
			return result, nil
		}
		return nil, retryErr
	}
	return result, nil
}

func (f *HTTPFetcher) doGet(ctx context.Context, rawURL, etag, lastModified string) (*FetchResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, f.config.Timeout)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	result := &FetchResult{
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}

	if resp.StatusCode == http.StatusNotModified {
		result.NotModified = true
		return result, nil
	}

	limited := io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	// Oversized bodies are truncated and flagged rather than rejected outright
	// so a partially-readable page still reaches extraction.
	if int64(len(body)) > f.config.MaxBodySize {
		body = body[:f.config.MaxBodySize]
		result.Truncated = true
	}
	result.Body = body
	return result, nil
}
