package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/pkg/ratelimit"
)

// APIFetcher drives a v1 api-kind Source configuration: it authenticates,
// paginates, and walks each page's data_path to produce raw field maps that
// the extraction pipeline feeds in at FieldSourceAPI confidence.
type APIFetcher struct {
	client  *http.Client
	limiter *HostLimiter
	config  ContentFetchConfig

	// throttle enforces each source's own throttle{requests_per_minute,
	// burst} block on top of the per-host limiter.
	throttle *ratelimit.TokenBucketAlgorithm

	// oauth caches client-credentials tokens per token endpoint.
	oauth *oauth2Cache
}

func NewAPIFetcher(config ContentFetchConfig, limiter *HostLimiter) *APIFetcher {
	return &APIFetcher{
		config:   config,
		limiter:  limiter,
		throttle: ratelimit.NewTokenBucketAlgorithm(nil),
		oauth:    newOAuth2Cache(),
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

// waitThrottle blocks until cfg's own throttle admits one request. The
// bucket holds Burst tokens and refills at RequestsPerMinute; the window
// passed to the algorithm is sized so refill = burst/window = rpm/60.
func (f *APIFetcher) waitThrottle(ctx context.Context, cfg *entity.APIConfig) error {
	t := cfg.Throttle
	if t == nil || t.RequestsPerMinute <= 0 {
		return nil
	}
	burst := t.Burst
	if burst <= 0 {
		burst = 1
	}
	rps := float64(t.RequestsPerMinute) / 60.0
	window := time.Duration(float64(burst) / rps * float64(time.Second))

	for {
		decision, err := f.throttle.IsAllowed(ctx, cfg.BaseURL, burst, window)
		if err != nil {
			return err
		}
		if decision.Allowed {
			return nil
		}
		wait := decision.RetryAfter
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// FetchItems retrieves every page of cfg, stopping at MaxPages (default 1),
// at the first page whose data_path is empty or not an array (whether or not
// UntilEmpty is set), or when a cursor walk returns no next cursor. It returns
// the items already mapped through cfg.Map and cfg.Transforms; secretResolver
// expands secret placeholders in the query, headers, auth and body. since,
// when non-nil, populates cfg.Since's filter parameter.
func (f *APIFetcher) FetchItems(ctx context.Context, cfg *entity.APIConfig, since *time.Time, secretResolver func(ref string) string) ([]map[string]string, error) {
	if err := validateURL(cfg.BaseURL, f.config.DenyPrivateIPs); err != nil {
		return nil, err
	}

	maxPages := 1
	pageSize := 0
	untilEmpty := false
	if cfg.Pagination != nil {
		if cfg.Pagination.MaxPages > 0 {
			maxPages = cfg.Pagination.MaxPages
		}
		pageSize = cfg.Pagination.PageSize
		untilEmpty = cfg.Pagination.UntilEmpty
	}

	var allMapped []map[string]string
	page := 1
	offset := 0
	cursor := ""

	for page <= maxPages {
		rawURL, err := f.buildURL(cfg, page, offset, pageSize, cursor, since, secretResolver)
		if err != nil {
			return nil, err
		}
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
		if err := f.waitThrottle(ctx, cfg); err != nil {
			return nil, err
		}

		body, err := f.retryAPIRequest(ctx, cfg, rawURL, secretResolver)
		if err != nil {
			return nil, err
		}

		items := gjson.GetBytes(body, bracketIndexRe.ReplaceAllString(cfg.DataPath, ".$1"))
		if !items.IsArray() {
			break
		}
		results := items.Array()
		if len(results) == 0 {
			break
		}
		for _, item := range results {
			allMapped = append(allMapped, mapItem(item, cfg))
		}

		if untilEmpty && len(results) == 0 {
			break
		}
		if cfg.Pagination == nil {
			break
		}
		if cfg.Pagination.Kind == entity.APIPaginationCursor {
			cursor = gjson.GetBytes(body,
				bracketIndexRe.ReplaceAllString(cfg.Pagination.CursorPath, ".$1")).String()
			// No next cursor means the walk is complete.
			if cursor == "" {
				break
			}
		}
		page++
		offset += pageSize
	}

	return allMapped, nil
}

func (f *APIFetcher) buildURL(cfg *entity.APIConfig, page, offset, pageSize int, cursor string, since *time.Time, secretResolver func(string) string) (string, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	q := u.Query()
	for k, v := range cfg.Query {
		q.Set(k, resolveSecret(v, secretResolver))
	}
	if cfg.Auth.Kind == entity.APIAuthQuery {
		q.Set(cfg.Auth.Name, resolveSecret(cfg.Auth.Token, secretResolver))
	}
	if cfg.Pagination != nil {
		switch cfg.Pagination.Kind {
		case entity.APIPaginationPage:
			q.Set(cfg.Pagination.Param, strconv.Itoa(page))
		case entity.APIPaginationOffset:
			q.Set(cfg.Pagination.Param, strconv.Itoa(offset))
		case entity.APIPaginationCursor:
			// The first page carries no cursor parameter.
			if cursor != "" {
				q.Set(cfg.Pagination.Param, cursor)
			}
		}
		if cfg.Pagination.SizeParam != "" && cfg.Pagination.PageSize > 0 {
			q.Set(cfg.Pagination.SizeParam, strconv.Itoa(cfg.Pagination.PageSize))
		}
	}
	if cfg.Since != nil && since != nil {
		q.Set(cfg.Since.Field, formatSince(*since, cfg.Since.Format))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatSince(t time.Time, format entity.APISinceFormat) string {
	switch format {
	case entity.APISinceUnix:
		return strconv.FormatInt(t.Unix(), 10)
	case entity.APISinceUnixMS:
		return strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return t.UTC().Format(time.RFC3339)
	}
}

func (f *APIFetcher) doRequest(ctx context.Context, cfg *entity.APIConfig, rawURL string, secretResolver func(string) string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if cfg.Body != "" {
		bodyReader = strings.NewReader(resolveSecret(cfg.Body, secretResolver))
	}

	req, err := http.NewRequestWithContext(reqCtx, cfg.Method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, resolveSecret(v, secretResolver))
	}

	switch cfg.Auth.Kind {
	case entity.APIAuthHeader:
		req.Header.Set(cfg.Auth.Name, resolveSecret(cfg.Auth.Token, secretResolver))
	case entity.APIAuthBearer:
		req.Header.Set("Authorization", "Bearer "+resolveSecret(cfg.Auth.Token, secretResolver))
	case entity.APIAuthBasic:
		req.SetBasicAuth(cfg.Auth.User, resolveSecret(cfg.Auth.Pass, secretResolver))
	case entity.APIAuthOAuth2CC:
		token, err := f.oauth.Token(reqCtx, f.client,
			cfg.Auth.TokenURL,
			resolveSecret(cfg.Auth.ClientID, secretResolver),
			resolveSecret(cfg.Auth.ClientSecret, secretResolver),
			cfg.Auth.Scope)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, f.config.Timeout)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if len(cfg.SuccessCodes) > 0 {
		ok := false
		for _, c := range cfg.SuccessCodes {
			if resp.StatusCode == c {
				ok = true
				break
			}
		}
		if !ok {
			return nil, categorizeAPIStatus(resp.StatusCode)
		}
	} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, categorizeAPIStatus(resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read api response: %w", err)
	}
	if int64(len(body)) > f.config.MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(body))
	}
	return body, nil
}

// bracketIndexRe rewrites "links[0].apply"-style configuration paths into
// gjson's "links.0.apply" form.
var bracketIndexRe = regexp.MustCompile(`\[(\d+)\]`)

// mapItem applies cfg.Map (target field -> dotted path with optional [n]
// indexing within item) and then cfg.Transforms for each mapped field.
func mapItem(item gjson.Result, cfg *entity.APIConfig) map[string]string {
	out := make(map[string]string, len(cfg.Map))
	for field, path := range cfg.Map {
		val := item.Get(bracketIndexRe.ReplaceAllString(path, ".$1"))
		s := val.String()
		if steps, ok := cfg.Transforms[field]; ok {
			s = applyTransforms(s, val, steps)
		}
		out[field] = s
	}
	return out
}

func applyTransforms(s string, raw gjson.Result, steps []entity.APITransform) string {
	for _, step := range steps {
		switch step.Op {
		case "lower":
			s = strings.ToLower(s)
		case "upper":
			s = strings.ToUpper(s)
		case "strip":
			s = strings.TrimSpace(s)
		case "join":
			parts := make([]string, 0)
			for _, r := range raw.Array() {
				parts = append(parts, r.String())
			}
			sep := step.Sep
			if sep == "" {
				sep = ","
			}
			s = strings.Join(parts, sep)
		case "first":
			if arr := raw.Array(); len(arr) > 0 {
				s = arr[0].String()
			}
		case "map_table":
			if mapped, ok := step.MapTable[s]; ok {
				s = mapped
			}
		case "default":
			if s == "" {
				s = step.Default
			}
		case "date_parse":
			// Value is normalized downstream by the extraction pipeline;
			// here we only ensure a consistent string form is passed along.
			s = strings.TrimSpace(s)
		}
	}
	return s
}

// categorizeAPIStatus maps an unexpected response code to its error
// category. First-page failures
// surface as the crawl's fatal error with this category in the message.
func categorizeAPIStatus(code int) error {
	var category string
	switch {
	case code == 401:
		category = "authentication"
	case code == 403:
		category = "authorization"
	case code == 404:
		category = "not_found"
	case code == 429:
		category = "rate_limit"
	case code >= 500:
		category = "server_error"
	default:
		category = "client_error"
	}
	return fmt.Errorf("api fetch: %s (HTTP %d)", category, code)
}

// retryAPIRequest wraps one page request in the source's own retry budget;
// only rate_limit and server_error categories and request timeouts re-enter
// the loop.
func (f *APIFetcher) retryAPIRequest(ctx context.Context, cfg *entity.APIConfig, rawURL string, secretResolver func(string) string) ([]byte, error) {
	maxRetries := 0
	backoff := time.Second
	if cfg.Retry != nil {
		maxRetries = cfg.Retry.MaxRetries
		if cfg.Retry.BackoffMS > 0 {
			backoff = time.Duration(cfg.Retry.BackoffMS) * time.Millisecond
		}
	}

	var body []byte
	var err error
	for attempt := 0; ; attempt++ {
		body, err = f.doRequest(ctx, cfg, rawURL, secretResolver)
		if err == nil || attempt >= maxRetries || !isRetryableAPIError(err) {
			return body, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func isRetryableAPIError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "server_error") ||
		strings.Contains(msg, "timed out")
}

// resolveSecret expands a "{{SECRET:NAME}}" placeholder via resolver, or
// returns v unchanged when it carries no placeholder or resolver is nil.
func resolveSecret(v string, resolver func(string) string) string {
	if resolver == nil || !strings.HasPrefix(v, "{{SECRET:") || !strings.HasSuffix(v, "}}") {
		return v
	}
	name := strings.TrimSuffix(strings.TrimPrefix(v, "{{SECRET:"), "}}")
	return resolver(name)
}
