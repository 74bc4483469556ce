package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrRobotsDisallowed is the policy error surfaced when a host's robots.txt
// forbids the requested path; the orchestrator reports it as a crawl failure
// with a clear message and never retries it within the tick.
var ErrRobotsDisallowed = errors.New("fetcher: disallowed by robots.txt")

// robotsEntry caches one host's parsed disallow rules for the crawler's
// user agent, refreshed every robotsCacheTTL.
type robotsEntry struct {
	fetchedAt  time.Time
	disallow   []string
	crawlDelay time.Duration
	allowAll   bool
}

const robotsCacheTTL = 24 * time.Hour

// RobotsCache enforces robots.txt disallow rules, one fetch per host per TTL.
// A fetch failure (network error, non-200, or a robots.txt with no rules for
// our agent) is treated as "allow everything": robots.txt is advisory and
// crawlers should not stop working because a host's robots.txt is briefly
// unreachable.
type RobotsCache struct {
	client    *http.Client
	userAgent string

	mu    sync.Mutex
	hosts map[string]*robotsEntry
}

// NewRobotsCache builds a cache that issues its own robots.txt fetches with
// client, identifying itself as userAgent.
func NewRobotsCache(client *http.Client, userAgent string) *RobotsCache {
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		hosts:     make(map[string]*robotsEntry),
	}
}

// Allowed reports whether rawURL's path may be fetched under host's cached
// robots.txt, fetching and caching it first if the cache entry is missing or
// stale.
func (c *RobotsCache) Allowed(ctx context.Context, rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return true
	}
	entry := c.entryFor(ctx, host)
	if entry.allowAll {
		return true
	}
	path := pathOf(rawURL)
	for _, prefix := range entry.disallow {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

func (c *RobotsCache) entryFor(ctx context.Context, host string) *robotsEntry {
	c.mu.Lock()
	entry, ok := c.hosts[host]
	c.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < robotsCacheTTL {
		return entry
	}

	entry = c.fetch(ctx, host)

	c.mu.Lock()
	c.hosts[host] = entry
	c.mu.Unlock()
	return entry
}

func (c *RobotsCache) fetch(ctx context.Context, host string) *robotsEntry {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+host+"/robots.txt", nil)
	if err != nil {
		return &robotsEntry{fetchedAt: time.Now(), allowAll: true}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return &robotsEntry{fetchedAt: time.Now(), allowAll: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &robotsEntry{fetchedAt: time.Now(), allowAll: true}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return &robotsEntry{fetchedAt: time.Now(), allowAll: true}
	}

	disallow, crawlDelay := parseRules(string(body), c.userAgent)
	return &robotsEntry{
		fetchedAt:  time.Now(),
		disallow:   disallow,
		crawlDelay: crawlDelay,
	}
}

// CrawlDelay returns the host's cached Crawl-delay directive, or zero.
func (c *RobotsCache) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	host := hostOf(rawURL)
	if host == "" {
		return 0
	}
	return c.entryFor(ctx, host).crawlDelay
}

// parseRules extracts the Disallow prefixes and Crawl-delay that apply to
// userAgent or "*". Allow overrides and sitemap directives are ignored.
func parseRules(body, userAgent string) ([]string, time.Duration) {
	var disallow []string
	var crawlDelay time.Duration
	applies := false
	agentLower := strings.ToLower(userAgent)

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch key {
		case "user-agent":
			ua := strings.ToLower(value)
			applies = ua == "*" || strings.Contains(agentLower, ua)
		case "disallow":
			if applies && value != "" {
				disallow = append(disallow, value)
			}
		case "crawl-delay":
			if applies {
				if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
					crawlDelay = time.Duration(seconds * float64(time.Second))
				}
			}
		}
	}
	return disallow, crawlDelay
}

// parseDisallow is kept for rule-only callers.
func parseDisallow(body, userAgent string) []string {
	disallow, _ := parseRules(body, userAgent)
	return disallow
}

func pathOf(rawURL string) string {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return rawURL
	}
	rest := rawURL[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return "/"
	}
	return rest[slash:]
}
