// Package geo resolves raw location text into country/ISO code/city/
// coordinates and detects remote arrangements, for the pre-upsert transform
// stage. Geocoding is best-effort: every failure path returns a zero result,
// never an error that blocks the upsert.
package geo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"aidjobs-crawler/internal/resilience/circuitbreaker"
)

// Result is the structured location a geocode produced.
type Result struct {
	Country     string  `json:"country"`
	CountryISO2 string  `json:"country_iso2"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Remote      bool    `json:"remote"`
	Found       bool    `json:"found"`
}

// Geocoder resolves free-text locations.
type Geocoder interface {
	Geocode(ctx context.Context, location string) Result
}

// remoteMarkers short-circuit geocoding entirely: these postings have no
// duty station.
var remoteMarkers = []string{
	"remote", "home-based", "home based", "telecommute", "work from home",
	"anywhere",
}

// IsRemote reports whether the raw location text names a remote arrangement
// rather than a place.
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	for _, m := range remoteMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// NominatimGeocoder queries the OSM Nominatim API with a disk cache in
// front, and an optional fallback Geocoder (e.g. a Google-backed one) tried
// when Nominatim returns nothing. Nominatim's usage policy caps anonymous
// clients at one request per second; the limiter enforces that process-wide.
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *circuitbreaker.CircuitBreaker
	cacheDir  string
	fallback  Geocoder

	mu sync.Mutex // serializes cache writes; reads are lock-free file reads
}

// NewNominatim builds a geocoder caching under cacheDir. fallback may be nil.
func NewNominatim(cacheDir, userAgent string, fallback Geocoder) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:   "https://nominatim.openstreetmap.org",
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		breaker:   circuitbreaker.New(circuitbreaker.GeocoderConfig()),
		cacheDir:  cacheDir,
		fallback:  fallback,
	}
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, location string) Result {
	location = strings.TrimSpace(location)
	if location == "" {
		return Result{}
	}
	if IsRemote(location) {
		return Result{Remote: true, Found: true}
	}

	if cached, ok := g.readCache(location); ok {
		return cached
	}

	var result Result
	// The breaker keeps a Nominatim outage from burning the 1 req/s budget;
	// open-circuit calls fall straight through to the fallback.
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.query(ctx, location)
	})
	if err == nil {
		result = out.(Result)
	}
	if !result.Found && g.fallback != nil {
		result = g.fallback.Geocode(ctx, location)
	}
	// Genuine misses are cached too: re-querying a location Nominatim has
	// never heard of on every crawl would burn the rate budget for nothing.
	// Transport failures are not cached, so the location is retried once the
	// outage passes.
	if err == nil || result.Found {
		g.writeCache(location, result)
	}
	return result
}

type nominatimPlace struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// query hits the Nominatim search endpoint. Transport and HTTP failures are
// returned as errors so the breaker counts them; an empty match list is a
// successful lookup with Found=false.
func (g *NominatimGeocoder) query(ctx context.Context, location string) (Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&addressdetails=1&limit=1",
		g.baseURL, url.QueryEscape(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("nominatim: HTTP %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return Result{}, err
	}
	if len(places) == 0 {
		return Result{}, nil
	}

	p := places[0]
	result := Result{
		Country:     p.Address.Country,
		CountryISO2: strings.ToUpper(p.Address.CountryCode),
		City:        firstNonEmpty(p.Address.City, p.Address.Town, p.Address.Village),
		Found:       true,
	}
	fmt.Sscanf(p.Lat, "%f", &result.Lat)
	fmt.Sscanf(p.Lon, "%f", &result.Lon)
	return result, nil
}

func (g *NominatimGeocoder) cachePath(location string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(location)))
	return filepath.Join(g.cacheDir, hex.EncodeToString(sum[:])+".json")
}

func (g *NominatimGeocoder) readCache(location string) (Result, bool) {
	if g.cacheDir == "" {
		return Result{}, false
	}
	data, err := os.ReadFile(g.cachePath(location))
	if err != nil {
		return Result{}, false
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, false
	}
	return r, true
}

func (g *NominatimGeocoder) writeCache(location string, r Result) {
	if g.cacheDir == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := os.MkdirAll(g.cacheDir, 0o755); err != nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	_ = os.WriteFile(g.cachePath(location), data, 0o644)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NoopGeocoder never resolves anything; used when geocoding is disabled.
type NoopGeocoder struct{}

func (NoopGeocoder) Geocode(ctx context.Context, location string) Result {
	return Result{Remote: IsRemote(location), Found: IsRemote(location)}
}
