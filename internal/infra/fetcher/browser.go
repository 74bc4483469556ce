package fetcher

import (
	"context"
	"errors"
)

// ErrBrowserRenderingUnavailable is returned by NoopBrowserRenderer, and by
// any BrowserRenderer implementation asked to render a host outside its
// allowlist.
var ErrBrowserRenderingUnavailable = errors.New("fetcher: browser rendering not configured")

// BrowserRenderer renders a URL in a headless browser and returns the
// post-render HTML, for sources whose listings are populated by
// client-side JavaScript and so are invisible to a plain HTTP GET.
type BrowserRenderer interface {
	Render(ctx context.Context, rawURL string) (html string, err error)
}

// NoopBrowserRenderer is the default BrowserRenderer: it always reports
// unavailability. Operators wire in a real implementation (e.g. a
// chromedp-backed one) only for the specific hosts that need it; most
// sources never reach this fallback because the plugin/heuristic stages
// extract enough from the raw HTML.
type NoopBrowserRenderer struct{}

func (NoopBrowserRenderer) Render(ctx context.Context, rawURL string) (string, error) {
	return "", ErrBrowserRenderingUnavailable
}
