package extraction

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/plugin"
)

// titleSelectors locate a detail page's own heading when no plugin produced
// listing rows.
var titleSelectors = []string{
	"h1.job-title", ".job-title", ".position-title",
	"h1", "h2.job-title", "[class*=job-title]",
}

// extractDOM runs Stage 4: select the highest-priority site plugin that
// claims the page, record its listing rows (deduplicated by normalized
// apply URL), and, for detail pages, read the title off the page heading.
func extractDOM(registry *plugin.Registry, doc *goquery.Document, result *Result) {
	if registry != nil {
		if p := registry.Select(result.URL, doc); p != nil {
			pluginResult := p.Extract(doc, result.URL)
			result.Jobs, result.URLCollisions = dedupeCandidates(pluginResult.Jobs)
			if result.URLCollisions > 0 {
				slog.Debug("apply-url collisions on page",
					slog.String("url", result.URL),
					slog.String("plugin", p.Name()),
					slog.Int("collisions", result.URLCollisions))
			}
		}
	}

	for _, sel := range titleSelectors {
		title := strings.TrimSpace(doc.Find(sel).First().Text())
		if len(title) > 5 {
			result.SetField(FieldTitle, fieldResult(entity.FieldSourceDOM, title, title))
			break
		}
	}
}

// dedupeCandidates enforces per-page apply-URL uniqueness: no two extracted
// jobs from one page may share a normalized apply URL; the first row wins
// and later collisions are counted.
func dedupeCandidates(jobs []plugin.ExtractedJob) ([]Candidate, int) {
	seen := make(map[string]bool, len(jobs))
	var out []Candidate
	collisions := 0
	for _, j := range jobs {
		key := NormalizeApplyURL(j.ApplyURL)
		if key == "" {
			continue
		}
		if seen[key] {
			collisions++
			continue
		}
		seen[key] = true
		out = append(out, Candidate{Title: j.Title, ApplyURL: j.ApplyURL, RawText: j.RawText})
	}
	return out, collisions
}
