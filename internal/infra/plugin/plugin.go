// Package plugin implements the site plugin registry used by the
// extraction pipeline's DOM stage: a priority-ordered set of extractors, the first of which
// whose CanHandle matches a page is invoked.
package plugin

import (
	"github.com/PuerkitoBio/goquery"
)

// ExtractedJob is one job listing pulled directly from a page's markup by a
// plugin, before the pipeline's normalization and dedup steps.
type ExtractedJob struct {
	Title    string
	ApplyURL string
	RawText  string
}

// Result is a plugin's extraction outcome for one page.
type Result struct {
	Jobs       []ExtractedJob
	Confidence float64
	Message    string
	Metadata   map[string]string
}

// Plugin is one site-specific (or generic) DOM extractor.
type Plugin interface {
	Name() string
	Priority() int
	CanHandle(url string, doc *goquery.Document) bool
	Extract(doc *goquery.Document, baseURL string) Result
}

// Registry holds every registered Plugin, sorted by descending priority.
type Registry struct {
	plugins []Plugin
}

// NewRegistry builds a Registry seeded with the built-in plugins (generic,
// UNDP, UNESCO, UNICEF, Amnesty, Save the Children), plus any extras passed
// in, sorted highest-priority first.
func NewRegistry(extra ...Plugin) *Registry {
	r := &Registry{}
	r.plugins = append(r.plugins, NewGenericPlugin(), NewUNDPPlugin(), NewOrgKeywordPlugin("unesco", []string{"unesco.org"}, 75),
		NewOrgKeywordPlugin("unicef", []string{"unicef.org"}, 75),
		NewOrgKeywordPlugin("amnesty", []string{"amnesty.org"}, 75),
		NewOrgKeywordPlugin("save_the_children", []string{"savethechildren"}, 75))
	r.plugins = append(r.plugins, extra...)
	r.sort()
	return r
}

func (r *Registry) sort() {
	for i := 1; i < len(r.plugins); i++ {
		for j := i; j > 0 && r.plugins[j-1].Priority() < r.plugins[j].Priority(); j-- {
			r.plugins[j-1], r.plugins[j] = r.plugins[j], r.plugins[j-1]
		}
	}
}

// Select returns the first (highest-priority) plugin that can handle url,
// falling back to the generic plugin if nothing more specific matches
// (the generic plugin's CanHandle always returns true, so Select never
// returns nil for a non-empty registry).
func (r *Registry) Select(url string, doc *goquery.Document) Plugin {
	for _, p := range r.plugins {
		if p.CanHandle(url, doc) {
			return p
		}
	}
	return nil
}
