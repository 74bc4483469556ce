package plugin

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// OrgKeywordPlugin claims pages on a fixed set of known-organization hosts
// (UNESCO, UNICEF, Amnesty, Save the Children, ...) and runs the generic
// plugin's extraction strategies against them at a priority between UNDP's
// bespoke plugin and the always-on generic fallback. These organizations publish vacancy listings on ordinary
// career-site markup (tables, job-class containers, JobPosting microdata)
// without UNDP's consultancy-table quirks, so there is no bespoke scoring
// logic to write; only the host gate differs from the generic plugin.
type OrgKeywordPlugin struct {
	name     string
	hosts    []string
	priority int
	generic  *GenericPlugin
}

// NewOrgKeywordPlugin builds a plugin named name that claims any URL whose
// host contains one of hostSubstrings, at the given priority.
func NewOrgKeywordPlugin(name string, hostSubstrings []string, priority int) *OrgKeywordPlugin {
	return &OrgKeywordPlugin{
		name:     name,
		hosts:    hostSubstrings,
		priority: priority,
		generic:  NewGenericPlugin(),
	}
}

func (p *OrgKeywordPlugin) Name() string  { return p.name }
func (p *OrgKeywordPlugin) Priority() int { return p.priority }

func (p *OrgKeywordPlugin) CanHandle(url string, doc *goquery.Document) bool {
	lower := strings.ToLower(url)
	for _, h := range p.hosts {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

func (p *OrgKeywordPlugin) Extract(doc *goquery.Document, baseURL string) Result {
	result := p.generic.Extract(doc, baseURL)
	if result.Message != "" {
		result.Message = p.name + ": " + result.Message
	}
	return result
}
