package plugin

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jobTitleRe matches UNDP's "Job Title <value>" row format.
var jobTitleRe = regexp.MustCompile(`(?i)Job Title\s+([^\n\r]+)`)

var (
	detailPathKeywords = []string{"/job/", "/position/", "/vacancy/", "/detail", "/view/", "/apply", "/post/", "/consultant/", "/opportunity/", "/consultancy/"}
	detailLinkTextKeywords = []string{"view", "details", "read more", "apply", "see more", "full", "more info"}
	listingPathKeywords    = []string{"/jobs", "/careers", "/vacancies", "/opportunities", "/list", "/search", "/cj_view_consultancies", "/all", "/index"}
	numericIDRe            = regexp.MustCompile(`/\d{4,}`)
	slugIDRe               = regexp.MustCompile(`/[a-z0-9-]{15,}`)
	queryIDRe              = regexp.MustCompile(`(?i)/id[=:](\d+|[a-z0-9-]+)`)
)

// UNDPPlugin extracts job rows from UNDP-style listings, which pack a
// "Job Title ... Apply by ... Location ..." block into each table row.
// Strict per-row link uniqueness is enforced: once a normalized apply URL
// has been used by one row, no other row may claim it.
type UNDPPlugin struct{}

func NewUNDPPlugin() *UNDPPlugin { return &UNDPPlugin{} }

func (p *UNDPPlugin) Name() string  { return "undp" }
func (p *UNDPPlugin) Priority() int { return 80 }

func (p *UNDPPlugin) CanHandle(rawURL string, doc *goquery.Document) bool {
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, "undp.org") || strings.Contains(lower, "cj_view_consultancies")
}

func (p *UNDPPlugin) Extract(doc *goquery.Document, baseURL string) Result {
	usedLinks := make(map[string]bool)
	var jobs []ExtractedJob

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		rowText := row.Text()
		m := jobTitleRe.FindStringSubmatch(rowText)
		if m == nil {
			return
		}
		title := strings.TrimSpace(m[1])
		if len(title) < 5 {
			return
		}

		type candidate struct {
			href           string
			normalizedHref string
			score          float64
		}
		var candidates []candidate

		row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cellText := cell.Text()
			cellHasTitle := strings.Contains(strings.ToLower(cellText), strings.ToLower(title)) || jobTitleRe.MatchString(cellText)

			cell.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				href, _ := a.Attr("href")
				if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
					return
				}
				resolved := resolveURL(baseURL, href)
				normalized := normalizeLink(resolved)
				if usedLinks[normalized] {
					return
				}
				linkText := strings.ToLower(strings.TrimSpace(a.Text()))
				score := scoreLink(href, linkText, title, baseURL, cellHasTitle)
				candidates = append(candidates, candidate{href: resolved, normalizedHref: normalized, score: score})
			})
		})

		if len(candidates) == 0 {
			return
		}
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
		best := candidates[0]
		if best.score <= 0 {
			return
		}
		if usedLinks[best.normalizedHref] {
			return
		}
		usedLinks[best.normalizedHref] = true

		jobs = append(jobs, ExtractedJob{Title: title, ApplyURL: best.href, RawText: rowText})
		if len(jobs) >= 100 {
			return
		}
	})

	return Result{Jobs: jobs, Confidence: 0.85, Message: "undp table rows"}
}

// scoreLink rewards
// title-cell placement, numeric/slug identifiers, and detail-page path
// keywords; penalizes listing-index paths and self-referential links.
func scoreLink(href, linkTextLower, title, baseURL string, inTitleCell bool) float64 {
	score := 50.0
	if inTitleCell {
		score = 100.0
	}
	hrefLower := strings.ToLower(href)

	switch {
	case numericIDRe.MatchString(href):
		score += 50
	case slugIDRe.MatchString(href):
		score += 40
	case queryIDRe.MatchString(href):
		score += 45
	}

	if containsAny(hrefLower, detailPathKeywords) {
		score += 30
	}
	if containsAny(linkTextLower, detailLinkTextKeywords) {
		score += 20
	}
	if containsAny(hrefLower, listingPathKeywords) {
		score -= 100
	}

	if base, err := url.Parse(baseURL); err == nil {
		if target, err := url.Parse(href); err == nil {
			if target.Path != "" && (target.Path == base.Path || target.Path == strings.TrimRight(base.Path, "/")) {
				score -= 50
			}
		}
	}

	titlePrefix := title
	if len(titlePrefix) > 20 {
		titlePrefix = titlePrefix[:20]
	}
	if strings.Contains(linkTextLower, strings.ToLower(titlePrefix)) {
		score += 15
	}

	return score
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func resolveURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// normalizeLink strips the trailing slash, the fragment, and every query
// parameter except id-like ones ("id" or "*_id"), so apply-URL uniqueness is
// compared on the stable part of the link.
func normalizeLink(resolved string) string {
	s := resolved
	if idx := strings.IndexByte(s, '#'); idx >= 0 {
		s = s[:idx]
	}
	query := ""
	if idx := strings.IndexByte(s, '?'); idx >= 0 {
		query = s[idx+1:]
		s = s[:idx]
	}
	s = strings.TrimRight(s, "/")
	if vals, err := url.ParseQuery(query); err == nil {
		kept := url.Values{}
		for k, v := range vals {
			if lk := strings.ToLower(k); lk == "id" || strings.HasSuffix(lk, "_id") {
				kept[k] = v
			}
		}
		if len(kept) > 0 {
			s += "?" + kept.Encode()
		}
	}
	return s
}
