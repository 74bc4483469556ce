package plugin

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// navStopwords filters out substantial-looking links that are really
// navigation chrome.
var navStopwords = map[string]bool{
	"home": true, "about": true, "about us": true, "contact": true,
	"contact us": true, "privacy": true, "privacy policy": true, "terms": true,
	"sign in": true, "log in": true, "login": true, "register": true,
	"search": true, "careers": true, "news": true, "media": true,
	"donate": true, "subscribe": true,
}

const minLinkTextLength = 10

// GenericPlugin is the priority-10 fallback used when no site-specific
// plugin claims a page. It tries, in order: header-mapped tables, job-class
// divs/lists, microdata JobPosting items, and substantial main-content
// links.
type GenericPlugin struct{}

func NewGenericPlugin() *GenericPlugin { return &GenericPlugin{} }

func (p *GenericPlugin) Name() string     { return "generic" }
func (p *GenericPlugin) Priority() int    { return 10 }
func (p *GenericPlugin) CanHandle(url string, doc *goquery.Document) bool { return true }

func (p *GenericPlugin) Extract(doc *goquery.Document, baseURL string) Result {
	if jobs := p.fromHeaderTables(doc); len(jobs) > 0 {
		return Result{Jobs: jobs, Confidence: 0.70, Message: "header-mapped table"}
	}
	if jobs := p.fromJobClassElements(doc); len(jobs) > 0 {
		return Result{Jobs: jobs, Confidence: 0.65, Message: "job-class elements"}
	}
	if jobs := p.fromMicrodata(doc); len(jobs) > 0 {
		return Result{Jobs: jobs, Confidence: 0.75, Message: "microdata JobPosting"}
	}
	if jobs := p.fromMainContentLinks(doc); len(jobs) > 0 {
		return Result{Jobs: jobs, Confidence: 0.55, Message: "main content links"}
	}
	return Result{Confidence: 0}
}

func (p *GenericPlugin) fromHeaderTables(doc *goquery.Document) []ExtractedJob {
	var jobs []ExtractedJob
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		headers := table.Find("thead th, tr:first-child th")
		if headers.Length() == 0 {
			return
		}
		titleCol := -1
		headers.Each(func(i int, h *goquery.Selection) {
			if strings.Contains(strings.ToLower(h.Text()), "title") || strings.Contains(strings.ToLower(h.Text()), "position") {
				titleCol = i
			}
		})
		if titleCol < 0 {
			return
		}
		table.Find("tbody tr, tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= titleCol {
				return
			}
			cell := cells.Eq(titleCol)
			title := strings.TrimSpace(cell.Text())
			if title == "" {
				return
			}
			link := cell.Find("a[href]").First()
			href, _ := link.Attr("href")
			if href == "" {
				link = row.Find("a[href]").First()
				href, _ = link.Attr("href")
			}
			if href == "" {
				return
			}
			jobs = append(jobs, ExtractedJob{Title: title, ApplyURL: href, RawText: row.Text()})
		})
	})
	return jobs
}

func (p *GenericPlugin) fromJobClassElements(doc *goquery.Document) []ExtractedJob {
	var jobs []ExtractedJob
	doc.Find("[class*=job], [class*=vacancy], [class*=position], [class*=opening]").Each(func(_ int, el *goquery.Selection) {
		link := el.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(el.Find("h1,h2,h3,h4").First().Text())
		}
		if title == "" {
			return
		}
		jobs = append(jobs, ExtractedJob{Title: title, ApplyURL: href, RawText: el.Text()})
	})
	return jobs
}

func (p *GenericPlugin) fromMicrodata(doc *goquery.Document) []ExtractedJob {
	var jobs []ExtractedJob
	doc.Find("[itemtype*=JobPosting]").Each(func(_ int, el *goquery.Selection) {
		title := strings.TrimSpace(el.Find("[itemprop=title]").First().Text())
		href, _ := el.Find("a[href]").First().Attr("href")
		if title == "" || href == "" {
			return
		}
		jobs = append(jobs, ExtractedJob{Title: title, ApplyURL: href, RawText: el.Text()})
	})
	return jobs
}

func (p *GenericPlugin) fromMainContentLinks(doc *goquery.Document) []ExtractedJob {
	var jobs []ExtractedJob
	scope := doc.Find("main, #content, .content, article").First()
	if scope.Length() == 0 {
		scope = doc.Find("body")
	}
	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		if len(text) < minLinkTextLength {
			return
		}
		if navStopwords[strings.ToLower(text)] {
			return
		}
		href, ok := a.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		jobs = append(jobs, ExtractedJob{Title: text, ApplyURL: href})
	})
	return jobs
}
