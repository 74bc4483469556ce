package extraction

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"aidjobs-crawler/internal/domain/entity"
)

// Label sets for Stage 5: find <dt|th|label|span> elements whose text
// matches, then read the adjacent sibling's text.
var (
	locationLabelRe = regexp.MustCompile(`(?i)location|duty station`)
	deadlineLabelRe = regexp.MustCompile(`(?i)deadline|closing date|apply by|due date`)
	postedLabelRe   = regexp.MustCompile(`(?i)posted|published|date posted`)
	requirementsRe  = regexp.MustCompile(`(?i)requirement|qualification|skill`)
)

var locationTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:location|duty station|based in|work location)[:\s]+([A-Z][a-zA-Z\s,]+(?:,\s*[A-Z][a-zA-Z\s]+)?)`),
	regexp.MustCompile(`(?i)(?:location|duty station)[:\s]+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
}

var deadlineTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:deadline|closing|apply by|due date)[:\s]+(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
	regexp.MustCompile(`(?i)(?:deadline|closing|apply by|due date)[:\s]+(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4})`),
	regexp.MustCompile(`(?i)(?:deadline|closing|apply by|due date)[:\s]+((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4})`),
}

// extractHeuristics runs Stage 5: labeled fields read from adjacent
// siblings, regex over full text as fallback, dates normalized day-first
// with prefer-future deadlines.
func extractHeuristics(doc *goquery.Document, result *Result, now time.Time) {
	text := doc.Text()

	if value, snippet := labeledValue(doc, locationLabelRe); value != "" {
		result.SetField(FieldLocation, fieldResult(entity.FieldSourceHeuristic, value, snippet))
	} else {
		for _, re := range locationTextPatterns {
			if m := re.FindStringSubmatch(text); m != nil {
				loc := strings.TrimSpace(m[1])
				if len(loc) > 2 && len(loc) < 100 {
					result.SetField(FieldLocation, fieldResult(entity.FieldSourceHeuristic, loc, m[0]))
					break
				}
			}
		}
	}

	if value, snippet := labeledValue(doc, deadlineLabelRe); value != "" {
		if iso := parseDeadline(value, now); iso != "" {
			result.SetField(FieldDeadline, fieldResult(entity.FieldSourceHeuristic, iso, snippet))
		}
	} else {
		for _, re := range deadlineTextPatterns {
			if m := re.FindStringSubmatch(text); m != nil {
				if iso := parseDeadline(m[1], now); iso != "" {
					result.SetField(FieldDeadline, fieldResult(entity.FieldSourceHeuristic, iso, m[0]))
					break
				}
			}
		}
	}

	if value, snippet := labeledValue(doc, postedLabelRe); value != "" {
		if iso := parseDate(value); iso != "" {
			result.SetField(FieldPostedOn, fieldResult(entity.FieldSourceHeuristic, iso, snippet))
		}
	}

	if reqs := requirementsList(doc); reqs != "" {
		result.SetField(FieldRequirements, fieldResult(entity.FieldSourceHeuristic, reqs, reqs))
	}
}

// labeledValue finds the first label element matching re and returns the
// adjacent value element's text plus a "label: value" snippet.
func labeledValue(doc *goquery.Document, re *regexp.Regexp) (value, snippet string) {
	doc.Find("dt, th, label, span").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		labelText := strings.TrimSpace(label.Text())
		// Value-bearing spans would match their own content; require the
		// label text itself to be short and label-shaped.
		if len(labelText) > 40 || !re.MatchString(labelText) {
			return true
		}
		sibling := label.NextFiltered("dd, td, div, span")
		if sibling.Length() == 0 {
			return true
		}
		v := strings.TrimSpace(sibling.Text())
		if len(v) <= 2 {
			return true
		}
		value = v
		snippet = labelText + ": " + v
		return false
	})
	return value, snippet
}

// requirementsList reads the first <ul>/<ol> following a requirements-like
// heading, newline-joined.
func requirementsList(doc *goquery.Document) string {
	var items []string
	doc.Find("h2, h3, h4").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		if !requirementsRe.MatchString(heading.Text()) {
			return true
		}
		list := heading.NextAllFiltered("ul, ol").First()
		if list.Length() == 0 {
			return true
		}
		list.Find("li").Each(func(_ int, li *goquery.Selection) {
			if item := strings.TrimSpace(li.Text()); item != "" {
				items = append(items, item)
			}
		})
		return len(items) == 0
	})
	return strings.Join(items, "\n")
}
