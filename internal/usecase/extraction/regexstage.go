package extraction

import (
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"aidjobs-crawler/internal/domain/entity"
)

// Stage 6 last-resort patterns. These fire only when the
// labeled-heuristic stage found nothing, and their matches carry the lowest
// deterministic confidence tier.
var regexDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:deadline|closing|apply by|due date)[:\s]+(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
	regexp.MustCompile(`(?i)(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4})`),
}

var regexLocationPattern = regexp.MustCompile(`(?i)(?:location|duty station)[:\s]+([A-Z][a-zA-Z ,]{2,60})`)

// extractRegex runs Stage 6 over the page's visible text.
func extractRegex(doc *goquery.Document, result *Result, now time.Time) {
	text := doc.Text()

	for _, re := range regexDatePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if iso := parseDeadline(m[1], now); iso != "" {
				snippet := m[0]
				if len(snippet) > 100 {
					snippet = snippet[:100]
				}
				result.SetField(FieldDeadline, fieldResult(entity.FieldSourceRegex, iso, snippet))
				break
			}
		}
	}

	if m := regexLocationPattern.FindStringSubmatch(text); m != nil {
		result.SetField(FieldLocation, fieldResult(entity.FieldSourceRegex, m[1], m[0]))
	}
}
