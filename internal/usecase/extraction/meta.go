package extraction

import (
	"github.com/PuerkitoBio/goquery"

	"aidjobs-crawler/internal/domain/entity"
)

// extractMeta runs Stage 3: og:title / og:description, the document <title>,
// and meta[name=description].
func extractMeta(doc *goquery.Document, result *Result) {
	title := ""
	for _, sel := range []string{`meta[property="og:title"]`, `meta[name="title"]`} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && content != "" {
			title = content
			break
		}
	}
	if title == "" {
		title = doc.Find("title").First().Text()
	}
	if title != "" {
		result.SetField(FieldTitle, fieldResult(entity.FieldSourceMeta, title, title))
	}

	for _, sel := range []string{`meta[property="og:description"]`, `meta[name="description"]`} {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && content != "" {
			result.SetField(FieldDescription, fieldResult(entity.FieldSourceMeta, content, content))
			break
		}
	}
}
