package extraction

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jobKeywords raise the rule-based score, 0.1 per distinct hit capped at 0.4.
var jobKeywords = []string{
	"job", "position", "vacancy", "career", "opportunity",
	"recruitment", "hiring", "opening", "posting", "role",
}

// jobURLKeywords reward job-shaped URL paths.
var jobURLKeywords = []string{"/job", "/career", "/position", "/vacancy", "/opportunity"}

// negativeKeywords in the first 500 characters of visible text mark
// navigation/login chrome rather than a posting.
var negativeKeywords = []string{"login", "sign in", "register", "homepage", "about us"}

var applyButtonRe = regexp.MustCompile(`(?i)apply|submit|candidate`)

// jobClassSelectors are structural hints: a single match adds 0.1 once.
var jobClassSelectors = []string{
	".job-listing", ".job-item", ".position", ".vacancy",
	"[class*=job]", "[id*=job]", "[class*=position]",
}

// MLModel optionally contributes 30% of the classifier score. No trained
// model ships with the crawler; the hook exists so one can be wired in
// without touching the rule logic.
type MLModel interface {
	Score(text string) float64
}

// Classifier scores pages as job listings (Stage 1). Pages below
// jobThreshold are marked non-job but still continue through extraction for
// reporting.
type Classifier struct {
	model MLModel
}

const jobThreshold = 0.5

func NewClassifier(model MLModel) *Classifier {
	return &Classifier{model: model}
}

// Classify returns (is_job, score) for the page.
func (c *Classifier) Classify(doc *goquery.Document, pageURL string) (bool, float64) {
	score := c.ruleScore(doc, pageURL)
	if c.model != nil {
		score = 0.7*score + 0.3*c.model.Score(doc.Text())
	}
	return score >= jobThreshold, score
}

func (c *Classifier) ruleScore(doc *goquery.Document, pageURL string) float64 {
	text := strings.ToLower(doc.Text())

	score := 0.0

	hits := 0
	for _, kw := range jobKeywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	kwScore := float64(hits) * 0.1
	if kwScore > 0.4 {
		kwScore = 0.4
	}
	score += kwScore

	urlLower := strings.ToLower(pageURL)
	for _, kw := range jobURLKeywords {
		if strings.Contains(urlLower, kw) {
			score += 0.3
			break
		}
	}

	for _, sel := range jobClassSelectors {
		if doc.Find(sel).Length() > 0 {
			score += 0.1
			break
		}
	}

	hasApply := false
	doc.Find("a, button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if applyButtonRe.MatchString(s.Text()) {
			hasApply = true
			return false
		}
		return true
	})
	if hasApply {
		score += 0.2
	}

	head := text
	if len(head) > 500 {
		head = head[:500]
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(head, kw) {
			score -= 0.2
			break
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
