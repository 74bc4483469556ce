package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_JobPageScoresAboveThreshold(t *testing.T) {
	html := `<html><body class="job-listing">
	  <h1>Vacancy: Field Security Officer</h1>
	  <p>This position is a full-time role in our recruitment round.</p>
	  <a href="/apply">Apply now</a>
	</body></html>`

	isJob, score := NewClassifier(nil).Classify(parseDoc(t, html), "https://careers.example.org/vacancy/42")

	assert.True(t, isJob)
	assert.GreaterOrEqual(t, score, 0.5)
	assert.LessOrEqual(t, score, 1.0)
}

func TestClassifier_NavigationPageScoresBelow(t *testing.T) {
	html := `<html><body>
	  <p>Login or sign in to continue to the homepage.</p>
	  <a href="/">Home</a>
	</body></html>`

	isJob, score := NewClassifier(nil).Classify(parseDoc(t, html), "https://example.org/")

	assert.False(t, isJob)
	assert.Less(t, score, 0.5)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestClassifier_KeywordScoreCapped(t *testing.T) {
	// All ten keywords present: the keyword contribution alone caps at 0.4,
	// so without URL/apply/structure signals the page stays below threshold.
	html := `<html><body><p>job position vacancy career opportunity recruitment hiring opening posting role</p></body></html>`

	_, score := NewClassifier(nil).Classify(parseDoc(t, html), "https://example.org/page")

	assert.LessOrEqual(t, score, 0.5)
}

type fixedModel struct{ score float64 }

func (m fixedModel) Score(string) float64 { return m.score }

func TestClassifier_MLModelBlend(t *testing.T) {
	html := `<html><body><p>Nothing job-like here.</p></body></html>`
	doc := parseDoc(t, html)

	_, ruleOnly := NewClassifier(nil).Classify(doc, "https://example.org/")
	_, blended := NewClassifier(fixedModel{score: 1.0}).Classify(doc, "https://example.org/")

	// The model contributes 30% of the final score.
	assert.InDelta(t, 0.7*ruleOnly+0.3, blended, 1e-9)
}
