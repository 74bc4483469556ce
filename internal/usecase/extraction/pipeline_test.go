package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/llm"
	"aidjobs-crawler/internal/infra/plugin"
)

func newTestPipeline(ai *AIExtractor) *Pipeline {
	return NewPipeline(NewClassifier(nil), plugin.NewRegistry(), ai, nil)
}

const jobPageHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Vacancies</title>
  <meta property="og:title" content="WASH Officer - Jordan">
  <meta property="og:description" content="Lead WASH programming in Zaatari camp.">
  <script type="application/ld+json">
  {
    "@context": "https://schema.org",
    "@type": "JobPosting",
    "title": "WASH Officer",
    "hiringOrganization": {"name": "Action Against Hunger"},
    "jobLocation": {"address": {"addressLocality": "Amman", "addressCountry": "Jordan"}},
    "datePosted": "2026-01-05T09:00:00Z",
    "validThrough": "2026-02-15T23:59:00Z",
    "description": "Coordinate water and sanitation activities.",
    "url": "https://careers.example.org/jobs/wash-officer-1234"
  }
  </script>
</head>
<body>
  <h1>WASH Officer (heading variant)</h1>
  <dl>
    <dt>Duty Station</dt><dd>Amman, Jordan</dd>
    <dt>Closing Date</dt><dd>15 February 2026</dd>
  </dl>
  <p>This position supports the mission's recruitment of a vacancy opening role.</p>
  <a href="/apply">Apply now</a>
</body>
</html>`

func TestExtractHTML_StagePrecedence(t *testing.T) {
	p := newTestPipeline(nil)

	result, err := p.ExtractHTML(context.Background(), "https://careers.example.org/jobs/wash-officer-1234", []byte(jobPageHTML))
	require.NoError(t, err)

	// JSON-LD (0.90) wins over meta (0.80), DOM heading (0.70), and the
	// label heuristic (0.60).
	title := result.Fields[FieldTitle]
	assert.Equal(t, "WASH Officer", title.Value)
	assert.Equal(t, entity.FieldSourceJSONLD, title.Source)
	assert.InDelta(t, 0.90, title.Confidence, 1e-9)

	assert.Equal(t, "Action Against Hunger", result.Value(FieldEmployer))
	assert.Equal(t, "Amman, Jordan", result.Value(FieldLocation))
	assert.Equal(t, "2026-01-05", result.Value(FieldPostedOn))
	assert.Equal(t, "2026-02-15", result.Value(FieldDeadline))
	assert.True(t, result.IsJob)
	assert.False(t, result.ManualReview)
}

func TestExtractHTML_HeuristicsFillJSONLDGaps(t *testing.T) {
	html := `<html><head><title>Posting</title></head><body>
	<h1>Monitoring Officer position vacancy</h1>
	<table><tr><th>Location</th><td>Juba, South Sudan</td></tr>
	<tr><th>Deadline</th><td>31/12/2026</td></tr></table>
	<a href="/apply">Apply</a>
	</body></html>`

	p := newTestPipeline(nil)
	result, err := p.ExtractHTML(context.Background(), "https://ngo.example.org/jobs/123", []byte(html))
	require.NoError(t, err)

	loc := result.Fields[FieldLocation]
	assert.Equal(t, "Juba, South Sudan", loc.Value)
	assert.Equal(t, entity.FieldSourceHeuristic, loc.Source)

	// Day-first parse of 31/12/2026.
	assert.Equal(t, "2026-12-31", result.Value(FieldDeadline))
}

func TestExtractHTML_ValidationFlags(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">
	{"@type":"JobPosting","title":"Driver","datePosted":"2026-03-01","validThrough":"2026-02-01","jobLocation":{"address":{"addressLocality":"TBD"}}}
	</script></head><body>job vacancy</body></html>`

	p := newTestPipeline(nil)
	result, err := p.ExtractHTML(context.Background(), "https://x.example.org/jobs/1", []byte(html))
	require.NoError(t, err)

	assert.True(t, result.ManualReview)
	assert.Contains(t, result.Issues, "deadline_before_posted")
	assert.Contains(t, result.Issues, "generic_location")
}

func TestExtractHTML_MissingTitleFlagged(t *testing.T) {
	p := newTestPipeline(nil)
	result, err := p.ExtractHTML(context.Background(), "https://x.example.org/p", []byte(`<html><body><p>nothing here</p></body></html>`))
	require.NoError(t, err)

	assert.True(t, result.ManualReview)
	assert.Contains(t, result.Issues, "missing_title")
	assert.False(t, result.IsJob)
}

func TestExtractHTML_ConfidenceInvariants(t *testing.T) {
	p := newTestPipeline(nil)
	result, err := p.ExtractHTML(context.Background(), "https://careers.example.org/jobs/wash-officer-1234", []byte(jobPageHTML))
	require.NoError(t, err)

	valid := map[entity.FieldSource]bool{
		entity.FieldSourceJSONLD: true, entity.FieldSourceAPI: true,
		entity.FieldSourceMeta: true, entity.FieldSourceDOM: true,
		entity.FieldSourceHeuristic: true, entity.FieldSourceRegex: true,
		entity.FieldSourceAI: true,
	}
	for name, fr := range result.Fields {
		assert.GreaterOrEqual(t, fr.Confidence, 0.0, "field %s", name)
		assert.LessOrEqual(t, fr.Confidence, 1.0, "field %s", name)
		assert.True(t, valid[fr.Source], "field %s has unknown source %q", name, fr.Source)
	}
}

func TestExtractStructured_SeedsAPIFields(t *testing.T) {
	p := newTestPipeline(nil)
	result := p.ExtractStructured("https://api.example.org/jobs/9", map[Field]string{
		FieldTitle:          "Nutrition Specialist",
		FieldApplicationURL: "https://api.example.org/jobs/9/apply",
		FieldDeadline:       "2026-04-30",
	})

	assert.True(t, result.IsJob)
	fr := result.Fields[FieldTitle]
	assert.Equal(t, entity.FieldSourceAPI, fr.Source)
	assert.InDelta(t, 0.90, fr.Confidence, 1e-9)
	assert.Equal(t, "2026-04-30", result.Value(FieldDeadline))
	assert.NotEmpty(t, result.DedupeHash)
}

type stubProvider struct {
	reply string
	calls int
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Classify(ctx context.Context, req llm.ClassifyRequest) (llm.ClassifyResponse, error) {
	s.calls++
	return llm.ClassifyResponse{RawJSON: s.reply}, nil
}

func TestExtractHTML_AIFallbackGate(t *testing.T) {
	stub := &stubProvider{reply: `{"title":"Field Coordinator","employer":"IRC","location":"Goma, DRC","confidence":0.7}`}
	p := newTestPipeline(NewAIExtractor(stub))

	// All three critical fields missing: gate trips.
	sparse := `<html><body><p>job vacancy opening</p><span>Posting #42</span></body></html>`
	result, err := p.ExtractHTML(context.Background(), "https://sparse.example.org/job/42", []byte(sparse))
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)

	fr := result.Fields[FieldEmployer]
	assert.Equal(t, "IRC", fr.Value)
	assert.Equal(t, entity.FieldSourceAI, fr.Source)
	assert.InDelta(t, 0.40, fr.Confidence, 1e-9)
}

func TestExtractHTML_AINotCalledWhenFieldsPresent(t *testing.T) {
	stub := &stubProvider{reply: `{}`}
	p := newTestPipeline(NewAIExtractor(stub))

	_, err := p.ExtractHTML(context.Background(), "https://careers.example.org/jobs/wash-officer-1234", []byte(jobPageHTML))
	require.NoError(t, err)
	assert.Zero(t, stub.calls)
}

func TestCanonicalID_IDParamsRetained(t *testing.T) {
	a := CanonicalID("https://jobs.example.org/view?id=123&utm_source=feed")
	b := CanonicalID("https://jobs.example.org/view?id=123")
	c := CanonicalID("https://jobs.example.org/view?id=456")

	assert.Len(t, a, 16)
	// utm_source carries no identity; id does.
	assert.Equal(t, a, b)
	assert.NotEqual(t, b, c)
}

func TestCanonicalID_StableAcrossFetches(t *testing.T) {
	u := "https://jobs.example.org/p/123"
	assert.Equal(t, CanonicalID(u), CanonicalID(u))
}

func TestNormalizeApplyURL_CollapsesVariants(t *testing.T) {
	variants := []string{"/p/123", "/p/123/", "/p/123?src=rss"}
	for _, v := range variants {
		assert.Equal(t, "/p/123", NormalizeApplyURL(v), "variant %q", v)
	}
}

func TestDedupeCandidates_CollisionsDropped(t *testing.T) {
	jobs := []plugin.ExtractedJob{
		{Title: "A", ApplyURL: "https://x.org/p/123"},
		{Title: "B", ApplyURL: "https://x.org/p/123/"},
		{Title: "C", ApplyURL: "https://x.org/p/123?src=rss"},
		{Title: "D", ApplyURL: "https://x.org/p/456"},
	}

	out, collisions := dedupeCandidates(jobs)
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Title)
	assert.Equal(t, "D", out[1].Title)
	assert.Equal(t, 2, collisions)
}

func TestParseDate_RoundTrip(t *testing.T) {
	// Parsing then re-formatting YYYY-MM-DD yields the original string.
	assert.Equal(t, "2026-02-15", parseDate("2026-02-15"))
}

func TestParseDeadline_PrefersFuture(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// A deadline parsed years in the past reads forward.
	got := parseDeadline("15 February 2024", now)
	parsed, err := time.Parse(isoDate, got)
	require.NoError(t, err)
	assert.False(t, parsed.Before(now.AddDate(-1, 0, 0)))
}

func TestDedupeHash_Deterministic(t *testing.T) {
	p := newTestPipeline(nil)
	a := p.ExtractStructured("https://x.org/1", map[Field]string{FieldTitle: "T", FieldEmployer: "E"})
	b := p.ExtractStructured("https://x.org/1", map[Field]string{FieldTitle: "T", FieldEmployer: "E"})
	assert.Equal(t, a.DedupeHash, b.DedupeHash)

	c := p.ExtractStructured("https://x.org/1", map[Field]string{FieldTitle: "Other", FieldEmployer: "E"})
	assert.NotEqual(t, a.DedupeHash, c.DedupeHash)
}
