package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/llm"
	"aidjobs-crawler/internal/utils/text"
)

// aiMaxText caps how much page text the prompt carries.
const aiMaxText = 5000

// aiPayload is the strict JSON shape the prompt demands.
type aiPayload struct {
	Title          *string  `json:"title"`
	Employer       *string  `json:"employer"`
	Location       *string  `json:"location"`
	PostedOn       *string  `json:"posted_on"`
	Deadline       *string  `json:"deadline"`
	Description    *string  `json:"description"`
	Requirements   []string `json:"requirements"`
	ApplicationURL *string  `json:"application_url"`
	Confidence     float64  `json:"confidence"`
}

// AIExtractor is Stage 7: invoked only when the critical-field gate trips,
// behind the provider's call budget and circuit breaker, with a same-page
// cache keyed by SHA-256 of URL + body prefix.
type AIExtractor struct {
	provider llm.Provider
}

func NewAIExtractor(provider llm.Provider) *AIExtractor {
	return &AIExtractor{provider: provider}
}

// Extract asks the model for the page's fields and merges anything it
// returns at the AI confidence tier. A budget-exhausted provider is a
// silent no-op; any other failure is logged and skipped; AI is strictly
// best-effort.
func (a *AIExtractor) Extract(ctx context.Context, doc *goquery.Document, body []byte, result *Result) {
	if a == nil || a.provider == nil {
		return
	}

	resp, err := a.provider.Classify(ctx, llm.ClassifyRequest{
		CacheKey: aiCacheKey(result.URL, body),
		Prompt:   buildAIPrompt(doc, result.URL),
	})
	if err != nil {
		if !errors.Is(err, llm.ErrBudgetExhausted) {
			slog.Warn("ai extraction fallback failed",
				slog.String("url", result.URL), slog.Any("error", err))
		}
		return
	}

	payload, err := parseAIPayload(resp.RawJSON)
	if err != nil {
		slog.Warn("ai extraction returned unparseable JSON",
			slog.String("url", result.URL), slog.Any("error", err))
		return
	}

	setAI := func(name Field, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			result.SetField(name, fieldResult(entity.FieldSourceAI, *v, *v))
		}
	}
	setAI(FieldTitle, payload.Title)
	setAI(FieldEmployer, payload.Employer)
	setAI(FieldLocation, payload.Location)
	setAI(FieldDescription, payload.Description)
	setAI(FieldApplicationURL, payload.ApplicationURL)

	if payload.PostedOn != nil {
		if iso := parseDate(*payload.PostedOn); iso != "" {
			result.SetField(FieldPostedOn, fieldResult(entity.FieldSourceAI, iso, *payload.PostedOn))
		}
	}
	if payload.Deadline != nil {
		if iso := parseDeadline(*payload.Deadline, time.Now()); iso != "" {
			result.SetField(FieldDeadline, fieldResult(entity.FieldSourceAI, iso, *payload.Deadline))
		}
	}
	if len(payload.Requirements) > 0 {
		joined := strings.Join(payload.Requirements, "\n")
		result.SetField(FieldRequirements, fieldResult(entity.FieldSourceAI, joined, joined))
	}
}

// aiCacheKey hashes the URL plus the body's first kilobyte, so re-fetches of
// an unchanged page reuse the cached reply instead of spending budget.
func aiCacheKey(pageURL string, body []byte) string {
	prefix := body
	if len(prefix) > 1000 {
		prefix = prefix[:1000]
	}
	sum := sha256.Sum256([]byte(pageURL + ":" + string(prefix)))
	return hex.EncodeToString(sum[:])
}

// parseAIPayload decodes the model's reply, tolerating a fenced code block
// around the JSON.
func parseAIPayload(raw string) (aiPayload, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var payload aiPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return aiPayload{}, err
	}
	return payload, nil
}

// buildAIPrompt is deterministic for a given page: fixed instruction text,
// two few-shot examples, and the page's first aiMaxText characters of
// visible text.
func buildAIPrompt(doc *goquery.Document, pageURL string) string {
	pageText := doc.Text()
	if text.CountRunes(pageText) > aiMaxText {
		pageText = string([]rune(pageText)[:aiMaxText])
	}
	return fmt.Sprintf(`Extract job information from the following page.

URL: %s

Page text (truncated):
%s

Return ONLY valid JSON in this exact format:
{
  "title": "string or null",
  "employer": "string or null",
  "location": "string or null",
  "posted_on": "YYYY-MM-DD or null",
  "deadline": "YYYY-MM-DD or null",
  "description": "string or null",
  "requirements": ["string"],
  "application_url": "string or null",
  "confidence": 0.0
}

Examples:
1. A complete posting:
{"title":"Program Officer - Climate","employer":"UNDP","location":"Nairobi, Kenya","posted_on":"2025-01-10","deadline":"2025-02-01","description":"Lead climate adaptation programming...","requirements":["Masters degree","5 years experience"],"application_url":"https://jobs.undp.org/p/12345","confidence":0.9}
2. A sparse listing row:
{"title":"Finance Assistant","employer":null,"location":"Amman","posted_on":null,"deadline":null,"description":null,"requirements":[],"application_url":null,"confidence":0.4}`,
		pageURL, pageText)
}
