package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/llm"
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// AINormalizer disambiguates the handful of fields deterministic parsing
// leaves messy: a deadline not in YYYY-MM-DD, a location with multiple
// separators, an unstructured salary string. The gate exists to cap LLM
// spend: well-formed fields never trigger a call. Best-effort: any failure
// leaves the job unchanged.
type AINormalizer struct {
	provider llm.Provider
}

func NewAINormalizer(provider llm.Provider) *AINormalizer {
	return &AINormalizer{provider: provider}
}

// ambiguous reports which raw fields need model help.
func ambiguous(rawDeadline, rawLocation, rawSalary string) (deadline, location, salary bool) {
	if rawDeadline != "" && !isoDateRe.MatchString(rawDeadline) {
		deadline = true
	}
	if strings.Count(rawLocation, ",")+strings.Count(rawLocation, "/")+strings.Count(rawLocation, ";") >= 2 {
		location = true
	}
	if rawSalary != "" && !compensationRe.MatchString(rawSalary) {
		salary = true
	}
	return deadline, location, salary
}

type aiNormPayload struct {
	Deadline string `json:"deadline"`
	Location string `json:"location"`
	Salary   string `json:"salary"`
}

// Disambiguate resolves job's ambiguous raw fields in one model call,
// writing any cleaned values back onto the job. rawSalary is the free-text
// compensation string the extractor saw, if any.
func (n *AINormalizer) Disambiguate(ctx context.Context, job *entity.Job, rawDeadline, rawSalary string) {
	if n == nil || n.provider == nil {
		return
	}
	needDeadline, needLocation, needSalary := ambiguous(rawDeadline, job.RawLocation, rawSalary)
	if !needDeadline && !needLocation && !needSalary {
		return
	}

	prompt := fmt.Sprintf(`Normalize these job posting fields. Reply with JSON only:
{"deadline":"YYYY-MM-DD or empty","location":"City, Country or empty","salary":"CUR min-max per period or empty"}

deadline: %q
location: %q
salary: %q`, rawDeadline, job.RawLocation, rawSalary)

	sum := sha256.Sum256([]byte(prompt))
	resp, err := n.provider.Classify(ctx, llm.ClassifyRequest{
		CacheKey: hex.EncodeToString(sum[:]),
		Prompt:   prompt,
	})
	if err != nil {
		slog.Debug("ai normalizer skipped", slog.Any("error", err))
		return
	}

	var payload aiNormPayload
	if err := json.Unmarshal([]byte(resp.RawJSON), &payload); err != nil {
		slog.Debug("ai normalizer returned unparseable JSON", slog.Any("error", err))
		return
	}

	if needDeadline && isoDateRe.MatchString(payload.Deadline) {
		if t, err := time.Parse("2006-01-02", payload.Deadline); err == nil {
			job.Deadline = &t
		}
	}
	if needLocation && payload.Location != "" {
		job.RawLocation = payload.Location
	}
	if needSalary && payload.Salary != "" {
		if comp := ParseCompensation(nil, payload.Salary); comp != nil {
			job.Compensation = comp
		}
	}
}
