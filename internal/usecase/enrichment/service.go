package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/llm"
	"aidjobs-crawler/internal/observability/metrics"
	"aidjobs-crawler/internal/repository"
)

// rawLLMPayload is the JSON shape the classification prompt asks the model
// to reply with; Service.classify parses it into a RawClassification before
// handing it to the rule Engine.
type rawLLMPayload struct {
	ImpactDomains []struct {
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"impact_domains"`
	FunctionalRoles []struct {
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"functional_roles"`
	ExperienceLevel struct {
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"experience_level"`
	ExperienceYears   *int    `json:"experience_years"`
	SDGs              []struct {
		SDG        int     `json:"sdg"`
		Confidence float64 `json:"confidence"`
	} `json:"sdgs"`
	MatchedKeywords   []string `json:"matched_keywords"`
	OverallConfidence float64  `json:"overall_confidence"`
}

// Service runs the full enrichment pipeline for a single job: prompt the
// LLM, parse its reply, apply the rule engine, snapshot the job's prior
// enrichment to history, and return the new block for the caller to persist.
type Service struct {
	provider llm.Provider
	engine   *Engine
	history  repository.EnrichmentHistoryRepository
}

func NewService(provider llm.Provider, engine *Engine, history repository.EnrichmentHistoryRepository) *Service {
	return &Service{provider: provider, engine: engine, history: history}
}

// Enrich classifies job and returns its updated entity.Enrichment. The
// caller is responsible for persisting job with the returned block; Enrich
// itself only snapshots the job's *previous* enrichment to history before
// the caller overwrites it, so the prior block survives every write.
func (s *Service) Enrich(ctx context.Context, job *entity.Job) (entity.Enrichment, error) {
	start := time.Now()
	prompt := buildPrompt(job)
	cacheKey := cacheKeyFor(job)

	resp, err := s.provider.Classify(ctx, llm.ClassifyRequest{CacheKey: cacheKey, Prompt: prompt})
	if err != nil {
		metrics.RecordJobEnriched(false)
		return entity.Enrichment{}, fmt.Errorf("enrichment classify: %w", err)
	}

	raw, err := parsePayload(resp.RawJSON)
	if err != nil {
		metrics.RecordJobEnriched(false)
		return entity.Enrichment{}, fmt.Errorf("enrichment parse response: %w", err)
	}
	metrics.RecordJobEnriched(true)
	metrics.RecordEnrichmentDuration(time.Since(start))

	if s.history != nil {
		if err := s.history.Record(ctx, repository.EnrichmentHistoryRecord{
			JobID:        job.ID,
			Enrichment:   job.Enrichment,
			ChangeReason: "re-enrichment",
			ChangedBy:    "enrichment-engine",
		}); err != nil {
			slog.Warn("enrichment history snapshot failed", slog.Int64("job_id", job.ID), slog.Any("error", err))
		}
	}

	return s.engine.Apply(raw), nil
}

func parsePayload(rawJSON string) (RawClassification, error) {
	var payload rawLLMPayload
	if err := json.Unmarshal([]byte(rawJSON), &payload); err != nil {
		return RawClassification{}, err
	}

	raw := RawClassification{
		ExperienceLevel:   ScoredItem{Value: payload.ExperienceLevel.Value, Confidence: payload.ExperienceLevel.Confidence},
		ExperienceYears:   payload.ExperienceYears,
		MatchedKeywords:   payload.MatchedKeywords,
		OverallConfidence: payload.OverallConfidence,
	}
	for _, d := range payload.ImpactDomains {
		raw.ImpactDomains = append(raw.ImpactDomains, ScoredItem{Value: d.Value, Confidence: d.Confidence})
	}
	for _, r := range payload.FunctionalRoles {
		raw.FunctionalRoles = append(raw.FunctionalRoles, ScoredItem{Value: r.Value, Confidence: r.Confidence})
	}
	for _, sdg := range payload.SDGs {
		raw.SDGs = append(raw.SDGs, ScoredItem{Value: fmt.Sprintf("%d", sdg.SDG), Confidence: sdg.Confidence})
	}
	return raw, nil
}

func buildPrompt(job *entity.Job) string {
	return fmt.Sprintf(`Classify this humanitarian/development job posting.
Title: %s
Organization: %s
Description: %s

Respond with JSON only: {"impact_domains":[{"value":"...","confidence":0-1}],"functional_roles":[{"value":"...","confidence":0-1}],"experience_level":{"value":"...","confidence":0-1},"experience_years":null,"sdgs":[{"sdg":1-17,"confidence":0-1}],"matched_keywords":["..."],"overall_confidence":0-1}`,
		job.Title, job.OrgName, job.Description)
}

func cacheKeyFor(job *entity.Job) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("v%d|%s|%s|%s", entity.EnrichmentVersion, job.OrgName, job.Title, job.Description)))
	return hex.EncodeToString(h[:])
}
