// Package admin implements the named administrative operations the
// collaborator front-end invokes: run_source, run_due,
// cleanup_expired, delete_bulk, restore, validate_links, and
// sync_search_index, all returning the uniform {status, data, error}
// envelope.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/search"
	"aidjobs-crawler/internal/repository"
	"aidjobs-crawler/internal/usecase/orchestrator"
)

// Envelope is the uniform operation result. Exactly one of
// Data/Error is populated; Status is "ok" or "error".
type Envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func ok(data any) Envelope {
	return Envelope{Status: "ok", Data: data}
}

// DeleteMode selects the delete_bulk path.
type DeleteMode string

const (
	DeleteModeSoft DeleteMode = "soft"
	DeleteModeHard DeleteMode = "hard"
)

// Service wires the administrative operations to their collaborators.
type Service struct {
	orchestrator *orchestrator.Service
	sources      repository.SourceRepository
	jobs         repository.JobRepository
	index        search.Index
	links        *LinkValidator
	logger       *slog.Logger

	// devMode includes raw error details in envelopes; production masks
	// internals.
	devMode bool
}

func NewService(orch *orchestrator.Service, sources repository.SourceRepository, jobs repository.JobRepository, index search.Index, links *LinkValidator, devMode bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if index == nil {
		index = search.NoopIndex{}
	}
	return &Service{
		orchestrator: orch,
		sources:      sources,
		jobs:         jobs,
		index:        index,
		links:        links,
		logger:       logger,
		devMode:      devMode,
	}
}

func (s *Service) fail(op string, err error) Envelope {
	s.logger.Error("admin operation failed", slog.String("op", op), slog.Any("error", err))
	if s.devMode {
		return Envelope{Status: "error", Error: fmt.Sprintf("%s: %v", op, err)}
	}
	return Envelope{Status: "error", Error: op + " failed"}
}

// RunSource triggers one crawl of the given source, honoring its lock.
func (s *Service) RunSource(ctx context.Context, id int64) Envelope {
	source, err := s.sources.Get(ctx, id)
	if err != nil {
		return s.fail("run_source", err)
	}
	if source == nil {
		return s.fail("run_source", entity.ErrNotFound)
	}
	s.orchestrator.RunSourceWithLock(ctx, source)
	return ok(map[string]any{"source_id": id})
}

// RunDue runs one scheduler tick immediately.
func (s *Service) RunDue(ctx context.Context) Envelope {
	result, err := s.orchestrator.RunDueOnce(ctx)
	if err != nil {
		return s.fail("run_due", err)
	}
	return ok(map[string]any{"queued": result.Queued})
}

// CleanupExpired soft-deletes active jobs whose deadline has passed.
func (s *Service) CleanupExpired(ctx context.Context) Envelope {
	now := time.Now()
	expired, err := s.jobs.SearchWithFilters(ctx, nil, repository.JobSearchFilters{To: &now})
	if err != nil {
		return s.fail("cleanup_expired", err)
	}
	deleted := 0
	for _, job := range expired {
		if job.Deadline == nil || !job.Deadline.Before(now) {
			continue
		}
		if err := s.jobs.SoftDelete(ctx, job.ID, "cleanup", "deadline passed"); err != nil {
			s.logger.Warn("cleanup soft-delete failed",
				slog.Int64("job_id", job.ID), slog.Any("error", err))
			continue
		}
		deleted++
	}
	return ok(map[string]any{"deleted": deleted})
}

// DeleteBulk deletes every job matching filter. Hard deletes require a
// non-empty reason. The response always carries the impact
// analysis so callers can audit what was touched; with execute=false the
// analysis is all that happens.
func (s *Service) DeleteBulk(ctx context.Context, filters repository.JobSearchFilters, mode DeleteMode, reason string, execute bool) Envelope {
	if mode != DeleteModeSoft && mode != DeleteModeHard {
		return s.fail("delete_bulk", fmt.Errorf("unknown mode %q", mode))
	}
	if mode == DeleteModeHard && reason == "" {
		return s.fail("delete_bulk", errors.New("hard delete requires a reason"))
	}
	if reason == "" {
		reason = "bulk delete"
	}

	impact, err := s.jobs.AnalyzeImpact(ctx, filters)
	if err != nil {
		return s.fail("delete_bulk", err)
	}
	if !execute {
		return ok(map[string]any{"impact": impact, "executed": false})
	}

	jobs, err := s.jobs.SearchWithFilters(ctx, nil, filters)
	if err != nil {
		return s.fail("delete_bulk", err)
	}
	deleted, failed := 0, 0
	for _, job := range jobs {
		var delErr error
		if mode == DeleteModeHard {
			delErr = s.jobs.Delete(ctx, job.ID)
		} else {
			delErr = s.jobs.SoftDelete(ctx, job.ID, "admin", reason)
		}
		if delErr != nil {
			failed++
			continue
		}
		deleted++
	}
	return ok(map[string]any{"impact": impact, "executed": true, "deleted": deleted, "failed": failed})
}

// Restore clears the soft-delete state of the given jobs.
func (s *Service) Restore(ctx context.Context, ids []int64) Envelope {
	restored, failed := 0, 0
	for _, id := range ids {
		if err := s.jobs.Restore(ctx, id); err != nil {
			failed++
			continue
		}
		restored++
	}
	return ok(map[string]any{"restored": restored, "failed": failed})
}

// ValidateLinks checks apply URLs, by job ID or raw URL, through the
// cached link validator.
func (s *Service) ValidateLinks(ctx context.Context, ids []int64, urls []string, useCache bool) Envelope {
	if s.links == nil {
		return s.fail("validate_links", errors.New("link validator not configured"))
	}
	targets := make([]string, 0, len(ids)+len(urls))
	for _, id := range ids {
		job, err := s.jobs.Get(ctx, id)
		if err != nil || job == nil {
			continue
		}
		targets = append(targets, job.ApplyURL)
	}
	targets = append(targets, urls...)

	results := make(map[string]LinkResult, len(targets))
	for _, target := range targets {
		results[target] = s.links.Validate(ctx, target, useCache)
	}
	return ok(map[string]any{"checked": len(results), "results": results})
}

// SyncSearchIndex diffs the store against the external index. With
// execute=false it only reports the drift; with execute=true it pushes
// missing documents and removes orphans in batches.
func (s *Service) SyncSearchIndex(ctx context.Context, execute bool) Envelope {
	stored, err := s.jobs.List(ctx)
	if err != nil {
		return s.fail("sync_search_index", err)
	}
	indexed, err := s.index.ListDocumentIDs(ctx)
	if err != nil {
		return s.fail("sync_search_index", err)
	}

	storedIDs := make(map[int64]*entity.Job, len(stored))
	for _, job := range stored {
		storedIDs[job.ID] = job
	}
	indexedIDs := make(map[int64]bool, len(indexed))
	for _, id := range indexed {
		indexedIDs[id] = true
	}

	var missing []search.JobDocument
	for id, job := range storedIDs {
		if !indexedIDs[id] {
			missing = append(missing, toDocument(job))
		}
	}
	var orphans []int64
	for _, id := range indexed {
		if _, exists := storedIDs[id]; !exists {
			orphans = append(orphans, id)
		}
	}

	if !execute {
		return ok(map[string]any{"missing": len(missing), "orphans": len(orphans), "executed": false})
	}

	if err := s.index.UpsertDocuments(ctx, missing); err != nil {
		return s.fail("sync_search_index", err)
	}
	if err := s.index.DeleteDocuments(ctx, orphans); err != nil {
		return s.fail("sync_search_index", err)
	}
	return ok(map[string]any{"missing": len(missing), "orphans": len(orphans), "executed": true})
}

func toDocument(job *entity.Job) search.JobDocument {
	doc := search.JobDocument{
		ID:          job.ID,
		OrgName:     job.OrgName,
		Title:       job.Title,
		ApplyURL:    job.ApplyURL,
		Country:     job.Country,
		CountryISO2: job.CountryISO2,
		City:        job.City,
		Remote:      job.Remote,
		Description: job.Description,
		Level:       job.Level,
		Tags:        job.Tags,
	}
	if job.Deadline != nil {
		doc.Deadline = job.Deadline.Format("2006-01-02")
	}
	for _, sdg := range job.Enrichment.SDGs {
		doc.SDGs = append(doc.SDGs, sdg.SDG)
	}
	return doc
}
