package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/fetcher"
	"aidjobs-crawler/internal/infra/geo"
	"aidjobs-crawler/internal/infra/secrets"
	"aidjobs-crawler/internal/observability/metrics"
	"aidjobs-crawler/internal/observability/tracing"
	"aidjobs-crawler/internal/pkg/requestid"
	"aidjobs-crawler/internal/repository"
	"aidjobs-crawler/internal/usecase/extraction"
	"aidjobs-crawler/internal/usecase/normalize"
)

// Config holds the orchestrator's scheduling knobs.
type Config struct {
	TickInterval  time.Duration // scheduler wake-up period (default 5m)
	MaxPerTick    int           // due sources selected per tick (default 20)
	MaxConcurrent int           // process-wide crawl gate (default 3)
	CrawlTimeout  time.Duration // per-source crawl budget
	LockTTL       time.Duration // stale-lock sweep threshold
}

// DefaultConfig carries the scheduler's standard constants.
func DefaultConfig() Config {
	return Config{
		TickInterval:  5 * time.Minute,
		MaxPerTick:    20,
		MaxConcurrent: 3,
		CrawlTimeout:  10 * time.Minute,
		LockTTL:       time.Hour,
	}
}

// PageFetcher is the transport primitive for html-kind sources.
type PageFetcher interface {
	Get(ctx context.Context, rawURL, etag, lastModified string) (*fetcher.FetchResult, error)
}

// FeedFetcher retrieves rss-kind sources.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedURL, etag, lastModified string) ([]fetcher.RSSItem, *fetcher.FetchResult, error)
}

// APIFetcher drives api-kind sources.
type APIFetcher interface {
	FetchItems(ctx context.Context, cfg *entity.APIConfig, since *time.Time, resolver func(string) string) ([]map[string]string, error)
}

// ContentFetcher extracts readable article text from a job's detail page,
// used to fill an empty description before upsert.
type ContentFetcher interface {
	FetchContent(ctx context.Context, rawURL string) (string, error)
}

// Enricher classifies newly-upserted jobs; it runs detached from the crawl.
type Enricher interface {
	Enrich(ctx context.Context, job *entity.Job) (entity.Enrichment, error)
}

// BudgetResetter is implemented by llm.BudgetedProvider; the per-tick AI
// call budget resets at every scheduler wake-up.
type BudgetResetter interface {
	ResetBudget()
}

// Service is the crawl orchestrator.
type Service struct {
	config Config

	sources   repository.SourceRepository
	jobs      repository.JobRepository
	locks     repository.LockRepository
	crawlLogs repository.CrawlLogRepository

	pages PageFetcher
	feeds FeedFetcher
	apis  APIFetcher

	// browser renders JS-heavy pages when the body carries a marker like
	// "javascript required"; the default renderer reports unavailability
	// and the raw body is used as-is.
	browser fetcher.BrowserRenderer

	pipeline   *extraction.Pipeline
	normalizer *normalize.Normalizer
	aiNorm     *normalize.AINormalizer
	geocoder   geo.Geocoder
	enricher   Enricher
	content    ContentFetcher
	secrets    secrets.Store
	budget     BudgetResetter

	logger *slog.Logger

	// onTick, when set, observes every scheduler pass (duration, queued
	// count, error) so the process can export tick metrics without the
	// orchestrator importing a metrics package.
	onTick func(result TickResult, err error, elapsed time.Duration)

	// jitter overrides cadence jitter in tests; nil means random.
	jitter func() float64
	now    func() time.Time
}

// Deps bundles the collaborators NewService wires into a Service.
type Deps struct {
	Sources   repository.SourceRepository
	Jobs      repository.JobRepository
	Locks     repository.LockRepository
	CrawlLogs repository.CrawlLogRepository

	Pages   PageFetcher
	Feeds   FeedFetcher
	APIs    APIFetcher
	Browser fetcher.BrowserRenderer

	Pipeline   *extraction.Pipeline
	Normalizer *normalize.Normalizer
	AINorm     *normalize.AINormalizer
	Geocoder   geo.Geocoder
	Enricher   Enricher
	Content    ContentFetcher
	Secrets    secrets.Store
	Budget     BudgetResetter

	Logger *slog.Logger
	OnTick func(result TickResult, err error, elapsed time.Duration)
}

func NewService(config Config, deps Deps) *Service {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}
	if config.MaxPerTick <= 0 {
		config.MaxPerTick = DefaultConfig().MaxPerTick
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if config.CrawlTimeout <= 0 {
		config.CrawlTimeout = DefaultConfig().CrawlTimeout
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultConfig().LockTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	browser := deps.Browser
	if browser == nil {
		browser = fetcher.NoopBrowserRenderer{}
	}
	geocoder := deps.Geocoder
	if geocoder == nil {
		geocoder = geo.NoopGeocoder{}
	}
	return &Service{
		config:     config,
		sources:    deps.Sources,
		jobs:       deps.Jobs,
		locks:      deps.Locks,
		crawlLogs:  deps.CrawlLogs,
		pages:      deps.Pages,
		feeds:      deps.Feeds,
		apis:       deps.APIs,
		browser:    browser,
		pipeline:   deps.Pipeline,
		normalizer: deps.Normalizer,
		aiNorm:     deps.AINorm,
		geocoder:   geocoder,
		enricher:   deps.Enricher,
		content:    deps.Content,
		secrets:    deps.Secrets,
		budget:     deps.Budget,
		logger:     logger,
		onTick:     deps.OnTick,
		now:        time.Now,
	}
}

// Run is the scheduler loop: wake every TickInterval, run one tick, repeat
// until ctx is cancelled. After 5 consecutive tick errors the interval
// doubles until a tick succeeds. The current tick's crawls drain before Run
// returns.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("orchestrator started",
		slog.Duration("tick_interval", s.config.TickInterval),
		slog.Int("max_concurrent", s.config.MaxConcurrent))

	consecutiveErrors := 0
	interval := s.config.TickInterval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("orchestrator stopping")
			return
		case <-timer.C:
		}

		tickStart := s.now()
		result, err := s.RunDueOnce(ctx)
		if s.onTick != nil {
			s.onTick(result, err, s.now().Sub(tickStart))
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveErrors++
			s.logger.Error("scheduler tick failed",
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.Any("error", err))
			if consecutiveErrors >= 5 {
				interval = s.config.TickInterval * 2
				s.logger.Warn("doubling tick interval after repeated errors",
					slog.Duration("interval", interval))
			}
		} else {
			consecutiveErrors = 0
			interval = s.config.TickInterval
		}

		timer.Reset(interval)
	}
}

// TickResult summarizes one scheduler pass.
type TickResult struct {
	Queued int
}

// RunDueOnce runs one scheduling tick: sweep stale locks, select due
// sources, crawl each behind the concurrency gate.
func (s *Service) RunDueOnce(ctx context.Context) (TickResult, error) {
	if s.budget != nil {
		s.budget.ResetBudget()
	}
	if swept, err := s.locks.SweepStale(ctx, s.config.LockTTL); err != nil {
		s.logger.Warn("stale lock sweep failed", slog.Any("error", err))
	} else if swept > 0 {
		s.logger.Info("stale locks swept", slog.Int("count", swept))
	}

	now := s.now()
	due, err := s.sources.ListDue(ctx, now, s.config.MaxPerTick)
	if err != nil {
		return TickResult{}, fmt.Errorf("list due sources: %w", err)
	}
	if len(due) == 0 {
		return TickResult{}, nil
	}
	s.logger.Info("tick selected due sources", slog.Int("count", len(due)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)
	for _, source := range due {
		g.Go(func() error {
			s.RunSourceWithLock(gctx, source)
			return nil
		})
	}
	_ = g.Wait()
	return TickResult{Queued: len(due)}, nil
}

// RunSourceWithLock crawls one source if its lock can be acquired. Lock
// contention is a silent skip; the lock is released on every exit path.
func (s *Service) RunSourceWithLock(ctx context.Context, source *entity.Source) {
	if err := s.locks.Acquire(ctx, source.ID); err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			s.logger.Debug("source already locked, skipping",
				slog.Int64("source_id", source.ID))
			return
		}
		s.logger.Error("lock acquisition failed",
			slog.Int64("source_id", source.ID), slog.Any("error", err))
		return
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.locks.Release(releaseCtx, source.ID); err != nil {
			s.logger.Error("lock release failed",
				slog.Int64("source_id", source.ID), slog.Any("error", err))
		}
	}()

	crawlCtx, cancel := context.WithTimeout(ctx, s.config.CrawlTimeout)
	defer cancel()
	crawlCtx = requestid.WithRequestID(crawlCtx, requestid.New())
	crawlCtx, span := tracing.GetTracer().Start(crawlCtx, "crawl.source",
		trace.WithAttributes(
			attribute.Int64("source.id", source.ID),
			attribute.String("source.kind", string(source.Kind))))
	defer span.End()

	outcome := s.crawlSource(crawlCtx, source)
	s.updateSourceAfterCrawl(context.WithoutCancel(ctx), source, outcome)
}

// crawlOutcome is the result of one source crawl, before bookkeeping.
type crawlOutcome struct {
	status      entity.CrawlStatus
	message     string
	notModified bool

	found, inserted, updated, skipped, failed int

	etag, lastModified string

	startedAt  time.Time
	durationMS int64
}

func (s *Service) crawlSource(ctx context.Context, source *entity.Source) crawlOutcome {
	start := s.now()
	outcome := crawlOutcome{startedAt: start, status: entity.CrawlStatusOK}

	s.logger.Info("crawl started",
		slog.Int64("source_id", source.ID),
		slog.String("org", source.OrgName),
		slog.String("kind", string(source.Kind)),
		slog.String("request_id", requestid.FromContext(ctx)))

	var results []*extraction.Result
	var err error
	switch source.Kind {
	case entity.SourceKindRSS:
		results, err = s.fetchRSS(ctx, source, &outcome)
	case entity.SourceKindAPI:
		results, err = s.fetchAPI(ctx, source, &outcome)
	default:
		results, err = s.fetchHTML(ctx, source, &outcome)
	}

	if err != nil {
		outcome.status = entity.CrawlStatusFail
		outcome.message = truncate(err.Error(), 500)
		if errors.Is(err, fetcher.ErrRobotsDisallowed) {
			outcome.message = "Blocked by robots.txt"
		}
	} else if !outcome.notModified {
		s.processResults(ctx, source, results, &outcome)
		switch {
		case outcome.inserted > 0 || outcome.updated > 0:
			outcome.message = fmt.Sprintf("Found %d, inserted %d, updated %d",
				outcome.found, outcome.inserted, outcome.updated)
		case outcome.found == 0:
			outcome.status = entity.CrawlStatusWarn
			outcome.message = "No jobs found"
		default:
			outcome.message = "No changes"
		}
	} else {
		outcome.message = "Not modified (304)"
	}

	outcome.durationMS = s.now().Sub(start).Milliseconds()
	return outcome
}

func (s *Service) fetchHTML(ctx context.Context, source *entity.Source, outcome *crawlOutcome) ([]*extraction.Result, error) {
	res, err := s.pages.Get(ctx, source.BaseURL, source.ETag, source.LastModified)
	if err != nil {
		return nil, err
	}
	if res.NotModified {
		outcome.notModified = true
		return nil, nil
	}
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("HTTP %d", res.StatusCode)
	}
	outcome.etag, outcome.lastModified = res.ETag, res.LastModified

	body := res.Body
	if needsBrowserRender(body) {
		renderCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		rendered, renderErr := s.browser.Render(renderCtx, source.BaseURL)
		cancel()
		if renderErr == nil && rendered != "" {
			body = []byte(rendered)
		} else if !errors.Is(renderErr, fetcher.ErrBrowserRenderingUnavailable) {
			s.logger.Warn("browser render failed, using raw body",
				slog.Int64("source_id", source.ID), slog.Any("error", renderErr))
		}
	}

	result, err := s.pipeline.ExtractHTML(ctx, source.BaseURL, body)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return []*extraction.Result{result}, nil
}

func (s *Service) fetchRSS(ctx context.Context, source *entity.Source, outcome *crawlOutcome) ([]*extraction.Result, error) {
	items, res, err := s.feeds.FetchFeed(ctx, source.BaseURL, source.ETag, source.LastModified)
	if err != nil {
		return nil, err
	}
	if res != nil {
		if res.NotModified {
			outcome.notModified = true
			return nil, nil
		}
		outcome.etag, outcome.lastModified = res.ETag, res.LastModified
	}

	results := make([]*extraction.Result, 0, len(items))
	for _, item := range items {
		fields := map[extraction.Field]string{
			extraction.FieldTitle:          item.Title,
			extraction.FieldApplicationURL: item.Link,
			extraction.FieldDescription:    item.Description,
			extraction.FieldLocation:       item.Location,
			extraction.FieldDeadline:       item.Deadline,
		}
		if item.Published != nil {
			fields[extraction.FieldPostedOn] = item.Published.Format("2006-01-02")
		}
		results = append(results, s.pipeline.ExtractStructured(item.Link, fields))
	}
	return results, nil
}

func (s *Service) fetchAPI(ctx context.Context, source *entity.Source, outcome *crawlOutcome) ([]*extraction.Result, error) {
	cfg := source.APIConfig
	if cfg == nil {
		return nil, errors.New("api source has no configuration")
	}

	// Missing required secrets fail the run before any network call.
	templates := []string{cfg.Auth.Token, cfg.Auth.Pass, cfg.Auth.ClientSecret, cfg.Body}
	for _, v := range cfg.Headers {
		templates = append(templates, v)
	}
	for _, v := range cfg.Query {
		templates = append(templates, v)
	}
	if err := secrets.Check(s.secrets, templates...); err != nil {
		return nil, err
	}

	var since *time.Time
	if cfg.Since != nil {
		if source.LastCrawledAt != nil {
			since = source.LastCrawledAt
		} else {
			fallbackDays := cfg.Since.FallbackDays
			if fallbackDays <= 0 {
				fallbackDays = 30
			}
			t := s.now().AddDate(0, 0, -fallbackDays)
			since = &t
		}
	}

	items, err := s.apis.FetchItems(ctx, cfg, since, secrets.ResolverFunc(s.secrets))
	if err != nil {
		return nil, err
	}

	results := make([]*extraction.Result, 0, len(items))
	for _, item := range items {
		fields := make(map[extraction.Field]string, len(item))
		for k, v := range item {
			fields[extraction.Field(k)] = v
		}
		pageURL := fields[extraction.FieldApplicationURL]
		if pageURL == "" {
			pageURL = source.BaseURL
		}
		results = append(results, s.pipeline.ExtractStructured(pageURL, fields))
	}
	return results, nil
}

// browserMarkers trigger the headless-render fallback when present in a
// fetched body.
var browserMarkers = []string{"unsupported browser", "javascript required"}

func needsBrowserRender(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, m := range browserMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// processResults converts extraction results into job upserts, accumulating
// counts. Storage errors are isolated per row.
func (s *Service) processResults(ctx context.Context, source *entity.Source, results []*extraction.Result, outcome *crawlOutcome) {
	var enrichQueue []*entity.Job

	for _, result := range results {
		for _, job := range s.buildJobs(source, result) {
			outcome.found++
			upserted, verdict := s.upsertJob(ctx, source, job)
			switch verdict {
			case upsertInserted:
				outcome.inserted++
			case upsertUpdated:
				outcome.updated++
			case upsertSkipped:
				outcome.skipped++
			case upsertFailed:
				outcome.failed++
			}
			if verdict == upsertInserted && upserted != nil {
				enrichQueue = append(enrichQueue, upserted)
			}
		}
	}

	// A listing crawl that found postings implicitly reports which earlier
	// postings are gone: anything of this source not seen by this crawl is
	// soft-deleted as stale. The sweep runs when at least one row was
	// inserted, updated or skipped; a crawl whose every row failed to store
	// (and a failed crawl, which never reaches here) leaves existing jobs alone.
	if s.jobs != nil && outcome.found > 0 && outcome.inserted+outcome.updated+outcome.skipped > 0 {
		stale, err := s.jobs.MarkStaleNotSeenSince(ctx, source.ID, outcome.startedAt)
		if err != nil {
			s.logger.Warn("stale job sweep failed",
				slog.Int64("source_id", source.ID), slog.Any("error", err))
		} else if stale > 0 {
			s.logger.Info("stale jobs soft-deleted",
				slog.Int64("source_id", source.ID), slog.Int("count", stale))
		}
	}

	if s.enricher != nil && len(enrichQueue) > 0 {
		go s.enrichJobs(context.WithoutCancel(ctx), enrichQueue)
	}
}

// buildJobs materializes entity.Jobs from one extraction result: every
// listing row becomes a job seeded with the page-level fields; a detail
// page that classified as a job becomes a single job.
func (s *Service) buildJobs(source *entity.Source, result *extraction.Result) []*entity.Job {
	if len(result.Jobs) > 0 {
		jobs := make([]*entity.Job, 0, len(result.Jobs))
		for _, candidate := range result.Jobs {
			job := s.baseJob(source, result)
			job.Title = candidate.Title
			job.ApplyURL = resolveAgainst(result.URL, candidate.ApplyURL)
			job.CanonicalHash = extraction.CanonicalID(job.ApplyURL)
			jobs = append(jobs, job)
		}
		return jobs
	}

	if !result.IsJob {
		return nil
	}
	job := s.baseJob(source, result)
	job.Title = result.Value(extraction.FieldTitle)
	applyURL := result.Value(extraction.FieldApplicationURL)
	if applyURL == "" {
		applyURL = result.URL
	}
	job.ApplyURL = resolveAgainst(result.URL, applyURL)
	job.CanonicalHash = extraction.CanonicalID(job.ApplyURL)
	return []*entity.Job{job}
}

func (s *Service) baseJob(source *entity.Source, result *extraction.Result) *entity.Job {
	job := &entity.Job{
		SourceID:    source.ID,
		OrgName:     source.OrgName,
		RawLocation: result.Value(extraction.FieldLocation),
		Description: result.Value(extraction.FieldDescription),
		DedupeHash:  result.DedupeHash,
		Status:      entity.JobStatusActive,
	}
	if employer := result.Value(extraction.FieldEmployer); employer != "" {
		job.OrgName = employer
	}
	if deadline := result.Value(extraction.FieldDeadline); deadline != "" {
		if t, err := time.Parse("2006-01-02", deadline); err == nil {
			job.Deadline = &t
		}
	}
	job.Quality.NeedsReview = result.ManualReview
	return job
}

type upsertVerdict int

const (
	upsertInserted upsertVerdict = iota
	upsertUpdated
	upsertSkipped
	upsertFailed
)

// upsertJob runs the pre-upsert transforms (normalize, AI disambiguation,
// geocode, quality) and hands the job to the storage adapter. Every
// transform is best-effort; only the storage invariants can skip a job.
func (s *Service) upsertJob(ctx context.Context, source *entity.Source, job *entity.Job) (*entity.Job, upsertVerdict) {
	if len(strings.TrimSpace(job.Title)) < 3 || job.ApplyURL == "" ||
		strings.HasPrefix(job.ApplyURL, "#") || strings.HasPrefix(job.ApplyURL, "javascript:") {
		s.logFailedInsert(ctx, source, job, errors.New("missing title or apply url"))
		return nil, upsertSkipped
	}

	if s.normalizer != nil {
		s.normalizer.Apply(ctx, normalize.Raw{Country: job.RawLocation}, job)
	}
	if s.aiNorm != nil {
		rawDeadline := ""
		if job.Deadline != nil {
			rawDeadline = job.Deadline.Format("2006-01-02")
		}
		s.aiNorm.Disambiguate(ctx, job, rawDeadline, "")
	}

	if loc := s.geocoder.Geocode(ctx, job.RawLocation); loc.Found {
		job.Remote = loc.Remote
		if loc.Country != "" {
			job.Country = loc.Country
		}
		if loc.CountryISO2 != "" {
			job.CountryISO2 = loc.CountryISO2
		}
		job.City = loc.City
		if loc.Lat != 0 || loc.Lon != 0 {
			lat, lon := loc.Lat, loc.Lon
			job.Lat, job.Lon = &lat, &lon
		}
	}

	s.fillDescription(ctx, job)

	quality := extraction.ScoreQuality(job, s.now())
	quality.NeedsReview = quality.NeedsReview || job.Quality.NeedsReview
	job.Quality = quality

	// Storage may be disabled (EXTRACTION_USE_STORAGE=false): the full
	// pipeline still runs for its snapshots and logs, but nothing persists.
	if s.jobs == nil {
		return nil, upsertSkipped
	}

	result, err := s.jobs.UpsertByCanonicalHash(ctx, job)
	if err != nil {
		s.logFailedInsert(ctx, source, job, err)
		return nil, upsertFailed
	}
	switch {
	case result.Inserted || result.Restored:
		// A restored job counts as inserted, never updated.
		return result.Job, upsertInserted
	case result.Updated:
		return result.Job, upsertUpdated
	default:
		return result.Job, upsertSkipped
	}
}

// fillDescription fetches readable detail-page text when extraction left
// the description empty. Best-effort, metered through the content-fetch
// counters.
func (s *Service) fillDescription(ctx context.Context, job *entity.Job) {
	if s.content == nil || job.ApplyURL == "" {
		return
	}
	if strings.TrimSpace(job.Description) != "" {
		metrics.RecordContentFetchSkipped()
		return
	}
	start := s.now()
	content, err := s.content.FetchContent(ctx, job.ApplyURL)
	if err != nil {
		metrics.RecordContentFetchFailed(s.now().Sub(start))
		return
	}
	metrics.RecordContentFetchSuccess(s.now().Sub(start), len(content))
	job.Description = content
}

func (s *Service) logFailedInsert(ctx context.Context, source *entity.Source, job *entity.Job, cause error) {
	if s.jobs == nil {
		return
	}
	rawURL := job.ApplyURL
	if rawURL == "" {
		rawURL = source.BaseURL
	}
	if err := s.jobs.LogFailedInsert(ctx, source.ID, rawURL, cause); err != nil {
		s.logger.Warn("failed-insert logging failed",
			slog.Int64("source_id", source.ID), slog.Any("error", err))
	}
}

func (s *Service) enrichJobs(ctx context.Context, jobs []*entity.Job) {
	for _, job := range jobs {
		enrichCtx, cancel := context.WithTimeout(ctx, time.Minute)
		enrichment, err := s.enricher.Enrich(enrichCtx, job)
		cancel()
		if err != nil {
			s.logger.Warn("enrichment failed",
				slog.Int64("job_id", job.ID), slog.Any("error", err))
			continue
		}
		job.Enrichment = enrichment
		// Low-confidence enrichment flags the job for review as an
		// auto-policy side effect.
		if enrichment.LowConfidence {
			job.Quality.NeedsReview = true
		}
		if err := s.jobs.Update(ctx, job); err != nil {
			s.logger.Warn("enrichment persist failed",
				slog.Int64("job_id", job.ID), slog.Any("error", err))
		}
	}
}

// updateSourceAfterCrawl persists the post-crawl bookkeeping: counters,
// adaptive next-run, the auto-pause circuit breaker, and the crawl log.
func (s *Service) updateSourceAfterCrawl(ctx context.Context, source *entity.Source, outcome crawlOutcome) {
	failures, noChange := nextCounters(source, outcome.status, outcome.inserted, outcome.updated, outcome.notModified)

	message := outcome.message
	if failures >= autoPauseThreshold && source.Status == entity.SourceStatusActive {
		source.Status = entity.SourceStatusPaused
		message += " (auto-paused after 5 failures)"
	}

	nextRun := s.computeNextRun(source, outcome, failures, noChange)

	now := s.now()
	source.LastCrawledAt = &now
	source.LastCrawlStatus = outcome.status
	source.LastCrawlMessage = truncate(message, 500)
	source.ConsecutiveFailures = failures
	source.ConsecutiveNoChange = noChange
	source.NextRunAt = &nextRun
	if outcome.etag != "" {
		source.ETag = outcome.etag
	}
	if outcome.lastModified != "" {
		source.LastModified = outcome.lastModified
	}

	if err := s.sources.UpdateAfterCrawl(ctx, source); err != nil {
		s.logger.Error("source update failed",
			slog.Int64("source_id", source.ID), slog.Any("error", err))
	}

	log := &entity.CrawlLog{
		SourceID:   source.ID,
		StartedAt:  outcome.startedAt,
		DurationMS: outcome.durationMS,
		Found:      outcome.found,
		Inserted:   outcome.inserted,
		Updated:    outcome.updated,
		Skipped:    outcome.skipped,
		Failed:     outcome.failed,
		Status:     outcome.status,
	}
	log.SetMessage(message)
	if err := s.crawlLogs.Create(ctx, log); err != nil {
		s.logger.Error("crawl log write failed",
			slog.Int64("source_id", source.ID), slog.Any("error", err))
	}

	metrics.RecordSourceCrawl(source.ID,
		time.Duration(outcome.durationMS)*time.Millisecond,
		int64(outcome.found), int64(outcome.inserted), int64(outcome.skipped))
	if outcome.status == entity.CrawlStatusFail {
		metrics.RecordSourceCrawlError(source.ID, "crawl_failed")
	}

	s.logger.Info("crawl finished",
		slog.Int64("source_id", source.ID),
		slog.String("status", string(outcome.status)),
		slog.Int("found", outcome.found),
		slog.Int("inserted", outcome.inserted),
		slog.Int("updated", outcome.updated),
		slog.Int("failures", failures),
		slog.Time("next_run", nextRun))
}

// computeNextRun prefers a source's cron override when one is set, falling
// back to the adaptive-cadence formula.
func (s *Service) computeNextRun(source *entity.Source, outcome crawlOutcome, failures, noChange int) time.Time {
	now := s.now()
	if source.CronExpr != nil && *source.CronExpr != "" && failures == 0 {
		if next, ok := nextCronRun(*source.CronExpr, now); ok {
			return next
		}
		s.logger.Warn("invalid cron expression, using adaptive cadence",
			slog.Int64("source_id", source.ID), slog.String("cron", *source.CronExpr))
	}
	return ComputeNextRun(source, outcome.inserted, outcome.updated, failures, noChange, now, s.jitter)
}

func resolveAgainst(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
