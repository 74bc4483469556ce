// Command worker runs the crawl fleet: the scheduling orchestrator, the
// extraction pipeline, the enrichment engine, and the supporting health and
// metrics servers.
package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"aidjobs-crawler/internal/infra/adapter/persistence/postgres"
	"aidjobs-crawler/internal/infra/db"
	"aidjobs-crawler/internal/infra/fetcher"
	"aidjobs-crawler/internal/infra/geo"
	"aidjobs-crawler/internal/infra/llm"
	"aidjobs-crawler/internal/infra/plugin"
	"aidjobs-crawler/internal/infra/search"
	"aidjobs-crawler/internal/infra/secrets"
	"aidjobs-crawler/internal/infra/snapshot"
	workerPkg "aidjobs-crawler/internal/infra/worker"
	"aidjobs-crawler/internal/observability/logging"
	"aidjobs-crawler/internal/observability/slo"
	"aidjobs-crawler/internal/resilience/circuitbreaker"
	"aidjobs-crawler/internal/usecase/admin"
	"aidjobs-crawler/internal/usecase/enrichment"
	"aidjobs-crawler/internal/usecase/extraction"
	"aidjobs-crawler/internal/usecase/normalize"
	"aidjobs-crawler/internal/usecase/orchestrator"
	pkgconfig "aidjobs-crawler/pkg/config"
)

const userAgent = "aidjobs-crawler/1.0 (+https://aidjobs.app/crawler)"

func main() {
	env := pkgconfig.GetEnvString("AIDJOBS_ENV", "production")
	logger := initLogger(env)

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("env", workerConfig.Env),
		slog.Duration("tick_interval", workerConfig.TickInterval),
		slog.Int("max_sources_per_tick", workerConfig.MaxSourcesPerTick),
		slog.Int("max_concurrent_crawls", workerConfig.MaxConcurrentCrawls),
		slog.Bool("scheduler_disabled", workerConfig.DisableScheduler),
		slog.Bool("shadow_mode", workerConfig.ShadowMode),
		slog.Int("health_port", workerConfig.HealthPort))

	orch, adminSvc := buildServices(logger, database, workerConfig, workerMetrics)

	startMetricsServer(ctx, logger)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	startMaintenanceCron(ctx, logger, adminSvc)
	startDBHealthProbe(ctx, logger, database, healthServer)

	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	if workerConfig.DisableScheduler {
		logger.Info("scheduler disabled, serving administrative operations only")
		<-ctx.Done()
		return
	}
	orch.Run(ctx)
}

// initLogger builds the structured logger: JSON in production, text in dev.
func initLogger(env string) *slog.Logger {
	var logger *slog.Logger
	if env == "dev" {
		logger = logging.NewTextLogger()
	} else {
		logger = logging.NewLogger()
	}
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the pool and runs the idempotent migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// buildServices wires every collaborator of the crawl control flow.
func buildServices(logger *slog.Logger, database *sql.DB, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) (*orchestrator.Service, *admin.Service) {
	fetchConfig, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("invalid fetch configuration, using defaults", slog.Any("error", err))
		fetchConfig = fetcher.DefaultConfig()
	}

	robotsClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
	robots := fetcher.NewRobotsCache(robotsClient, userAgent)
	limiter := fetcher.NewHostLimiter(1, 2)
	httpFetcher := fetcher.NewHTTPFetcher(fetchConfig, limiter, robots, userAgent)
	rssFetcher := fetcher.NewRSSFetcher(httpFetcher)
	apiFetcher := fetcher.NewAPIFetcher(fetchConfig, limiter)

	budgeted := createAIProvider(logger, cfg.AIMaxCalls)
	var aiExtractor *extraction.AIExtractor
	var aiNorm *normalize.AINormalizer
	if budgeted != nil {
		aiExtractor = extraction.NewAIExtractor(budgeted)
		aiNorm = normalize.NewAINormalizer(budgeted)
	}

	snapshots := snapshot.NewStore(cfg.SnapshotPath, extraction.PipelineVersion)
	registry := plugin.NewRegistry()
	pipeline := extraction.NewPipeline(extraction.NewClassifier(nil), registry, aiExtractor, snapshots)

	index := createSearchIndex(logger)
	var jobRepo = postgres.NewJobRepo(database, index)
	if cfg.ShadowMode {
		logger.Warn("shadow mode enabled: upserts write to jobs_shadow")
		jobRepo = postgres.NewShadowJobRepo(database, index)
	}
	sourceRepo := postgres.NewSourceRepo(database)
	lockRepo := postgres.NewLockRepo(database)
	crawlLogRepo := postgres.NewCrawlLogRepo(database)
	taxonomyRepo := postgres.NewTaxonomyRepo(database)
	historyRepo := postgres.NewEnrichmentHistoryRepo(database)

	normalizer := normalize.NewNormalizer(normalize.NewCache(taxonomyRepo))
	geocoder := geo.NewNominatim(
		pkgconfig.GetEnvString("GEOCODE_CACHE_PATH", filepath.Join(cfg.SnapshotPath, "..", "geocache")),
		userAgent, nil)

	var enricher orchestrator.Enricher
	if budgeted != nil {
		enricher = enrichment.NewService(budgeted, enrichment.NewEngine(nil), historyRepo)
	}

	var contentFetcher orchestrator.ContentFetcher
	if fetchConfig.Enabled {
		contentFetcher = fetcher.NewReadabilityFetcher(fetchConfig)
		logger.Info("content fetching enabled",
			slog.Duration("timeout", fetchConfig.Timeout))
	} else {
		logger.Info("content fetching disabled")
	}

	orchConfig := orchestrator.Config{
		TickInterval:  cfg.TickInterval,
		MaxPerTick:    cfg.MaxSourcesPerTick,
		MaxConcurrent: cfg.MaxConcurrentCrawls,
		CrawlTimeout:  cfg.CrawlTimeout,
		LockTTL:       cfg.LockTTL,
	}
	deps := orchestrator.Deps{
		Sources:    sourceRepo,
		Jobs:       jobRepo,
		Locks:      lockRepo,
		CrawlLogs:  crawlLogRepo,
		Pages:      httpFetcher,
		Feeds:      rssFetcher,
		APIs:       apiFetcher,
		Browser:    fetcher.NoopBrowserRenderer{},
		Pipeline:   pipeline,
		Normalizer: normalizer,
		AINorm:     aiNorm,
		Geocoder:   geocoder,
		Enricher:   enricher,
		Content:    contentFetcher,
		Secrets:    secrets.NewEnvStore("AIDJOBS_SECRET_"),
		Logger:     logger,
		OnTick: newTickObserver(metrics),
	}
	if budgeted != nil {
		deps.Budget = budgeted
	}
	if !cfg.UseStorage {
		logger.Warn("storage disabled: extraction results will not be persisted")
		deps.Jobs = nil
	}

	orch := orchestrator.NewService(orchConfig, deps)
	adminSvc := admin.NewService(orch, sourceRepo, jobRepo, index, admin.NewLinkValidator(), cfg.Env == "dev", logger)
	return orch, adminSvc
}

// newTickObserver feeds tick outcomes into the worker metrics and keeps the
// SLO gauges current from the scheduler's own success ratio.
func newTickObserver(metrics *workerPkg.WorkerMetrics) func(orchestrator.TickResult, error, time.Duration) {
	var total, failed float64
	return func(result orchestrator.TickResult, err error, elapsed time.Duration) {
		metrics.RecordJobDuration(elapsed.Seconds())
		total++
		if err != nil {
			failed++
			metrics.RecordJobRun("failure")
		} else {
			metrics.RecordJobRun("success")
			metrics.RecordFeedsProcessed(result.Queued)
			metrics.RecordLastSuccess()
		}
		slo.UpdateErrorRate(failed / total)
		slo.UpdateAvailability((total - failed) / total)
	}
}

// createAIProvider selects the LLM backend: AI_PROVIDER=claude uses the
// Anthropic API and AI_PROVIDER=openrouter uses OpenRouter via the
// OpenAI-compatible client; a missing key for an explicitly selected
// provider is fatal, and any other non-empty value exits with an error.
// With AI_PROVIDER unset, OpenRouter is used when OPENROUTER_API_KEY is
// present, else Anthropic when ANTHROPIC_API_KEY is present; with neither
// key, AI features are disabled.
func createAIProvider(logger *slog.Logger, maxCalls int) *llm.BudgetedProvider {
	providerType := os.Getenv("AI_PROVIDER")

	switch providerType {
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			logger.Error("ANTHROPIC_API_KEY is required when AI_PROVIDER=claude")
			os.Exit(1)
		}
		logger.Info("using Claude API for classification")
		return llm.NewBudgetedProvider(llm.NewAnthropicProvider(apiKey, llm.DefaultAnthropicConfig()), maxCalls)
	case "openrouter":
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			logger.Error("OPENROUTER_API_KEY is required when AI_PROVIDER=openrouter")
			os.Exit(1)
		}
		logger.Info("using OpenRouter for classification",
			slog.String("model", os.Getenv("OPENROUTER_MODEL")))
		return llm.NewBudgetedProvider(
			llm.NewOpenAIProvider(apiKey, llm.DefaultOpenRouterConfig(os.Getenv("OPENROUTER_MODEL"))), maxCalls)
	case "":
		if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
			logger.Info("using OpenRouter for classification",
				slog.String("model", os.Getenv("OPENROUTER_MODEL")))
			return llm.NewBudgetedProvider(
				llm.NewOpenAIProvider(apiKey, llm.DefaultOpenRouterConfig(os.Getenv("OPENROUTER_MODEL"))), maxCalls)
		}
		if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
			logger.Info("using Claude API for classification")
			return llm.NewBudgetedProvider(llm.NewAnthropicProvider(apiKey, llm.DefaultAnthropicConfig()), maxCalls)
		}
		logger.Warn("no AI provider configured: AI extraction, normalization, and enrichment disabled")
		return nil
	default:
		logger.Error("invalid AI_PROVIDER",
			slog.String("provider", providerType),
			slog.String("expected", "claude or openrouter"))
		os.Exit(1)
		return nil
	}
}

// createSearchIndex wires the Meilisearch sync client when configured.
func createSearchIndex(logger *slog.Logger) search.Index {
	baseURL := os.Getenv("MEILISEARCH_URL")
	if baseURL == "" {
		logger.Info("search index sync disabled (MEILISEARCH_URL not set)")
		return search.NoopIndex{}
	}
	indexName := pkgconfig.GetEnvString("MEILI_JOBS_INDEX", "jobs")
	logger.Info("search index sync enabled", slog.String("index", indexName))
	return search.NewMeiliIndex(baseURL, os.Getenv("MEILISEARCH_KEY"), indexName)
}

// startDBHealthProbe drives the readiness flag from a circuit-broken
// periodic database ping: readiness drops while the breaker is open so the
// platform stops routing work at a process whose store is unreachable.
func startDBHealthProbe(ctx context.Context, logger *slog.Logger, database *sql.DB, health *workerPkg.HealthServer) {
	breaker := circuitbreaker.NewDBCircuitBreaker(database)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			var one int
			err := breaker.QueryRowContext(probeCtx, "SELECT 1").Scan(&one)
			cancel()
			if err != nil || breaker.IsOpen() {
				logger.Warn("database health probe failed", slog.Any("error", err))
				health.SetReady(false)
				continue
			}
			health.SetReady(true)
		}
	}()
}

// startMaintenanceCron schedules the housekeeping operations the fleet runs
// for itself: expired-job cleanup nightly, search-index sync shortly after.
func startMaintenanceCron(ctx context.Context, logger *slog.Logger, adminSvc *admin.Service) {
	c := cron.New()
	_, err := c.AddFunc("17 4 * * *", func() {
		env := adminSvc.CleanupExpired(ctx)
		logger.Info("cleanup_expired ran", slog.String("status", env.Status))
	})
	if err != nil {
		logger.Error("failed to schedule cleanup_expired", slog.Any("error", err))
	}
	_, err = c.AddFunc("47 4 * * *", func() {
		env := adminSvc.SyncSearchIndex(ctx, true)
		logger.Info("sync_search_index ran", slog.String("status", env.Status))
	})
	if err != nil {
		logger.Error("failed to schedule sync_search_index", slog.Any("error", err))
	}
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
}
