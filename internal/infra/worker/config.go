package worker

import (
	"fmt"
	"log/slog"
	"time"

	"aidjobs-crawler/internal/pkg/config"
)

// WorkerConfig holds the orchestrator process's scheduling and operational
// knobs. Every field loads fail-open from the
// environment: an invalid value falls back to its default with a warning
// log and a config-validation metric, never a fatal exit.
type WorkerConfig struct {
	// Env is the deployment environment (AIDJOBS_ENV, dev|production).
	// Dev mode logs human-readable text and includes error details in
	// admin envelopes; production logs JSON and masks internals.
	Env string

	// TickInterval is the scheduler wake-up period (default 5m).
	TickInterval time.Duration

	// MaxSourcesPerTick caps the due-source selection per tick (default 20).
	MaxSourcesPerTick int

	// MaxConcurrentCrawls is the process-wide crawl gate (default 3).
	MaxConcurrentCrawls int

	// CrawlTimeout bounds a single source crawl end to end.
	CrawlTimeout time.Duration

	// LockTTL is the stale-lock sweep threshold.
	LockTTL time.Duration

	// HealthPort serves liveness/readiness probes.
	HealthPort int

	// DisableScheduler starts the process without the background loop
	// (AIDJOBS_DISABLE_SCHEDULER); crawls then only run via the
	// administrative run_source/run_due operations.
	DisableScheduler bool

	// SnapshotPath is the snapshot store root (SNAPSHOT_PATH).
	SnapshotPath string

	// AIMaxCalls is the per-tick AI extraction budget
	// (AI_EXTRACTION_MAX_CALLS, default 2000).
	AIMaxCalls int

	// ShadowMode routes upserts to a sibling table for comparison
	// (EXTRACTION_SHADOW_MODE).
	ShadowMode bool

	// UseStorage gates persistence entirely (EXTRACTION_USE_STORAGE);
	// false means extract-and-log only.
	UseStorage bool
}

// DefaultConfig carries the scheduler's standard constants.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		Env:                 "production",
		TickInterval:        5 * time.Minute,
		MaxSourcesPerTick:   20,
		MaxConcurrentCrawls: 3,
		CrawlTimeout:        10 * time.Minute,
		LockTTL:             time.Hour,
		HealthPort:          9091,
		DisableScheduler:    false,
		SnapshotPath:        "snapshots",
		AIMaxCalls:          2000,
		ShadowMode:          false,
		UseStorage:          true,
	}
}

// Validate checks the loaded values; LoadConfigFromEnv has already clamped
// each field, so this only guards programmatic construction.
func (c *WorkerConfig) Validate() error {
	var errs []error
	if c.Env != "dev" && c.Env != "production" {
		errs = append(errs, fmt.Errorf("env must be dev or production, got %q", c.Env))
	}
	if err := config.ValidatePositiveDuration(c.TickInterval); err != nil {
		errs = append(errs, fmt.Errorf("tick interval: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxSourcesPerTick, 1, 500); err != nil {
		errs = append(errs, fmt.Errorf("max sources per tick: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxConcurrentCrawls, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("max concurrent crawls: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.CrawlTimeout); err != nil {
		errs = append(errs, fmt.Errorf("crawl timeout: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.LockTTL); err != nil {
		errs = append(errs, fmt.Errorf("lock ttl: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if c.AIMaxCalls < 0 {
		errs = append(errs, fmt.Errorf("ai max calls must be non-negative, got %d", c.AIMaxCalls))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration fail-open: each field
// parsed independently, invalid values replaced by their default with a
// warning log plus a fallback metric. The returned error is always nil,
// kept for call-site symmetry with the rest of the config loaders.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	warn := func(field string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	env := config.LoadEnvString("AIDJOBS_ENV", cfg.Env)
	if env != "dev" && env != "production" {
		logger.Warn("Configuration fallback applied",
			slog.String("field", "env"),
			slog.String("warning", fmt.Sprintf("AIDJOBS_ENV=%q is not dev|production, using %q", env, cfg.Env)))
		metrics.RecordValidationError("env")
		metrics.RecordFallback("env", "default")
		fallbackApplied = true
	} else {
		cfg.Env = env
	}

	result := config.LoadEnvDuration("TICK_INTERVAL", cfg.TickInterval, config.ValidatePositiveDuration)
	cfg.TickInterval = result.Value.(time.Duration)
	warn("tick_interval", result)

	result = config.LoadEnvInt("MAX_SOURCES_PER_TICK", cfg.MaxSourcesPerTick, func(v int) error {
		return config.ValidateIntRange(v, 1, 500)
	})
	cfg.MaxSourcesPerTick = result.Value.(int)
	warn("max_sources_per_tick", result)

	result = config.LoadEnvInt("MAX_CONCURRENT_CRAWLS", cfg.MaxConcurrentCrawls, func(v int) error {
		return config.ValidateIntRange(v, 1, 50)
	})
	cfg.MaxConcurrentCrawls = result.Value.(int)
	warn("max_concurrent_crawls", result)

	result = config.LoadEnvDuration("CRAWL_TIMEOUT", cfg.CrawlTimeout, config.ValidatePositiveDuration)
	cfg.CrawlTimeout = result.Value.(time.Duration)
	warn("crawl_timeout", result)

	result = config.LoadEnvDuration("LOCK_TTL", cfg.LockTTL, config.ValidatePositiveDuration)
	cfg.LockTTL = result.Value.(time.Duration)
	warn("lock_ttl", result)

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	warn("health_port", result)

	result = config.LoadEnvBool("AIDJOBS_DISABLE_SCHEDULER", cfg.DisableScheduler)
	cfg.DisableScheduler = result.Value.(bool)
	warn("disable_scheduler", result)

	cfg.SnapshotPath = config.LoadEnvString("SNAPSHOT_PATH", cfg.SnapshotPath)

	result = config.LoadEnvInt("AI_EXTRACTION_MAX_CALLS", cfg.AIMaxCalls, func(v int) error {
		if v < 0 {
			return fmt.Errorf("must be non-negative, got %d", v)
		}
		return nil
	})
	cfg.AIMaxCalls = result.Value.(int)
	warn("ai_extraction_max_calls", result)

	result = config.LoadEnvBool("EXTRACTION_SHADOW_MODE", cfg.ShadowMode)
	cfg.ShadowMode = result.Value.(bool)
	warn("extraction_shadow_mode", result)

	result = config.LoadEnvBool("EXTRACTION_USE_STORAGE", cfg.UseStorage)
	cfg.UseStorage = result.Value.(bool)
	warn("extraction_use_storage", result)

	if fallbackApplied {
		metrics.SetFallbackActive("any", true)
	}
	metrics.RecordLoadTimestamp()
	return &cfg, nil
}
