package worker

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// globalTestMetrics is shared across tests: promauto registers against the
// default registry, so NewWorkerMetrics must only run once per process.
var globalTestMetrics = NewWorkerMetrics()

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 5*time.Minute, cfg.TickInterval)
	assert.Equal(t, 20, cfg.MaxSourcesPerTick)
	assert.Equal(t, 3, cfg.MaxConcurrentCrawls)
	assert.Equal(t, 2000, cfg.AIMaxCalls)
	assert.False(t, cfg.DisableScheduler)
	assert.True(t, cfg.UseStorage)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("AIDJOBS_ENV", "dev")
	t.Setenv("TICK_INTERVAL", "1m")
	t.Setenv("MAX_SOURCES_PER_TICK", "5")
	t.Setenv("MAX_CONCURRENT_CRAWLS", "2")
	t.Setenv("AIDJOBS_DISABLE_SCHEDULER", "true")
	t.Setenv("SNAPSHOT_PATH", "/var/snapshots")
	t.Setenv("AI_EXTRACTION_MAX_CALLS", "100")

	cfg, err := LoadConfigFromEnv(slog.Default(), globalTestMetrics)
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, time.Minute, cfg.TickInterval)
	assert.Equal(t, 5, cfg.MaxSourcesPerTick)
	assert.Equal(t, 2, cfg.MaxConcurrentCrawls)
	assert.True(t, cfg.DisableScheduler)
	assert.Equal(t, "/var/snapshots", cfg.SnapshotPath)
	assert.Equal(t, 100, cfg.AIMaxCalls)
}

func TestLoadConfigFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("AIDJOBS_ENV", "staging")
	t.Setenv("TICK_INTERVAL", "not-a-duration")
	t.Setenv("MAX_CONCURRENT_CRAWLS", "0")
	t.Setenv("WORKER_HEALTH_PORT", "80")

	cfg, err := LoadConfigFromEnv(slog.Default(), globalTestMetrics)
	require.NoError(t, err)
	defaults := DefaultConfig()
	assert.Equal(t, defaults.Env, cfg.Env)
	assert.Equal(t, defaults.TickInterval, cfg.TickInterval)
	assert.Equal(t, defaults.MaxConcurrentCrawls, cfg.MaxConcurrentCrawls)
	assert.Equal(t, defaults.HealthPort, cfg.HealthPort)
}

func TestWorkerConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Env = "staging"
	cfg.MaxConcurrentCrawls = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env")
	assert.Contains(t, err.Error(), "concurrent")
}
