package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aidjobs-crawler/internal/domain/entity"
)

func fixedJitter() float64 { return 1.0 }

func sourceWithCadence(days float64) *entity.Source {
	return &entity.Source{OrgType: entity.OrgTypeNGO, CadenceDays: &days}
}

func TestComputeNextRun_AdaptiveSpeedup(t *testing.T) {
	// Base 3, {inserted: 8, updated: 3} -> 48h.
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	next := ComputeNextRun(sourceWithCadence(3), 8, 3, 0, 0, now, fixedJitter)
	assert.Equal(t, now.Add(48*time.Hour), next)
}

func TestComputeNextRun_FailureBackoff(t *testing.T) {
	// failures=3 -> backoff min(7, 6*2^3/24)=2 days;
	// base 3 dominates -> 72h.
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	next := ComputeNextRun(sourceWithCadence(3), 0, 0, 3, 0, now, fixedJitter)
	assert.Equal(t, now.Add(72*time.Hour), next)
}

func TestComputeNextRun_BackoffDominatesShortCadence(t *testing.T) {
	// failures=4 -> min(7, 96/24)=4 days > base 1.
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	next := ComputeNextRun(sourceWithCadence(1), 0, 0, 4, 0, now, fixedJitter)
	assert.Equal(t, now.Add(4*24*time.Hour), next)
}

func TestComputeNextRun_BackoffCapAtSevenDays(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	next := ComputeNextRun(sourceWithCadence(3), 0, 0, 10, 0, now, fixedJitter)
	assert.Equal(t, now.Add(7*24*time.Hour), next)
}

func TestComputeNextRun_StaleSlowdown(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	next := ComputeNextRun(sourceWithCadence(3), 0, 0, 0, 3, now, fixedJitter)
	assert.Equal(t, now.Add(4*24*time.Hour), next)
}

func TestComputeNextRun_StaleCapAtFourteenDays(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	next := ComputeNextRun(sourceWithCadence(14), 0, 0, 0, 5, now, fixedJitter)
	assert.Equal(t, now.Add(14*24*time.Hour), next)
}

func TestComputeNextRun_SpeedupFloorAtHalfDay(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	next := ComputeNextRun(sourceWithCadence(1), 12, 0, 0, 0, now, fixedJitter)
	assert.Equal(t, now.Add(12*time.Hour), next)
}

func TestComputeNextRun_OrgTypeDefaults(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for orgType, wantDays := range map[entity.OrgType]float64{
		entity.OrgTypeUN:       1,
		entity.OrgTypeINGO:     2,
		entity.OrgTypeNGO:      3,
		entity.OrgTypePrivate:  5,
		entity.OrgTypeAcademic: 7,
	} {
		source := &entity.Source{OrgType: orgType}
		next := ComputeNextRun(source, 0, 0, 0, 0, now, fixedJitter)
		assert.Equal(t, now.Add(time.Duration(wantDays*24)*time.Hour), next, "org type %s", orgType)
	}

	// Unknown org type falls back to 3 days.
	next := ComputeNextRun(&entity.Source{OrgType: "foundation"}, 0, 0, 0, 0, now, fixedJitter)
	assert.Equal(t, now.Add(3*24*time.Hour), next)
}

func TestComputeNextRun_JitterBounds(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		next := ComputeNextRun(sourceWithCadence(3), 0, 0, 0, 0, now, nil)
		days := next.Sub(now).Hours() / 24
		assert.GreaterOrEqual(t, days, 3*0.85-1e-9)
		assert.LessOrEqual(t, days, 3*1.15+1e-9)
	}
}

func TestNextCounters(t *testing.T) {
	source := &entity.Source{ConsecutiveFailures: 2, ConsecutiveNoChange: 1}

	failures, noChange := nextCounters(source, entity.CrawlStatusFail, 0, 0, false)
	assert.Equal(t, 3, failures)
	assert.Equal(t, 0, noChange)

	// 304: ok, zero changes, no-change counter untouched.
	failures, noChange = nextCounters(source, entity.CrawlStatusOK, 0, 0, true)
	assert.Equal(t, 0, failures)
	assert.Equal(t, 1, noChange)

	failures, noChange = nextCounters(source, entity.CrawlStatusOK, 0, 0, false)
	assert.Equal(t, 0, failures)
	assert.Equal(t, 2, noChange)

	failures, noChange = nextCounters(source, entity.CrawlStatusOK, 2, 1, false)
	assert.Equal(t, 0, failures)
	assert.Equal(t, 0, noChange)
}
