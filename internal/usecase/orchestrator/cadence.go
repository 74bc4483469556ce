// Package orchestrator keeps the crawl fleet making progress within
// politeness and concurrency budgets: a 5-minute scheduling
// tick selects due sources, locks each one, dispatches a fetch by source
// kind through the extraction pipeline and storage adapter, then adapts the
// source's cadence to what the crawl found.
package orchestrator

import (
	"math"
	"math/rand"
	"time"

	"aidjobs-crawler/internal/domain/entity"
)

// Cadence bounds.
const (
	minCadenceDays     = 0.5
	maxStaleCadence    = 14
	maxBackoffDays     = 7
	highActivityCount  = 10
	staleNoChangeCount = 3
)

// ComputeNextRun implements the adaptive-cadence formula:
//
//   - inserted+updated >= 10:     C = max(0.5, B-1)
//   - stale (no change 3+ runs):  C = min(14, B+1)
//   - failures:                   C = max(C, min(7, 6*2^failures/24))
//   - jitter uniform in [0.85, 1.15]
//
// jitter is injected so tests can pin it to 1.0; pass nil for production
// randomness.
func ComputeNextRun(source *entity.Source, inserted, updated, consecutiveFailures, consecutiveNoChange int, now time.Time, jitter func() float64) time.Time {
	base := source.BaseCadence()
	cadence := base

	changes := inserted + updated
	switch {
	case changes >= highActivityCount:
		cadence = math.Max(minCadenceDays, base-1)
	case changes == 0 && consecutiveNoChange >= staleNoChangeCount:
		cadence = math.Min(maxStaleCadence, base+1)
	}

	if consecutiveFailures > 0 {
		backoffDays := math.Min(maxBackoffDays, 6*math.Pow(2, float64(consecutiveFailures))/24)
		cadence = math.Max(cadence, backoffDays)
	}

	j := 0.85 + 0.30*rand.Float64()
	if jitter != nil {
		j = jitter()
	}
	cadence *= j

	return now.Add(time.Duration(cadence * 24 * float64(time.Hour)))
}

// nextCounters applies the failure/no-change bookkeeping rules:
// a fail increments the failure counter
// and resets no-change; success resets failures and advances no-change only
// when nothing was inserted or updated. A 304 conditional-GET hit leaves the
// no-change counter untouched entirely.
func nextCounters(source *entity.Source, status entity.CrawlStatus, inserted, updated int, notModified bool) (failures, noChange int) {
	if status == entity.CrawlStatusFail {
		return source.ConsecutiveFailures + 1, 0
	}
	if notModified {
		return 0, source.ConsecutiveNoChange
	}
	if inserted == 0 && updated == 0 {
		return 0, source.ConsecutiveNoChange + 1
	}
	return 0, 0
}

// autoPauseThreshold flips a source to paused after this many consecutive
// failures; only an external operation clears it.
const autoPauseThreshold = 5
