package orchestrator

import (
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronRun evaluates a source's optional cron override (e.g. a board
// that only posts weekday mornings) against the standard 5-field syntax.
func nextCronRun(expr string, now time.Time) (time.Time, bool) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, false
	}
	return schedule.Next(now), true
}
