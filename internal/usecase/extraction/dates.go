package extraction

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// isoDate is the pipeline's canonical date form.
const isoDate = "2006-01-02"

// dayFirstLayouts are tried before the generic parser because humanitarian
// postings overwhelmingly write dates day-first ("31/01/2026", "31 Jan 2026").
var dayFirstLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
	"02 January 2006",
	"02 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
}

// parseDate normalizes free-text date to YYYY-MM-DD, day-first preference.
// Returns "" when nothing parses.
func parseDate(text string) string {
	text = strings.TrimSpace(strings.Trim(text, ".,;"))
	if text == "" {
		return ""
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format(isoDate)
		}
	}
	if t, err := dateparse.ParseAny(text); err == nil {
		return t.Format(isoDate)
	}
	return ""
}

// parseDeadline normalizes like parseDate but prefers a future reading for
// ambiguous two-digit years and year-less dates: a deadline is, almost by
// definition, not in the past.
func parseDeadline(text string, now time.Time) string {
	iso := parseDate(text)
	if iso == "" {
		return ""
	}
	t, err := time.Parse(isoDate, iso)
	if err != nil {
		return iso
	}
	// A deadline more than a year in the past is far more likely a
	// misparsed year-less date than a genuinely ancient posting; roll it
	// forward a year at a time until it is no longer before now.
	if t.Before(now.AddDate(-1, 0, 0)) {
		candidate := t
		for candidate.Before(now) {
			candidate = candidate.AddDate(1, 0, 0)
		}
		return candidate.Format(isoDate)
	}
	return iso
}
