package normalize

import (
	"regexp"
	"strconv"
)

// Matches "N month(s)" / "N year(s)", optionally as a range "N-M month(s)"
// or "N to M year(s)". A range takes its upper bound, preferring the longer
// commitment when a posting states one.
var (
	monthRangeRe = regexp.MustCompile(`(?i)(\d+)\s*(?:-|to)\s*(\d+)\s*month`)
	monthRe      = regexp.MustCompile(`(?i)(\d+)\s*month`)
	yearRangeRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:-|to)\s*(\d+)\s*year`)
	yearRe       = regexp.MustCompile(`(?i)(\d+)\s*year`)
)

// ParseContractDuration extracts a contract length in months from free text
// (e.g. a job's description or an explicit "duration" field). It returns nil
// when no month/year figure is present.
func ParseContractDuration(text string) *int {
	if text == "" {
		return nil
	}
	if m := yearRangeRe.FindStringSubmatch(text); m != nil {
		if months, ok := maxOf(m[1], m[2], 12); ok {
			return &months
		}
	}
	if m := yearRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			months := n * 12
			return &months
		}
	}
	if m := monthRangeRe.FindStringSubmatch(text); m != nil {
		if months, ok := maxOf(m[1], m[2], 1); ok {
			return &months
		}
	}
	if m := monthRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return &n
		}
	}
	return nil
}

func maxOf(aStr, bStr string, multiplier int) (int, bool) {
	a, errA := strconv.Atoi(aStr)
	b, errB := strconv.Atoi(bStr)
	if errA != nil || errB != nil {
		return 0, false
	}
	if b > a {
		a = b
	}
	return a * multiplier, true
}
