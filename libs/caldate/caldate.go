// Package caldate implements the small set of date operations the catalog
// and query layer need: computing "today" in the upstream's publishing
// locale and comparing/sorting the ISO YYYY-MM-DD strings used everywhere
// else in the system.
//
// Dates are never parsed into time.Time beyond what is needed to compute
// "today" — once a date is a string, lexical comparison is sufficient
// because the format is fixed-width ISO 8601.
package caldate

import (
	"context"
	"sort"
	"time"

	pwtesting "pricewatch/libs/testing"
)

// Layout is the canonical date format used throughout the catalog.
const Layout = "2006-01-02"

// publishLocale is a fixed UTC+1 offset. DST is deliberately ignored: the
// upstream publishes by calendar date, and a fixed-offset approximation
// differs from a DST-aware one by at most one day at the spring/autumn
// transitions, which is within the system's tolerance for "today".
var publishLocale = time.FixedZone("PUBLISH", 60*60)

// Today returns the current date, in the upstream's publishing locale, as
// an ISO YYYY-MM-DD string. It reads the clock from ctx via libs/testing so
// tests can pin "now" with a FixedClock or ManualClock.
func Today(ctx context.Context) string {
	return pwtesting.ClockFromContext(ctx).Now().In(publishLocale).Format(Layout)
}

// Compare returns -1, 0, or 1 the way strings.Compare does, comparing two
// ISO date strings lexically. Lexical order matches calendar order for any
// well-formed YYYY-MM-DD input.
func Compare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether a is strictly earlier than b.
func Before(a, b string) bool { return a < b }

// After reports whether a is strictly later than b.
func After(a, b string) bool { return a > b }

// SortDescending sorts dates newest-first in place.
func SortDescending(dates []string) {
	sort.Slice(dates, func(i, j int) bool { return dates[i] > dates[j] })
}

// SortAscending sorts dates oldest-first in place.
func SortAscending(dates []string) {
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
}

// Valid reports whether s parses as a YYYY-MM-DD calendar date.
func Valid(s string) bool {
	_, err := time.Parse(Layout, s)
	return err == nil
}

// Max returns the lexically greatest (most recent) date in dates, and false
// if dates is empty.
func Max(dates []string) (string, bool) {
	if len(dates) == 0 {
		return "", false
	}
	max := dates[0]
	for _, d := range dates[1:] {
		if d > max {
			max = d
		}
	}
	return max, true
}
