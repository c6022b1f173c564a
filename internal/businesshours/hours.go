// Package businesshours computes elapsed time between two timestamps with weekend days removed.
package businesshours

import (
	"math"
	"time"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// Accepted timestamp layouts, tried in order. Layouts without a zone are read in local time.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	domain.DateLayout,
}

// ParseTimestamp parses a wire timestamp. It reports false for empty or malformed input.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Between returns the hours in [start, end) that fall on weekdays, unrounded.
// Days are walked in start's own zone, so a timestamp keeps the weekday it was recorded on.
// An end before start yields zero.
func Between(start, end time.Time) float64 {
	var total float64
	loc := start.Location()
	current := start
	for current.Before(end) {
		y, m, d := current.Date()
		next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		if !isWeekend(current.Weekday()) {
			dayEnd := next
			if end.Before(next) {
				dayEnd = end
			}
			total += dayEnd.Sub(current).Hours()
		}
		current = next
	}
	return total
}

// ComputeDuration returns the weekday hours between two wire timestamps, rounded to the nearest
// hour. It returns nil when either timestamp is missing or unparseable.
func ComputeDuration(start, end string) *float64 {
	s, ok := ParseTimestamp(start)
	if !ok {
		return nil
	}
	e, ok := ParseTimestamp(end)
	if !ok {
		return nil
	}
	hours := math.Round(Between(s, e))
	return &hours
}

// ResolvePRHours picks the effective open duration of a pull request.
// The precomputed TimeOpenHours is used unless weekends are excluded and the record carries
// timestamps to compute from.
func ResolvePRHours(pr domain.PullRequestRecord, excludeWeekends bool) *float64 {
	if !excludeWeekends || (pr.CreatedOn == "" && pr.ClosedOn == "") {
		if pr.TimeOpenHours == nil {
			return nil
		}
		return domain.Float(*pr.TimeOpenHours)
	}
	return ComputeDuration(pr.CreatedOn, pr.ClosedOn)
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
