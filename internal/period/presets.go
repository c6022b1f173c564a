// Package period provides the common "this period vs the previous one" date range pairs.
package period

import (
	"fmt"
	"strings"
	"time"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// Range is an inclusive pair of calendar dates.
type Range struct {
	Since time.Time
	Until time.Time
}

func (r Range) String() string {
	return r.Since.Format(domain.DateLayout) + ".." + r.Until.Format(domain.DateLayout)
}

// Preset pairs a current range with the range it is compared against.
type Preset struct {
	Slug     string
	Label    string
	Current  Range
	Previous Range
}

// Presets returns every preset relative to now, in display order.
func Presets(now time.Time) []Preset {
	y, m, d := now.Date()
	loc := now.Location()
	date := func(year int, month time.Month, day int) time.Time {
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	}
	today := date(y, m, d)

	last30Start := today.AddDate(0, 0, -30)
	prev30End := last30Start.AddDate(0, 0, -1)
	prev30Start := prev30End.AddDate(0, 0, -30)

	// Day 0 of a month is the last day of the month before it.
	quarterStart := time.Month((int(m)-1)/3*3 + 1)
	halfStart := time.January
	if m > time.June {
		halfStart = time.July
	}

	return []Preset{
		{
			Slug:     "last30",
			Label:    "Last 30d vs Prev 30d",
			Current:  Range{last30Start, today},
			Previous: Range{prev30Start, prev30End},
		},
		{
			Slug:     "month",
			Label:    "This Month vs Last",
			Current:  Range{date(y, m, 1), date(y, m+1, 0)},
			Previous: Range{date(y, m-1, 1), date(y, m, 0)},
		},
		{
			Slug:     "quarter",
			Label:    "This Quarter vs Last",
			Current:  Range{date(y, quarterStart, 1), date(y, quarterStart+3, 0)},
			Previous: Range{date(y, quarterStart-3, 1), date(y, quarterStart, 0)},
		},
		{
			Slug:     "half",
			Label:    "This Half vs Last",
			Current:  Range{date(y, halfStart, 1), date(y, halfStart+6, 0)},
			Previous: Range{date(y, halfStart-6, 1), date(y, halfStart, 0)},
		},
		{
			Slug:     "ytd",
			Label:    "YTD vs Last Year",
			Current:  Range{date(y, time.January, 1), today},
			Previous: Range{date(y-1, time.January, 1), date(y-1, m, d)},
		},
	}
}

// Lookup finds a preset by slug.
func Lookup(slug string, now time.Time) (Preset, error) {
	slugs := make([]string, 0, 5)
	for _, p := range Presets(now) {
		if p.Slug == slug {
			return p, nil
		}
		slugs = append(slugs, p.Slug)
	}
	return Preset{}, fmt.Errorf("unknown period preset %q (want one of %s)", slug, strings.Join(slugs, ", "))
}
