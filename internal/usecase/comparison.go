package usecase

import (
	"fmt"
	"math"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// insightThreshold is the percent change beyond which a metric earns an insight.
const insightThreshold = 20.0

// MetricChange is one metric compared across the current and previous periods.
type MetricChange struct {
	Label          string   `json:"label"`
	Current        *float64 `json:"current"`
	Previous       *float64 `json:"previous"`
	ChangePercent  *float64 `json:"change_percent"`
	HigherIsBetter bool     `json:"higher_is_better"`
}

// Improved reports whether the metric moved in its better direction.
func (m MetricChange) Improved() bool {
	if m.ChangePercent == nil || *m.ChangePercent == 0 {
		return false
	}
	return (*m.ChangePercent > 0) == m.HigherIsBetter
}

// Insight is a short human readable observation about a comparison.
type Insight struct {
	Positive bool   `json:"positive"`
	Text     string `json:"text"`
}

// Comparison holds every compared metric and the derived insights.
type Comparison struct {
	Metrics  []MetricChange `json:"metrics"`
	Insights []Insight      `json:"insights,omitempty"`
}

// PercentChange returns the change from previous to current in percent.
// It is nil when either side is unknown or previous is zero.
func PercentChange(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	change := (*current - *previous) / *previous * 100
	return &change
}

// Compare builds the comparison of two periods. Review metrics are included only when both
// periods carry review stats.
func Compare(current, previous PeriodReport) *Comparison {
	c := &Comparison{}
	add := func(label string, cur, prev *float64, higherIsBetter bool) MetricChange {
		m := MetricChange{
			Label:          label,
			Current:        cur,
			Previous:       prev,
			ChangePercent:  PercentChange(cur, prev),
			HigherIsBetter: higherIsBetter,
		}
		c.Metrics = append(c.Metrics, m)
		return m
	}

	var totalPRs, timeOpen MetricChange
	if current.PRStats != nil && previous.PRStats != nil {
		cur, prev := current.PRStats, previous.PRStats
		totalPRs = add("Total PRs", intValue(cur.TotalPullRequests), intValue(prev.TotalPullRequests), true)
		timeOpen = add("Avg Time Open", cur.AvgTimeOpenHours, prev.AvgTimeOpenHours, false)
		add("Avg Comments", cur.AvgCommentCount, prev.AvgCommentCount, true)
		add("Avg Files Changed", cur.AvgFilesChanged, prev.AvgFilesChanged, false)
		add("Avg Lines Added", cur.AvgLinesAdded, prev.AvgLinesAdded, true)
		add("Avg Lines Removed", cur.AvgLinesRemoved, prev.AvgLinesRemoved, true)
	}

	var reviewed MetricChange
	if current.ReviewStats != nil && previous.ReviewStats != nil {
		cur, prev := current.ReviewStats, previous.ReviewStats
		reviewed = add("PRs Reviewed", intValue(cur.TotalPullRequestsReviewed), intValue(prev.TotalPullRequestsReviewed), true)
		add("PRs Approved", intValue(cur.TotalPullRequestsApproved), intValue(prev.TotalPullRequestsApproved), true)
		add("Approval Rate %", cur.ApprovedPercentage, prev.ApprovedPercentage, true)
		add("Total Comments", optionalInt(cur.TotalComments), optionalInt(prev.TotalComments), true)
		add("Comment Rate %", cur.CommentedPercentage, prev.CommentedPercentage, true)
	}

	if ch := totalPRs.ChangePercent; ch != nil {
		switch {
		case *ch > insightThreshold:
			c.Insights = append(c.Insights, Insight{Positive: true, Text: fmt.Sprintf("PR output increased by %.0f%%", *ch)})
		case *ch < -insightThreshold:
			c.Insights = append(c.Insights, Insight{Text: fmt.Sprintf("PR output decreased by %.0f%%", math.Abs(*ch))})
		}
	}
	if ch := timeOpen.ChangePercent; ch != nil {
		switch {
		case *ch < -insightThreshold:
			c.Insights = append(c.Insights, Insight{Positive: true, Text: fmt.Sprintf("PRs merging %.0f%% faster", math.Abs(*ch))})
		case *ch > insightThreshold:
			c.Insights = append(c.Insights, Insight{Text: fmt.Sprintf("PRs taking %.0f%% longer to merge", *ch)})
		}
	}
	if ch := reviewed.ChangePercent; ch != nil && *ch > insightThreshold {
		c.Insights = append(c.Insights, Insight{Positive: true, Text: fmt.Sprintf("Review activity up %.0f%%", *ch)})
	}
	return c
}

func intValue(v int) *float64 { return domain.Float(float64(v)) }

func optionalInt(v *int) *float64 {
	if v == nil {
		return nil
	}
	return intValue(*v)
}
