// Package export renders stats reports for people and spreadsheets.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/usecase"
)

const missing = "-"

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report *usecase.Report) error {
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// WriteCSV writes the report as CSV: authored PR metrics, review metrics, then one row per
// pull request of the current period. With a previous period, metric rows carry both values
// and the percent change.
func WriteCSV(w io.Writer, report *usecase.Report) error {
	compare := report.Previous != nil
	var prev usecase.PeriodReport
	if compare {
		prev = *report.Previous
	}
	cur := report.Current

	var rows [][]string
	if compare {
		rows = append(rows, []string{"Metric", "Current Period", "Previous Period", "Change %", "Trend"})
	} else {
		rows = append(rows, []string{"Metric", "Value"})
	}
	metricRow := func(label, current, previous string, currentValue, previousValue *float64, higherIsBetter bool) []string {
		if !compare {
			return []string{label, current}
		}
		m := usecase.MetricChange{
			Label:          label,
			Current:        currentValue,
			Previous:       previousValue,
			ChangePercent:  usecase.PercentChange(currentValue, previousValue),
			HigherIsBetter: higherIsBetter,
		}
		change := missing
		if m.ChangePercent != nil {
			change = strconv.FormatFloat(*m.ChangePercent, 'f', 1, 64) + "%"
		}
		return []string{label, current, previous, change, trend(m)}
	}

	rows = append(rows, []string{"--- MY PULL REQUESTS ---", "", "", ""})
	if pr := cur.PRStats; pr != nil {
		p := prev.PRStats
		if p == nil {
			p = &domain.FilterResult{}
		}
		rows = append(rows, []string{"Period", orMissing(pr.Period), p.Period, ""})
		total, prevTotal := float64(pr.TotalPullRequests), float64(p.TotalPullRequests)
		rows = append(rows,
			metricRow("Total PRs", strconv.Itoa(pr.TotalPullRequests), strconv.Itoa(p.TotalPullRequests), &total, &prevTotal, true),
			metricRow("Avg Time Open", FormatTimeOpen(pr.AvgTimeOpenHours), FormatTimeOpen(p.AvgTimeOpenHours), pr.AvgTimeOpenHours, p.AvgTimeOpenHours, false),
			metricRow("Avg Comments", oneDecimal(pr.AvgCommentCount), oneDecimal(p.AvgCommentCount), pr.AvgCommentCount, p.AvgCommentCount, true),
			metricRow("Avg Files Changed", oneDecimal(pr.AvgFilesChanged), oneDecimal(p.AvgFilesChanged), pr.AvgFilesChanged, p.AvgFilesChanged, false),
			metricRow("Avg Lines Added", oneDecimal(pr.AvgLinesAdded), oneDecimal(p.AvgLinesAdded), pr.AvgLinesAdded, p.AvgLinesAdded, true),
			metricRow("Avg Lines Removed", oneDecimal(pr.AvgLinesRemoved), oneDecimal(p.AvgLinesRemoved), pr.AvgLinesRemoved, p.AvgLinesRemoved, true),
		)
	}

	rows = append(rows, []string{"--- REVIEW ACTIVITY ---", "", "", ""})
	if rv := cur.ReviewStats; rv != nil {
		p := prev.ReviewStats
		if p == nil {
			p = &domain.ReviewStatsPayload{}
		}
		rows = append(rows, []string{"Period", orMissing(rv.Period), p.Period, ""})
		reviewed, prevReviewed := float64(rv.TotalPullRequestsReviewed), float64(p.TotalPullRequestsReviewed)
		approved, prevApproved := float64(rv.TotalPullRequestsApproved), float64(p.TotalPullRequestsApproved)
		comments, prevComments := intPtr(rv.TotalComments), intPtr(p.TotalComments)
		rows = append(rows,
			metricRow("PRs Reviewed", strconv.Itoa(rv.TotalPullRequestsReviewed), strconv.Itoa(p.TotalPullRequestsReviewed), &reviewed, &prevReviewed, true),
			metricRow("PRs Approved", strconv.Itoa(rv.TotalPullRequestsApproved), strconv.Itoa(p.TotalPullRequestsApproved), &approved, &prevApproved, true),
			metricRow("Approval Rate %", oneDecimal(rv.ApprovedPercentage), oneDecimal(p.ApprovedPercentage), rv.ApprovedPercentage, p.ApprovedPercentage, true),
			metricRow("Total Comments", wholeNumber(comments), wholeNumber(prevComments), comments, prevComments, true),
			metricRow("Comment Rate %", oneDecimal(rv.CommentedPercentage), oneDecimal(p.CommentedPercentage), rv.CommentedPercentage, p.CommentedPercentage, true),
		)
	}

	if cur.PRStats != nil && len(cur.PRStats.PullRequestDetails) > 0 {
		rows = append(rows,
			[]string{"--- PR DETAILS ---", "", "", ""},
			[]string{"ID", "Title", "Repo", "Time Open", "Comments", "Files", "Lines Added", "Lines Removed", "Link"},
		)
		for _, pr := range cur.PRStats.PullRequestDetails {
			files, added, removed := missing, missing, missing
			if d := pr.DiffDetails; d != nil {
				files, added, removed = strconv.Itoa(d.FilesChanged), strconv.Itoa(d.LinesAdded), strconv.Itoa(d.LinesRemoved)
			}
			comments := missing
			if pr.CommentCount != nil {
				comments = strconv.Itoa(*pr.CommentCount)
			}
			rows = append(rows, []string{
				string(pr.ID), pr.Title, pr.Repo, FormatTimeOpen(pr.TimeOpenHours),
				comments, files, added, removed, pr.Link,
			})
		}
	}

	cw := csv.NewWriter(w)
	// Sections and details have different widths.
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// FormatTimeOpen renders hours as "5h", "3d" or "3d 4h".
func FormatTimeOpen(hours *float64) string {
	if hours == nil {
		return missing
	}
	h := math.Round(*hours)
	if h < 24 {
		return fmt.Sprintf("%.0fh", h)
	}
	days := math.Floor(h / 24)
	remaining := math.Mod(h, 24)
	if remaining == 0 {
		return fmt.Sprintf("%.0fd", days)
	}
	return fmt.Sprintf("%.0fd %.0fh", days, remaining)
}

// Notice describes what filtering did to a result, or "" when nothing needs saying.
func Notice(r *domain.FilterResult, maxDaysOpen int) string {
	if r == nil || !r.Filtered {
		return ""
	}
	excluded := r.ExcludedCount != nil && *r.ExcludedCount > 0
	// Nothing retained: the payload keeps its unfiltered aggregates.
	empty := r.FilteredCount == 0 && r.OriginalCount > 0
	if !excluded && !r.ExcludeWeekends && !empty {
		return ""
	}
	var parts []string
	if excluded {
		parts = append(parts, fmt.Sprintf("Excluded %d stale PRs (open > %d days).", *r.ExcludedCount, maxDaysOpen))
	}
	if r.ExcludeWeekends {
		parts = append(parts, "Weekends excluded from time calculations.")
	}
	if empty {
		parts = append(parts, "No PRs matched the filters, so totals are unfiltered.")
	}
	parts = append(parts, fmt.Sprintf("Showing %d of %d PRs.", r.FilteredCount, r.OriginalCount))
	return strings.Join(parts, " ")
}

// trend names the direction of a compared metric.
func trend(m usecase.MetricChange) string {
	switch {
	case m.ChangePercent == nil:
		return missing
	case *m.ChangePercent == 0:
		return "unchanged"
	case m.Improved():
		return "better"
	default:
		return "worse"
	}
}

func oneDecimal(v *float64) string {
	if v == nil {
		return missing
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func wholeNumber(v *float64) string {
	if v == nil {
		return missing
	}
	return strconv.FormatFloat(*v, 'f', 0, 64)
}

func intPtr(v *int) *float64 {
	if v == nil {
		return nil
	}
	return domain.Float(float64(*v))
}

func orMissing(s string) string {
	if s == "" {
		return missing
	}
	return s
}
