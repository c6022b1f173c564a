package usecase

import (
	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/pr-stats/internal/businesshours"
	"github.com/naka-gawa/pr-stats/internal/domain"
)

// FilterPRStats drops stale pull requests from a payload and recomputes its averages from the
// pull requests that remain.
//
// maxDaysOpen <= 0 disables the staleness threshold. When excludeWeekends is set, open durations
// are recomputed as weekday hours from the record timestamps. Pull requests whose duration cannot
// be resolved are always dropped once any filter is active.
//
// With no filter active the payload is returned as is, without provenance fields.
// The input is never modified.
func FilterPRStats(payload *domain.StatsPayload, maxDaysOpen int, excludeWeekends bool) *domain.FilterResult {
	if payload == nil {
		return nil
	}
	if maxDaysOpen <= 0 && !excludeWeekends {
		return &domain.FilterResult{StatsPayload: *payload.Clone()}
	}

	details := payload.PullRequestDetails
	maxHours := float64(maxDaysOpen) * 24

	retained := make([]domain.PullRequestRecord, 0, len(details))
	for _, pr := range details {
		hours := businesshours.ResolvePRHours(pr, excludeWeekends)
		if hours == nil {
			continue
		}
		if maxDaysOpen > 0 && *hours > maxHours {
			continue
		}
		kept := pr.Clone()
		kept.TimeOpenHours = hours
		retained = append(retained, kept)
	}

	result := &domain.FilterResult{
		Filtered:        true,
		OriginalCount:   len(details),
		FilteredCount:   len(retained),
		ExcludeWeekends: excludeWeekends,
	}

	// Nothing left: keep the source aggregates rather than zeroing them.
	if len(retained) == 0 {
		result.StatsPayload = *payload.Clone()
		return result
	}

	var (
		timeOpen      = make(stats.Float64Data, len(retained))
		comments      = make(stats.Float64Data, len(retained))
		filesChanged  = make(stats.Float64Data, len(retained))
		linesAdded    = make(stats.Float64Data, len(retained))
		linesRemoved  = make(stats.Float64Data, len(retained))
		hasDiffDetail bool
	)
	for i, pr := range retained {
		timeOpen[i] = *pr.TimeOpenHours
		if pr.CommentCount != nil {
			comments[i] = float64(*pr.CommentCount)
		}
		// Records without diff details count as zero but still weigh in the denominator.
		if pr.DiffDetails != nil {
			hasDiffDetail = true
			filesChanged[i] = float64(pr.DiffDetails.FilesChanged)
			linesAdded[i] = float64(pr.DiffDetails.LinesAdded)
			linesRemoved[i] = float64(pr.DiffDetails.LinesRemoved)
		}
	}

	result.StatsPayload = domain.StatsPayload{
		Period:             payload.Period,
		TotalPullRequests:  len(retained),
		AvgTimeOpenHours:   mean(timeOpen),
		AvgCommentCount:    mean(comments),
		PullRequestDetails: retained,
	}
	if hasDiffDetail {
		result.AvgFilesChanged = mean(filesChanged)
		result.AvgLinesAdded = mean(linesAdded)
		result.AvgLinesRemoved = mean(linesRemoved)
	}
	excluded := result.OriginalCount - result.FilteredCount
	result.ExcludedCount = &excluded
	return result
}

// mean returns nil for an empty sample.
func mean(data stats.Float64Data) *float64 {
	m, err := stats.Mean(data)
	if err != nil {
		return nil
	}
	return &m
}
