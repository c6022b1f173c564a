// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/gateway"
	"golang.org/x/sync/errgroup"
)

// Request describes one stats run.
type Request struct {
	Current domain.Query
	// Previous is the comparison period. It shares every field with Current except the dates.
	Previous *domain.Query

	MaxDaysOpen     int
	ExcludeWeekends bool
	IncludeReviews  bool
}

// PeriodReport is the processed view of one period.
type PeriodReport struct {
	PRStats             *domain.FilterResult       `json:"pr_stats"`
	ReviewStats         *domain.ReviewStatsPayload `json:"review_stats,omitempty"`
	MedianTimeOpenHours *float64                   `json:"median_time_open_hours,omitempty"`
}

// Report is the result of a stats run.
type Report struct {
	Current    PeriodReport  `json:"current"`
	Previous   *PeriodReport `json:"previous,omitempty"`
	Comparison *Comparison   `json:"comparison,omitempty"`

	MaxDaysOpen     int  `json:"max_days_open,omitempty"`
	ExcludeWeekends bool `json:"exclude_weekends,omitempty"`
}

// Aggregator is the use case for building stats reports.
// It orchestrates fetching both periods and filtering the authored pull requests.
type Aggregator struct {
	fetcher gateway.Fetcher
	logger  *log.Logger
	now     func() time.Time
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, logger *log.Logger) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Run fetches every requested payload concurrently, then filters the authored pull request
// payloads of both periods with the same parameters.
func (a *Aggregator) Run(ctx context.Context, req Request) (*Report, error) {
	a.logger.Println("Usecase: Starting stats run...")

	filtering := req.MaxDaysOpen > 0 || req.ExcludeWeekends
	current, err := a.prepare(req.Current, filtering)
	if err != nil {
		return nil, err
	}
	var previous *domain.Query
	if req.Previous != nil {
		p, err := a.prepare(*req.Previous, filtering)
		if err != nil {
			return nil, fmt.Errorf("comparison period: %w", err)
		}
		previous = &p
	}

	var (
		currentPRs, previousPRs         *domain.StatsPayload
		currentReviews, previousReviews *domain.ReviewStatsPayload
	)

	// Use an errgroup to fetch all data concurrently.
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var err error
		currentPRs, err = a.fetcher.FetchPRStats(egCtx, current)
		return err
	})
	if req.IncludeReviews {
		eg.Go(func() error {
			var err error
			currentReviews, err = a.fetcher.FetchReviewStats(egCtx, current)
			return err
		})
	}
	if previous != nil {
		eg.Go(func() error {
			var err error
			previousPRs, err = a.fetcher.FetchPRStats(egCtx, *previous)
			return err
		})
		if req.IncludeReviews {
			eg.Go(func() error {
				var err error
				previousReviews, err = a.fetcher.FetchReviewStats(egCtx, *previous)
				return err
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	a.logger.Println("Usecase: All data fetched successfully.")

	report := &Report{
		Current:         a.buildPeriod(currentPRs, currentReviews, req),
		MaxDaysOpen:     req.MaxDaysOpen,
		ExcludeWeekends: req.ExcludeWeekends,
	}
	if previous != nil {
		prev := a.buildPeriod(previousPRs, previousReviews, req)
		report.Previous = &prev
		report.Comparison = Compare(report.Current, prev)
	}

	a.logger.Println("Usecase: Stats run complete.")
	return report, nil
}

// prepare validates q and fills the defaults a source needs.
func (a *Aggregator) prepare(q domain.Query, filtering bool) (domain.Query, error) {
	if q.Until.IsZero() {
		q.Until = a.now()
	}
	if err := q.Validate(); err != nil {
		return q, err
	}
	// Filtering works on per-PR records, so the source must return them.
	if filtering {
		q.IncludePullRequestDetails = true
	}
	q.IncludeDiffDetails = true
	return q, nil
}

func (a *Aggregator) buildPeriod(prs *domain.StatsPayload, reviews *domain.ReviewStatsPayload, req Request) PeriodReport {
	filtered := FilterPRStats(prs, req.MaxDaysOpen, req.ExcludeWeekends)
	if filtered != nil && filtered.Filtered {
		a.logger.Printf("Usecase: %s kept %d of %d PRs.", filtered.Period, filtered.FilteredCount, filtered.OriginalCount)
	}
	return PeriodReport{
		PRStats:             filtered,
		ReviewStats:         reviews,
		MedianTimeOpenHours: medianHours(filtered),
	}
}

// medianHours returns the median displayed open time, or nil without per-PR records.
func medianHours(r *domain.FilterResult) *float64 {
	if r == nil {
		return nil
	}
	var hours stats.Float64Data
	for _, pr := range r.PullRequestDetails {
		if pr.TimeOpenHours != nil {
			hours = append(hours, *pr.TimeOpenHours)
		}
	}
	m, err := stats.Median(hours)
	if err != nil {
		return nil
	}
	return &m
}
