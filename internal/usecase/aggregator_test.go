package usecase

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of a stats source without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchPRStats(ctx context.Context, q domain.Query) (*domain.StatsPayload, error) {
	args := m.Called(ctx, q)
	// We need to handle the case where the returned payload is nil (e.g., when an error occurs).
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatsPayload), args.Error(1)
}

func (m *mockFetcher) FetchReviewStats(ctx context.Context, q domain.Query) (*domain.ReviewStatsPayload, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewStatsPayload), args.Error(1)
}

var (
	januaryQuery = domain.Query{
		Workspace: "acme",
		Repos:     []string{"api"},
		Since:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Until:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	decemberQuery = domain.Query{
		Workspace: "acme",
		Repos:     []string{"api"},
		Since:     time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		Until:     time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
)

// sent is the query the aggregator is expected to hand to the source.
func sent(q domain.Query, withDetails bool) domain.Query {
	q.IncludeDiffDetails = true
	q.IncludePullRequestDetails = withDetails
	return q
}

func TestAggregator_Run(t *testing.T) {
	current := &domain.StatsPayload{
		Period:            "jan",
		TotalPullRequests: 3,
		PullRequestDetails: []domain.PullRequestRecord{
			{ID: "1", TimeOpenHours: domain.Float(10), CommentCount: domain.Int(2)},
			{ID: "2", TimeOpenHours: domain.Float(300), CommentCount: domain.Int(9)},
			{ID: "3", TimeOpenHours: domain.Float(20), CommentCount: domain.Int(4)},
		},
	}
	previous := &domain.StatsPayload{
		Period:            "dec",
		TotalPullRequests: 2,
		PullRequestDetails: []domain.PullRequestRecord{
			{ID: "4", TimeOpenHours: domain.Float(40)},
			{ID: "5", TimeOpenHours: domain.Float(60)},
		},
	}
	currentReviews := &domain.ReviewStatsPayload{Period: "jan", TotalPullRequestsReviewed: 13}
	previousReviews := &domain.ReviewStatsPayload{Period: "dec", TotalPullRequestsReviewed: 10}

	testCases := []struct {
		name        string
		request     Request
		setup       func(f *mockFetcher)
		expectError bool
		check       func(t *testing.T, report *Report)
	}{
		{
			name: "happy path - filters both periods and compares them",
			request: Request{
				Current:        januaryQuery,
				Previous:       &decemberQuery,
				MaxDaysOpen:    5,
				IncludeReviews: true,
			},
			setup: func(f *mockFetcher) {
				f.On("FetchPRStats", mock.Anything, sent(januaryQuery, true)).Return(current, nil)
				f.On("FetchPRStats", mock.Anything, sent(decemberQuery, true)).Return(previous, nil)
				f.On("FetchReviewStats", mock.Anything, sent(januaryQuery, true)).Return(currentReviews, nil)
				f.On("FetchReviewStats", mock.Anything, sent(decemberQuery, true)).Return(previousReviews, nil)
			},
			check: func(t *testing.T, report *Report) {
				cur := report.Current.PRStats
				require.NotNil(t, cur)
				assert.Equal(t, 2, cur.TotalPullRequests)
				assert.Equal(t, domain.Float(15), cur.AvgTimeOpenHours)
				assert.Equal(t, domain.Float(3), cur.AvgCommentCount)
				assert.Equal(t, domain.Int(1), cur.ExcludedCount)
				assert.Equal(t, domain.Float(15), report.Current.MedianTimeOpenHours)
				assert.Same(t, currentReviews, report.Current.ReviewStats)

				require.NotNil(t, report.Previous)
				assert.Equal(t, domain.Float(50), report.Previous.PRStats.AvgTimeOpenHours)

				require.NotNil(t, report.Comparison)
				assert.Equal(t, []Insight{
					{Positive: true, Text: "PRs merging 70% faster"},
					{Positive: true, Text: "Review activity up 30%"},
				}, report.Comparison.Insights)
				assert.Equal(t, 5, report.MaxDaysOpen)

				// The fetched payload is left untouched.
				assert.Len(t, current.PullRequestDetails, 3)
			},
		},
		{
			name:    "no filter leaves payload as fetched and skips reviews",
			request: Request{Current: januaryQuery},
			setup: func(f *mockFetcher) {
				f.On("FetchPRStats", mock.Anything, sent(januaryQuery, false)).Return(current, nil)
			},
			check: func(t *testing.T, report *Report) {
				assert.Equal(t, *current, report.Current.PRStats.StatsPayload)
				assert.False(t, report.Current.PRStats.Filtered)
				assert.Nil(t, report.Current.ReviewStats)
				assert.Nil(t, report.Previous)
				assert.Nil(t, report.Comparison)
			},
		},
		{
			name:    "error case - fetch fails",
			request: Request{Current: januaryQuery, Previous: &decemberQuery, ExcludeWeekends: true},
			setup: func(f *mockFetcher) {
				f.On("FetchPRStats", mock.Anything, sent(januaryQuery, true)).Return(nil, errors.New("backend down"))
				f.On("FetchPRStats", mock.Anything, sent(decemberQuery, true)).Return(previous, nil).Maybe()
			},
			expectError: true,
		},
		{
			name:        "error case - invalid query never reaches the source",
			request:     Request{Current: domain.Query{Repos: []string{"api"}, Since: januaryQuery.Since}},
			setup:       func(f *mockFetcher) {},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			fetcher := new(mockFetcher)
			tc.setup(fetcher)
			aggregator := NewAggregator(fetcher, log.New(io.Discard, "", 0))

			// --- Act ---
			report, err := aggregator.Run(context.Background(), tc.request)

			// --- Assert ---
			if tc.expectError {
				assert.Error(t, err)
				assert.Nil(t, report)
			} else {
				require.NoError(t, err)
				tc.check(t, report)
			}
			fetcher.AssertExpectations(t)
		})
	}
}

func TestAggregator_DefaultsUntilToNow(t *testing.T) {
	now := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	q := januaryQuery
	q.Until = time.Time{}
	expected := sent(q, false)
	expected.Until = now

	fetcher := new(mockFetcher)
	fetcher.On("FetchPRStats", mock.Anything, expected).Return(&domain.StatsPayload{}, nil)
	aggregator := NewAggregator(fetcher, log.New(io.Discard, "", 0))
	aggregator.now = func() time.Time { return now }

	_, err := aggregator.Run(context.Background(), Request{Current: q})

	require.NoError(t, err)
	fetcher.AssertExpectations(t)
}
