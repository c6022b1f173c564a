package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockFetcher is a mock implementation of the Fetcher interface.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchPRStats(ctx context.Context, q domain.Query) (*domain.StatsPayload, error) {
	args := m.Called(ctx, q)
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

func TestCachingFetcher_ServesFromCacheUntilExpiry(t *testing.T) {
	ctx := context.Background()
	q := testQuery()
	next := new(mockFetcher)
	next.On("FetchPRStats", mock.Anything, q).Return(&domain.StatsPayload{Period: "p", TotalPullRequests: 2}, nil).Twice()

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewCachingFetcher(next, t.TempDir(), 30*time.Minute)
	cache.now = func() time.Time { return clock }

	first, err := cache.FetchPRStats(ctx, q)
	require.NoError(t, err)
	first.TotalPullRequests = 99 // callers own what they receive

	clock = clock.Add(29 * time.Minute)
	second, err := cache.FetchPRStats(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalPullRequests)
	next.AssertNumberOfCalls(t, "FetchPRStats", 1)

	clock = clock.Add(time.Minute)
	_, err = cache.FetchPRStats(ctx, q)
	require.NoError(t, err)
	next.AssertNumberOfCalls(t, "FetchPRStats", 2)
}

func TestCachingFetcher_KeysByQueryAndKind(t *testing.T) {
	ctx := context.Background()
	q := testQuery()
	other := testQuery()
	other.Repos = []string{"api"}

	next := new(mockFetcher)
	next.On("FetchPRStats", mock.Anything, q).Return(&domain.StatsPayload{Period: "a"}, nil).Once()
	next.On("FetchPRStats", mock.Anything, other).Return(&domain.StatsPayload{Period: "b"}, nil).Once()
	next.On("FetchReviewStats", mock.Anything, q).Return(&domain.ReviewStatsPayload{Period: "r", TotalComments: domain.Int(1)}, nil).Once()

	cache := NewCachingFetcher(next, t.TempDir(), time.Hour)
	for i := 0; i < 2; i++ {
		a, err := cache.FetchPRStats(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, "a", a.Period)
		b, err := cache.FetchPRStats(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, "b", b.Period)
		r, err := cache.FetchReviewStats(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, domain.Int(1), r.TotalComments)
	}
	next.AssertExpectations(t)
}

func TestCachingFetcher_DoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	q := testQuery()
	next := new(mockFetcher)
	next.On("FetchReviewStats", mock.Anything, q).Return(nil, errors.New("boom")).Once()
	next.On("FetchReviewStats", mock.Anything, q).Return(&domain.ReviewStatsPayload{Period: "ok"}, nil).Once()

	cache := NewCachingFetcher(next, t.TempDir(), time.Hour)
	_, err := cache.FetchReviewStats(ctx, q)
	require.Error(t, err)

	payload, err := cache.FetchReviewStats(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "ok", payload.Period)
	next.AssertExpectations(t)
}

func TestCachingFetcher_ZeroTTLDisablesCaching(t *testing.T) {
	ctx := context.Background()
	q := testQuery()
	next := new(mockFetcher)
	next.On("FetchPRStats", mock.Anything, q).Return(&domain.StatsPayload{}, nil)

	cache := NewCachingFetcher(next, t.TempDir(), 0)
	_, _ = cache.FetchPRStats(ctx, q)
	_, _ = cache.FetchPRStats(ctx, q)
	next.AssertNumberOfCalls(t, "FetchPRStats", 2)
}

func TestCachingFetcher_SharesEntriesAcrossInstances(t *testing.T) {
	ctx := context.Background()
	q := testQuery()
	dir := t.TempDir()
	payload := &domain.StatsPayload{
		Period:            "p",
		TotalPullRequests: 1,
		AvgTimeOpenHours:  domain.Float(12),
		PullRequestDetails: []domain.PullRequestRecord{
			{ID: "42", Title: "Fix", TimeOpenHours: domain.Float(12), DiffDetails: &domain.DiffDetails{FilesChanged: 1}},
		},
	}
	next := new(mockFetcher)
	next.On("FetchPRStats", mock.Anything, q).Return(payload, nil).Once()

	_, err := NewCachingFetcher(next, dir, time.Hour).FetchPRStats(ctx, q)
	require.NoError(t, err)

	// A later run opens its own fetcher over the same directory.
	got, err := NewCachingFetcher(next, dir, time.Hour).FetchPRStats(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	next.AssertExpectations(t)
}

func TestCachingFetcher_CorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	q := testQuery()
	dir := t.TempDir()
	next := new(mockFetcher)
	next.On("FetchReviewStats", mock.Anything, q).Return(&domain.ReviewStatsPayload{Period: "fresh"}, nil).Once()

	cache := NewCachingFetcher(next, dir, time.Hour)
	require.NoError(t, os.WriteFile(cache.path(cacheKey("review", q)), []byte("{not json"), 0o600))

	got, err := cache.FetchReviewStats(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Period)
	next.AssertExpectations(t)
}

func TestCachingFetcher_Clear(t *testing.T) {
	ctx := context.Background()
	q := testQuery()
	dir := filepath.Join(t.TempDir(), "cache")
	next := new(mockFetcher)
	next.On("FetchPRStats", mock.Anything, q).Return(&domain.StatsPayload{Period: "p"}, nil).Twice()

	cache := NewCachingFetcher(next, dir, time.Hour)
	_, err := cache.FetchPRStats(ctx, q)
	require.NoError(t, err)

	require.NoError(t, cache.Clear())
	_, err = cache.FetchPRStats(ctx, q)
	require.NoError(t, err)
	next.AssertExpectations(t)

	require.NoError(t, NewCachingFetcher(next, filepath.Join(dir, "absent"), time.Hour).Clear())
}
