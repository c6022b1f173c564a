// Package gateway provides access to pull request stats sources: the stats backend over HTTP
// and GitHub's REST and GraphQL APIs.
package gateway

import (
	"context"
	"fmt"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// Fetcher defines the behavior of a gateway for fetching one period's statistics.
type Fetcher interface {
	FetchPRStats(ctx context.Context, q domain.Query) (*domain.StatsPayload, error)
	FetchReviewStats(ctx context.Context, q domain.Query) (*domain.ReviewStatsPayload, error)
}

// APIError is returned when a stats source answers with a non-success status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stats source returned %d: %s", e.StatusCode, e.Message)
}
