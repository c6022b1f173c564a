package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"golang.org/x/time/rate"
)

const (
	prStatsPath     = "/pull-requests/stats"
	reviewStatsPath = "/pull-requests/reviews/stats"
)

// Credentials are passed through to the stats backend unchanged.
type Credentials struct {
	Username    string
	AppPassword string
}

// BackendGateway fetches precomputed statistics from the stats backend.
type BackendGateway struct {
	baseURL     string
	httpClient  *http.Client
	credentials Credentials
	limiter     *rate.Limiter
	logger      *log.Logger
}

// NewBackendGateway creates a gateway for the backend at baseURL.
// requestsPerSecond <= 0 disables throttling.
func NewBackendGateway(baseURL string, creds Credentials, requestsPerSecond float64, logger *log.Logger) *BackendGateway {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &BackendGateway{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		credentials: creds,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
	}
}

func (g *BackendGateway) FetchPRStats(ctx context.Context, q domain.Query) (*domain.StatsPayload, error) {
	params := baseParams(q)
	// Diff details are always requested so that filtered payloads can recompute size averages.
	params.Set("includeDiffDetails", "true")
	params.Set("includePullRequestDetails", strconv.FormatBool(q.IncludePullRequestDetails))
	if q.Nickname != "" {
		params.Set("nickname", q.Nickname)
	}

	var payload domain.StatsPayload
	if err := g.get(ctx, prStatsPath, params, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch PR stats: %w", err)
	}
	return &payload, nil
}

func (g *BackendGateway) FetchReviewStats(ctx context.Context, q domain.Query) (*domain.ReviewStatsPayload, error) {
	params := baseParams(q)
	params.Set("includeCommentDetails", strconv.FormatBool(q.IncludePullRequestDetails))

	var payload domain.ReviewStatsPayload
	if err := g.get(ctx, reviewStatsPath, params, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch review stats: %w", err)
	}
	return &payload, nil
}

func baseParams(q domain.Query) url.Values {
	params := url.Values{}
	params.Set("workspace", q.Workspace)
	for _, repo := range q.Repos {
		params.Add("repo", repo)
	}
	params.Set("sinceDate", q.Since.Format(domain.DateLayout))
	if !q.Until.IsZero() {
		params.Set("untilDate", q.Until.Format(domain.DateLayout))
	}
	for _, state := range q.States {
		params.Add("state", state)
	}
	return params
}

func (g *BackendGateway) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	endpoint := g.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.credentials.Username != "" {
		req.SetBasicAuth(g.credentials.Username, g.credentials.AppPassword)
		req.Header.Set("username", g.credentials.Username)
		req.Header.Set("appPassword", g.credentials.AppPassword)
	}

	g.logger.Printf("  GET %s", path)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Message != "" {
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
