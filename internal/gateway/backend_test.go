package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuery() domain.Query {
	return domain.Query{
		Workspace: "acme",
		Repos:     []string{"api", "web"},
		Since:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Until:     time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		States:    []string{"MERGED", "OPEN"},
	}
}

func TestBackendGateway_FetchPRStats(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pull-requests/stats", r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "acme", query.Get("workspace"))
		assert.Equal(t, []string{"api", "web"}, query["repo"])
		assert.Equal(t, "2025-01-01", query.Get("sinceDate"))
		assert.Equal(t, "2025-01-31", query.Get("untilDate"))
		assert.Equal(t, []string{"MERGED", "OPEN"}, query["state"])
		assert.Equal(t, "true", query.Get("includeDiffDetails"))
		assert.Equal(t, "true", query.Get("includePullRequestDetails"))
		assert.Equal(t, "octo", query.Get("nickname"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "jane", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "jane", r.Header.Get("username"))
		assert.Equal(t, "secret", r.Header.Get("appPassword"))

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"period":"FROM: 2025-01-01 TO: 2025-01-31","total_pull_requests":1,"avg_time_open_hours":5,
			"pull_request_details":[{"id":3,"title":"t","repo":"api","time_open_hours":5,"comment_count":1}]}`)
	}
	server := httptest.NewServer(http.HandlerFunc(handler))
	defer server.Close()

	gw := NewBackendGateway(server.URL+"/", Credentials{Username: "jane", AppPassword: "secret"}, 0, log.New(io.Discard, "", 0))
	q := testQuery()
	q.Nickname = "octo"
	q.IncludePullRequestDetails = true

	payload, err := gw.FetchPRStats(context.Background(), q)

	require.NoError(t, err)
	assert.Equal(t, 1, payload.TotalPullRequests)
	require.Len(t, payload.PullRequestDetails, 1)
	assert.Equal(t, domain.ID("3"), payload.PullRequestDetails[0].ID)
}

func TestBackendGateway_FetchReviewStats(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pull-requests/reviews/stats", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("includeCommentDetails"))
		assert.Empty(t, r.URL.Query().Get("nickname"))
		_, _, ok := r.BasicAuth()
		assert.False(t, ok)
		fmt.Fprint(w, `{"period":"p","total_pull_requests_reviewed":4,"total_pull_requests_approved":3,"approved_percentage":75.0,"total_comments":9}`)
	}
	server := httptest.NewServer(http.HandlerFunc(handler))
	defer server.Close()

	gw := NewBackendGateway(server.URL, Credentials{}, 10, log.New(io.Discard, "", 0))
	payload, err := gw.FetchReviewStats(context.Background(), testQuery())

	require.NoError(t, err)
	assert.Equal(t, 4, payload.TotalPullRequestsReviewed)
	assert.Equal(t, 3, payload.TotalPullRequestsApproved)
	assert.Equal(t, domain.Float(75), payload.ApprovedPercentage)
	assert.Equal(t, domain.Int(9), payload.TotalComments)
	assert.Nil(t, payload.CommentedPercentage)
}

func TestBackendGateway_Errors(t *testing.T) {
	testCases := []struct {
		name            string
		status          int
		body            string
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "backend message is surfaced",
			status:          http.StatusUnauthorized,
			body:            `{"message":"Invalid Bitbucket credentials"}`,
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Invalid Bitbucket credentials",
		},
		{
			name:            "non json body falls back to status text",
			status:          http.StatusBadGateway,
			body:            `upstream down`,
			expectedStatus:  http.StatusBadGateway,
			expectedMessage: "Bad Gateway",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			gw := NewBackendGateway(server.URL, Credentials{}, 0, log.New(io.Discard, "", 0))
			_, err := gw.FetchPRStats(context.Background(), testQuery())

			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to fetch PR stats")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.expectedStatus, apiErr.StatusCode)
			assert.Equal(t, tc.expectedMessage, apiErr.Message)
		})
	}
}

func TestBackendGateway_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_pull_requests": "many"}`)
	}))
	defer server.Close()

	gw := NewBackendGateway(server.URL, Credentials{}, 0, log.New(io.Discard, "", 0))
	_, err := gw.FetchPRStats(context.Background(), testQuery())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}
