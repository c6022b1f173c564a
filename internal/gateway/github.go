package gateway

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

// GitHubGateway computes period statistics from GitHub. Query.Workspace is the repository owner.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
	now           func() time.Time
}

// authoredPRQuery fetches authored pull requests with everything a StatsPayload needs.
type authoredPRQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Edges []struct {
			Node struct {
				Typename    string `graphql:"__typename"`
				PullRequest struct {
					Number     int
					Title      string
					URL        string
					CreatedAt  githubv4.DateTime
					UpdatedAt  githubv4.DateTime
					ClosedAt   *githubv4.DateTime
					Repository struct {
						Name string
					}
					Comments struct {
						TotalCount int
					}
					Additions    int
					Deletions    int
					ChangedFiles int
				} `graphql:"... on PullRequest"`
			}
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 50, after: $cursor)"`
}

// reviewedPRQuery fetches pull requests reviewed by a user, with that user's reviews only.
type reviewedPRQuery struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool
			EndCursor   githubv4.String
		}
		Edges []struct {
			Node struct {
				Typename    string `graphql:"__typename"`
				PullRequest struct {
					Number     int
					Title      string
					URL        string
					Repository struct {
						Name string
					}
					Reviews struct {
						Nodes []struct {
							State    githubv4.PullRequestReviewState
							Comments struct {
								TotalCount int
							}
						}
					} `graphql:"reviews(first: 100, author: $login)"`
				} `graphql:"... on PullRequest"`
			}
		}
	} `graphql:"search(query: $query, type: ISSUE, first: 50, after: $cursor)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
		now:           time.Now,
	}, nil
}

// resolveLogin returns the nickname from the query, or the authenticated user's login.
func (g *GitHubGateway) resolveLogin(ctx context.Context, q domain.Query) (string, error) {
	if q.Nickname != "" {
		return q.Nickname, nil
	}
	user, _, err := g.restClient.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to resolve authenticated user: %w", err)
	}
	return user.GetLogin(), nil
}

func (g *GitHubGateway) FetchPRStats(ctx context.Context, q domain.Query) (*domain.StatsPayload, error) {
	login, err := g.resolveLogin(ctx, q)
	if err != nil {
		return nil, err
	}
	g.logger.Printf("Fetching authored PRs for %s...", login)

	seen := make(map[domain.ID]bool)
	var records []domain.PullRequestRecord
	for _, search := range searchQueries(q, "author:"+login) {
		variables := map[string]interface{}{
			"query":  githubv4.String(search),
			"cursor": (*githubv4.String)(nil),
		}
		for {
			var query authoredPRQuery
			if err := g.graphqlClient.Query(ctx, &query, variables); err != nil {
				return nil, fmt.Errorf("failed to execute GraphQL query for authored PRs: %w", err)
			}
			for _, edge := range query.Search.Edges {
				if edge.Node.Typename != "PullRequest" {
					continue
				}
				pr := edge.Node.PullRequest
				id := domain.ID(fmt.Sprintf("%s#%d", pr.Repository.Name, pr.Number))
				if seen[id] {
					continue
				}
				seen[id] = true

				// Open pull requests are measured up to their last update.
				end := pr.UpdatedAt.Time
				record := domain.PullRequestRecord{
					ID:           id,
					Title:        pr.Title,
					Repo:         pr.Repository.Name,
					Link:         pr.URL,
					CreatedOn:    pr.CreatedAt.Format(time.RFC3339),
					CommentCount: domain.Int(pr.Comments.TotalCount),
				}
				if pr.ClosedAt != nil {
					end = pr.ClosedAt.Time
					record.ClosedOn = pr.ClosedAt.Format(time.RFC3339)
				}
				record.TimeOpenHours = domain.Float(math.Trunc(end.Sub(pr.CreatedAt.Time).Hours()))
				if q.IncludeDiffDetails {
					record.DiffDetails = &domain.DiffDetails{
						FilesChanged: pr.ChangedFiles,
						LinesAdded:   pr.Additions,
						LinesRemoved: pr.Deletions,
					}
				}
				records = append(records, record)
			}
			if !query.Search.PageInfo.HasNextPage {
				break
			}
			variables["cursor"] = githubv4.NewString(query.Search.PageInfo.EndCursor)
			g.logger.Println("  Fetching next page of authored PRs...")
		}
	}

	payload := summarizeAuthored(g.period(q), records, q.IncludeDiffDetails)
	if !q.IncludePullRequestDetails {
		payload.PullRequestDetails = nil
	}
	g.logger.Printf("Completed fetching %d authored PRs.", payload.TotalPullRequests)
	return payload, nil
}

func (g *GitHubGateway) FetchReviewStats(ctx context.Context, q domain.Query) (*domain.ReviewStatsPayload, error) {
	login, err := g.resolveLogin(ctx, q)
	if err != nil {
		return nil, err
	}
	g.logger.Printf("Fetching reviewed PRs for %s...", login)

	var (
		reviewed, approved, commented, comments int
		details                                 []domain.PullRequestCommentSummary
		seen                                    = make(map[domain.ID]bool)
	)
	for _, search := range searchQueries(q, "reviewed-by:"+login+" -author:"+login) {
		variables := map[string]interface{}{
			"query":  githubv4.String(search),
			"login":  githubv4.String(login),
			"cursor": (*githubv4.String)(nil),
		}
		for {
			var query reviewedPRQuery
			if err := g.graphqlClient.Query(ctx, &query, variables); err != nil {
				return nil, fmt.Errorf("failed to execute GraphQL query for reviewed PRs: %w", err)
			}
			for _, edge := range query.Search.Edges {
				if edge.Node.Typename != "PullRequest" {
					continue
				}
				pr := edge.Node.PullRequest
				id := domain.ID(fmt.Sprintf("%s#%d", pr.Repository.Name, pr.Number))
				if seen[id] {
					continue
				}
				seen[id] = true
				reviewed++

				var isApproved bool
				var made int
				for _, review := range pr.Reviews.Nodes {
					if review.State == githubv4.PullRequestReviewStateApproved {
						isApproved = true
					}
					made += review.Comments.TotalCount
				}
				if isApproved {
					approved++
				}
				if made > 0 {
					commented++
					comments += made
					if q.IncludePullRequestDetails {
						details = append(details, domain.PullRequestCommentSummary{
							ID:           id,
							Title:        pr.Title,
							Link:         pr.URL,
							CommentsMade: made,
							Repo:         pr.Repository.Name,
						})
					}
				}
			}
			if !query.Search.PageInfo.HasNextPage {
				break
			}
			variables["cursor"] = githubv4.NewString(query.Search.PageInfo.EndCursor)
			g.logger.Println("  Fetching next page of reviewed PRs...")
		}
	}

	g.logger.Printf("Completed fetching %d reviewed PRs.", reviewed)
	return &domain.ReviewStatsPayload{
		Period:                     g.period(q),
		TotalPullRequestsReviewed:  reviewed,
		TotalPullRequestsApproved:  approved,
		TotalPullRequestsCommented: domain.Int(commented),
		TotalComments:              domain.Int(comments),
		ApprovedPercentage:         domain.Float(percentage(approved, reviewed)),
		CommentedPercentage:        domain.Float(percentage(commented, reviewed)),
		PullRequestsCommented:      details,
	}, nil
}

func (g *GitHubGateway) period(q domain.Query) string {
	if q.Until.IsZero() {
		q.Until = g.now()
	}
	return q.Period()
}

// searchQueries builds one search string per requested state, since search qualifiers cannot
// be OR-ed together.
func searchQueries(q domain.Query, who string) []string {
	var b strings.Builder
	b.WriteString("is:pr " + who)
	for _, repo := range q.Repos {
		fmt.Fprintf(&b, " repo:%s/%s", q.Workspace, repo)
	}
	until := "*"
	if !q.Until.IsZero() {
		until = q.Until.Format(domain.DateLayout)
	}
	fmt.Fprintf(&b, " created:%s..%s", q.Since.Format(domain.DateLayout), until)
	base := b.String()

	if len(q.States) == 0 {
		return []string{base}
	}
	queries := make([]string, 0, len(q.States))
	for _, state := range q.States {
		queries = append(queries, base+stateQualifier(state))
	}
	return queries
}

// stateQualifier maps stats-backend PR states onto GitHub search qualifiers.
func stateQualifier(state string) string {
	switch strings.ToUpper(state) {
	case "OPEN":
		return " is:open"
	case "MERGED":
		return " is:merged"
	case "DECLINED", "SUPERSEDED":
		return " is:closed is:unmerged"
	default:
		return ""
	}
}

// summarizeAuthored builds a payload whose averages are consistent with records.
func summarizeAuthored(period string, records []domain.PullRequestRecord, includeDiff bool) *domain.StatsPayload {
	payload := &domain.StatsPayload{
		Period:             period,
		TotalPullRequests:  len(records),
		PullRequestDetails: records,
	}
	if len(records) == 0 {
		return payload
	}
	var hours, comments, files, added, removed stats.Float64Data
	for _, r := range records {
		hours = append(hours, *r.TimeOpenHours)
		comments = append(comments, float64(*r.CommentCount))
		if r.DiffDetails != nil {
			files = append(files, float64(r.DiffDetails.FilesChanged))
			added = append(added, float64(r.DiffDetails.LinesAdded))
			removed = append(removed, float64(r.DiffDetails.LinesRemoved))
		}
	}
	payload.AvgTimeOpenHours = roundedMean(hours)
	payload.AvgCommentCount = roundedMean(comments)
	if includeDiff {
		payload.AvgFilesChanged = roundedMean(files)
		payload.AvgLinesAdded = roundedMean(added)
		payload.AvgLinesRemoved = roundedMean(removed)
	}
	return payload
}

// roundedMean mirrors the stats backend, which reports whole-number averages.
func roundedMean(data stats.Float64Data) *float64 {
	m, err := stats.Mean(data)
	if err != nil {
		return nil
	}
	return domain.Float(math.Round(m))
}

// percentage is rounded to two decimals.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*100/float64(total)*100) / 100
}
