// Package domain contains the core data structures and domain logic for the application.
package domain

import "encoding/json"

// DiffDetails holds the size of a pull request's diff.
// It is either fully present on a record or absent (nil).
type DiffDetails struct {
	FilesChanged int `json:"files_changed"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// PullRequestRecord is a single authored pull request as reported by a stats source.
// Timestamps are kept in their wire form: a missing or malformed value means "unknown".
type PullRequestRecord struct {
	ID            ID           `json:"id"`
	Title         string       `json:"title"`
	Repo          string       `json:"repo"`
	Link          string       `json:"link"`
	CreatedOn     string       `json:"created_on,omitempty"`
	ClosedOn      string       `json:"closed_on,omitempty"`
	TimeOpenHours *float64     `json:"time_open_hours"`
	CommentCount  *int         `json:"comment_count"`
	DiffDetails   *DiffDetails `json:"diff_details,omitempty"`
}

// StatsPayload is one period's aggregate view of authored pull requests.
// A nil average means "not computable" and is never coerced to zero.
type StatsPayload struct {
	Period             string              `json:"period"`
	TotalPullRequests  int                 `json:"total_pull_requests"`
	AvgTimeOpenHours   *float64            `json:"avg_time_open_hours"`
	AvgCommentCount    *float64            `json:"avg_comment_count"`
	AvgFilesChanged    *float64            `json:"avg_files_changed"`
	AvgLinesAdded      *float64            `json:"avg_lines_added"`
	AvgLinesRemoved    *float64            `json:"avg_lines_removed"`
	PullRequestDetails []PullRequestRecord `json:"pull_request_details"`
}

// FilterResult is a StatsPayload decorated with provenance fields describing how it was derived.
// The provenance fields are for messaging only and never feed numeric computation.
type FilterResult struct {
	StatsPayload
	Filtered        bool `json:"_filtered"`
	OriginalCount   int  `json:"_original_count"`
	FilteredCount   int  `json:"_filtered_count"`
	ExcludedCount   *int `json:"_excluded_count,omitempty"`
	ExcludeWeekends bool `json:"_exclude_weekends"`
}

// MarshalJSON renders an unfiltered result as the bare payload. A filtered result always
// carries its counts, including zero ones.
func (r FilterResult) MarshalJSON() ([]byte, error) {
	if !r.Filtered {
		return json.Marshal(r.StatsPayload)
	}
	type withProvenance FilterResult
	return json.Marshal(withProvenance(r))
}

// PullRequestCommentSummary is one reviewed pull request the user commented on.
type PullRequestCommentSummary struct {
	ID           ID     `json:"id"`
	Title        string `json:"title"`
	Link         string `json:"link"`
	CommentsMade int    `json:"comments_made"`
	Repo         string `json:"repo"`
}

// ReviewStatsPayload is one period's review activity. It is never filtered.
type ReviewStatsPayload struct {
	Period                     string                      `json:"period"`
	TotalPullRequestsReviewed  int                         `json:"total_pull_requests_reviewed"`
	TotalPullRequestsApproved  int                         `json:"total_pull_requests_approved"`
	TotalPullRequestsCommented *int                        `json:"total_pull_requests_commented"`
	TotalComments              *int                        `json:"total_comments"`
	ApprovedPercentage         *float64                    `json:"approved_percentage"`
	CommentedPercentage        *float64                    `json:"commented_percentage"`
	PullRequestsCommented      []PullRequestCommentSummary `json:"pull_requests_commented,omitempty"`
}

// Clone returns a deep copy of the record.
func (r PullRequestRecord) Clone() PullRequestRecord {
	c := r
	c.TimeOpenHours = cloneFloat(r.TimeOpenHours)
	c.CommentCount = cloneInt(r.CommentCount)
	if r.DiffDetails != nil {
		d := *r.DiffDetails
		c.DiffDetails = &d
	}
	return c
}

// Clone returns a deep copy of the payload, sharing no pointers or slices with p.
func (p *StatsPayload) Clone() *StatsPayload {
	if p == nil {
		return nil
	}
	c := *p
	c.AvgTimeOpenHours = cloneFloat(p.AvgTimeOpenHours)
	c.AvgCommentCount = cloneFloat(p.AvgCommentCount)
	c.AvgFilesChanged = cloneFloat(p.AvgFilesChanged)
	c.AvgLinesAdded = cloneFloat(p.AvgLinesAdded)
	c.AvgLinesRemoved = cloneFloat(p.AvgLinesRemoved)
	if p.PullRequestDetails != nil {
		c.PullRequestDetails = make([]PullRequestRecord, len(p.PullRequestDetails))
		for i, pr := range p.PullRequestDetails {
			c.PullRequestDetails[i] = pr.Clone()
		}
	}
	return &c
}

// Clone returns a deep copy of the payload.
func (p *ReviewStatsPayload) Clone() *ReviewStatsPayload {
	if p == nil {
		return nil
	}
	c := *p
	c.TotalPullRequestsCommented = cloneInt(p.TotalPullRequestsCommented)
	c.TotalComments = cloneInt(p.TotalComments)
	c.ApprovedPercentage = cloneFloat(p.ApprovedPercentage)
	c.CommentedPercentage = cloneFloat(p.CommentedPercentage)
	if p.PullRequestsCommented != nil {
		c.PullRequestsCommented = append([]PullRequestCommentSummary(nil), p.PullRequestsCommented...)
	}
	return &c
}

// Float returns a pointer to v. Handy for building payloads by hand.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	return Int(*v)
}
