package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidQuery is returned when a Query cannot be sent to a stats source.
var ErrInvalidQuery = errors.New("invalid query")

// DateLayout is the date format used by stats sources and the CLI.
const DateLayout = "2006-01-02"

// ID is an opaque pull request identifier. Sources send it either as a JSON number or a string.
type ID string

// UnmarshalJSON accepts both numeric and string identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("pull request id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Query describes what to fetch from a stats source for one period.
type Query struct {
	Workspace                 string    `json:"workspace"`
	Repos                     []string  `json:"repos"`
	Since                     time.Time `json:"since"`
	Until                     time.Time `json:"until"`
	States                    []string  `json:"states,omitempty"`
	Nickname                  string    `json:"nickname,omitempty"`
	IncludeDiffDetails        bool      `json:"include_diff_details"`
	IncludePullRequestDetails bool      `json:"include_pull_request_details"`
}

// Validate checks the fields every source requires.
func (q Query) Validate() error {
	switch {
	case q.Workspace == "":
		return fmt.Errorf("%w: workspace is required", ErrInvalidQuery)
	case len(q.Repos) == 0:
		return fmt.Errorf("%w: at least one repository is required", ErrInvalidQuery)
	case q.Since.IsZero():
		return fmt.Errorf("%w: since date is required", ErrInvalidQuery)
	case !q.Until.IsZero() && q.Since.After(q.Until):
		return fmt.Errorf("%w: since date must not be after until date", ErrInvalidQuery)
	}
	return nil
}

// Period renders the human readable label for the query's date range.
func (q Query) Period() string {
	return fmt.Sprintf("FROM: %s TO: %s", q.Since.Format(DateLayout), q.Until.Format(DateLayout))
}
