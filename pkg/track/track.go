// Package track turns raw pull-request metadata into effort records
// and aggregates them into per-developer and per-project rollups.
package track

import "time"

// PullRequest is the upstream item shape the pipeline consumes: the
// subset of search-result fields the report needs.
type PullRequest struct {
	Title     string
	Body      *string // nil when the PR has no description
	Author    string
	CreatedAt time.Time
	URL       string
	Labels    []string
}

// EffortRecord is the parsed, immutable view of one pull request.
// EstimateHours and ActualHours are always finite and non-negative;
// unparseable annotations degrade to 0.
type EffortRecord struct {
	Title         string    `json:"title"`
	IssueKey      string    `json:"issue_key"`
	ProjectKey    string    `json:"project_key"`
	EstimateHours float64   `json:"estimate_hours"`
	ActualHours   float64   `json:"actual_hours"`
	Author        string    `json:"author"`
	CreatedAt     time.Time `json:"created_at"`
	URL           string    `json:"url"`
}
