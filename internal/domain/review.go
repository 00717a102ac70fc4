// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// PullRequest is the subset of pull request metadata the collector works
// with. A closed PR is immutable, which is what lets the cache layer keep
// closed entries forever.
type PullRequest struct {
	Number    int       `json:"number"`
	State     string    `json:"state"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Closed reports whether the pull request is no longer open.
func (p PullRequest) Closed() bool {
	return p.State != "open"
}

// ReviewActivity is one review joined with its comment count. SubmittedAt is
// nil when the API omitted it and no comment timestamp could stand in for it;
// such records still count toward review totals but are excluded from
// time-based metrics.
type ReviewActivity struct {
	Login        string     `json:"login"`
	ReviewID     int64      `json:"review_id"`
	PullNumber   int        `json:"pull_number"`
	State        string     `json:"state"`
	CommentCount int        `json:"comment_count"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
}

// ReviewerStats accumulates one reviewer's counters over a run. It is owned
// by the run and never persisted.
type ReviewerStats struct {
	Reviews        int
	Comments       int
	ReviewTimes    []time.Time
	PRCreatedTimes []time.Time
}
