package gateway

import "fmt"

// StatusError is a terminal non-2xx HTTP response. Callers can inspect
// StatusCode to distinguish client errors (never retried) from the retryable
// set the executor already exhausted.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}

// PaginationError signals that the page-count safety ceiling was exceeded
// while listing pull requests. It indicates a likely infinite-loop condition
// (an endpoint that never stops returning rows), not normal exhaustion, and
// must never be swallowed.
type PaginationError struct {
	Pages int
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pull request listing exceeded the %d page safety ceiling", e.Pages)
}
