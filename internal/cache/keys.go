// Package cache persists GitHub API responses between runs and decides how
// long each kind of response stays valid.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Key namespaces. The namespace is everything before the first colon and is
// what the store's stats break entries down by.
const (
	nsPullRequest = "pr_metadata"
	nsRangeMarker = "pr_list"
	nsReviewBatch = "reviews_batch"
)

// maxKeyLength bounds stored key size. Longer keys are collapsed to a
// deterministic hash suffix.
const maxKeyLength = 200

// PullRequestKey identifies one PR's cached metadata.
func PullRequestKey(owner, repo string, number int) string {
	return boundKey(nsPullRequest, fmt.Sprintf("%s:%s:%s:%d", nsPullRequest, owner, repo, number))
}

// PullRequestPrefix matches every cached PR for a repository.
func PullRequestPrefix(owner, repo string) string {
	return fmt.Sprintf("%s:%s:%s:", nsPullRequest, owner, repo)
}

// RangeMarkerKey identifies the coverage marker proving that a date range
// was fully fetched for a repository.
func RangeMarkerKey(owner, repo string, start, end time.Time) string {
	return boundKey(nsRangeMarker, fmt.Sprintf("%s:%s:%s:%s:%s",
		nsRangeMarker, owner, repo,
		start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02")))
}

// ReviewBatchKey identifies the joined review/comment records for a batch of
// pull requests. The number list is sorted first so identical batches map to
// identical keys regardless of input order.
func ReviewBatchKey(owner, repo string, pulls []int) string {
	sorted := make([]int, len(pulls))
	copy(sorted, pulls)
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = strconv.Itoa(n)
	}
	return boundKey(nsReviewBatch, fmt.Sprintf("%s:%s:%s:%s",
		nsReviewBatch, owner, repo, strings.Join(parts, ",")))
}

// boundKey collapses keys beyond maxKeyLength to "<ns>:hash_<16 hex>". The
// hash covers the full untruncated key, so equal inputs still collide onto
// the same key and distinct inputs practically never do.
func boundKey(namespace, key string) string {
	if len(key) <= maxKeyLength {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:hash_%x", namespace, sum[:8])
}
