package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPullRequestKey(t *testing.T) {
	assert.Equal(t, "pr_metadata:octocat:hello:42", PullRequestKey("octocat", "hello", 42))
	assert.True(t, strings.HasPrefix(PullRequestKey("octocat", "hello", 42), PullRequestPrefix("octocat", "hello")))
}

func TestRangeMarkerKey(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 31, 23, 59, 59, 0, time.UTC)
	key := RangeMarkerKey("octocat", "hello", start, end)
	assert.Equal(t, "pr_list:octocat:hello:2023-01-01:2023-01-31", key)
}

func TestReviewBatchKey_OrderInsensitive(t *testing.T) {
	a := ReviewBatchKey("octocat", "hello", []int{3, 1, 2})
	b := ReviewBatchKey("octocat", "hello", []int{1, 2, 3})
	assert.Equal(t, a, b)
	assert.Equal(t, "reviews_batch:octocat:hello:1,2,3", a)

	// The input slice must not be reordered as a side effect.
	pulls := []int{3, 1, 2}
	ReviewBatchKey("octocat", "hello", pulls)
	assert.Equal(t, []int{3, 1, 2}, pulls)
}

func TestReviewBatchKey_DistinctInputs(t *testing.T) {
	assert.NotEqual(t,
		ReviewBatchKey("octocat", "hello", []int{1, 2}),
		ReviewBatchKey("octocat", "hello", []int{1, 2, 3}))
	assert.NotEqual(t,
		ReviewBatchKey("octocat", "hello", []int{1, 2}),
		ReviewBatchKey("octocat", "world", []int{1, 2}))
}

func TestReviewBatchKey_LongKeysCollapse(t *testing.T) {
	pulls := make([]int, 200)
	for i := range pulls {
		pulls[i] = 10000 + i
	}

	key := ReviewBatchKey("octocat", "hello", pulls)
	assert.LessOrEqual(t, len(key), maxKeyLength)
	assert.Equal(t, "reviews_batch:hash_", key[:len("reviews_batch:hash_")])
	assert.Len(t, key, len("reviews_batch:hash_")+16)

	// Deterministic for identical inputs, distinct for different ones.
	assert.Equal(t, key, ReviewBatchKey("octocat", "hello", pulls))
	pulls[0]++
	assert.NotEqual(t, key, ReviewBatchKey("octocat", "hello", pulls))
}
