package usecase

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/review-tally/review-tally/internal/cache"
	"github.com/review-tally/review-tally/internal/domain"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) ListRepositories(ctx context.Context, org string, languages []string) ([]string, error) {
	args := m.Called(ctx, org, languages)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockFetcher) ListPullRequests(ctx context.Context, owner, repo string, start, end time.Time) ([]domain.PullRequest, error) {
	args := m.Called(ctx, owner, repo, start, end)
	return args.Get(0).([]domain.PullRequest), args.Error(1)
}

func (m *mockFetcher) FetchReviewActivity(ctx context.Context, owner, repo string, pulls []int) ([]domain.ReviewActivity, error) {
	args := m.Called(ctx, owner, repo, pulls)
	return args.Get(0).([]domain.ReviewActivity), args.Error(1)
}

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestCollect_AccumulatesReviewersAndSprints(t *testing.T) {
	start := ts(t, "2025-01-01T00:00:00Z")
	end := ts(t, "2025-02-01T00:00:00Z")
	periods := domain.CalculateSprintPeriods(start, end)

	prs := []domain.PullRequest{
		{Number: 1, State: "closed", CreatedAt: ts(t, "2025-01-05T09:00:00Z")},
		{Number: 2, State: "open", CreatedAt: ts(t, "2025-01-20T09:00:00Z")},
	}
	aliceTime := ts(t, "2025-01-06T10:00:00Z")
	bobTime := ts(t, "2025-01-21T10:00:00Z")
	records := []domain.ReviewActivity{
		{Login: "alice", ReviewID: 1, PullNumber: 1, CommentCount: 3, SubmittedAt: &aliceTime},
		{Login: "alice", ReviewID: 2, PullNumber: 2, CommentCount: 1, SubmittedAt: nil},
		{Login: "bob", ReviewID: 3, PullNumber: 2, CommentCount: 0, SubmittedAt: &bobTime},
	}

	fetcher := new(mockFetcher)
	fetcher.On("ListPullRequests", mock.Anything, "octocat", "hello", start, end).Return(prs, nil)
	fetcher.On("FetchReviewActivity", mock.Anything, "octocat", "hello", []int{1, 2}).Return(records, nil)

	collector := NewCollector(fetcher, cache.NewManager(nil, discard()), discard())
	result, err := collector.Collect(context.Background(), []string{"octocat/hello"}, start, end, periods)

	require.NoError(t, err)
	fetcher.AssertExpectations(t)

	alice := result.Reviewers["alice"]
	require.NotNil(t, alice)
	assert.Equal(t, 2, alice.Reviews)
	assert.Equal(t, 4, alice.Comments)
	// The record without a submission time counts above but stays out of
	// the time series.
	assert.Len(t, alice.ReviewTimes, 1)
	assert.Len(t, alice.PRCreatedTimes, 1)

	bob := result.Reviewers["bob"]
	require.NotNil(t, bob)
	assert.Equal(t, 1, bob.Reviews)
	assert.Equal(t, 0, bob.Comments)

	first := result.Sprints["2025-01-01"]
	require.NotNil(t, first)
	assert.Equal(t, 1, first.TotalReviews)
	assert.Equal(t, 3, first.TotalComments)
	assert.Len(t, first.UniqueReviewers, 1)

	second := result.Sprints["2025-01-15"]
	require.NotNil(t, second)
	assert.Equal(t, 1, second.TotalReviews)
	assert.Contains(t, second.UniqueReviewers, "bob")

	third := result.Sprints["2025-01-29"]
	require.NotNil(t, third)
	assert.Zero(t, third.TotalReviews)
}

func TestCollect_SecondRunServedFromCache(t *testing.T) {
	store, err := cache.OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	manager := cache.NewManager(store, discard())

	start := ts(t, "2025-01-01T00:00:00Z")
	end := ts(t, "2025-01-15T00:00:00Z")
	prs := []domain.PullRequest{
		{Number: 1, State: "closed", CreatedAt: ts(t, "2025-01-03T09:00:00Z")},
	}
	submitted := ts(t, "2025-01-04T10:00:00Z")
	records := []domain.ReviewActivity{
		{Login: "alice", ReviewID: 1, PullNumber: 1, CommentCount: 2, SubmittedAt: &submitted},
	}

	fetcher := new(mockFetcher)
	fetcher.On("ListPullRequests", mock.Anything, "octocat", "hello", start, end).Return(prs, nil).Once()
	fetcher.On("FetchReviewActivity", mock.Anything, "octocat", "hello", []int{1}).Return(records, nil).Once()

	collector := NewCollector(fetcher, manager, discard())

	for run := 0; run < 2; run++ {
		result, err := collector.Collect(context.Background(), []string{"octocat/hello"}, start, end, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Reviewers["alice"])
		assert.Equal(t, 1, result.Reviewers["alice"].Reviews)
		assert.Equal(t, 2, result.Reviewers["alice"].Comments)
	}

	// Once() above makes a second network round trip fail the test.
	fetcher.AssertExpectations(t)
}

func TestCollect_InvalidRepositoryIdentifier(t *testing.T) {
	collector := NewCollector(new(mockFetcher), cache.NewManager(nil, discard()), discard())

	for _, identifier := range []string{"no-slash", "/name", "owner/", ""} {
		_, err := collector.Collect(context.Background(), []string{identifier}, time.Now(), time.Now(), nil)
		assert.Error(t, err, identifier)
	}
}

func TestChunk(t *testing.T) {
	nums := make([]int, 120)
	for i := range nums {
		nums[i] = i
	}

	batches := chunk(nums, 50)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 50)
	assert.Len(t, batches[1], 50)
	assert.Len(t, batches[2], 20)
	assert.Equal(t, 0, batches[0][0])
	assert.Equal(t, 119, batches[2][19])

	assert.Empty(t, chunk(nil, 50))
	assert.Len(t, chunk([]int{1}, 50), 1)
}
