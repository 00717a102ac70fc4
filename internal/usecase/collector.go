// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/review-tally/review-tally/internal/cache"
	"github.com/review-tally/review-tally/internal/domain"
	"github.com/review-tally/review-tally/internal/gateway"
)

// batchSize bounds how many pull requests are grouped into one
// review/comment fetch (and one cache entry).
const batchSize = 50

// Collector walks a set of repositories and accumulates per-reviewer and
// per-sprint review activity, consulting the cache policy layer before every
// network fetch.
type Collector struct {
	fetcher gateway.Fetcher
	cache   *cache.Manager
	logger  *log.Logger
}

// NewCollector creates a new Collector instance.
func NewCollector(fetcher gateway.Fetcher, cacheManager *cache.Manager, logger *log.Logger) *Collector {
	return &Collector{fetcher: fetcher, cache: cacheManager, logger: logger}
}

// Result is the transient output of one run, discarded at process exit.
type Result struct {
	Reviewers map[string]*domain.ReviewerStats
	Sprints   map[string]*domain.SprintStats
}

// Collect gathers review activity for every repository (given as
// "owner/name" identifiers) over [start, end]. Sprint buckets are filled only
// when periods is non-empty. Repositories are processed strictly
// sequentially; concurrency lives inside the gateway's batch fetches.
func (c *Collector) Collect(ctx context.Context, repos []string, start, end time.Time, periods []domain.SprintPeriod) (*Result, error) {
	result := &Result{
		Reviewers: make(map[string]*domain.ReviewerStats),
		Sprints:   make(map[string]*domain.SprintStats),
	}
	for _, p := range periods {
		result.Sprints[p.Label] = domain.NewSprintStats()
	}

	for _, identifier := range repos {
		owner, repo, err := splitRepoIdentifier(identifier)
		if err != nil {
			return nil, err
		}
		if err := c.collectRepository(ctx, result, owner, repo, start, end, periods); err != nil {
			return nil, fmt.Errorf("failed to collect %s: %w", identifier, err)
		}
	}
	return result, nil
}

func (c *Collector) collectRepository(ctx context.Context, result *Result, owner, repo string, start, end time.Time, periods []domain.SprintPeriod) error {
	prs, err := c.pullRequests(ctx, owner, repo, start, end)
	if err != nil {
		return err
	}
	c.logger.Printf("%s/%s: %d pull requests in range", owner, repo, len(prs))

	byNumber := make(map[int]domain.PullRequest, len(prs))
	numbers := make([]int, 0, len(prs))
	for _, pr := range prs {
		byNumber[pr.Number] = pr
		numbers = append(numbers, pr.Number)
	}

	for _, batch := range chunk(numbers, batchSize) {
		records, err := c.reviewBatch(ctx, owner, repo, batch, byNumber)
		if err != nil {
			return err
		}
		c.accumulate(result, records, byNumber, periods)
	}
	return nil
}

// pullRequests lists PRs cache-first. A valid range marker serves the whole
// range from cache; otherwise the range is fetched fresh and merged with any
// surviving per-PR entries, fresh records winning on duplicates.
func (c *Collector) pullRequests(ctx context.Context, owner, repo string, start, end time.Time) ([]domain.PullRequest, error) {
	if cached, ok := c.cache.CachedPullRequests(owner, repo, start, end); ok {
		c.logger.Printf("cache hit: PR list for %s/%s", owner, repo)
		return cached, nil
	}
	fresh, err := c.fetcher.ListPullRequests(ctx, owner, repo, start, end)
	if err != nil {
		return nil, err
	}
	merged := cache.MergePullRequests(fresh, c.cache.ScanPullRequests(owner, repo, start, end))
	sort.Slice(merged, func(i, j int) bool { return merged[i].CreatedAt.Before(merged[j].CreatedAt) })
	c.cache.StorePullRequests(owner, repo, start, end, merged)
	return merged, nil
}

func (c *Collector) reviewBatch(ctx context.Context, owner, repo string, batch []int, byNumber map[int]domain.PullRequest) ([]domain.ReviewActivity, error) {
	if records, ok := c.cache.CachedReviewBatch(owner, repo, batch); ok {
		c.logger.Printf("cache hit: review batch of %d PRs for %s/%s", len(batch), owner, repo)
		return records, nil
	}
	records, err := c.fetcher.FetchReviewActivity(ctx, owner, repo, batch)
	if err != nil {
		return nil, err
	}
	anyOpen := false
	for _, n := range batch {
		if !byNumber[n].Closed() {
			anyOpen = true
			break
		}
	}
	c.cache.StoreReviewBatch(owner, repo, batch, anyOpen, records)
	return records, nil
}

// accumulate folds one batch of joined records into the run result. Records
// without a submission time still count toward review and comment totals but
// stay out of every time-based series, including sprint buckets.
func (c *Collector) accumulate(result *Result, records []domain.ReviewActivity, byNumber map[int]domain.PullRequest, periods []domain.SprintPeriod) {
	for _, record := range records {
		reviewer, ok := result.Reviewers[record.Login]
		if !ok {
			reviewer = &domain.ReviewerStats{}
			result.Reviewers[record.Login] = reviewer
		}
		reviewer.Reviews++
		reviewer.Comments += record.CommentCount

		if record.SubmittedAt == nil {
			continue
		}
		submitted := *record.SubmittedAt
		created := byNumber[record.PullNumber].CreatedAt
		reviewer.ReviewTimes = append(reviewer.ReviewTimes, submitted)
		reviewer.PRCreatedTimes = append(reviewer.PRCreatedTimes, created)

		if label := domain.SprintForDate(periods, submitted); label != "" {
			sprint := result.Sprints[label]
			sprint.TotalReviews++
			sprint.TotalComments += record.CommentCount
			sprint.UniqueReviewers[record.Login] = struct{}{}
			sprint.ReviewTimes = append(sprint.ReviewTimes, submitted.UTC().Format(time.RFC3339))
			sprint.PRCreatedTimes = append(sprint.PRCreatedTimes, created.UTC().Format(time.RFC3339))
		}
	}
}

func splitRepoIdentifier(identifier string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(identifier, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository identifier %q, expected owner/name", identifier)
	}
	return owner, repo, nil
}

func chunk(nums []int, size int) [][]int {
	var batches [][]int
	for len(nums) > size {
		batches = append(batches, nums[:size])
		nums = nums[size:]
	}
	if len(nums) > 0 {
		batches = append(batches, nums)
	}
	return batches
}
