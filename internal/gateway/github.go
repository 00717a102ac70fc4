// Package gateway fetches pull request, review, and comment data from the
// GitHub API, wrapping it in retry, rate-limit, and batching behavior.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"

	"github.com/review-tally/review-tally/internal/domain"
)

const (
	itemsPerPage = 100
	maxNumPages  = 100
)

// Fetcher defines the behavior of a gateway for fetching review activity
// from GitHub.
type Fetcher interface {
	ListRepositories(ctx context.Context, org string, languages []string) ([]string, error)
	ListPullRequests(ctx context.Context, owner, repo string, start, end time.Time) ([]domain.PullRequest, error)
	FetchReviewActivity(ctx context.Context, owner, repo string, pulls []int) ([]domain.ReviewActivity, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	client        *Client
	graphqlClient *githubv4.Client
	baseURL       string
	maxPages      int
	logger        *log.Logger
}

// Options configures NewGitHubGateway.
type Options struct {
	Token      string
	BaseURL    string // REST base, e.g. https://api.github.com
	GraphQLURL string
	ProxyURL   *url.URL
	Logger     *log.Logger
}

// NewGitHubGateway is a constructor that creates a new instance of
// GitHubGateway sharing one HTTP stack between REST and GraphQL calls.
func NewGitHubGateway(opts Options) (*GitHubGateway, error) {
	client, err := NewClient(ClientOptions{Token: opts.Token, ProxyURL: opts.ProxyURL, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return &GitHubGateway{
		client:        client,
		graphqlClient: githubv4.NewEnterpriseClient(opts.GraphQLURL, client.http),
		baseURL:       strings.TrimSuffix(opts.BaseURL, "/"),
		maxPages:      maxNumPages,
		logger:        opts.Logger,
	}, nil
}

// repositoryNode is one repository in the organization listing, with the
// languages needed for filtering.
type repositoryNode struct {
	Name      githubv4.String
	Languages struct {
		Nodes []struct {
			Name githubv4.String
		}
	} `graphql:"languages(first: 10)"`
}

// repositoriesQuery lists an organization's repositories with their
// languages so the caller can filter.
type repositoriesQuery struct {
	Organization struct {
		Repositories struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []repositoryNode
		} `graphql:"repositories(first: 100, after: $cursor)"`
	} `graphql:"organization(login: $org)"`
}

// ListRepositories returns the names of the organization's repositories,
// keeping only those whose languages intersect the filter (an empty filter
// keeps everything).
func (g *GitHubGateway) ListRepositories(ctx context.Context, org string, languages []string) ([]string, error) {
	wanted := make(map[string]bool, len(languages))
	for _, l := range languages {
		wanted[strings.ToLower(l)] = true
	}

	variables := map[string]interface{}{
		"org":    githubv4.String(org),
		"cursor": (*githubv4.String)(nil),
	}
	var names []string
	for {
		var q repositoriesQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("failed to list repositories for organization %s: %w", org, err)
		}
		for _, node := range q.Organization.Repositories.Nodes {
			if len(wanted) == 0 || matchesLanguage(node, wanted) {
				names = append(names, string(node.Name))
			}
		}
		if !q.Organization.Repositories.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Organization.Repositories.PageInfo.EndCursor)
		g.logger.Println("  Fetching next page of repositories...")
	}
	return names, nil
}

func matchesLanguage(node repositoryNode, wanted map[string]bool) bool {
	for _, lang := range node.Languages.Nodes {
		if wanted[strings.ToLower(string(lang.Name))] {
			return true
		}
	}
	return false
}

// ListPullRequests returns every PR created within [start, end] for the
// repository, oldest first. The search endpoint serves results newest first
// one page at a time; paging stops on an empty page or once a page's oldest
// PR predates start, and trips PaginationError past the page ceiling.
func (g *GitHubGateway) ListPullRequests(ctx context.Context, owner, repo string, start, end time.Time) ([]domain.PullRequest, error) {
	query := fmt.Sprintf("repo:%s/%s is:pr created:%s..%s",
		owner, repo, start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))

	var prs []domain.PullRequest
	for page := 1; ; page++ {
		if page > g.maxPages {
			return nil, &PaginationError{Pages: g.maxPages}
		}

		params := url.Values{}
		params.Set("q", query)
		params.Set("sort", "created")
		params.Set("order", "desc")
		params.Set("per_page", strconv.Itoa(itemsPerPage))
		params.Set("page", strconv.Itoa(page))

		body, err := g.client.getJSON(ctx, g.baseURL+"/search/issues?"+params.Encode())
		if err != nil {
			return nil, fmt.Errorf("failed to search pull requests for %s/%s: %w", owner, repo, err)
		}
		var result github.IssuesSearchResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode pull request search response: %w", err)
		}
		if len(result.Issues) == 0 {
			break
		}

		pastStart := false
		for _, issue := range result.Issues {
			created := issue.GetCreatedAt().Time
			if created.Before(start) {
				// Results are newest-first, so nothing on a later
				// page can still be in range.
				pastStart = true
				continue
			}
			if created.After(end) {
				continue
			}
			prs = append(prs, domain.PullRequest{
				Number:    issue.GetNumber(),
				State:     issue.GetState(),
				Title:     issue.GetTitle(),
				CreatedAt: created,
			})
		}
		if pastStart {
			break
		}
		g.logger.Printf("  Fetching page %d of pull requests for %s/%s...", page+1, owner, repo)
	}
	sort.Slice(prs, func(i, j int) bool { return prs[i].CreatedAt.Before(prs[j].CreatedAt) })
	return prs, nil
}

// FetchReviewActivity returns one joined record per (review, pull) for the
// given batch of pull numbers: two concurrent fan-out rounds, reviews first,
// then the comments belonging to every review found.
func (g *GitHubGateway) FetchReviewActivity(ctx context.Context, owner, repo string, pulls []int) ([]domain.ReviewActivity, error) {
	reviewURLs := make([]string, len(pulls))
	for i, n := range pulls {
		reviewURLs[i] = fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews?per_page=%d", g.baseURL, owner, repo, n, itemsPerPage)
	}
	reviewBodies, err := g.client.FetchBatch(ctx, reviewURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviews for %s/%s: %w", owner, repo, err)
	}

	// Comment URLs depend on review ids, so the second round can only be
	// built after the first completes.
	var commentURLs []string
	var pending []domain.ReviewActivity
	for i, body := range reviewBodies {
		var reviews []*github.PullRequestReview
		if err := json.Unmarshal(body, &reviews); err != nil {
			return nil, fmt.Errorf("failed to decode reviews for %s/%s#%d: %w", owner, repo, pulls[i], err)
		}
		for _, review := range reviews {
			record := domain.ReviewActivity{
				Login:      review.GetUser().GetLogin(),
				ReviewID:   review.GetID(),
				PullNumber: pulls[i],
				State:      review.GetState(),
			}
			if t := review.SubmittedAt; t != nil {
				submitted := t.Time
				record.SubmittedAt = &submitted
			}
			pending = append(pending, record)
			commentURLs = append(commentURLs, fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews/%d/comments?per_page=%d",
				g.baseURL, owner, repo, pulls[i], review.GetID(), itemsPerPage))
		}
	}
	if len(commentURLs) == 0 {
		return []domain.ReviewActivity{}, nil
	}

	commentBodies, err := g.client.FetchBatch(ctx, commentURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch review comments for %s/%s: %w", owner, repo, err)
	}
	for i, body := range commentBodies {
		var comments []*github.PullRequestComment
		if err := json.Unmarshal(body, &comments); err != nil {
			return nil, fmt.Errorf("failed to decode comments for review %d: %w", pending[i].ReviewID, err)
		}
		pending[i].CommentCount = len(comments)
		if pending[i].SubmittedAt == nil {
			pending[i].SubmittedAt = latestCommentTime(comments)
			if pending[i].SubmittedAt == nil {
				g.logger.Printf("missing submitted_at for review %d (state %s, PR #%d)",
					pending[i].ReviewID, pending[i].State, pending[i].PullNumber)
			}
		}
	}
	return pending, nil
}

// latestCommentTime is the best-effort stand-in for a missing submitted_at:
// the newest created/updated timestamp across the review's comments, or nil
// when there are no comments.
func latestCommentTime(comments []*github.PullRequestComment) *time.Time {
	var latest *time.Time
	for _, comment := range comments {
		for _, ts := range []*github.Timestamp{comment.CreatedAt, comment.UpdatedAt} {
			if ts == nil {
				continue
			}
			t := ts.Time
			if latest == nil || t.After(*latest) {
				latest = &t
			}
		}
	}
	return latest
}
