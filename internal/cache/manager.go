package cache

import (
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/review-tally/review-tally/internal/domain"
)

// TTL tiers. A zero TTL means the entry never expires.
const (
	shortTTL  = time.Hour
	mediumTTL = 6 * time.Hour
	forever   = time.Duration(0)

	recentThresholdDays   = 7
	moderateThresholdDays = 30
)

// Manager is the policy layer between the collector and the raw store. It
// derives keys, decides TTLs from data maturity, and merges cached records
// with freshly fetched ones. A Manager built without a store is disabled:
// every read misses and every write is a no-op, so callers never branch on
// caching being on or off.
//
// Cache failures are logged and degrade to misses; the cache is an
// optimization, never a correctness requirement.
type Manager struct {
	store  *Store
	logger *log.Logger
	now    func() time.Time
}

// NewManager wraps store behind the cache policy. A nil store disables
// caching entirely.
func NewManager(store *Store, logger *log.Logger) *Manager {
	return &Manager{store: store, logger: logger, now: time.Now}
}

// Enabled reports whether a backing store is attached.
func (m *Manager) Enabled() bool {
	return m.store != nil
}

type prMetadata struct {
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	Number    int    `json:"number"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
}

type rangeMarker struct {
	Count     int    `json:"count"`
	FetchedAt string `json:"fetched_at"`
}

type reviewBatchMeta struct {
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	PullCount   int    `json:"pull_count"`
	ReviewCount int    `json:"review_count"`
	AnyOpen     bool   `json:"any_open"`
}

// CachedPullRequests returns the cached PRs created within [start, end] for
// the repository, oldest first. ok is true only when a valid range marker
// proves the range was fully fetched before AND every member entry it covers
// is still present and readable. A marker backed by fewer entries than it
// recorded, or a scan that hit any read or decode failure, is a miss: serving
// the survivors as the authoritative set would silently drop PRs, and with a
// never-expiring marker there would be no refetch to ever bring them back.
func (m *Manager) CachedPullRequests(owner, repo string, start, end time.Time) (prs []domain.PullRequest, ok bool) {
	if m.store == nil {
		return nil, false
	}
	value, found, err := m.store.Get(RangeMarkerKey(owner, repo, start, end))
	if err != nil || !found {
		if err != nil {
			m.logger.Printf("cache: range marker read failed for %s/%s: %v", owner, repo, err)
		}
		return nil, false
	}
	var marker rangeMarker
	if err := json.Unmarshal(value, &marker); err != nil {
		m.logger.Printf("cache: discarding undecodable range marker for %s/%s: %v", owner, repo, err)
		return nil, false
	}
	prs, complete := m.scanPullRequests(owner, repo, start, end)
	if !complete || len(prs) < marker.Count {
		m.logger.Printf("cache: range marker for %s/%s covers %d PRs but only %d are readable, treating as a miss",
			owner, repo, marker.Count, len(prs))
		return nil, false
	}
	sort.Slice(prs, func(i, j int) bool { return prs[i].CreatedAt.Before(prs[j].CreatedAt) })
	return prs, true
}

// ScanPullRequests collects every valid cached PR for the repository whose
// creation time falls inside [start, end], both ends inclusive. Unlike
// CachedPullRequests it does not require a range marker; the caller is
// expected to merge the scan with a fresh fetch.
func (m *Manager) ScanPullRequests(owner, repo string, start, end time.Time) []domain.PullRequest {
	if m.store == nil {
		return nil
	}
	prs, _ := m.scanPullRequests(owner, repo, start, end)
	return prs
}

// scanPullRequests walks the per-PR entries for the repository. complete is
// false when any entry could not be listed, read, or decoded, so callers that
// need the scan to be exhaustive can tell survivors from the full set.
func (m *Manager) scanPullRequests(owner, repo string, start, end time.Time) (prs []domain.PullRequest, complete bool) {
	keys, err := m.store.ListKeys(PullRequestPrefix(owner, repo))
	if err != nil {
		m.logger.Printf("cache: key scan failed for %s/%s: %v", owner, repo, err)
		return nil, false
	}
	complete = true
	for _, key := range keys {
		value, found, err := m.store.Get(key)
		if err != nil || !found {
			if err != nil {
				m.logger.Printf("cache: entry read failed for %s: %v", key, err)
			}
			complete = false
			continue
		}
		var pr domain.PullRequest
		if err := json.Unmarshal(value, &pr); err != nil {
			m.logger.Printf("cache: discarding undecodable entry %s: %v", key, err)
			complete = false
			continue
		}
		if !pr.CreatedAt.Before(start) && !pr.CreatedAt.After(end) {
			prs = append(prs, pr)
		}
	}
	return prs, complete
}

// StorePullRequests caches each PR individually and writes the range marker.
// prs must be the complete, merged result for the range.
func (m *Manager) StorePullRequests(owner, repo string, start, end time.Time, prs []domain.PullRequest) {
	if m.store == nil {
		return
	}
	allForever := true
	for _, pr := range prs {
		ttl := m.pullRequestTTL(pr)
		if ttl != forever {
			allForever = false
		}
		value, err := json.Marshal(pr)
		if err != nil {
			continue
		}
		meta, _ := json.Marshal(prMetadata{
			Owner:     owner,
			Repo:      repo,
			Number:    pr.Number,
			State:     pr.State,
			CreatedAt: pr.CreatedAt.UTC().Format(time.RFC3339),
		})
		if err := m.store.Set(PullRequestKey(owner, repo, pr.Number), value, meta, ttl); err != nil {
			m.logger.Printf("cache: skipping PR write for %s/%s#%d: %v", owner, repo, pr.Number, err)
		}
	}

	// The marker must never outlive its members: it caches forever only
	// when every member does and the range itself can no longer grow.
	markerTTL := shortTTL
	if allForever && m.now().Sub(end) > moderateThresholdDays*24*time.Hour {
		markerTTL = forever
	}
	value, _ := json.Marshal(rangeMarker{
		Count:     len(prs),
		FetchedAt: m.now().UTC().Format(time.RFC3339),
	})
	if err := m.store.Set(RangeMarkerKey(owner, repo, start, end), value, nil, markerTTL); err != nil {
		m.logger.Printf("cache: skipping range marker write for %s/%s: %v", owner, repo, err)
	}
}

// pullRequestTTL picks the expiry tier for one PR. Closed PRs are immutable
// and cache forever; open PRs age out on a sliding scale so status changes
// are observed promptly.
func (m *Manager) pullRequestTTL(pr domain.PullRequest) time.Duration {
	if pr.Closed() {
		return forever
	}
	age := m.now().Sub(pr.CreatedAt)
	switch {
	case age < recentThresholdDays*24*time.Hour:
		return shortTTL
	case age < moderateThresholdDays*24*time.Hour:
		return mediumTTL
	default:
		return forever
	}
}

// MergePullRequests combines freshly fetched PRs with previously cached ones,
// deduplicating by number. Fresh records win; a cached record survives only
// when its number never appeared in the fresh list.
func MergePullRequests(fresh, cached []domain.PullRequest) []domain.PullRequest {
	seen := make(map[int]struct{}, len(fresh)+len(cached))
	merged := make([]domain.PullRequest, 0, len(fresh)+len(cached))
	for _, list := range [][]domain.PullRequest{fresh, cached} {
		for _, pr := range list {
			if _, dup := seen[pr.Number]; dup {
				continue
			}
			seen[pr.Number] = struct{}{}
			merged = append(merged, pr)
		}
	}
	return merged
}

// CachedReviewBatch returns the joined review records cached for this exact
// batch of pull numbers, if present.
func (m *Manager) CachedReviewBatch(owner, repo string, pulls []int) (records []domain.ReviewActivity, ok bool) {
	if m.store == nil {
		return nil, false
	}
	value, found, err := m.store.Get(ReviewBatchKey(owner, repo, pulls))
	if err != nil || !found {
		if err != nil {
			m.logger.Printf("cache: review batch read failed for %s/%s: %v", owner, repo, err)
		}
		return nil, false
	}
	if err := json.Unmarshal(value, &records); err != nil {
		m.logger.Printf("cache: discarding undecodable review batch for %s/%s: %v", owner, repo, err)
		return nil, false
	}
	return records, true
}

// StoreReviewBatch caches the joined records for a batch. Empty results are
// cached too, so a PR set with no reviews does not refetch on every run.
// The batch caches forever only when every PR in it is closed; a single open
// PR forces the short TTL for the whole batch.
func (m *Manager) StoreReviewBatch(owner, repo string, pulls []int, anyOpen bool, records []domain.ReviewActivity) {
	if m.store == nil {
		return
	}
	if records == nil {
		records = []domain.ReviewActivity{}
	}
	ttl := forever
	if anyOpen {
		ttl = shortTTL
	}
	value, err := json.Marshal(records)
	if err != nil {
		return
	}
	meta, _ := json.Marshal(reviewBatchMeta{
		Owner:       owner,
		Repo:        repo,
		PullCount:   len(pulls),
		ReviewCount: len(records),
		AnyOpen:     anyOpen,
	})
	if err := m.store.Set(ReviewBatchKey(owner, repo, pulls), value, meta, ttl); err != nil {
		m.logger.Printf("cache: skipping review batch write for %s/%s: %v", owner, repo, err)
	}
}

// Stats reports store statistics, or nil when caching is disabled.
func (m *Manager) Stats() (*Stats, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.Stats()
}

// CleanupExpired removes expired entries, reporting the count.
func (m *Manager) CleanupExpired() (int, error) {
	if m.store == nil {
		return 0, nil
	}
	return m.store.CleanupExpired()
}

// ClearAll wipes the store, reporting the count.
func (m *Manager) ClearAll() (int, error) {
	if m.store == nil {
		return 0, nil
	}
	return m.store.ClearAll()
}

// Close releases the backing store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
