package usecase

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/review-tally/review-tally/internal/domain"
)

// Engagement classification thresholds, in average comments per review.
const (
	highEngagementThreshold   = 2.0
	mediumEngagementThreshold = 0.5
)

// thoroughness caps at 4 comments per review = score 100.
const thoroughnessCeiling = 4.0

// ClassifyEngagement maps average comments per review to a coarse label.
func ClassifyEngagement(avgComments float64) string {
	switch {
	case avgComments >= highEngagementThreshold:
		return "High"
	case avgComments >= mediumEngagementThreshold:
		return "Medium"
	default:
		return "Low"
	}
}

// CalculateReviewerMetrics derives the per-reviewer numbers from the run
// accumulator, sorted by review count descending, login ascending on ties.
func CalculateReviewerMetrics(reviewers map[string]*domain.ReviewerStats) []domain.ReviewerMetrics {
	metrics := make([]domain.ReviewerMetrics, 0, len(reviewers))
	for login, rs := range reviewers {
		m := domain.ReviewerMetrics{
			Login:    login,
			Reviews:  rs.Reviews,
			Comments: rs.Comments,
		}
		if rs.Reviews > 0 {
			m.AvgCommentsPerReview = float64(rs.Comments) / float64(rs.Reviews)
		}
		m.EngagementLevel = ClassifyEngagement(m.AvgCommentsPerReview)
		m.ThoroughnessScore = thoroughnessScore(m.AvgCommentsPerReview)

		reviewTimes := formatTimes(rs.ReviewTimes)
		createdTimes := formatTimes(rs.PRCreatedTimes)
		m.AvgResponseTimeHours, m.AvgCompletionTimeHours, m.ActiveReviewDays =
			CalculateTimeMetrics(reviewTimes, createdTimes)
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Reviews != metrics[j].Reviews {
			return metrics[i].Reviews > metrics[j].Reviews
		}
		return metrics[i].Login < metrics[j].Login
	})
	return metrics
}

func thoroughnessScore(avgComments float64) int {
	if avgComments >= thoroughnessCeiling {
		return 100
	}
	return int(avgComments / thoroughnessCeiling * 100)
}

// CalculateTimeMetrics computes the time-based numbers for one series of
// reviews. reviewTimes[i] pairs with prCreatedTimes[i]; pairs past the
// shorter list are ignored, as are pairs whose review predates the PR (clock
// skew or bad data, either way not a real response time). Completion time is
// the span from first to last review. Active days counts distinct UTC dates
// with at least one review.
func CalculateTimeMetrics(reviewTimes, prCreatedTimes []string) (avgResponseHours, avgCompletionHours float64, activeDays int) {
	var responses []float64
	pairs := min(len(reviewTimes), len(prCreatedTimes))
	for i := 0; i < pairs; i++ {
		review, err1 := time.Parse(time.RFC3339, reviewTimes[i])
		created, err2 := time.Parse(time.RFC3339, prCreatedTimes[i])
		if err1 != nil || err2 != nil {
			continue
		}
		if hours := review.Sub(created).Hours(); hours >= 0 {
			responses = append(responses, hours)
		}
	}
	if len(responses) > 0 {
		avgResponseHours, _ = stats.Mean(responses)
	}

	var first, last time.Time
	days := make(map[string]struct{})
	for _, raw := range reviewTimes {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		days[t.UTC().Format("2006-01-02")] = struct{}{}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if last.IsZero() || t.After(last) {
			last = t
		}
	}
	if !first.IsZero() {
		avgCompletionHours = last.Sub(first).Hours()
	}
	return avgResponseHours, avgCompletionHours, len(days)
}

// CalculateSprintTeamMetrics derives team-level numbers per sprint, sorted
// by sprint label.
func CalculateSprintTeamMetrics(sprints map[string]*domain.SprintStats) []domain.TeamMetrics {
	metrics := make([]domain.TeamMetrics, 0, len(sprints))
	for label, ss := range sprints {
		m := domain.TeamMetrics{
			Sprint:          label,
			TotalReviews:    ss.TotalReviews,
			TotalComments:   ss.TotalComments,
			UniqueReviewers: len(ss.UniqueReviewers),
		}
		if ss.TotalReviews > 0 {
			m.AvgCommentsPerReview = float64(ss.TotalComments) / float64(ss.TotalReviews)
		}
		if len(ss.UniqueReviewers) > 0 {
			m.ReviewsPerReviewer = float64(ss.TotalReviews) / float64(len(ss.UniqueReviewers))
		}
		m.TeamEngagement = ClassifyEngagement(m.AvgCommentsPerReview)
		m.AvgResponseTimeHours, m.AvgCompletionTimeHours, m.ActiveReviewDays =
			CalculateTimeMetrics(ss.ReviewTimes, ss.PRCreatedTimes)
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Sprint < metrics[j].Sprint })
	return metrics
}

func formatTimes(times []time.Time) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.UTC().Format(time.RFC3339)
	}
	return out
}
