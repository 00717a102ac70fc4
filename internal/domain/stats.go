package domain

// ReviewerMetrics holds the derived per-reviewer numbers rendered in the
// results table.
type ReviewerMetrics struct {
	Login                  string  `json:"login"`
	Reviews                int     `json:"reviews"`
	Comments               int     `json:"comments"`
	AvgCommentsPerReview   float64 `json:"avg_comments_per_review"`
	EngagementLevel        string  `json:"engagement_level"`
	ThoroughnessScore      int     `json:"thoroughness_score"`
	AvgResponseTimeHours   float64 `json:"avg_response_time_hours"`
	AvgCompletionTimeHours float64 `json:"avg_completion_time_hours"`
	ActiveReviewDays       int     `json:"active_review_days"`
}

// SprintStats accumulates team-level review activity for a single sprint
// while repositories are being processed.
type SprintStats struct {
	TotalReviews    int
	TotalComments   int
	UniqueReviewers map[string]struct{}
	ReviewTimes     []string
	PRCreatedTimes  []string
}

// NewSprintStats returns an empty accumulator.
func NewSprintStats() *SprintStats {
	return &SprintStats{UniqueReviewers: make(map[string]struct{})}
}

// TeamMetrics holds the derived team-level numbers for one sprint.
type TeamMetrics struct {
	Sprint                 string  `json:"sprint"`
	TotalReviews           int     `json:"total_reviews"`
	TotalComments          int     `json:"total_comments"`
	UniqueReviewers        int     `json:"unique_reviewers"`
	AvgCommentsPerReview   float64 `json:"avg_comments_per_review"`
	ReviewsPerReviewer     float64 `json:"reviews_per_reviewer"`
	TeamEngagement         string  `json:"team_engagement"`
	AvgResponseTimeHours   float64 `json:"avg_response_time_hours"`
	AvgCompletionTimeHours float64 `json:"avg_completion_time_hours"`
	ActiveReviewDays       int     `json:"active_review_days"`
}
