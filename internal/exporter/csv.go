package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/review-tally/review-tally/internal/domain"
)

// sprintCSVHeader is the stable column order of the sprint export.
var sprintCSVHeader = []string{
	"sprint",
	"total_reviews",
	"total_comments",
	"unique_reviewers",
	"avg_comments_per_review",
	"reviews_per_reviewer",
	"team_engagement",
	"avg_response_time_hours",
	"avg_completion_time_hours",
	"active_review_days",
}

// ExportSprintCSV writes one row per sprint to path.
func ExportSprintCSV(path string, metrics []domain.TeamMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(sprintCSVHeader); err != nil {
		return err
	}
	for _, m := range metrics {
		row := []string{
			m.Sprint,
			strconv.Itoa(m.TotalReviews),
			strconv.Itoa(m.TotalComments),
			strconv.Itoa(m.UniqueReviewers),
			strconv.FormatFloat(m.AvgCommentsPerReview, 'f', 2, 64),
			strconv.FormatFloat(m.ReviewsPerReviewer, 'f', 2, 64),
			m.TeamEngagement,
			strconv.FormatFloat(m.AvgResponseTimeHours, 'f', 2, 64),
			strconv.FormatFloat(m.AvgCompletionTimeHours, 'f', 2, 64),
			strconv.Itoa(m.ActiveReviewDays),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
