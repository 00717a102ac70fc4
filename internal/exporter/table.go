// Package exporter renders aggregated review metrics as tables, CSV files,
// or charts. It is a thin presentation layer over the metric records.
package exporter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/review-tally/review-tally/internal/domain"
)

// Metric column names accepted by RenderReviewerTable.
const (
	MetricReviews        = "reviews"
	MetricComments       = "comments"
	MetricAvgComments    = "avg-comments"
	MetricEngagement     = "engagement"
	MetricThoroughness   = "thoroughness"
	MetricResponseTime   = "response-time"
	MetricCompletionTime = "completion-time"
	MetricActiveDays     = "active-days"
)

// DefaultMetrics is the column set used when the user selects none.
var DefaultMetrics = []string{MetricReviews, MetricComments, MetricAvgComments}

var metricHeaders = map[string]string{
	MetricReviews:        "Reviews",
	MetricComments:       "Comments",
	MetricAvgComments:    "Avg Comments",
	MetricEngagement:     "Engagement",
	MetricThoroughness:   "Thoroughness",
	MetricResponseTime:   "Avg Response (h)",
	MetricCompletionTime: "Avg Completion (h)",
	MetricActiveDays:     "Active Days",
}

// RenderReviewerTable writes one row per reviewer with the selected metric
// columns. Unknown metric names are rejected so typos fail loudly instead of
// silently dropping a column.
func RenderReviewerTable(w io.Writer, metrics []domain.ReviewerMetrics, selected []string) error {
	if len(selected) == 0 {
		selected = DefaultMetrics
	}
	header := []string{"Reviewer"}
	for _, name := range selected {
		h, ok := metricHeaders[name]
		if !ok {
			return fmt.Errorf("unknown metric %q", name)
		}
		header = append(header, h)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	for _, m := range metrics {
		row := []string{m.Login}
		for _, name := range selected {
			row = append(row, metricCell(m, name))
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

func metricCell(m domain.ReviewerMetrics, name string) string {
	switch name {
	case MetricReviews:
		return strconv.Itoa(m.Reviews)
	case MetricComments:
		return strconv.Itoa(m.Comments)
	case MetricAvgComments:
		return fmt.Sprintf("%.1f", m.AvgCommentsPerReview)
	case MetricEngagement:
		return m.EngagementLevel
	case MetricThoroughness:
		return strconv.Itoa(m.ThoroughnessScore)
	case MetricResponseTime:
		return fmt.Sprintf("%.1f", m.AvgResponseTimeHours)
	case MetricCompletionTime:
		return fmt.Sprintf("%.1f", m.AvgCompletionTimeHours)
	case MetricActiveDays:
		return strconv.Itoa(m.ActiveReviewDays)
	}
	return ""
}
