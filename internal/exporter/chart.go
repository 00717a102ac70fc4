package exporter

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/review-tally/review-tally/internal/domain"
)

// Chart metric names accepted by RenderSprintChart.
const (
	ChartTotalReviews    = "total_reviews"
	ChartTotalComments   = "total_comments"
	ChartUniqueReviewers = "unique_reviewers"
)

// DefaultChartMetrics is the series set used when the user selects none.
var DefaultChartMetrics = []string{ChartTotalReviews, ChartTotalComments}

var chartSeriesNames = map[string]string{
	ChartTotalReviews:    "Total Reviews",
	ChartTotalComments:   "Total Comments",
	ChartUniqueReviewers: "Unique Reviewers",
}

// RenderSprintChart writes an HTML bar or line chart of the selected sprint
// metrics to path.
func RenderSprintChart(path, chartType, title string, metrics []domain.TeamMetrics, selected []string) error {
	if len(selected) == 0 {
		selected = DefaultChartMetrics
	}
	labels := make([]string, len(metrics))
	for i, m := range metrics {
		labels[i] = m.Sprint
	}

	series := make(map[string][]int, len(selected))
	for _, name := range selected {
		if _, ok := chartSeriesNames[name]; !ok {
			return fmt.Errorf("unknown chart metric %q", name)
		}
		values := make([]int, len(metrics))
		for i, m := range metrics {
			values[i] = chartValue(m, name)
		}
		series[name] = values
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	switch chartType {
	case "line":
		line := charts.NewLine()
		line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))
		line.SetXAxis(labels)
		for _, name := range selected {
			data := make([]opts.LineData, len(series[name]))
			for i, v := range series[name] {
				data[i] = opts.LineData{Value: v}
			}
			line.AddSeries(chartSeriesNames[name], data)
		}
		return line.Render(f)
	case "bar", "":
		bar := charts.NewBar()
		bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))
		bar.SetXAxis(labels)
		for _, name := range selected {
			data := make([]opts.BarData, len(series[name]))
			for i, v := range series[name] {
				data[i] = opts.BarData{Value: v}
			}
			bar.AddSeries(chartSeriesNames[name], data)
		}
		return bar.Render(f)
	default:
		return fmt.Errorf("unknown chart type %q, expected bar or line", chartType)
	}
}

func chartValue(m domain.TeamMetrics, name string) int {
	switch name {
	case ChartTotalReviews:
		return m.TotalReviews
	case ChartTotalComments:
		return m.TotalComments
	case ChartUniqueReviewers:
		return m.UniqueReviewers
	}
	return 0
}
