// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/review-tally/review-tally/internal/cache"
	"github.com/review-tally/review-tally/internal/config"
	"github.com/review-tally/review-tally/internal/domain"
	"github.com/review-tally/review-tally/internal/exporter"
	"github.com/review-tally/review-tally/internal/gateway"
	"github.com/review-tally/review-tally/internal/usecase"
)

const dateLayout = "2006-01-02"

var tallyCmd = &cobra.Command{
	Use:   "tally",
	Short: "Aggregates review activity for an organization or repository list",
	Long: `Collects pull request reviews and review comments for the selected
repositories within the date range, then prints per-reviewer metrics or, in
sprint mode, per-sprint team metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		configPath, _ := cmd.InheritedFlags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.RequireToken(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		org, _ := cmd.Flags().GetString("org")
		repos, _ := cmd.Flags().GetStringSlice("repos")
		languages, _ := cmd.Flags().GetStringSlice("languages")
		if org == "" {
			org = cfg.Org
		}
		if len(repos) == 0 {
			repos = cfg.Repositories
		}
		if len(languages) == 0 {
			languages = cfg.Languages
		}
		if org == "" && len(repos) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no organization or repositories selected; use --org or --repos.")
			os.Exit(1)
		}

		start := parseDateFlag(cmd, "from", cfg.StartDate, time.Now().UTC().AddDate(0, 0, -28))
		end := parseDateFlag(cmd, "to", cfg.EndDate, time.Now().UTC())

		noCache, _ := cmd.Flags().GetBool("no-cache")
		cacheManager := openCache(cfg, noCache, logger)
		defer cacheManager.Close()

		githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
			Token:      cfg.Token,
			BaseURL:    cfg.RESTBaseURL(),
			GraphQLURL: cfg.GraphQLURL(),
			ProxyURL:   cfg.ProxyURL,
			Logger:     logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}

		if len(repos) == 0 {
			names, err := githubGateway.ListRepositories(ctx, org, languages)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to list repositories: %v\n", err)
				os.Exit(1)
			}
			for _, name := range names {
				repos = append(repos, org+"/"+name)
			}
		}
		logger.Printf("Processing %d repositories from %s to %s",
			len(repos), start.Format(dateLayout), end.Format(dateLayout))

		sprintMode, _ := cmd.Flags().GetBool("sprint")
		plotPath, _ := cmd.Flags().GetString("plot")
		var periods []domain.SprintPeriod
		if sprintMode || plotPath != "" {
			periods = domain.CalculateSprintPeriods(start, end)
		}

		collector := usecase.NewCollector(githubGateway, cacheManager, logger)
		result, err := collector.Collect(ctx, repos, start, end, periods)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to collect review activity: %v\n", err)
			os.Exit(1)
		}

		if sprintMode || plotPath != "" {
			runSprintOutput(cmd, org, start, end, result, plotPath)
			return
		}

		metrics := usecase.CalculateReviewerMetrics(result.Reviewers)
		selected, _ := cmd.Flags().GetStringSlice("metrics")
		if err := exporter.RenderReviewerTable(os.Stdout, metrics, selected); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render results: %v\n", err)
			os.Exit(1)
		}
	},
}

func runSprintOutput(cmd *cobra.Command, org string, start, end time.Time, result *usecase.Result, plotPath string) {
	teamMetrics := usecase.CalculateSprintTeamMetrics(result.Sprints)

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath != "" {
		if err := exporter.ExportSprintCSV(outputPath, teamMetrics); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to export sprint CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sprint analysis exported to %s\n", outputPath)
	} else {
		printSprintSummary(teamMetrics)
	}

	if plotPath != "" {
		chartType, _ := cmd.Flags().GetString("chart-type")
		chartMetrics, _ := cmd.Flags().GetStringSlice("chart-metrics")
		title := fmt.Sprintf("Sprint Metrics for %s | %s to %s",
			orgOrFallback(org), start.Format(dateLayout), end.Format(dateLayout))
		if err := exporter.RenderSprintChart(plotPath, chartType, title, teamMetrics, chartMetrics); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render chart: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sprint chart written to %s\n", plotPath)
	}
}

func printSprintSummary(teamMetrics []domain.TeamMetrics) {
	fmt.Println("Sprint Analysis Summary:")
	fmt.Println("==================================================")
	for _, m := range teamMetrics {
		fmt.Printf("\n%s:\n", m.Sprint)
		fmt.Printf("  Total Reviews: %d\n", m.TotalReviews)
		fmt.Printf("  Total Comments: %d\n", m.TotalComments)
		fmt.Printf("  Unique Reviewers: %d\n", m.UniqueReviewers)
		fmt.Printf("  Avg Comments/Review: %.1f\n", m.AvgCommentsPerReview)
		fmt.Printf("  Reviews/Reviewer: %.1f\n", m.ReviewsPerReviewer)
		fmt.Printf("  Team Engagement: %s\n", m.TeamEngagement)
	}
}

func orgOrFallback(org string) string {
	if org == "" {
		return "Selected Repositories"
	}
	return org
}

// parseDateFlag resolves a date from flag, then config file, then fallback.
// A malformed date is a configuration error and exits non-zero.
func parseDateFlag(cmd *cobra.Command, name, fromConfig string, fallback time.Time) time.Time {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		value = fromConfig
	}
	if value == "" {
		return fallback.Truncate(24 * time.Hour)
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: malformed date %q, please use the format YYYY-MM-DD\n", value)
		os.Exit(1)
	}
	return t.UTC()
}

// openCache builds the cache policy layer. Any store failure degrades to a
// disabled cache rather than aborting the run.
func openCache(cfg *config.Config, noCache bool, logger *log.Logger) *cache.Manager {
	if noCache || cfg.CacheDisabled {
		return cache.NewManager(nil, logger)
	}
	store, err := cache.OpenStore(cfg.CacheDir)
	if err != nil {
		logger.Printf("cache unavailable, continuing without it: %v", err)
		return cache.NewManager(nil, logger)
	}
	return cache.NewManager(store, logger)
}

func init() {
	rootCmd.AddCommand(tallyCmd)
	tallyCmd.Flags().StringP("org", "o", "", "Target GitHub organization name")
	tallyCmd.Flags().StringSlice("repos", nil, "Explicit owner/name repository list (overrides --org discovery)")
	tallyCmd.Flags().StringSliceP("languages", "l", nil, "Only include repositories using these languages")
	tallyCmd.Flags().String("from", "", "Start date (YYYY-MM-DD), default 4 weeks ago")
	tallyCmd.Flags().String("to", "", "End date (YYYY-MM-DD), default today")
	tallyCmd.Flags().StringSliceP("metrics", "m", nil, "Metric columns for the results table")
	tallyCmd.Flags().Bool("sprint", false, "Aggregate team metrics per 14-day sprint instead of per reviewer")
	tallyCmd.Flags().String("output", "", "Write sprint metrics to this CSV file")
	tallyCmd.Flags().String("plot", "", "Write a sprint metrics chart to this HTML file")
	tallyCmd.Flags().String("chart-type", "bar", "Chart type: bar or line")
	tallyCmd.Flags().StringSlice("chart-metrics", nil, "Sprint metrics to chart")
	tallyCmd.Flags().Bool("no-cache", false, "Bypass the response cache for this run")
}
