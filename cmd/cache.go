// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/review-tally/review-tally/internal/cache"
	"github.com/review-tally/review-tally/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Run: func(cmd *cobra.Command, args []string) {
		withCache(cmd, func(m *cache.Manager) error {
			stats, err := m.Stats()
			if err != nil {
				return err
			}
			if stats == nil {
				fmt.Println("Cache is disabled")
				return nil
			}
			fmt.Println("Cache Statistics:")
			fmt.Printf("  Database path: %s\n", stats.Path)
			fmt.Printf("  Total entries: %d\n", stats.Total)
			fmt.Printf("  Valid entries: %d\n", stats.Valid)
			fmt.Printf("  Expired entries: %d\n", stats.Expired)
			fmt.Printf("  Cache size: %.2f MB\n", float64(stats.SizeBytes)/(1024*1024))
			fmt.Println("\nBy Table:")
			for ns, t := range stats.ByNamespace {
				fmt.Printf("  %s:\n", ns)
				fmt.Printf("    Total: %d\n", t.Total)
				fmt.Printf("    Valid: %d\n", t.Valid)
				fmt.Printf("    Expired: %d\n", t.Expired)
				fmt.Printf("    Size: %.2f MB\n", float64(t.SizeBytes)/(1024*1024))
			}
			return nil
		})
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired cache entries",
	Run: func(cmd *cobra.Command, args []string) {
		withCache(cmd, func(m *cache.Manager) error {
			removed, err := m.CleanupExpired()
			if err != nil {
				return err
			}
			fmt.Printf("Cleared %d expired cache entries\n", removed)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cache entries",
	Run: func(cmd *cobra.Command, args []string) {
		withCache(cmd, func(m *cache.Manager) error {
			removed, err := m.ClearAll()
			if err != nil {
				return err
			}
			fmt.Printf("Cleared all %d cache entries\n", removed)
			return nil
		})
	},
}

// withCache opens the cache from configuration, runs fn, and reports errors
// with a non-zero exit. Cache commands never touch the network, so no token
// is required.
func withCache(cmd *cobra.Command, fn func(*cache.Manager) error) {
	verbose, _ := cmd.InheritedFlags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags)
	if verbose {
		logger.SetOutput(os.Stderr)
	}

	configPath, _ := cmd.InheritedFlags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	manager := openCache(cfg, false, logger)
	defer manager.Close()
	if err := fn(manager); err != nil {
		fmt.Fprintf(os.Stderr, "Cache operation failed: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheCleanupCmd, cacheClearCmd)
}
