package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs and latest snapshots",
	Long: `Shows the latest committed snapshot day per market and recent
recompute runs from the job log.

Example:
  go run ./cmd/rankd status
  go run ./cmd/rankd status --limit 10`,
	RunE: runStatus,
}

var statusLimit int

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of job log entries")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, closeApp, err := buildApp()
	if err != nil {
		return err
	}
	defer closeApp()

	ctx := context.Background()

	fmt.Println("Latest snapshots:")
	for _, market := range a.cfg.Engine.Markets {
		day, ok, err := a.snapshots.LatestDay(ctx, market)
		if err != nil {
			return fmt.Errorf("latest day for %s: %w", market, err)
		}
		if !ok {
			fmt.Printf("  %s: no snapshots\n", market)
			continue
		}
		fmt.Printf("  %s: %s\n", market, day)
	}

	entries, err := a.jobs.Recent(ctx, statusLimit)
	if err != nil {
		return fmt.Errorf("recent job logs: %w", err)
	}

	fmt.Println()
	fmt.Println("Recent runs:")
	if len(entries) == 0 {
		fmt.Println("  none")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %s  %-12s %-3s %s",
			e.StartedAt.Format("2006-01-02 15:04:05"), e.JobName, e.Market, e.Status)
		if e.Message != "" {
			line += " (" + e.Message + ")"
		}
		fmt.Println(line)
	}

	return nil
}
