package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quantrank/internal/contracts"
)

// recomputeCmd represents the recompute command
var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Run the ranking pipeline for a market",
	Long: `Recomputes factor scores, grades and ranks for one market and day.

The run fetches raw factor values for the market universe, normalizes
them cross-sectionally, aggregates weighted totals and commits the day
snapshot atomically. A factor whose fetch fails is degraded to all-null
values; the run still completes.

Example:
  go run ./cmd/rankd recompute --market KR
  go run ./cmd/rankd recompute --market ALL --day 2024-06-03`,
	RunE: runRecompute,
}

var (
	recomputeMarket string
	recomputeDay    string
)

func init() {
	rootCmd.AddCommand(recomputeCmd)

	recomputeCmd.Flags().StringVar(&recomputeMarket, "market", "", "market code (KR, US, or ALL)")
	recomputeCmd.Flags().StringVar(&recomputeDay, "day", "", "trading day YYYY-MM-DD (default: today)")
	_ = recomputeCmd.MarkFlagRequired("market")
}

func runRecompute(cmd *cobra.Command, args []string) error {
	a, closeApp, err := buildApp()
	if err != nil {
		return err
	}
	defer closeApp()

	day := contracts.DayOf(time.Now().UTC())
	if recomputeDay != "" {
		day, err = contracts.ParseDay(recomputeDay)
		if err != nil {
			return fmt.Errorf("parse day: %w", err)
		}
	}

	markets := []string{strings.ToUpper(recomputeMarket)}
	if markets[0] == "ALL" {
		markets = a.cfg.Engine.Markets
	}

	ctx := context.Background()
	runs := a.orchestrator.RecomputeAll(ctx, markets, day)

	var failed int
	for _, run := range runs {
		if run.Err != nil {
			failed++
			fmt.Printf("%s %s: FAILED: %v\n", run.Market, day, run.Err)
			continue
		}

		r := run.Result
		fmt.Printf("%s %s: ranked %d/%d symbols across %d factors in %s\n",
			r.Market, r.Day, r.RankedCount, r.UniverseSize, r.FactorCount, r.Duration.Round(time.Millisecond))
		if len(r.DegradedFactors) > 0 {
			fmt.Printf("  degraded factors: %s\n", strings.Join(r.DegradedFactors, ", "))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d market runs failed", failed, len(runs))
	}
	return nil
}
