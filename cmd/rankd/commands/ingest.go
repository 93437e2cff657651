package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quantrank/internal/external/newsrss"
	"github.com/wonny/quantrank/internal/ingestion"
	"github.com/wonny/quantrank/pkg/httputil"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect external data into the market store",
	Long: `Pulls data from external providers into the local market store
that the factor calculators read.

Subcommands:
  news - Fetch recent headlines per listed stock from Google News RSS

Example:
  go run ./cmd/rankd ingest news --market KR
  go run ./cmd/rankd ingest news --market ALL --max-per-symbol 40`,
}

var ingestNewsCmd = &cobra.Command{
	Use:   "news",
	Short: "Fetch recent headlines per listed stock",
	RunE:  runIngestNews,
}

var (
	ingestMarket       string
	ingestMaxPerSymbol int
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestNewsCmd)

	ingestNewsCmd.Flags().StringVar(&ingestMarket, "market", "", "market code (KR, US, or ALL)")
	ingestNewsCmd.Flags().IntVar(&ingestMaxPerSymbol, "max-per-symbol", 20, "max articles fetched per stock")
	_ = ingestNewsCmd.MarkFlagRequired("market")
}

func runIngestNews(cmd *cobra.Command, args []string) error {
	a, closeApp, err := buildApp()
	if err != nil {
		return err
	}
	defer closeApp()

	httpClient := httputil.NewWithTimeout(a.log, a.cfg.Ingestion.FetchTimeout).
		WithRetry(a.cfg.Ingestion.MaxRetries, time.Second)
	client := newsrss.NewClient(httpClient, a.cfg.Ingestion.NewsBaseURL, a.cfg.Ingestion.NewsRate, a.log)
	collector := ingestion.NewNewsCollector(
		client, a.marketRepo, a.marketRepo,
		a.cfg.Ingestion.FetchTimeout, ingestMaxPerSymbol, a.log)

	markets := []string{strings.ToUpper(ingestMarket)}
	if markets[0] == "ALL" {
		markets = a.cfg.Engine.Markets
	}

	ctx := context.Background()
	for _, market := range markets {
		stats, err := collector.Collect(ctx, market)
		if err != nil {
			return fmt.Errorf("collect %s news: %w", market, err)
		}
		fmt.Printf("%s: %d articles across %d symbols (%d fetch failures)\n",
			market, stats.Articles, stats.Symbols, stats.Failed)
	}

	return nil
}
