package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/external/newsrss"
	"github.com/wonny/quantrank/pkg/logger"
)

// NewsSource fetches headlines for a search query.
type NewsSource interface {
	FetchNews(ctx context.Context, query string, locale newsrss.Locale, maxRecords int) ([]contracts.NewsItem, error)
}

// StockLister enumerates the active listings on a market.
type StockLister interface {
	ListStocks(ctx context.Context, market string) ([]contracts.Stock, error)
}

// NewsWriter persists fetched articles.
type NewsWriter interface {
	SaveNews(ctx context.Context, market, symbol string, items []contracts.NewsItem) error
}

// NewsCollector pulls recent headlines per listed stock and caches them
// for the sentiment calculators.
type NewsCollector struct {
	source       NewsSource
	stocks       StockLister
	store        NewsWriter
	fetchTimeout time.Duration
	maxPerSymbol int
	logger       *logger.Logger
}

// CollectStats summarizes one collection pass.
type CollectStats struct {
	Market   string `json:"market"`
	Symbols  int    `json:"symbols"`
	Articles int    `json:"articles"`
	Failed   int    `json:"failed"`
}

// NewNewsCollector creates a new NewsCollector instance.
func NewNewsCollector(source NewsSource, stocks StockLister, store NewsWriter, fetchTimeout time.Duration, maxPerSymbol int, log *logger.Logger) *NewsCollector {
	if fetchTimeout <= 0 {
		fetchTimeout = 60 * time.Second
	}
	if maxPerSymbol <= 0 {
		maxPerSymbol = 20
	}
	return &NewsCollector{
		source:       source,
		stocks:       stocks,
		store:        store,
		fetchTimeout: fetchTimeout,
		maxPerSymbol: maxPerSymbol,
		logger:       log.WithField("module", "newscollector"),
	}
}

// Collect fetches headlines for every active listing on market. Per-symbol
// failures are logged and counted; only context cancellation aborts the pass.
func (c *NewsCollector) Collect(ctx context.Context, market string) (*CollectStats, error) {
	stocks, err := c.stocks.ListStocks(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}

	locale := newsrss.LocaleForMarket(market)
	stats := &CollectStats{Market: market, Symbols: len(stocks)}

	c.logger.WithFields(map[string]interface{}{
		"market": market,
		"stocks": len(stocks),
	}).Info("News collection started")

	for _, stock := range stocks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		query := stock.Name
		if query == "" {
			query = stock.Symbol
		}

		items, err := c.fetchOne(ctx, query, locale)
		if err != nil {
			stats.Failed++
			c.logger.WithFields(map[string]interface{}{
				"market": market,
				"symbol": stock.Symbol,
			}).WithError(err).Warn("News fetch failed, skipping symbol")
			continue
		}
		if len(items) == 0 {
			continue
		}

		if err := c.store.SaveNews(ctx, market, stock.Symbol, items); err != nil {
			return stats, fmt.Errorf("save news for %s: %w", stock.Symbol, err)
		}
		stats.Articles += len(items)
	}

	c.logger.WithFields(map[string]interface{}{
		"market":   market,
		"articles": stats.Articles,
		"failed":   stats.Failed,
	}).Info("News collection finished")
	return stats, nil
}

func (c *NewsCollector) fetchOne(ctx context.Context, query string, locale newsrss.Locale) ([]contracts.NewsItem, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	return c.source.FetchNews(fetchCtx, query, locale, c.maxPerSymbol)
}
