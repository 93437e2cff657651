package ingestion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/external/newsrss"
	"github.com/wonny/quantrank/pkg/logger"
)

type fakeNewsSource struct {
	byQuery map[string][]contracts.NewsItem
	fail    map[string]bool
	queries []string
}

func (s *fakeNewsSource) FetchNews(ctx context.Context, query string, locale newsrss.Locale, maxRecords int) ([]contracts.NewsItem, error) {
	s.queries = append(s.queries, query)
	if s.fail[query] {
		return nil, fmt.Errorf("feed unavailable")
	}
	return s.byQuery[query], nil
}

type fakeStockLister struct {
	stocks []contracts.Stock
}

func (l *fakeStockLister) ListStocks(ctx context.Context, market string) ([]contracts.Stock, error) {
	return l.stocks, nil
}

type fakeNewsWriter struct {
	saved map[string][]contracts.NewsItem
}

func (w *fakeNewsWriter) SaveNews(ctx context.Context, market, symbol string, items []contracts.NewsItem) error {
	if w.saved == nil {
		w.saved = make(map[string][]contracts.NewsItem)
	}
	w.saved[symbol] = append(w.saved[symbol], items...)
	return nil
}

func article(title string) contracts.NewsItem {
	return contracts.NewsItem{
		PublishedAt: time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC),
		Title:       title,
		URL:         "https://example.com/" + title,
	}
}

func TestNewsCollectorQueriesByNameAndStores(t *testing.T) {
	source := &fakeNewsSource{byQuery: map[string][]contracts.NewsItem{
		"Apple Inc": {article("a1"), article("a2")},
		"MSFT":      {article("m1")},
	}}
	lister := &fakeStockLister{stocks: []contracts.Stock{
		{Market: "US", Symbol: "AAPL", Name: "Apple Inc"},
		{Market: "US", Symbol: "MSFT"}, // no name, falls back to the symbol
	}}
	writer := &fakeNewsWriter{}

	c := NewNewsCollector(source, lister, writer, time.Second, 20, logger.NewNop())
	stats, err := c.Collect(context.Background(), "US")
	require.NoError(t, err)

	assert.Equal(t, []string{"Apple Inc", "MSFT"}, source.queries)
	assert.Equal(t, 2, stats.Symbols)
	assert.Equal(t, 3, stats.Articles)
	assert.Zero(t, stats.Failed)
	assert.Len(t, writer.saved["AAPL"], 2)
	assert.Len(t, writer.saved["MSFT"], 1)
}

func TestNewsCollectorSkipsFailedSymbol(t *testing.T) {
	source := &fakeNewsSource{
		byQuery: map[string][]contracts.NewsItem{"BBB": {article("b1")}},
		fail:    map[string]bool{"AAA": true},
	}
	lister := &fakeStockLister{stocks: []contracts.Stock{
		{Market: "US", Symbol: "AAA"},
		{Market: "US", Symbol: "BBB"},
	}}
	writer := &fakeNewsWriter{}

	c := NewNewsCollector(source, lister, writer, time.Second, 20, logger.NewNop())
	stats, err := c.Collect(context.Background(), "US")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Articles)
	assert.NotContains(t, writer.saved, "AAA")
}

func TestNewsCollectorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeNewsSource{}
	lister := &fakeStockLister{stocks: []contracts.Stock{{Market: "US", Symbol: "AAA"}}}

	c := NewNewsCollector(source, lister, &fakeNewsWriter{}, time.Second, 20, logger.NewNop())
	_, err := c.Collect(ctx, "US")
	require.Error(t, err)
	assert.Empty(t, source.queries)
}
