package marketdata

import (
	"context"
	"sort"
	"sync"

	"github.com/wonny/quantrank/internal/contracts"
)

type symbolKey struct {
	market string
	symbol string
}

// MemoryStore is an in-memory Reader and universe provider for tests and
// seeded local runs.
type MemoryStore struct {
	mu           sync.RWMutex
	universes    map[string][]string // market -> symbols
	prices       map[symbolKey][]contracts.PriceBar
	fundamentals map[symbolKey][]contracts.FundamentalPoint
	news         map[symbolKey][]contracts.NewsItem
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		universes:    make(map[string][]string),
		prices:       make(map[symbolKey][]contracts.PriceBar),
		fundamentals: make(map[symbolKey][]contracts.FundamentalPoint),
		news:         make(map[symbolKey][]contracts.NewsItem),
	}
}

// SetUniverse registers the symbols for a market.
func (s *MemoryStore) SetUniverse(market string, symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	s.universes[market] = sorted
}

// GetUniverse implements contracts.UniverseProvider.
func (s *MemoryStore) GetUniverse(ctx context.Context, market string, day contracts.Day) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := s.universes[market]
	out := make([]string, len(symbols))
	copy(out, symbols)
	return out, nil
}

// AddPriceBars appends bars for a symbol and keeps them sorted by day.
func (s *MemoryStore) AddPriceBars(market, symbol string, bars []contracts.PriceBar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := symbolKey{market, symbol}
	s.prices[k] = append(s.prices[k], bars...)
	sort.Slice(s.prices[k], func(i, j int) bool {
		return s.prices[k][i].Day.Before(s.prices[k][j].Day)
	})
}

// PriceHistory implements Reader.
func (s *MemoryStore) PriceHistory(ctx context.Context, market, symbol string, day contracts.Day, limit int) ([]contracts.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bars []contracts.PriceBar
	for _, b := range s.prices[symbolKey{market, symbol}] {
		if !day.Before(b.Day) {
			bars = append(bars, b)
		}
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// AddFundamentals appends points for a symbol.
func (s *MemoryStore) AddFundamentals(market, symbol string, points []contracts.FundamentalPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := symbolKey{market, symbol}
	s.fundamentals[k] = append(s.fundamentals[k], points...)
}

// Fundamental implements Reader.
func (s *MemoryStore) Fundamental(ctx context.Context, market, symbol, key string, asOf contracts.Day) (*contracts.FundamentalPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *contracts.FundamentalPoint
	for _, p := range s.fundamentals[symbolKey{market, symbol}] {
		if p.Key != key || asOf.Before(p.AsOf) {
			continue
		}
		if latest == nil || latest.AsOf.Before(p.AsOf) {
			p := p
			latest = &p
		}
	}
	return latest, nil
}

// AddNews appends articles for a symbol.
func (s *MemoryStore) AddNews(market, symbol string, items []contracts.NewsItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := symbolKey{market, symbol}
	s.news[k] = append(s.news[k], items...)
}

// NewsWindow implements Reader.
func (s *MemoryStore) NewsWindow(ctx context.Context, market, symbol string, from, to contracts.Day) ([]contracts.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	end := to.AddDays(1).Time()
	var items []contracts.NewsItem
	for _, n := range s.news[symbolKey{market, symbol}] {
		if !n.PublishedAt.Before(from.Time()) && n.PublishedAt.Before(end) {
			items = append(items, n)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PublishedAt.Before(items[j].PublishedAt) })
	return items, nil
}
