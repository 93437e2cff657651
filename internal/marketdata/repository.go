package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/quantrank/internal/contracts"
)

// Reader supplies the historical market data the factor calculators
// consume. Bars come back oldest first.
type Reader interface {
	// PriceHistory returns up to limit daily bars for symbol ending at day.
	PriceHistory(ctx context.Context, market, symbol string, day contracts.Day, limit int) ([]contracts.PriceBar, error)
	// Fundamental returns the latest point for key at or before asOf, nil
	// when the symbol has no data.
	Fundamental(ctx context.Context, market, symbol, key string, asOf contracts.Day) (*contracts.FundamentalPoint, error)
	// NewsWindow returns cached articles published in [from, to].
	NewsWindow(ctx context.Context, market, symbol string, from, to contracts.Day) ([]contracts.NewsItem, error)
}

// Repository handles market data persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetUniverse returns the symbols listed on market and active at day,
// ordered by symbol.
func (r *Repository) GetUniverse(ctx context.Context, market string, day contracts.Day) ([]string, error) {
	query := `
		SELECT symbol
		FROM market.stocks
		WHERE market = $1
		  AND active = true
		  AND listed_date <= $2
		ORDER BY symbol
	`

	rows, err := r.db.Query(ctx, query, market, day.Time())
	if err != nil {
		return nil, fmt.Errorf("query universe: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// ListStocks returns the active listings on market, ordered by symbol.
func (r *Repository) ListStocks(ctx context.Context, market string) ([]contracts.Stock, error) {
	query := `
		SELECT market, symbol, name, listed_date
		FROM market.stocks
		WHERE market = $1
		  AND active = true
		ORDER BY symbol
	`

	rows, err := r.db.Query(ctx, query, market)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []contracts.Stock
	for rows.Next() {
		var s contracts.Stock
		if err := rows.Scan(&s.Market, &s.Symbol, &s.Name, &s.Listed); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// UpsertStock registers or reactivates a listing.
func (r *Repository) UpsertStock(ctx context.Context, market, symbol, name string, listed contracts.Day) error {
	query := `
		INSERT INTO market.stocks (market, symbol, name, listed_date, active, created_at)
		VALUES ($1, $2, $3, $4, true, NOW())
		ON CONFLICT (market, symbol) DO UPDATE SET
			name = EXCLUDED.name,
			active = true
	`

	if _, err := r.db.Exec(ctx, query, market, symbol, name, listed.Time()); err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}
	return nil
}

// SavePriceBars stores daily bars, replacing bars for the same day.
func (r *Repository) SavePriceBars(ctx context.Context, market, symbol string, bars []contracts.PriceBar) error {
	query := `
		INSERT INTO market.daily_prices (
			market, symbol, trade_date, open, high, low, close, volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (market, symbol, trade_date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, market, symbol, b.Day.Time(), b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert price bar: %w", err)
		}
	}
	return nil
}

// PriceHistory returns up to limit bars ending at day, oldest first.
func (r *Repository) PriceHistory(ctx context.Context, market, symbol string, day contracts.Day, limit int) ([]contracts.PriceBar, error) {
	query := `
		SELECT trade_date, open, high, low, close, volume
		FROM market.daily_prices
		WHERE market = $1 AND symbol = $2 AND trade_date <= $3
		ORDER BY trade_date DESC
		LIMIT $4
	`

	rows, err := r.db.Query(ctx, query, market, symbol, day.Time(), limit)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var b contracts.PriceBar
		if err := rows.Scan(&b.Day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// query is newest-first for the LIMIT; callers want oldest-first
	sort.Slice(bars, func(i, j int) bool { return bars[i].Day.Before(bars[j].Day) })
	return bars, nil
}

// SaveFundamentals stores point-in-time fundamentals.
func (r *Repository) SaveFundamentals(ctx context.Context, market, symbol string, points []contracts.FundamentalPoint) error {
	query := `
		INSERT INTO market.fundamentals (market, symbol, metric_key, value, asof_date, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (market, symbol, metric_key, asof_date) DO UPDATE SET
			value = EXCLUDED.value,
			source = EXCLUDED.source
	`

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(query, market, symbol, p.Key, p.Value, p.AsOf.Time(), p.Source)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range points {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert fundamental: %w", err)
		}
	}
	return nil
}

// Fundamental returns the latest point for key at or before asOf.
func (r *Repository) Fundamental(ctx context.Context, market, symbol, key string, asOf contracts.Day) (*contracts.FundamentalPoint, error) {
	query := `
		SELECT metric_key, value, asof_date, source
		FROM market.fundamentals
		WHERE market = $1 AND symbol = $2 AND metric_key = $3 AND asof_date <= $4
		ORDER BY asof_date DESC
		LIMIT 1
	`

	var p contracts.FundamentalPoint
	err := r.db.QueryRow(ctx, query, market, symbol, key, asOf.Time()).
		Scan(&p.Key, &p.Value, &p.AsOf, &p.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query fundamental: %w", err)
	}
	return &p, nil
}

// SaveNews caches fetched articles, deduplicating on URL.
func (r *Repository) SaveNews(ctx context.Context, market, symbol string, items []contracts.NewsItem) error {
	query := `
		INSERT INTO market.news (market, symbol, published_at, title, source, url, tone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url) DO UPDATE SET
			tone = EXCLUDED.tone
	`

	batch := &pgx.Batch{}
	for _, n := range items {
		batch.Queue(query, market, symbol, n.PublishedAt, n.Title, n.Source, n.URL, n.Tone)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert news: %w", err)
		}
	}
	return nil
}

// NewsWindow returns cached articles published in [from, to].
func (r *Repository) NewsWindow(ctx context.Context, market, symbol string, from, to contracts.Day) ([]contracts.NewsItem, error) {
	query := `
		SELECT published_at, title, source, url, tone
		FROM market.news
		WHERE market = $1 AND symbol = $2
		  AND published_at >= $3
		  AND published_at < $4 + INTERVAL '1 day'
		ORDER BY published_at
	`

	rows, err := r.db.Query(ctx, query, market, symbol, from.Time(), to.Time())
	if err != nil {
		return nil, fmt.Errorf("query news: %w", err)
	}
	defer rows.Close()

	var items []contracts.NewsItem
	for rows.Next() {
		var n contracts.NewsItem
		if err := rows.Scan(&n.PublishedAt, &n.Title, &n.Source, &n.URL, &n.Tone); err != nil {
			return nil, fmt.Errorf("scan news: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}
