package contracts

import "time"

// Stock is one listing on a market.
type Stock struct {
	Market string `json:"market"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Listed Day    `json:"listed_date"`
}

// PriceBar is one daily OHLCV bar.
type PriceBar struct {
	Day    Day      `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume"`
}

// FundamentalPoint is one point-in-time fundamental metric for a symbol.
type FundamentalPoint struct {
	Key    string  `json:"key"` // e.g. pe_ratio, roe_ttm
	Value  float64 `json:"value"`
	AsOf   Day     `json:"asof_date"`
	Source string  `json:"source"`
}

// NewsItem is one cached news article with an estimated tone.
type NewsItem struct {
	PublishedAt time.Time `json:"published_at"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Tone        *float64  `json:"tone"` // negative .. positive, nil when unknown
}
