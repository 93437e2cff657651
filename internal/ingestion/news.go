package ingestion

import (
	"context"
	"strings"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/marketdata"
)

const (
	newsWindowDays = 14
	newsItemCap    = 80
)

var negativeKeywordsKR = []string{
	"리콜", "소송", "규제", "수사", "횡령", "불법", "급락", "하락", "충격", "경고", "우려", "부진", "적자", "하향",
}

var negativeKeywordsEN = []string{
	"lawsuit", "recall", "probe", "regulator", "drop", "falls", "plunge", "warning", "miss", "weak", "slump",
}

func recentNews(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) ([]contracts.NewsItem, error) {
	items, err := r.NewsWindow(ctx, market, symbol, day.AddDays(-newsWindowDays), day)
	if err != nil {
		return nil, err
	}
	if len(items) > newsItemCap {
		items = items[len(items)-newsItemCap:]
	}
	return items, nil
}

// NewsTone14d is the mean tone of cached articles over the last 14 days.
func NewsTone14d(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	items, err := recentNews(ctx, r, market, symbol, day)
	if err != nil {
		return nil, err
	}

	var sum float64
	var n int
	for _, item := range items {
		if item.Tone == nil {
			continue
		}
		sum += *item.Tone
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return ptr(sum / float64(n)), nil
}

// NewsToneChange is the mean tone over the last 3 days minus the mean tone
// over the last 14 days; nil when either window has no toned articles.
func NewsToneChange(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	items, err := recentNews(ctx, r, market, symbol, day)
	if err != nil {
		return nil, err
	}

	cutoff := day.AddDays(-3).Time()
	var sum14, sum3 float64
	var n14, n3 int
	for _, item := range items {
		if item.Tone == nil {
			continue
		}
		sum14 += *item.Tone
		n14++
		if !item.PublishedAt.Before(cutoff) {
			sum3 += *item.Tone
			n3++
		}
	}
	if n14 == 0 || n3 == 0 {
		return nil, nil
	}
	return ptr(sum3/float64(n3) - sum14/float64(n14)), nil
}

// NewsVolume14d is the article count over the last 14 days. Zero is a real
// value here, not missing data.
func NewsVolume14d(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	items, err := recentNews(ctx, r, market, symbol, day)
	if err != nil {
		return nil, err
	}
	return ptr(float64(len(items))), nil
}

// NewsNegRisk14d counts headlines matching a negative-keyword list over the
// last 14 days; nil when no articles are cached at all.
func NewsNegRisk14d(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	items, err := recentNews(ctx, r, market, symbol, day)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	var hits int
	for _, item := range items {
		if titleIsNegative(item.Title) {
			hits++
		}
	}
	return ptr(float64(hits)), nil
}

func titleIsNegative(title string) bool {
	for _, k := range negativeKeywordsKR {
		if strings.Contains(title, k) {
			return true
		}
	}
	lower := strings.ToLower(title)
	for _, k := range negativeKeywordsEN {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
