package ingestion

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/marketdata"
)

// ema applies an exponential moving average with the standard span alpha
// (2 / (span+1)), seeded at the first value.
func ema(values []float64, span int) []float64 {
	alpha := 2.0 / float64(span+1)
	return ewm(values, alpha)
}

// ewm is the recursive exponentially weighted mean used by both the EMA and
// Wilder (alpha = 1/n) smoothers.
func ewm(values []float64, alpha float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = (1-alpha)*out[i-1] + alpha*v
	}
	return out
}

func closes(bars []contracts.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Momentum120d is the 120 trading-day close-to-close return.
func Momentum120d(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	bars, err := r.PriceHistory(ctx, market, symbol, day, 140)
	if err != nil {
		return nil, err
	}
	if len(bars) < 121 {
		return nil, nil
	}
	c0 := bars[len(bars)-121].Close
	c1 := bars[len(bars)-1].Close
	if c0 <= 0 {
		return nil, nil
	}
	return ptr(c1/c0 - 1.0), nil
}

// Volatility20d is the sample standard deviation of the last 20 daily
// returns.
func Volatility20d(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	bars, err := r.PriceHistory(ctx, market, symbol, day, 40)
	if err != nil {
		return nil, err
	}
	if len(bars) < 21 {
		return nil, nil
	}

	cs := closes(bars)
	var rets []float64
	for i := 1; i < len(cs); i++ {
		if cs[i-1] == 0 {
			continue
		}
		rets = append(rets, cs[i]/cs[i-1]-1.0)
	}
	if len(rets) < 20 {
		return nil, nil
	}
	rets = rets[len(rets)-20:]
	return finite(stat.StdDev(rets, nil)), nil
}

// RSI14 is the 14-day relative strength index with Wilder smoothing.
func RSI14(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	bars, err := r.PriceHistory(ctx, market, symbol, day, 120)
	if err != nil {
		return nil, err
	}
	if len(bars) < 30 {
		return nil, nil
	}

	cs := closes(bars)
	gains := make([]float64, 0, len(cs)-1)
	losses := make([]float64, 0, len(cs)-1)
	for i := 1; i < len(cs); i++ {
		delta := cs[i] - cs[i-1]
		gains = append(gains, math.Max(delta, 0))
		losses = append(losses, math.Max(-delta, 0))
	}

	avgGain := ewm(gains, 1.0/14.0)
	avgLoss := ewm(losses, 1.0/14.0)

	g := avgGain[len(avgGain)-1]
	l := avgLoss[len(avgLoss)-1]
	if l == 0 {
		return nil, nil
	}
	rs := g / l
	return finite(100.0 - 100.0/(1.0+rs)), nil
}

// MACDHist is the MACD(12,26,9) histogram value.
func MACDHist(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	bars, err := r.PriceHistory(ctx, market, symbol, day, 260)
	if err != nil {
		return nil, err
	}
	if len(bars) < 60 {
		return nil, nil
	}

	cs := closes(bars)
	fast := ema(cs, 12)
	slow := ema(cs, 26)
	macd := make([]float64, len(cs))
	for i := range cs {
		macd[i] = fast[i] - slow[i]
	}
	signal := ema(macd, 9)
	return finite(macd[len(macd)-1] - signal[len(signal)-1]), nil
}

// DistTo52wHigh is the distance of the last close from the 252-day high,
// always <= 0.
func DistTo52wHigh(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	bars, err := r.PriceHistory(ctx, market, symbol, day, 300)
	if err != nil {
		return nil, err
	}
	if len(bars) < 200 {
		return nil, nil
	}

	cs := closes(bars)
	if len(cs) > 252 {
		cs = cs[len(cs)-252:]
	}
	high := cs[0]
	for _, c := range cs {
		if c > high {
			high = c
		}
	}
	if high <= 0 {
		return nil, nil
	}
	last := cs[len(cs)-1]
	return ptr(last/high - 1.0), nil
}

// ATR14Pct is the Wilder-smoothed 14-day average true range, expressed as a
// fraction of the last close.
func ATR14Pct(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	bars, err := r.PriceHistory(ctx, market, symbol, day, 80)
	if err != nil {
		return nil, err
	}
	if len(bars) < 20 {
		return nil, nil
	}

	tr := make([]float64, len(bars))
	for i, b := range bars {
		hl := math.Abs(b.High - b.Low)
		if i == 0 {
			tr[i] = hl
			continue
		}
		prev := bars[i-1].Close
		tr[i] = math.Max(hl, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
	}

	atr := ewm(tr, 1.0/14.0)
	v := atr[len(atr)-1]
	c := bars[len(bars)-1].Close
	if math.IsNaN(v) || math.IsInf(v, 0) || c <= 0 {
		return nil, nil
	}
	return ptr(v / c), nil
}
