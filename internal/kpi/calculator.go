package kpi

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinPricePoints is the reporting policy: KPIs are published only for
// series with at least this many underlying prices. The pure computations
// below have their own, weaker requirements.
const MinPricePoints = 30

// tradingDaysPerYear scales daily volatility to annual.
const tradingDaysPerYear = 252

// Calculator computes time-series statistics over a price series ordered
// oldest first. Pure and stateless; insufficient data yields nil results,
// never errors.
type Calculator struct{}

// NewCalculator creates a new KPI calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Report bundles the published KPIs for one price series.
type Report struct {
	Return20D            *float64 `json:"return_20d"`
	Return60D            *float64 `json:"return_60d"`
	Return120D           *float64 `json:"return_120d"`
	MaxDrawdown          *float64 `json:"max_drawdown"`
	AnnualizedVolatility *float64 `json:"annualized_volatility"`
}

// Return computes the n-period windowed return close[last]/close[last-n]-1.
// Nil when fewer than n+1 points exist or the base price is not positive.
func (c *Calculator) Return(prices []float64, n int) *float64 {
	if n <= 0 || len(prices) < n+1 {
		return nil
	}

	base := prices[len(prices)-1-n]
	if base <= 0 {
		return nil
	}

	r := prices[len(prices)-1]/base - 1
	return &r
}

// MaxDrawdown returns the worst peak-to-trough decline observed, as a
// non-positive fraction. A non-declining series yields 0.
func (c *Calculator) MaxDrawdown(prices []float64) *float64 {
	if len(prices) == 0 {
		return nil
	}

	peak := prices[0]
	worst := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			if dd := p/peak - 1; dd < worst {
				worst = dd
			}
		}
	}

	return &worst
}

// AnnualizedVolatility is the sample standard deviation of simple daily
// returns scaled by sqrt(252). Requires at least two return observations.
func (c *Calculator) AnnualizedVolatility(prices []float64) *float64 {
	returns := dailyReturns(prices)
	if len(returns) < 2 {
		return nil
	}

	v := stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)
	return &v
}

// Compute publishes the full KPI report, applying the MinPricePoints
// policy: a short series reports every KPI as nil.
func (c *Calculator) Compute(prices []float64) Report {
	if len(prices) < MinPricePoints {
		return Report{}
	}

	return Report{
		Return20D:            c.Return(prices, 20),
		Return60D:            c.Return(prices, 60),
		Return120D:           c.Return(prices, 120),
		MaxDrawdown:          c.MaxDrawdown(prices),
		AnnualizedVolatility: c.AnnualizedVolatility(prices),
	}
}

// dailyReturns converts prices to simple returns, skipping non-positive bases.
func dailyReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			continue
		}
		returns = append(returns, prices[i]/prices[i-1]-1)
	}
	return returns
}
