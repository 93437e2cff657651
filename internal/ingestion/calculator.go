package ingestion

import (
	"context"
	"fmt"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/marketdata"
)

// Calculator computes one factor's raw value for a single symbol.
// A nil result means the symbol has insufficient data; an error means the
// calculator itself failed for that symbol.
type Calculator func(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error)

// Calculators is the closed set of known calculator identifiers. Factor
// definitions reference these by name; an identifier outside this map is a
// configuration error.
type Calculators struct {
	byName map[string]Calculator
}

// NewCalculators builds the default calculator set.
func NewCalculators() *Calculators {
	return &Calculators{byName: map[string]Calculator{
		"momentum_120d":       Momentum120d,
		"volatility_20d":      Volatility20d,
		"rsi_14":              RSI14,
		"macd_hist":           MACDHist,
		"dist_to_52w_high":    DistTo52wHigh,
		"atr_14p":             ATR14Pct,
		"pe_ratio":            fundamentalLookup("pe_ratio"),
		"roe_ttm":             fundamentalLookup("roe_ttm"),
		"revenue_growth_yoy":  fundamentalLookup("revenue_growth_yoy"),
		"earnings_growth_yoy": fundamentalLookup("earnings_growth_yoy"),
		"ev_to_ebitda":        EVToEBITDA,
		"fcf_yield":           FCFYield,
		"debt_to_ebitda":      DebtToEBITDA,
		"news_tone_14d":       NewsTone14d,
		"news_tone_change":    NewsToneChange,
		"news_volume_14d":     NewsVolume14d,
		"news_neg_risk_14d":   NewsNegRisk14d,
	}}
}

// Lookup resolves a calculator identifier.
func (c *Calculators) Lookup(name string) (Calculator, error) {
	calc, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown calculator %q", name)
	}
	return calc, nil
}

// Names returns the known identifiers, for admin validation.
func (c *Calculators) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	return names
}
