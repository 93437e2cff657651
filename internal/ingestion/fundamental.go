package ingestion

import (
	"context"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/marketdata"
)

func latestFundamental(ctx context.Context, r marketdata.Reader, market, symbol, key string, day contracts.Day) (*float64, error) {
	p, err := r.Fundamental(ctx, market, symbol, key, day)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	v := p.Value
	return &v, nil
}

// fundamentalLookup builds a calculator that reads a stored metric as-is.
func fundamentalLookup(key string) Calculator {
	return func(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
		return latestFundamental(ctx, r, market, symbol, key, day)
	}
}

// EVToEBITDA is enterprise value over EBITDA; nil when EBITDA is not
// positive.
func EVToEBITDA(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	ev, err := latestFundamental(ctx, r, market, symbol, "enterprise_value", day)
	if err != nil {
		return nil, err
	}
	ebitda, err := latestFundamental(ctx, r, market, symbol, "ebitda", day)
	if err != nil {
		return nil, err
	}
	if ev == nil || ebitda == nil || *ebitda <= 0 {
		return nil, nil
	}
	return ptr(*ev / *ebitda), nil
}

// FCFYield is free cash flow over market cap.
func FCFYield(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	fcf, err := latestFundamental(ctx, r, market, symbol, "free_cashflow", day)
	if err != nil {
		return nil, err
	}
	mcap, err := latestFundamental(ctx, r, market, symbol, "market_cap", day)
	if err != nil {
		return nil, err
	}
	if fcf == nil || mcap == nil || *mcap <= 0 {
		return nil, nil
	}
	return ptr(*fcf / *mcap), nil
}

// DebtToEBITDA is total debt over EBITDA; nil when EBITDA is not positive.
func DebtToEBITDA(ctx context.Context, r marketdata.Reader, market, symbol string, day contracts.Day) (*float64, error) {
	debt, err := latestFundamental(ctx, r, market, symbol, "total_debt", day)
	if err != nil {
		return nil, err
	}
	ebitda, err := latestFundamental(ctx, r, market, symbol, "ebitda", day)
	if err != nil {
		return nil, err
	}
	if debt == nil || ebitda == nil || *ebitda <= 0 {
		return nil, nil
	}
	return ptr(*debt / *ebitda), nil
}
