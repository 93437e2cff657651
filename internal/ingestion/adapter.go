package ingestion

import (
	"context"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/marketdata"
	"github.com/wonny/quantrank/pkg/logger"
)

// LocalAdapter computes raw factor values from the local market data store.
// It implements contracts.IngestionAdapter: missing data for individual
// symbols yields nil values, never an error for the whole fetch.
type LocalAdapter struct {
	reader      marketdata.Reader
	calculators *Calculators
	logger      *logger.Logger
}

// NewLocalAdapter creates a new LocalAdapter instance.
func NewLocalAdapter(reader marketdata.Reader, calcs *Calculators, log *logger.Logger) *LocalAdapter {
	return &LocalAdapter{
		reader:      reader,
		calculators: calcs,
		logger:      log,
	}
}

// FetchRawValues computes the factor's raw value for every symbol in the
// universe. An unknown calculator identifier fails the whole fetch; a
// per-symbol computation error degrades that symbol to nil.
func (a *LocalAdapter) FetchRawValues(ctx context.Context, market string, day contracts.Day, calculator string, universe []string) (map[string]contracts.RawValue, error) {
	calc, err := a.calculators.Lookup(calculator)
	if err != nil {
		return nil, err
	}

	values := make(map[string]contracts.RawValue, len(universe))
	for _, symbol := range universe {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v, err := calc(ctx, a.reader, market, symbol, day)
		if err != nil {
			a.logger.WithFields(map[string]interface{}{
				"calculator": calculator,
				"symbol":     symbol,
			}).WithError(err).Warn("Calculator failed, treating as missing")
			values[symbol] = contracts.RawValue{Note: "calc error"}
			continue
		}
		values[symbol] = contracts.RawValue{Value: v}
	}
	return values, nil
}
