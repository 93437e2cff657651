package scoring

import "github.com/wonny/quantrank/internal/contracts"

// Aggregator combines a symbol's factor scores into one weighted total.
type Aggregator struct{}

// NewAggregator creates a new aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate computes the weighted mean over breakdown items that were
// enabled at computation time and have a non-nil score. Weights are
// renormalized over the usable items, so a missing factor redistributes
// its weight instead of dragging the total toward zero. Returns nil when
// no usable item exists or the usable weight sum is zero.
func (a *Aggregator) Aggregate(breakdown []contracts.FactorScore) *float64 {
	var num, den float64
	for _, item := range breakdown {
		if !item.Enabled || item.Score == nil {
			continue
		}
		num += *item.Score * item.Weight
		den += item.Weight
	}

	if den <= 0 {
		return nil
	}

	total := num / den
	return &total
}
