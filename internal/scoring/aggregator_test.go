package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantrank/internal/contracts"
)

func TestAggregator_WeightedMean(t *testing.T) {
	a := NewAggregator()

	total := a.Aggregate([]contracts.FactorScore{
		{FactorKey: "f1", Score: f(80), Weight: 0.6, Enabled: true},
		{FactorKey: "f2", Score: f(40), Weight: 0.4, Enabled: true},
	})

	require.NotNil(t, total)
	assert.InDelta(t, 64, *total, 1e-9)
}

func TestAggregator_MissingFactorRenormalizes(t *testing.T) {
	a := NewAggregator()

	// f2 has no score: f1 carries the full weight, total equals its score.
	total := a.Aggregate([]contracts.FactorScore{
		{FactorKey: "f1", Score: f(80), Weight: 0.6, Enabled: true},
		{FactorKey: "f2", Score: nil, Weight: 0.4, Enabled: true},
	})

	require.NotNil(t, total)
	assert.InDelta(t, 80, *total, 1e-9)
}

func TestAggregator_DisabledNeverContributes(t *testing.T) {
	a := NewAggregator()

	total := a.Aggregate([]contracts.FactorScore{
		{FactorKey: "f1", Score: f(80), Weight: 0.5, Enabled: true},
		{FactorKey: "f2", Score: f(0), Weight: 10, Enabled: false},
	})

	require.NotNil(t, total)
	assert.InDelta(t, 80, *total, 1e-9)
}

func TestAggregator_NilWhenNothingUsable(t *testing.T) {
	a := NewAggregator()

	assert.Nil(t, a.Aggregate(nil))
	assert.Nil(t, a.Aggregate([]contracts.FactorScore{
		{FactorKey: "f1", Score: nil, Weight: 1, Enabled: true},
		{FactorKey: "f2", Score: f(50), Weight: 1, Enabled: false},
	}))
	// Usable items with zero weight sum are equally undefined.
	assert.Nil(t, a.Aggregate([]contracts.FactorScore{
		{FactorKey: "f1", Score: f(50), Weight: 0, Enabled: true},
	}))
}
