package kpi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturn(t *testing.T) {
	c := NewCalculator()

	prices := []float64{100, 110, 121}

	r := c.Return(prices, 2)
	require.NotNil(t, r)
	assert.InDelta(t, 0.21, *r, 1e-9)

	r = c.Return(prices, 1)
	require.NotNil(t, r)
	assert.InDelta(t, 0.1, *r, 1e-9)
}

func TestReturn_InsufficientData(t *testing.T) {
	c := NewCalculator()

	assert.Nil(t, c.Return([]float64{100, 110}, 2), "needs n+1 points")
	assert.Nil(t, c.Return(nil, 1))
	assert.Nil(t, c.Return([]float64{0, 110}, 1), "non-positive base")
}

func TestMaxDrawdown_Scenario(t *testing.T) {
	c := NewCalculator()

	// Peaks run [100,120,120,120]; drawdowns [0,0,-0.25,-0.0833]; worst -0.25.
	mdd := c.MaxDrawdown([]float64{100, 120, 90, 110})
	require.NotNil(t, mdd)
	assert.InDelta(t, -0.25, *mdd, 1e-9)
}

func TestMaxDrawdown_NonDeclining(t *testing.T) {
	c := NewCalculator()

	mdd := c.MaxDrawdown([]float64{100, 100, 105, 120})
	require.NotNil(t, mdd)
	assert.Equal(t, 0.0, *mdd)
}

func TestAnnualizedVolatility(t *testing.T) {
	c := NewCalculator()

	// Alternating +10% / -10% daily returns.
	prices := []float64{100, 110, 99, 108.9, 98.01}
	vol := c.AnnualizedVolatility(prices)
	require.NotNil(t, vol)

	// Sample stddev of {0.1,-0.1,0.1,-0.1} is sqrt(4/3)*0.1.
	want := math.Sqrt(4.0/3.0) * 0.1 * math.Sqrt(252)
	assert.InDelta(t, want, *vol, 1e-9)
}

func TestAnnualizedVolatility_InsufficientData(t *testing.T) {
	c := NewCalculator()

	assert.Nil(t, c.AnnualizedVolatility([]float64{100, 110}), "one return is not enough")
}

func TestCompute_MinPricePointsPolicy(t *testing.T) {
	c := NewCalculator()

	short := make([]float64, MinPricePoints-1)
	for i := range short {
		short[i] = 100 + float64(i)
	}
	report := c.Compute(short)
	assert.Nil(t, report.Return20D)
	assert.Nil(t, report.MaxDrawdown)
	assert.Nil(t, report.AnnualizedVolatility)

	long := make([]float64, MinPricePoints)
	for i := range long {
		long[i] = 100 + float64(i)
	}
	report = c.Compute(long)
	assert.NotNil(t, report.Return20D)
	assert.NotNil(t, report.MaxDrawdown)
	assert.NotNil(t, report.AnnualizedVolatility)
	assert.Nil(t, report.Return120D, "window larger than series stays nil")
}
