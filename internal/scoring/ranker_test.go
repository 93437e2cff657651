package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanker_OrdersAndAssignsRanks(t *testing.T) {
	r := NewRanker()

	entries := r.Rank(map[string]*float64{
		"AAA": f(70),
		"BBB": f(90),
		"CCC": f(50),
	}, nil)

	require.Len(t, entries, 3)
	assert.Equal(t, "BBB", entries[0].Symbol)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "AAA", entries[1].Symbol)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "CCC", entries[2].Symbol)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestRanker_NilTotalsExcluded(t *testing.T) {
	r := NewRanker()

	entries := r.Rank(map[string]*float64{
		"AAA": f(70),
		"BBB": nil,
		"CCC": f(50),
	}, nil)

	require.Len(t, entries, 2)
	ranks := map[string]int{}
	for _, e := range entries {
		ranks[e.Symbol] = e.Rank
	}
	assert.Equal(t, map[string]int{"AAA": 1, "CCC": 2}, ranks, "ranks must be exactly {1..N}")
}

func TestRanker_TieBreakBySymbol(t *testing.T) {
	r := NewRanker()

	entries := r.Rank(map[string]*float64{
		"ZZZ": f(60),
		"AAA": f(60),
		"MMM": f(60),
	}, nil)

	require.Len(t, entries, 3)
	assert.Equal(t, "AAA", entries[0].Symbol)
	assert.Equal(t, "MMM", entries[1].Symbol)
	assert.Equal(t, "ZZZ", entries[2].Symbol)
}

func TestRanker_DeltaRanks(t *testing.T) {
	r := NewRanker()

	// Day 1: A=1, B=2, C=3. Day 2: B takes the lead, D is new.
	prior := map[string]int{"A": 1, "B": 2, "C": 3}
	entries := r.Rank(map[string]*float64{
		"A": f(80),
		"B": f(90),
		"C": f(40),
		"D": f(30),
	}, prior)

	bydSymbol := map[string]struct {
		rank  int
		delta *int
	}{}
	for _, e := range entries {
		bydSymbol[e.Symbol] = struct {
			rank  int
			delta *int
		}{e.Rank, e.DeltaRank}
	}

	require.NotNil(t, bydSymbol["A"].delta)
	assert.Equal(t, -1, *bydSymbol["A"].delta) // 1 -> 2
	require.NotNil(t, bydSymbol["B"].delta)
	assert.Equal(t, 1, *bydSymbol["B"].delta) // 2 -> 1
	require.NotNil(t, bydSymbol["C"].delta)
	assert.Equal(t, 0, *bydSymbol["C"].delta) // 3 -> 3
	assert.Nil(t, bydSymbol["D"].delta, "new entrant has no delta")
}
