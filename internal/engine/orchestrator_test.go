package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/scoring"
	"github.com/wonny/quantrank/pkg/logger"
)

var day = contracts.NewDay(2024, time.June, 3)

type fakeRegistry struct {
	factors []contracts.Factor
}

func (r *fakeRegistry) Snapshot(ctx context.Context) ([]contracts.Factor, error) {
	out := make([]contracts.Factor, len(r.factors))
	copy(out, r.factors)
	return out, nil
}

type fakeUniverse struct {
	symbols []string
	err     error
}

func (u *fakeUniverse) GetUniverse(ctx context.Context, market string, day contracts.Day) ([]string, error) {
	return u.symbols, u.err
}

// fakeAdapter serves per-calculator raw values; calculators listed in fail
// return an error, calculators listed in stall block until the context
// expires.
type fakeAdapter struct {
	values map[string]map[string]*float64 // calculator -> symbol -> value
	fail   map[string]bool
	stall  map[string]bool
}

func (a *fakeAdapter) FetchRawValues(ctx context.Context, market string, day contracts.Day, calculator string, universe []string) (map[string]contracts.RawValue, error) {
	if a.fail[calculator] {
		return nil, fmt.Errorf("upstream down")
	}
	if a.stall[calculator] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := make(map[string]contracts.RawValue, len(universe))
	for _, s := range universe {
		out[s] = contracts.RawValue{Value: a.values[calculator][s]}
	}
	return out, nil
}

// memorySnapshots records commits and serves prior rankings from the last
// committed day before the requested one.
type memorySnapshots struct {
	mu        sync.Mutex
	days      map[string][]contracts.RankingEntry // market|day -> entries
	breakdown map[string][]contracts.FactorScore
	commits   int
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{
		days:      make(map[string][]contracts.RankingEntry),
		breakdown: make(map[string][]contracts.FactorScore),
	}
}

func snapKey(market string, day contracts.Day) string {
	return market + "|" + day.String()
}

func (m *memorySnapshots) CommitDay(ctx context.Context, market string, day contracts.Day, entries []contracts.RankingEntry, breakdown []contracts.FactorScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[snapKey(market, day)] = entries
	m.breakdown[snapKey(market, day)] = breakdown
	m.commits++
	return nil
}

func (m *memorySnapshots) GetLatestRanking(ctx context.Context, market string, beforeDay contracts.Day) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best contracts.Day
	var found []contracts.RankingEntry
	for key, entries := range m.days {
		if len(entries) == 0 {
			continue
		}
		d := entries[0].Day
		if key == snapKey(market, d) && d.Before(beforeDay) && (found == nil || best.Before(d)) {
			best, found = d, entries
		}
	}

	ranks := make(map[string]int)
	for _, e := range found {
		ranks[e.Symbol] = e.Rank
	}
	return ranks, nil
}

func fp(v float64) *float64 { return &v }

func newTestOrchestrator(reg *fakeRegistry, uni *fakeUniverse, adapter *fakeAdapter, snaps *memorySnapshots) *Orchestrator {
	grader, _ := scoring.NewGrader(scoring.DefaultGradeBuckets())
	return NewOrchestrator(reg, uni, adapter, snaps, grader, NewMemoryLocker(), nil, logger.NewNop(), 2, time.Second)
}

func testFactor(key string, weight float64, higherIsBetter bool) contracts.Factor {
	return contracts.Factor{
		Key:            key,
		Name:           key,
		FactorType:     contracts.FactorTechnical,
		Calculator:     key,
		Weight:         weight,
		HigherIsBetter: higherIsBetter,
		Normalize:      contracts.NormalizePercentile,
		Enabled:        true,
	}
}

func TestRecomputeRanksUniverse(t *testing.T) {
	reg := &fakeRegistry{factors: []contracts.Factor{
		testFactor("momentum", 0.6, true),
		testFactor("volatility", 0.4, false),
	}}
	uni := &fakeUniverse{symbols: []string{"AAA", "BBB", "CCC"}}
	adapter := &fakeAdapter{values: map[string]map[string]*float64{
		"momentum":   {"AAA": fp(0.3), "BBB": fp(0.1), "CCC": fp(-0.2)},
		"volatility": {"AAA": fp(0.01), "BBB": fp(0.05), "CCC": fp(0.09)},
	}}
	snaps := newMemorySnapshots()

	result, err := newTestOrchestrator(reg, uni, adapter, snaps).Recompute(context.Background(), "US", day)
	require.NoError(t, err)

	assert.Equal(t, 3, result.UniverseSize)
	assert.Equal(t, 3, result.RankedCount)
	assert.True(t, result.SnapshotWritten)
	assert.Empty(t, result.DegradedFactors)

	entries := snaps.days[snapKey("US", day)]
	require.Len(t, entries, 3)
	// AAA leads on both factors
	assert.Equal(t, "AAA", entries[0].Symbol)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "CCC", entries[2].Symbol)
	assert.Equal(t, "A", entries[0].Grade)
	assert.Equal(t, "F", entries[2].Grade)
	// first run has no prior snapshot
	for _, e := range entries {
		assert.Nil(t, e.DeltaRank)
	}

	// full breakdown: every symbol x every factor
	assert.Len(t, snaps.breakdown[snapKey("US", day)], 6)
}

func TestRecomputeIsIdempotentPerDay(t *testing.T) {
	reg := &fakeRegistry{factors: []contracts.Factor{testFactor("momentum", 1, true)}}
	uni := &fakeUniverse{symbols: []string{"AAA", "BBB"}}
	adapter := &fakeAdapter{values: map[string]map[string]*float64{
		"momentum": {"AAA": fp(1), "BBB": fp(2)},
	}}
	snaps := newMemorySnapshots()
	orch := newTestOrchestrator(reg, uni, adapter, snaps)

	_, err := orch.Recompute(context.Background(), "US", day)
	require.NoError(t, err)
	_, err = orch.Recompute(context.Background(), "US", day)
	require.NoError(t, err)

	assert.Equal(t, 2, snaps.commits)
	// prior ranks come only from days strictly before, so the rerun still
	// has nil deltas
	for _, e := range snaps.days[snapKey("US", day)] {
		assert.Nil(t, e.DeltaRank)
	}
}

func TestRecomputeDeltaFromPriorDay(t *testing.T) {
	reg := &fakeRegistry{factors: []contracts.Factor{testFactor("momentum", 1, true)}}
	uni := &fakeUniverse{symbols: []string{"AAA", "BBB"}}
	adapter := &fakeAdapter{values: map[string]map[string]*float64{
		"momentum": {"AAA": fp(1), "BBB": fp(2)},
	}}
	snaps := newMemorySnapshots()
	orch := newTestOrchestrator(reg, uni, adapter, snaps)

	_, err := orch.Recompute(context.Background(), "US", day)
	require.NoError(t, err)

	// invert the ordering on the next day
	adapter.values["momentum"] = map[string]*float64{"AAA": fp(5), "BBB": fp(1)}
	_, err = orch.Recompute(context.Background(), "US", day.AddDays(1))
	require.NoError(t, err)

	entries := snaps.days[snapKey("US", day.AddDays(1))]
	require.Len(t, entries, 2)
	assert.Equal(t, "AAA", entries[0].Symbol)
	require.NotNil(t, entries[0].DeltaRank)
	assert.Equal(t, 1, *entries[0].DeltaRank) // 2 -> 1
	require.NotNil(t, entries[1].DeltaRank)
	assert.Equal(t, -1, *entries[1].DeltaRank) // 1 -> 2
}

func TestRecomputeUniverseFailureIsFatal(t *testing.T) {
	reg := &fakeRegistry{factors: []contracts.Factor{testFactor("momentum", 1, true)}}
	uni := &fakeUniverse{err: errors.New("db down")}
	snaps := newMemorySnapshots()

	_, err := newTestOrchestrator(reg, uni, &fakeAdapter{}, snaps).Recompute(context.Background(), "US", day)
	require.Error(t, err)
	assert.Zero(t, snaps.commits)
}

func TestRecomputeEmptyUniverseWritesNothing(t *testing.T) {
	reg := &fakeRegistry{factors: []contracts.Factor{testFactor("momentum", 1, true)}}
	uni := &fakeUniverse{}
	snaps := newMemorySnapshots()

	result, err := newTestOrchestrator(reg, uni, &fakeAdapter{}, snaps).Recompute(context.Background(), "US", day)
	require.NoError(t, err)
	assert.False(t, result.SnapshotWritten)
	assert.Zero(t, result.RankedCount)
	assert.Zero(t, snaps.commits)
}

func TestRecomputeDegradesFailedFactor(t *testing.T) {
	reg := &fakeRegistry{factors: []contracts.Factor{
		testFactor("momentum", 0.5, true),
		testFactor("news_tone", 0.5, true),
	}}
	uni := &fakeUniverse{symbols: []string{"AAA", "BBB"}}
	adapter := &fakeAdapter{
		values: map[string]map[string]*float64{
			"momentum": {"AAA": fp(2), "BBB": fp(1)},
		},
		fail: map[string]bool{"news_tone": true},
	}
	snaps := newMemorySnapshots()

	result, err := newTestOrchestrator(reg, uni, adapter, snaps).Recompute(context.Background(), "US", day)
	require.NoError(t, err)

	assert.Equal(t, []string{"news_tone"}, result.DegradedFactors)
	// scoring falls back to the surviving factor
	entries := snaps.days[snapKey("US", day)]
	require.Len(t, entries, 2)
	assert.Equal(t, "AAA", entries[0].Symbol)
}

func TestRecomputeStoresDisabledFactorWithoutWeight(t *testing.T) {
	disabled := testFactor("pe_ratio", 0.5, false)
	disabled.Enabled = false
	reg := &fakeRegistry{factors: []contracts.Factor{
		testFactor("momentum", 0.5, true),
		disabled,
	}}
	uni := &fakeUniverse{symbols: []string{"AAA", "BBB"}}
	adapter := &fakeAdapter{values: map[string]map[string]*float64{
		"momentum": {"AAA": fp(2), "BBB": fp(1)},
		"pe_ratio": {"AAA": fp(30), "BBB": fp(10)},
	}}
	snaps := newMemorySnapshots()

	result, err := newTestOrchestrator(reg, uni, adapter, snaps).Recompute(context.Background(), "US", day)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FactorCount)

	// the breakdown explains every live factor, disabled ones included
	breakdown := snaps.breakdown[snapKey("US", day)]
	keys := make(map[string]int)
	var peRows []contracts.FactorScore
	for _, b := range breakdown {
		keys[b.FactorKey]++
		if b.FactorKey == "pe_ratio" {
			peRows = append(peRows, b)
		}
	}
	assert.Equal(t, map[string]int{"momentum": 2, "pe_ratio": 2}, keys)
	for _, row := range peRows {
		assert.False(t, row.Enabled)
		require.NotNil(t, row.Score)
	}

	// the total comes from the enabled factor alone: pe_ratio is
	// lower-is-better and would flip the order if it carried weight
	entries := snaps.days[snapKey("US", day)]
	require.Len(t, entries, 2)
	assert.Equal(t, "AAA", entries[0].Symbol)
	assert.Equal(t, 100.0, entries[0].TotalScore)
}

func TestRecomputeStalledFetchDegradesFactor(t *testing.T) {
	reg := &fakeRegistry{factors: []contracts.Factor{
		testFactor("momentum", 0.5, true),
		testFactor("news_tone", 0.5, true),
	}}
	uni := &fakeUniverse{symbols: []string{"AAA", "BBB"}}
	adapter := &fakeAdapter{
		values: map[string]map[string]*float64{
			"momentum": {"AAA": fp(2), "BBB": fp(1)},
		},
		stall: map[string]bool{"news_tone": true},
	}
	snaps := newMemorySnapshots()

	grader, _ := scoring.NewGrader(scoring.DefaultGradeBuckets())
	orch := NewOrchestrator(reg, uni, adapter, snaps, grader, NewMemoryLocker(), nil, logger.NewNop(), 2, 20*time.Millisecond)

	result, err := orch.Recompute(context.Background(), "US", day)
	require.NoError(t, err)

	assert.Equal(t, []string{"news_tone"}, result.DegradedFactors)
	assert.True(t, result.SnapshotWritten)
	require.Len(t, snaps.days[snapKey("US", day)], 2)
}

func TestRecomputeAlreadyRunning(t *testing.T) {
	locker := NewMemoryLocker()
	_, acquired, err := locker.Acquire(context.Background(), "US", day)
	require.NoError(t, err)
	require.True(t, acquired)

	grader, _ := scoring.NewGrader(scoring.DefaultGradeBuckets())
	orch := NewOrchestrator(
		&fakeRegistry{}, &fakeUniverse{}, &fakeAdapter{}, newMemorySnapshots(),
		grader, locker, nil, logger.NewNop(), 1, time.Second,
	)

	_, err = orch.Recompute(context.Background(), "US", day)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRecomputeAllIndependentRuns(t *testing.T) {
	reg := &fakeRegistry{factors: []contracts.Factor{testFactor("momentum", 1, true)}}
	snaps := newMemorySnapshots()

	grader, _ := scoring.NewGrader(scoring.DefaultGradeBuckets())
	uni := &marketAwareUniverse{}
	adapter := &fakeAdapter{values: map[string]map[string]*float64{
		"momentum": {"AAA": fp(1)},
	}}
	orch := NewOrchestrator(reg, uni, adapter, snaps, grader, NewMemoryLocker(), nil, logger.NewNop(), 1, time.Second)

	runs := orch.RecomputeAll(context.Background(), []string{"KR", "US"}, day)
	require.Len(t, runs, 2)
	assert.Error(t, runs[0].Err)   // KR universe fails
	assert.NoError(t, runs[1].Err) // US still runs
	assert.Equal(t, 1, snaps.commits)
}

// marketAwareUniverse fails for KR only.
type marketAwareUniverse struct{}

func (u *marketAwareUniverse) GetUniverse(ctx context.Context, market string, day contracts.Day) ([]string, error) {
	if market == "KR" {
		return nil, errors.New("exchange feed down")
	}
	return []string{"AAA"}, nil
}
