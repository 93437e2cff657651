package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/scoring"
	"github.com/wonny/quantrank/pkg/logger"
)

const (
	defaultFetchWorkers = 4
	defaultFetchTimeout = 60 * time.Second
)

// SnapshotStore combines reading prior snapshots with committing new ones.
type SnapshotStore interface {
	contracts.SnapshotReader
	contracts.SnapshotWriter
}

// RegistrySource supplies an isolated copy of the live factor registry.
type RegistrySource interface {
	Snapshot(ctx context.Context) ([]contracts.Factor, error)
}

// RunRecorder persists run status for operators. Optional.
type RunRecorder interface {
	Start(ctx context.Context, jobName, market string) (int64, error)
	Finish(ctx context.Context, id int64, status, message string) error
}

// RunResult summarizes one completed recompute.
type RunResult struct {
	Market          string        `json:"market"`
	Day             contracts.Day `json:"day"`
	UniverseSize    int           `json:"universe_size"`
	RankedCount     int           `json:"ranked_count"`
	FactorCount     int           `json:"factor_count"`
	SnapshotWritten bool          `json:"snapshot_written"`
	DegradedFactors []string      `json:"degraded_factors,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// MarketRun is one market's outcome inside a multi-market recompute.
type MarketRun struct {
	Market string     `json:"market"`
	Result *RunResult `json:"result,omitempty"`
	Err    error      `json:"-"`
}

// Orchestrator drives the daily batch: snapshot the registry, resolve the
// universe, fetch raw values per factor, normalize, aggregate, grade, rank,
// and commit the day atomically.
type Orchestrator struct {
	registry     RegistrySource
	universe     contracts.UniverseProvider
	adapter      contracts.IngestionAdapter
	snapshots    SnapshotStore
	normalizer   *scoring.Normalizer
	aggregator   *scoring.Aggregator
	grader       *scoring.Grader
	ranker       *scoring.Ranker
	locker       RunLocker
	runlog       RunRecorder
	logger       *logger.Logger
	workers      int
	fetchTimeout time.Duration
}

// NewOrchestrator creates a new Orchestrator instance. runlog may be nil.
// fetchTimeout bounds each factor's raw value fetch.
func NewOrchestrator(
	registry RegistrySource,
	universe contracts.UniverseProvider,
	adapter contracts.IngestionAdapter,
	snapshots SnapshotStore,
	grader *scoring.Grader,
	locker RunLocker,
	runlog RunRecorder,
	log *logger.Logger,
	workers int,
	fetchTimeout time.Duration,
) *Orchestrator {
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Orchestrator{
		registry:     registry,
		universe:     universe,
		adapter:      adapter,
		snapshots:    snapshots,
		normalizer:   scoring.NewNormalizer(),
		aggregator:   scoring.NewAggregator(),
		grader:       grader,
		ranker:       scoring.NewRanker(),
		locker:       locker,
		runlog:       runlog,
		logger:       log,
		workers:      workers,
		fetchTimeout: fetchTimeout,
	}
}

type fetchResult struct {
	factor   contracts.Factor
	values   map[string]contracts.RawValue
	degraded bool
}

// Recompute runs the full pipeline for one (market, day). At most one run
// per (market, day) is in flight at a time; a concurrent attempt returns
// ErrAlreadyRunning. Re-running a committed day replaces its snapshot.
func (o *Orchestrator) Recompute(ctx context.Context, market string, day contracts.Day) (*RunResult, error) {
	release, acquired, err := o.locker.Acquire(ctx, market, day)
	if err != nil {
		return nil, fmt.Errorf("acquire run lease: %w", err)
	}
	if !acquired {
		return nil, ErrAlreadyRunning
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			o.logger.WithError(err).Warn("Failed to release run lease")
		}
	}()

	var runID int64
	if o.runlog != nil {
		if runID, err = o.runlog.Start(ctx, "recompute", market); err != nil {
			o.logger.WithError(err).Warn("Failed to record run start")
			runID = 0
		}
	}

	result, err := o.recompute(ctx, market, day)
	if o.runlog != nil && runID != 0 {
		status, message := "success", ""
		if err != nil {
			status, message = "failed", err.Error()
		} else if len(result.DegradedFactors) > 0 {
			message = fmt.Sprintf("degraded factors: %v", result.DegradedFactors)
		}
		if logErr := o.runlog.Finish(context.WithoutCancel(ctx), runID, status, message); logErr != nil {
			o.logger.WithError(logErr).Warn("Failed to record run finish")
		}
	}
	return result, err
}

func (o *Orchestrator) recompute(ctx context.Context, market string, day contracts.Day) (*RunResult, error) {
	started := time.Now()

	log := o.logger.WithFields(map[string]interface{}{
		"market": market,
		"day":    day.String(),
	})
	log.Info("Recompute started")

	// every live factor is fetched and stored so the breakdown explains
	// disabled factors too; only enabled ones carry weight in the total
	factors, err := o.registry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot registry: %w", err)
	}

	// a universe failure is fatal: without a member list nothing below has
	// meaning
	universe, err := o.universe.GetUniverse(ctx, market, day)
	if err != nil {
		return nil, fmt.Errorf("resolve universe: %w", err)
	}
	if len(universe) == 0 {
		log.Warn("Empty universe, nothing to rank")
		return &RunResult{
			Market:      market,
			Day:         day,
			FactorCount: len(factors),
			Duration:    time.Since(started),
		}, nil
	}

	results, err := o.fetchAll(ctx, market, day, factors, universe)
	if err != nil {
		return nil, err
	}

	breakdown, totals := o.score(universe, results)

	priorRanks, err := o.snapshots.GetLatestRanking(ctx, market, day)
	if err != nil {
		return nil, fmt.Errorf("load prior ranking: %w", err)
	}

	entries := o.ranker.Rank(totals, priorRanks)
	for i := range entries {
		entries[i].Market = market
		entries[i].Day = day
		if g := o.grader.Grade(&entries[i].TotalScore); g != nil {
			entries[i].Grade = *g
		}
	}

	if err := o.snapshots.CommitDay(ctx, market, day, entries, breakdown); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}

	var degraded []string
	for _, r := range results {
		if r.degraded {
			degraded = append(degraded, r.factor.Key)
		}
	}
	sort.Strings(degraded)

	result := &RunResult{
		Market:          market,
		Day:             day,
		UniverseSize:    len(universe),
		RankedCount:     len(entries),
		FactorCount:     len(factors),
		SnapshotWritten: true,
		DegradedFactors: degraded,
		Duration:        time.Since(started),
	}

	log.WithFields(map[string]interface{}{
		"universe": result.UniverseSize,
		"ranked":   result.RankedCount,
		"degraded": len(degraded),
		"duration": result.Duration.String(),
	}).Info("Recompute finished")
	return result, nil
}

// fetchAll pulls raw values for every factor with bounded
// concurrency. A failed factor degrades to all-missing instead of failing
// the run; only context cancellation aborts.
func (o *Orchestrator) fetchAll(ctx context.Context, market string, day contracts.Day, factors []contracts.Factor, universe []string) ([]fetchResult, error) {
	results := make([]fetchResult, len(factors))
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup

	for i, f := range factors {
		wg.Add(1)
		go func(i int, f contracts.Factor) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			// a stalled provider degrades this factor instead of
			// hanging the run
			fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
			defer cancel()

			values, err := o.adapter.FetchRawValues(fetchCtx, market, day, f.Calculator, universe)
			if err != nil {
				o.logger.WithFields(map[string]interface{}{
					"factor": f.Key,
					"market": market,
				}).WithError(err).Error("Factor fetch failed, degrading to missing")
				results[i] = fetchResult{factor: f, values: nil, degraded: true}
				return
			}
			results[i] = fetchResult{factor: f, values: values}
		}(i, f)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// score normalizes each factor cross-sectionally, assembles the denormalized
// breakdown, and aggregates per-symbol totals.
func (o *Orchestrator) score(universe []string, results []fetchResult) ([]contracts.FactorScore, map[string]*float64) {
	perSymbol := make(map[string][]contracts.FactorScore, len(universe))

	for _, r := range results {
		raw := make(map[string]*float64, len(universe))
		for _, symbol := range universe {
			if rv, ok := r.values[symbol]; ok {
				raw[symbol] = rv.Value
			} else {
				raw[symbol] = nil
			}
		}

		scores := o.normalizer.Normalize(raw, r.factor.HigherIsBetter)

		for _, symbol := range universe {
			perSymbol[symbol] = append(perSymbol[symbol], contracts.FactorScore{
				Symbol:         symbol,
				FactorKey:      r.factor.Key,
				FactorName:     r.factor.Name,
				FactorType:     r.factor.FactorType,
				RawValue:       raw[symbol],
				Score:          scores[symbol],
				Weight:         r.factor.Weight,
				Enabled:        r.factor.Enabled,
				HigherIsBetter: r.factor.HigherIsBetter,
			})
		}
	}

	breakdown := make([]contracts.FactorScore, 0, len(universe)*len(results))
	totals := make(map[string]*float64, len(universe))
	for _, symbol := range universe {
		scores := perSymbol[symbol]
		breakdown = append(breakdown, scores...)
		totals[symbol] = o.aggregator.Aggregate(scores)
	}
	return breakdown, totals
}

// RecomputeAll runs Recompute for each market as an independent run: one
// market failing never blocks the others.
func (o *Orchestrator) RecomputeAll(ctx context.Context, markets []string, day contracts.Day) []MarketRun {
	runs := make([]MarketRun, 0, len(markets))
	for _, market := range markets {
		result, err := o.Recompute(ctx, market, day)
		if err != nil {
			o.logger.WithField("market", market).WithError(err).Error("Market recompute failed")
		}
		runs = append(runs, MarketRun{Market: market, Result: result, Err: err})
	}
	return runs
}
