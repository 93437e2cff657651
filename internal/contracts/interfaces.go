package contracts

import "context"

// IngestionAdapter supplies raw factor values for a whole universe.
// Implementations tolerate partial data: individual missing symbols are
// reported as nil values, never as errors.
type IngestionAdapter interface {
	// FetchRawValues computes raw values for every symbol in the universe
	// using the named calculator.
	FetchRawValues(ctx context.Context, market string, day Day, calculator string, universe []string) (map[string]RawValue, error)
}

// UniverseProvider resolves the symbols eligible for a (market, day).
// A failure here is fatal to a recompute run.
type UniverseProvider interface {
	GetUniverse(ctx context.Context, market string, day Day) ([]string, error)
}

// SnapshotReader reads committed ranking snapshots.
type SnapshotReader interface {
	// GetLatestRanking returns symbol -> rank for the most recent committed
	// day strictly before beforeDay, or an empty map if none exists.
	GetLatestRanking(ctx context.Context, market string, beforeDay Day) (map[string]int, error)
}

// SnapshotWriter commits a full day's snapshot with atomic replace
// semantics: readers never observe a half-written day.
type SnapshotWriter interface {
	CommitDay(ctx context.Context, market string, day Day, entries []RankingEntry, breakdown []FactorScore) error
}
