package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/quantrank/internal/contracts"
)

// SnapshotRepository persists committed ranking days. It implements both
// contracts.SnapshotReader and contracts.SnapshotWriter.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository instance.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// CommitDay atomically replaces the snapshot for (market, day): the old
// day's rows are deleted and the new ones inserted in one transaction, so
// readers never observe a half-written day.
func (r *SnapshotRepository) CommitDay(ctx context.Context, market string, day contracts.Day, entries []contracts.RankingEntry, breakdown []contracts.FactorScore) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM ranking.snapshots WHERE market = $1 AND day = $2`, market, day.Time()); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM ranking.breakdowns WHERE market = $1 AND day = $2`, market, day.Time()); err != nil {
		return fmt.Errorf("clear breakdowns: %w", err)
	}

	entryQuery := `
		INSERT INTO ranking.snapshots (market, day, symbol, total_score, grade, rank, delta_rank, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(entryQuery, market, day.Time(), e.Symbol, e.TotalScore, e.Grade, e.Rank, e.DeltaRank)
	}

	breakdownQuery := `
		INSERT INTO ranking.breakdowns (
			market, day, symbol, factor_key, factor_name, factor_type,
			raw_value, score, weight_at_computation, enabled_at_computation, higher_is_better
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for _, b := range breakdown {
		batch.Queue(breakdownQuery,
			market, day.Time(), b.Symbol, b.FactorKey, b.FactorName, b.FactorType,
			b.RawValue, b.Score, b.Weight, b.Enabled, b.HigherIsBetter)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(entries)+len(breakdown); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("insert snapshot row: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("flush snapshot batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// GetLatestRanking returns symbol -> rank for the most recent committed day
// strictly before beforeDay, or an empty map if none exists.
func (r *SnapshotRepository) GetLatestRanking(ctx context.Context, market string, beforeDay contracts.Day) (map[string]int, error) {
	query := `
		SELECT symbol, rank
		FROM ranking.snapshots
		WHERE market = $1
		  AND day = (
			SELECT MAX(day) FROM ranking.snapshots
			WHERE market = $1 AND day < $2
		  )
	`

	rows, err := r.db.Query(ctx, query, market, beforeDay.Time())
	if err != nil {
		return nil, fmt.Errorf("query prior ranking: %w", err)
	}
	defer rows.Close()

	ranks := make(map[string]int)
	for rows.Next() {
		var symbol string
		var rank int
		if err := rows.Scan(&symbol, &rank); err != nil {
			return nil, fmt.Errorf("scan prior rank: %w", err)
		}
		ranks[symbol] = rank
	}
	return ranks, rows.Err()
}

// LatestDay returns the most recent committed day for market; ok is false
// when the market has no snapshots yet.
func (r *SnapshotRepository) LatestDay(ctx context.Context, market string) (contracts.Day, bool, error) {
	query := `SELECT MAX(day) FROM ranking.snapshots WHERE market = $1`

	var day *contracts.Day
	if err := r.db.QueryRow(ctx, query, market).Scan(&day); err != nil {
		return contracts.Day{}, false, fmt.Errorf("query latest day: %w", err)
	}
	if day == nil {
		return contracts.Day{}, false, nil
	}
	return *day, true, nil
}

// GetRankings returns the committed entries for (market, day) ordered by
// rank. Limit <= 0 returns all.
func (r *SnapshotRepository) GetRankings(ctx context.Context, market string, day contracts.Day, limit int) ([]contracts.RankingEntry, error) {
	query := `
		SELECT symbol, total_score, grade, rank, delta_rank
		FROM ranking.snapshots
		WHERE market = $1 AND day = $2
		ORDER BY rank
	`
	args := []interface{}{market, day.Time()}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	defer rows.Close()

	var entries []contracts.RankingEntry
	for rows.Next() {
		e := contracts.RankingEntry{Market: market, Day: day}
		if err := rows.Scan(&e.Symbol, &e.TotalScore, &e.Grade, &e.Rank, &e.DeltaRank); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetBreakdown returns the per-factor contributions for one symbol on a day.
func (r *SnapshotRepository) GetBreakdown(ctx context.Context, market, symbol string, day contracts.Day) ([]contracts.FactorScore, error) {
	query := `
		SELECT factor_key, factor_name, factor_type, raw_value, score,
		       weight_at_computation, enabled_at_computation, higher_is_better
		FROM ranking.breakdowns
		WHERE market = $1 AND symbol = $2 AND day = $3
		ORDER BY factor_key
	`

	rows, err := r.db.Query(ctx, query, market, symbol, day.Time())
	if err != nil {
		return nil, fmt.Errorf("query breakdown: %w", err)
	}
	defer rows.Close()

	var scores []contracts.FactorScore
	for rows.Next() {
		s := contracts.FactorScore{Symbol: symbol}
		if err := rows.Scan(&s.FactorKey, &s.FactorName, &s.FactorType,
			&s.RawValue, &s.Score, &s.Weight, &s.Enabled, &s.HigherIsBetter); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// GetFactorScores returns every symbol's per-factor normalized scores for
// (market, day), keyed by symbol then factor key. Nil score values mean the
// factor was not computable for that symbol.
func (r *SnapshotRepository) GetFactorScores(ctx context.Context, market string, day contracts.Day) (map[string]map[string]*float64, error) {
	query := `
		SELECT symbol, factor_key, score
		FROM ranking.breakdowns
		WHERE market = $1 AND day = $2
	`

	rows, err := r.db.Query(ctx, query, market, day.Time())
	if err != nil {
		return nil, fmt.Errorf("query factor scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]map[string]*float64)
	for rows.Next() {
		var symbol, key string
		var score *float64
		if err := rows.Scan(&symbol, &key, &score); err != nil {
			return nil, fmt.Errorf("scan factor score: %w", err)
		}
		if scores[symbol] == nil {
			scores[symbol] = make(map[string]*float64)
		}
		scores[symbol][key] = score
	}
	return scores, rows.Err()
}

// GetEntry returns one symbol's snapshot entry for (market, day), nil when
// the symbol was not ranked that day.
func (r *SnapshotRepository) GetEntry(ctx context.Context, market, symbol string, day contracts.Day) (*contracts.RankingEntry, error) {
	query := `
		SELECT total_score, grade, rank, delta_rank
		FROM ranking.snapshots
		WHERE market = $1 AND symbol = $2 AND day = $3
	`

	e := contracts.RankingEntry{Symbol: symbol, Market: market, Day: day}
	err := r.db.QueryRow(ctx, query, market, symbol, day.Time()).
		Scan(&e.TotalScore, &e.Grade, &e.Rank, &e.DeltaRank)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot entry: %w", err)
	}
	return &e, nil
}
