package engine

import (
	"context"
	"fmt"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/pkg/redis"
)

// LatestRankingsCacheKey is the cache key for a market's latest committed
// rankings payload.
func LatestRankingsCacheKey(market string) string {
	return fmt.Sprintf("rankings:latest:%s", market)
}

// InvalidatingSnapshots wraps a SnapshotStore and drops the cached latest
// rankings payload whenever a new day is committed, so readers never serve
// a replaced snapshot past the commit.
type InvalidatingSnapshots struct {
	SnapshotStore
	cache *redis.Cache
}

// NewInvalidatingSnapshots wraps store with cache invalidation on commit.
func NewInvalidatingSnapshots(store SnapshotStore, cache *redis.Cache) *InvalidatingSnapshots {
	return &InvalidatingSnapshots{SnapshotStore: store, cache: cache}
}

func (s *InvalidatingSnapshots) CommitDay(ctx context.Context, market string, day contracts.Day, entries []contracts.RankingEntry, breakdown []contracts.FactorScore) error {
	if err := s.SnapshotStore.CommitDay(ctx, market, day, entries, breakdown); err != nil {
		return err
	}
	// best effort: a missed delete only extends staleness to the cache TTL
	_ = s.cache.Delete(ctx, LatestRankingsCacheKey(market))
	return nil
}
