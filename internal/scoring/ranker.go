package scoring

import (
	"sort"

	"github.com/wonny/quantrank/internal/contracts"
)

// Ranker orders symbols by total score and tracks day-over-day movement.
type Ranker struct{}

// NewRanker creates a new ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank sorts symbols by total score descending and assigns 1-based ranks.
// Symbols with a nil total are excluded entirely, so the assigned ranks are
// exactly {1..N} over the scored symbols. Equal scores are ordered by
// symbol ascending for a reproducible result. DeltaRank is priorRank minus
// rank (positive means the symbol moved up) and nil for symbols without a
// prior rank.
func (r *Ranker) Rank(totals map[string]*float64, priorRanks map[string]int) []contracts.RankingEntry {
	entries := make([]contracts.RankingEntry, 0, len(totals))
	for symbol, total := range totals {
		if total == nil {
			continue
		}
		entries = append(entries, contracts.RankingEntry{
			Symbol:     symbol,
			TotalScore: *total,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].Symbol < entries[j].Symbol
	})

	for i := range entries {
		entries[i].Rank = i + 1
		if prior, ok := priorRanks[entries[i].Symbol]; ok {
			delta := prior - entries[i].Rank
			entries[i].DeltaRank = &delta
		}
	}

	return entries
}
