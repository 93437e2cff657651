package scoring

import (
	"math"
	"sort"
)

// Normalizer converts raw per-symbol values into 0-100 percentile scores
// within a day's population. Ties receive the mean of the ranks they would
// occupy, so equal raw values always map to equal scores.
type Normalizer struct{}

// NewNormalizer creates a new normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize maps raw values to fractional-rank percentile scores.
// The population is the set of symbols with a usable (non-nil, finite) raw
// value. A nil raw value stays nil and consumes no rank slot. Populations
// of size zero or one yield nil for every symbol: a percentile is
// undefined without at least two observations.
func (n *Normalizer) Normalize(rawValues map[string]*float64, higherIsBetter bool) map[string]*float64 {
	scores := make(map[string]*float64, len(rawValues))
	for symbol := range rawValues {
		scores[symbol] = nil
	}

	type member struct {
		symbol string
		value  float64
	}
	population := make([]member, 0, len(rawValues))
	for symbol, v := range rawValues {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		population = append(population, member{symbol: symbol, value: *v})
	}

	size := len(population)
	if size <= 1 {
		return scores
	}

	// Ascending by goodness: index size-1 is the best symbol.
	sort.Slice(population, func(i, j int) bool {
		if higherIsBetter {
			return population[i].value < population[j].value
		}
		return population[i].value > population[j].value
	})

	// Average-rank over tie groups, rescaled so rank 1 -> 0 and rank size -> 100.
	for start := 0; start < size; {
		end := start + 1
		for end < size && population[end].value == population[start].value {
			end++
		}
		// Members start..end-1 occupy ranks start+1..end; all get the mean.
		avgRank := float64(start+1+end) / 2.0
		score := (avgRank - 1) / float64(size-1) * 100.0
		for i := start; i < end; i++ {
			s := score
			scores[population[i].symbol] = &s
		}
		start = end
	}

	return scores
}
