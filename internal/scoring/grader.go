package scoring

import (
	"fmt"
	"sort"
)

// GradeBucket maps a minimum total score to a letter grade.
type GradeBucket struct {
	Grade string
	Min   float64
}

// Grader maps total scores to letter grades through an ordered threshold
// table. The lowest bucket catches everything below the other minimums.
type Grader struct {
	buckets []GradeBucket // descending by Min
}

// DefaultGradeBuckets returns equal 20-point buckets.
func DefaultGradeBuckets() []GradeBucket {
	return []GradeBucket{
		{Grade: "A", Min: 80},
		{Grade: "B", Min: 60},
		{Grade: "C", Min: 40},
		{Grade: "D", Min: 20},
		{Grade: "F", Min: 0},
	}
}

// NewGrader creates a grader from a threshold table.
func NewGrader(buckets []GradeBucket) (*Grader, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("grade table must not be empty")
	}

	sorted := make([]GradeBucket, len(buckets))
	copy(sorted, buckets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Min > sorted[j].Min
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Min == sorted[i-1].Min {
			return nil, fmt.Errorf("duplicate grade threshold %.2f", sorted[i].Min)
		}
	}

	return &Grader{buckets: sorted}, nil
}

// Grade returns the letter grade for a total score, or nil for a nil
// total. Scores below every threshold fall into the lowest bucket.
func (g *Grader) Grade(totalScore *float64) *string {
	if totalScore == nil {
		return nil
	}

	for _, b := range g.buckets {
		if *totalScore >= b.Min {
			grade := b.Grade
			return &grade
		}
	}

	grade := g.buckets[len(g.buckets)-1].Grade
	return &grade
}
