package commands

import (
	"fmt"

	"github.com/wonny/quantrank/internal/rankconfig"
	"github.com/wonny/quantrank/internal/scoring"
	"github.com/wonny/quantrank/pkg/config"
)

// loadGrades reads grade buckets from the scoring config, falling back to
// the built-in defaults when the file has none.
func loadGrades(cfg *config.Config) ([]scoring.GradeBucket, error) {
	sc, err := rankconfig.Load(cfg.ScoringConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load scoring config: %w", err)
	}

	if len(sc.Grades) == 0 {
		return scoring.DefaultGradeBuckets(), nil
	}

	buckets := make([]scoring.GradeBucket, 0, len(sc.Grades))
	for _, g := range sc.Grades {
		buckets = append(buckets, scoring.GradeBucket{Grade: g.Grade, Min: g.Min})
	}
	return buckets, nil
}
