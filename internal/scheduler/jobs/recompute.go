package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/quantrank/internal/contracts"
	"github.com/wonny/quantrank/internal/engine"
	"github.com/wonny/quantrank/internal/scheduler"
	"github.com/wonny/quantrank/pkg/logger"
)

// RecomputeJob recomputes one market's daily ranking. Each market gets its
// own job so a slow or failing market never blocks the others.
type RecomputeJob struct {
	orchestrator *engine.Orchestrator
	market       string
	schedule     string
	logger       *logger.Logger
}

// NewRecomputeJob creates a recompute job for one market.
func NewRecomputeJob(orch *engine.Orchestrator, market, schedule string, log *logger.Logger) *RecomputeJob {
	return &RecomputeJob{
		orchestrator: orch,
		market:       market,
		schedule:     schedule,
		logger:       log,
	}
}

// Name returns the job name
func (j *RecomputeJob) Name() string {
	return fmt.Sprintf("recompute_%s", strings.ToLower(j.market))
}

// Schedule returns the cron schedule expression
func (j *RecomputeJob) Schedule() string {
	return j.schedule
}

// Run executes the recompute for today. An already-running recompute is a
// skip, not a failure.
func (j *RecomputeJob) Run(ctx context.Context) error {
	day := contracts.DayOf(time.Now())

	result, err := j.orchestrator.Recompute(ctx, j.market, day)
	if errors.Is(err, engine.ErrAlreadyRunning) {
		j.logger.WithField("market", j.market).Info("Recompute already in flight, skipping")
		return scheduler.ErrSkipped
	}
	if err != nil {
		return fmt.Errorf("recompute %s: %w", j.market, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"market":   j.market,
		"day":      day.String(),
		"ranked":   result.RankedCount,
		"degraded": len(result.DegradedFactors),
	}).Info("Scheduled recompute finished")
	return nil
}
