package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hxzfactors/internal/modules/factors"
)

// Recomputer runs the workbook -> pipeline -> store cycle
type Recomputer interface {
	Recompute(ctx context.Context, workbook string) (*factors.RunRecord, error)
}

// RecomputeJob recomputes the factor series from the configured workbook
type RecomputeJob struct {
	recomputer Recomputer
	workbook   string
	timeout    time.Duration
	log        zerolog.Logger
}

// NewRecomputeJob creates the recompute job; a zero timeout means 10 minutes
func NewRecomputeJob(recomputer Recomputer, workbook string, timeout time.Duration, log zerolog.Logger) *RecomputeJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &RecomputeJob{
		recomputer: recomputer,
		workbook:   workbook,
		timeout:    timeout,
		log:        log.With().Str("job", "factor_recompute").Logger(),
	}
}

// Name returns the job name
func (j *RecomputeJob) Name() string {
	return "factor_recompute"
}

// Run executes one recompute. A run already in progress is not an error.
func (j *RecomputeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	rec, err := j.recomputer.Recompute(ctx, j.workbook)
	if errors.Is(err, factors.ErrRecomputeInProgress) {
		j.log.Warn().Msg("Skipping scheduled recompute, previous run still active")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().Str("run_id", rec.ID).Msg("Scheduled recompute stored")
	return nil
}
