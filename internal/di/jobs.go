package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/hxzfactors/internal/config"
	"github.com/aristath/hxzfactors/internal/scheduler"
)

// RegisterJobs creates the scheduler and registers the recompute job when a
// schedule is configured. The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)
	jobs := &JobInstances{}

	if cfg.RecomputeSchedule == "" {
		log.Info().Msg("No recompute schedule configured, recomputes are API-triggered only")
		return jobs, nil
	}

	jobs.Recompute = scheduler.NewRecomputeJob(container.Service, cfg.Workbook, 0, log)
	if err := container.Scheduler.AddJob(cfg.RecomputeSchedule, jobs.Recompute); err != nil {
		return nil, fmt.Errorf("failed to register recompute job: %w", err)
	}
	return jobs, nil
}
