// Package di provides dependency injection type definitions.
//
// The Container holds every long-lived dependency of the factor server and is
// the single place the entry point reads them from.
package di

import (
	"github.com/aristath/hxzfactors/internal/database"
	"github.com/aristath/hxzfactors/internal/modules/factors"
	"github.com/aristath/hxzfactors/internal/modules/ingest"
	"github.com/aristath/hxzfactors/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Database
	FactorsDB *database.DB

	// Repositories
	RunRepo *factors.Repository

	// Services
	Loader   *ingest.Loader
	Pipeline *factors.Pipeline
	Service  *factors.Service

	// Scheduling
	Scheduler *scheduler.Scheduler
}

// JobInstances holds references to registered jobs
type JobInstances struct {
	// Recompute is nil when no schedule is configured
	Recompute *scheduler.RecomputeJob
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.FactorsDB != nil {
		return c.FactorsDB.Close()
	}
	return nil
}
