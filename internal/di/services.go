package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/hxzfactors/internal/config"
	"github.com/aristath/hxzfactors/internal/modules/factors"
	"github.com/aristath/hxzfactors/internal/modules/ingest"
)

// InitializeServices builds the run repository, workbook loader, factor
// pipeline and recompute service on top of an initialized database
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.RunRepo = factors.NewRepository(container.FactorsDB.Conn(), log)
	container.Loader = ingest.NewLoader(cfg.IngestOptions(), log)
	container.Pipeline = factors.NewPipeline(cfg.PipelineOptions(), log)
	container.Service = factors.NewService(container.Loader, container.Pipeline, container.RunRepo, log)

	opts := container.Pipeline.Options()
	log.Info().
		Str("rebalance", string(opts.Classification.Cadence)).
		Str("absent_policy", string(opts.AbsentPolicy)).
		Int("fill_max_months", opts.Panel.MaxFillMonths).
		Int("workers", opts.Workers).
		Msg("Factor services initialized")
}
