package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/hxzfactors/internal/config"
	"github.com/aristath/hxzfactors/internal/database"
)

// InitializeDatabases opens the results database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	factorsDB, err := database.New(database.Config{
		Path: cfg.DatabasePath(),
		Name: "factors",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize factors database: %w", err)
	}

	if err := factorsDB.Migrate(); err != nil {
		factorsDB.Close()
		return nil, fmt.Errorf("failed to migrate factors database: %w", err)
	}
	container.FactorsDB = factorsDB

	log.Info().Str("path", factorsDB.Path()).Msg("Factors database initialized")
	return container, nil
}
