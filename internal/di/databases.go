package di

import (
	"fmt"

	"github.com/geoeco/tracker/internal/config"
	"github.com/geoeco/tracker/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// core.db - registry and observed history
	coreDB, err := database.New(database.Config{
		Path:    cfg.CoreDBPath(),
		Profile: database.ProfileStandard,
		Name:    database.NameCore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize core database: %w", err)
	}
	container.CoreDB = coreDB

	// forecasts.db - recomputable, so it runs on the fast profile
	forecastsDB, err := database.New(database.Config{
		Path:    cfg.ForecastsDBPath(),
		Profile: database.ProfileCache,
		Name:    database.NameForecasts,
	})
	if err != nil {
		coreDB.Close()
		return nil, fmt.Errorf("failed to initialize forecasts database: %w", err)
	}
	container.ForecastsDB = forecastsDB

	for _, db := range []*database.DB{coreDB, forecastsDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized and schemas applied")

	return container, nil
}
