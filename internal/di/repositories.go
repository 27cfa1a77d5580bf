package di

import (
	"fmt"

	"github.com/geoeco/tracker/internal/admin"
	"github.com/geoeco/tracker/internal/modules/forecast"
	"github.com/geoeco/tracker/internal/modules/sites"
	"github.com/geoeco/tracker/internal/modules/timeseries"
	"github.com/geoeco/tracker/internal/regions"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates reference data and repositories
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.CoreDB == nil || container.ForecastsDB == nil {
		return fmt.Errorf("databases must be initialized first")
	}

	container.Catalog = regions.Oman()
	container.Resolver = admin.Oman()

	container.SiteRepo = sites.NewRepository(container.CoreDB.Conn(), container.Catalog, log)
	container.SeriesRepo = timeseries.NewRepository(container.CoreDB.Conn(), log)
	container.ForecastRepo = forecast.NewRepository(container.ForecastsDB.Conn(), log)

	log.Info().Msg("Repositories initialized")
	return nil
}
