package timeseries

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/geoeco/tracker/internal/database"
	testingpkg "github.com/geoeco/tracker/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*Repository, *database.DB, []int64) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, database.NameCore)
	t.Cleanup(cleanup)

	testingpkg.InsertMinerals(t, db.Conn())
	var ids []int64
	for _, s := range testingpkg.NewSiteFixtures() {
		ids = append(ids, testingpkg.InsertSite(t, db.Conn(), s))
	}
	return NewRepository(db.Conn(), zerolog.New(nil).Level(zerolog.Disabled)), db, ids
}

func TestInsertProduction_UpsertsAndOrders(t *testing.T) {
	repo, _, ids := setupRepo(t)
	ctx := context.Background()

	err := repo.InsertProduction(ctx, nil, []ProductionPoint{
		{SiteID: ids[0], Year: 2024, Quantity: 30},
		{SiteID: ids[0], Year: 2022, Quantity: 10},
		{SiteID: ids[0], Year: 2023, Quantity: 20},
	})
	require.NoError(t, err)

	// Same key replaces the quantity
	require.NoError(t, repo.InsertProduction(ctx, nil, []ProductionPoint{{SiteID: ids[0], Year: 2024, Quantity: 35}}))

	history, err := repo.ProductionHistory(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int{2022, 2023, 2024}, []int{history[0].Year, history[1].Year, history[2].Year})
	assert.Equal(t, 35.0, history[2].Quantity)
}

func TestInsertProduction_RejectsNegative(t *testing.T) {
	repo, _, ids := setupRepo(t)

	err := repo.InsertProduction(context.Background(), nil, []ProductionPoint{{SiteID: ids[0], Year: 2024, Quantity: -1}})
	assert.Error(t, err)
}

func TestInsertProduction_JoinsTransaction(t *testing.T) {
	repo, db, ids := setupRepo(t)
	ctx := context.Background()

	err := database.WithTransactionContext(ctx, db.Conn(), func(tx *sql.Tx) error {
		if err := repo.InsertProduction(ctx, tx, []ProductionPoint{{SiteID: ids[1], Year: 2020, Quantity: 5}}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	history, err := repo.ProductionHistory(ctx, ids[1])
	require.NoError(t, err)
	assert.Empty(t, history, "rolled back with the transaction")
}

func TestEnvironment_HistoryAndLatest(t *testing.T) {
	repo, _, ids := setupRepo(t)
	ctx := context.Background()

	latest, err := repo.LatestEnvironment(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, latest)

	jan := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)
	readings := []EnvReading{
		{SiteID: ids[0], Date: jan.AddDate(0, 2, 0), AQI: 70, TDS: 800, Rehab: 40},
		{SiteID: ids[0], Date: jan, AQI: 60, TDS: 700, Rehab: 30},
		{SiteID: ids[0], Date: jan.AddDate(0, 1, 0), AQI: 65, TDS: 750, Rehab: 35},
	}
	require.NoError(t, repo.InsertEnvironment(ctx, nil, readings))

	history, err := repo.EnvironmentHistory(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].Date.Equal(jan))
	assert.Equal(t, 65.0, history[1].AQI)

	latest, err = repo.LatestEnvironment(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 70.0, latest.AQI)
	assert.Equal(t, "2024-03-03", latest.Date.Format("2006-01-02"))
}

func TestProductionTotalsByMineral(t *testing.T) {
	repo, _, ids := setupRepo(t)
	ctx := context.Background()

	year, err := repo.LatestYear(ctx)
	require.NoError(t, err)
	assert.Zero(t, year)

	require.NoError(t, repo.InsertProduction(ctx, nil, []ProductionPoint{
		{SiteID: ids[0], Year: 2024, Quantity: 1000},
		{SiteID: ids[1], Year: 2024, Quantity: 5000},
		{SiteID: ids[2], Year: 2024, Quantity: 12},
		{SiteID: ids[1], Year: 2023, Quantity: 4000},
	}))

	year, err = repo.LatestYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2024, year)

	totals, err := repo.ProductionTotalsByMineral(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, totals, 3)
	assert.Equal(t, "Gypsum", totals[0].Mineral)
	assert.Equal(t, 5000.0, totals[0].Quantity)
	assert.Equal(t, "Gold", totals[2].Mineral)
	assert.Equal(t, "kg", totals[2].Unit)

	production, environment, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, production)
	assert.Zero(t, environment)
}
