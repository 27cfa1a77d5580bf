package reliability

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geoeco/tracker/internal/database"
	testingpkg "github.com/geoeco/tracker/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceJob_PrunesOldLocalSnapshots(t *testing.T) {
	f := setupSnapshot(t)

	for _, day := range []int{1, 2, 3, 4} {
		name := Filename(time.Date(2025, time.February, day, 0, 0, 0, 0, time.UTC))
		require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "keep-me.txt"), []byte("x"), 0644))

	job := NewMaintenanceJob(map[string]*database.DB{database.NameCore: f.core}, f.service, f.dir, 2, zerolog.Nop())
	assert.Equal(t, "maintenance", job.Name())
	require.NoError(t, job.Run())

	local, err := f.service.LocalSnapshots()
	require.NoError(t, err)
	require.Len(t, local, 2)
	assert.Equal(t, 4, local[0].Timestamp.Day())
	assert.Equal(t, 3, local[1].Timestamp.Day())
	assert.FileExists(t, filepath.Join(f.dir, "keep-me.txt"))
}

func TestMaintenanceJob_FailsOnClosedDatabase(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, database.NameCore)
	cleanup()

	job := NewMaintenanceJob(map[string]*database.DB{database.NameCore: db}, nil, t.TempDir(), 0, zerolog.Nop())
	assert.Error(t, job.Run())
}

func TestMaintenanceJob_HealthyDatabases(t *testing.T) {
	core, cleanupCore := testingpkg.NewTestDB(t, database.NameCore)
	defer cleanupCore()
	fdb, cleanupForecasts := testingpkg.NewTestDB(t, database.NameForecasts)
	defer cleanupForecasts()

	job := NewMaintenanceJob(map[string]*database.DB{
		database.NameCore:      core,
		database.NameForecasts: fdb,
	}, nil, t.TempDir(), 3, zerolog.Nop())

	assert.NoError(t, job.Run())
	assert.NoError(t, core.QuickCheck(context.Background()))
}
