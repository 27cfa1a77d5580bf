package reliability

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geoeco/tracker/internal/database"
	"github.com/geoeco/tracker/internal/modules/forecast"
	"github.com/geoeco/tracker/internal/modules/sites"
	"github.com/geoeco/tracker/internal/modules/timeseries"
	"github.com/geoeco/tracker/internal/regions"
	testingpkg "github.com/geoeco/tracker/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type fixture struct {
	service *SnapshotService
	core    *database.DB
	store   *memoryStore
	dir     string
	siteIDs []int64
}

func setupSnapshot(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)

	core, cleanupCore := testingpkg.NewTestDB(t, database.NameCore)
	t.Cleanup(cleanupCore)
	fdb, cleanupForecasts := testingpkg.NewTestDB(t, database.NameForecasts)
	t.Cleanup(cleanupForecasts)

	testingpkg.InsertMinerals(t, core.Conn())
	f := &fixture{core: core, store: newMemoryStore(), dir: t.TempDir()}
	for _, s := range testingpkg.NewSiteFixtures() {
		id := testingpkg.InsertSite(t, core.Conn(), s)
		f.siteIDs = append(f.siteIDs, id)
		testingpkg.InsertProduction(t, core.Conn(), id, 2022, 100, 110, 120)
	}
	first := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	testingpkg.InsertMonthlyReadings(t, core.Conn(), f.siteIDs[0], first, 4, func(i int) (float64, float64, float64) {
		return 50, 700, 60
	})

	forecasts := forecast.NewRepository(fdb.Conn(), log)
	require.NoError(t, forecasts.ReplaceForSite(context.Background(), f.siteIDs[0],
		[]forecast.ProductionForecast{{SiteID: f.siteIDs[0], Year: 2025, Quantity: 130, Method: forecast.MethodETS, RunID: "r1", CreatedAt: first}},
		nil))

	f.service = NewSnapshotService(
		sites.NewRepository(core.Conn(), regions.Oman(), log),
		timeseries.NewRepository(core.Conn(), log),
		forecasts,
		f.store,
		f.dir,
		log,
	)
	f.service.now = func() time.Time { return time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC) }
	return f
}

func TestBuild_GathersEverything(t *testing.T) {
	f := setupSnapshot(t)

	snap, err := f.service.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Len(t, snap.Sites, 3)
	assert.Len(t, snap.Production, 9)
	assert.Len(t, snap.Environment, 4)
	assert.Len(t, snap.ProductionForecasts, 1)
	assert.Empty(t, snap.EnvironmentForecasts)
}

func TestEncodeDecode_PreservesContent(t *testing.T) {
	f := setupSnapshot(t)
	snap, err := f.service.Build(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, snap))
	got, err := Decode(&buf)
	require.NoError(t, err)

	require.Len(t, got.Sites, len(snap.Sites))
	for i := range snap.Sites {
		assert.Equal(t, snap.Sites[i].Name, got.Sites[i].Name)
		assert.Equal(t, snap.Sites[i].Lat, got.Sites[i].Lat)
		assert.Equal(t, snap.Sites[i].Band, got.Sites[i].Band)
	}
	assert.Equal(t, snap.Production, got.Production)
	assert.True(t, snap.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, 130.0, got.ProductionForecasts[0].Quantity)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode(strings.NewReader("not a snapshot"))
	assert.Error(t, err)
}

func TestWriteLocal_WritesNamedFile(t *testing.T) {
	f := setupSnapshot(t)

	path, err := f.service.WriteLocal(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "geoeco-snapshot-2025-03-10-123000.msgpack.gz"), path)
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	snap, err := Decode(file)
	require.NoError(t, err)
	assert.Len(t, snap.Sites, 3)

	local, err := f.service.LocalSnapshots()
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.Equal(t, filepath.Base(path), local[0].Filename)
}

func TestUploadListRotate(t *testing.T) {
	f := setupSnapshot(t)
	ctx := context.Background()

	key, err := f.service.Upload(ctx, "backups/")
	require.NoError(t, err)
	assert.Equal(t, "backups/geoeco-snapshot-2025-03-10-123000.msgpack.gz", key)

	// Older snapshots plus an unrelated object
	for _, day := range []int{1, 2, 3} {
		ts := time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC)
		require.NoError(t, f.store.Upload(ctx, "backups/"+Filename(ts), strings.NewReader("x")))
	}
	require.NoError(t, f.store.Upload(ctx, "backups/geoeco-snapshot-notes.txt", strings.NewReader("x")))

	list, err := f.service.List(ctx, "backups/")
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, key, list[0].Filename)
	assert.Equal(t, int64(0), list[0].AgeHours)

	deleted, err := f.service.Rotate(ctx, "backups/", 30, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	list, err = f.service.List(ctx, "backups/")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestUpload_NotConfigured(t *testing.T) {
	f := setupSnapshot(t)
	f.service.store = nil

	_, err := f.service.Upload(context.Background(), "")
	assert.Error(t, err)
	assert.False(t, f.service.RemoteEnabled())
}

func TestParseFilename(t *testing.T) {
	ts := time.Date(2025, time.July, 4, 9, 8, 7, 0, time.UTC)

	got, ok := ParseFilename("prefix/" + Filename(ts))
	require.True(t, ok)
	assert.True(t, ts.Equal(got))

	_, ok = ParseFilename("geoeco-snapshot-yesterday.msgpack.gz")
	assert.False(t, ok)
	_, ok = ParseFilename("other.tar.gz")
	assert.False(t, ok)
}
