package regions

import (
	"encoding/json"
	"testing"

	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(lat, lon, size float64) geo.Polygon {
	return geo.Polygon{
		{Lat: lat, Lon: lon},
		{Lat: lat, Lon: lon + size},
		{Lat: lat + size, Lon: lon + size},
		{Lat: lat + size, Lon: lon},
		{Lat: lat, Lon: lon},
	}
}

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name    string
		regions []Region
		wantErr string
	}{
		{"missing name", []Region{{Polygon: square(0, 0, 1)}}, "no name"},
		{"duplicate", []Region{{Name: "A", Polygon: square(0, 0, 1)}, {Name: "A", Polygon: square(1, 1, 1)}}, "duplicate"},
		{"short polygon", []Region{{Name: "A", Polygon: square(0, 0, 1)[:3]}}, "at least 4 points"},
		{"negative weight", []Region{{Name: "A", Polygon: square(0, 0, 1), Weight: -1}}, "negative weight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(nil, tt.regions)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCatalog_RegionsForCategory_PreservesOrder(t *testing.T) {
	c, err := NewCatalog(nil, []Region{
		{Name: "first", Polygon: square(0, 0, 1), Weight: 1, Categories: domain.CategorySet{domain.Gold}},
		{Name: "second", Polygon: square(1, 0, 1), Weight: 1, Categories: domain.CategorySet{domain.Copper}},
		{Name: "third", Polygon: square(2, 0, 1), Weight: 1, Categories: domain.CategorySet{domain.Copper, domain.Gold}},
	})
	require.NoError(t, err)

	gold := c.RegionsForCategory(domain.Gold)
	require.Len(t, gold, 2)
	assert.Equal(t, "first", gold[0].Name)
	assert.Equal(t, "third", gold[1].Name)

	assert.Empty(t, c.RegionsForCategory(domain.Gypsum))
}

func TestCatalog_RegionsReturnsCopy(t *testing.T) {
	c, err := NewCatalog(nil, []Region{{Name: "a", Polygon: square(0, 0, 1)}})
	require.NoError(t, err)

	rs := c.Regions()
	rs[0].Name = "mutated"

	r, ok := c.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a", r.Name)
	_, ok = c.Lookup("mutated")
	assert.False(t, ok)
}

func TestOman_Catalog(t *testing.T) {
	c := Oman()
	assert.Same(t, c, Oman(), "built once")

	names := make([]string, 0)
	for _, r := range c.Regions() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		SemailOphiolite, IbraChromite, YanqulGold, DhofarGypsum,
		DuqmCarbonates, SurLimestone, MusandamSmall,
	}, names)

	for _, r := range c.Regions() {
		require.GreaterOrEqual(t, len(r.Polygon), 4, r.Name)
		assert.Equal(t, r.Polygon[0], r.Polygon[len(r.Polygon)-1], "%s ring closed", r.Name)
	}
	for _, b := range c.Boundary() {
		assert.Equal(t, b[0], b[len(b)-1], "boundary ring closed")
	}

	copper := c.RegionsForCategory(domain.Copper)
	require.Len(t, copper, 2)
	assert.Equal(t, SemailOphiolite, copper[0].Name)
	assert.Equal(t, YanqulGold, copper[1].Name)

	assert.Empty(t, c.RegionsForCategory(domain.Manganese))

	dhofar, ok := c.Lookup(DhofarGypsum)
	require.True(t, ok)
	assert.Equal(t, 4.0, dhofar.Weight)
}

func TestOman_PointInCountry(t *testing.T) {
	c := Oman()

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"Muscat", 23.588, 58.407, true},
		{"Salalah", 17.019, 54.099, true},
		{"Khasab in Musandam", 26.25, 56.25, true},
		{"interior desert", 22.0, 56.5, true},
		{"Gulf of Oman", 24.0, 59.0, false},
		{"Arabian Sea", 15.5, 53.0, false},
		{"UAE", 25.5, 55.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.PointInCountry(tt.lat, tt.lon))
		})
	}
}

func TestOman_ExtentWithinBounds(t *testing.T) {
	e := Oman().Extent()

	assert.GreaterOrEqual(t, e.MinLat, OmanBounds.MinLat)
	assert.LessOrEqual(t, e.MaxLat, OmanBounds.MaxLat)
	assert.GreaterOrEqual(t, e.MinLon, OmanBounds.MinLon)
	assert.LessOrEqual(t, e.MaxLon, OmanBounds.MaxLon)
}

func TestCatalog_FeatureCollection(t *testing.T) {
	c := Oman()
	fc := c.FeatureCollection()

	require.Len(t, fc.Features, len(c.Boundary())+len(c.Regions()))

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FeatureCollection", decoded.Type)

	hotspots := 0
	for _, f := range decoded.Features {
		assert.Equal(t, "Polygon", f.Geometry.Type)
		if f.Properties["kind"] == "hotspot" {
			hotspots++
			assert.NotEmpty(t, f.Properties["minerals"])
		}
	}
	assert.Equal(t, len(c.Regions()), hotspots)
}
