// Package regions holds the static catalog of named polygons: the country
// boundary and the resource hotspots with their mineral affinities and sampling
// weights. A catalog is immutable once built and safe for concurrent use.
package regions

import (
	"fmt"

	"github.com/geoeco/tracker/internal/domain"
	"github.com/geoeco/tracker/internal/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Region is a named hotspot polygon.
type Region struct {
	Name       string
	Polygon    geo.Polygon
	Weight     float64
	Categories domain.CategorySet
}

// BBox returns the region's bounding box.
func (r Region) BBox() geo.BBox {
	return geo.BoundingBox(r.Polygon)
}

// Catalog is an ordered set of regions plus the country boundary.
type Catalog struct {
	regions  []Region
	byName   map[string]int
	boundary []geo.Polygon
}

// NewCatalog builds a catalog. Region order is preserved for every query.
func NewCatalog(boundary []geo.Polygon, regions []Region) (*Catalog, error) {
	c := &Catalog{
		regions:  make([]Region, len(regions)),
		byName:   make(map[string]int, len(regions)),
		boundary: make([]geo.Polygon, len(boundary)),
	}
	copy(c.boundary, boundary)

	for i, r := range regions {
		if r.Name == "" {
			return nil, fmt.Errorf("region %d has no name", i)
		}
		if _, dup := c.byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate region %q", r.Name)
		}
		if len(r.Polygon) < 4 {
			return nil, fmt.Errorf("region %q: polygon needs at least 4 points, got %d", r.Name, len(r.Polygon))
		}
		if r.Weight < 0 {
			return nil, fmt.Errorf("region %q: negative weight %v", r.Name, r.Weight)
		}
		c.regions[i] = r
		c.byName[r.Name] = i
	}
	return c, nil
}

// Regions returns every region in catalog order.
func (c *Catalog) Regions() []Region {
	out := make([]Region, len(c.regions))
	copy(out, c.regions)
	return out
}

// Lookup finds a region by name.
func (c *Catalog) Lookup(name string) (Region, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Region{}, false
	}
	return c.regions[i], true
}

// RegionsForCategory returns the regions associated with category, in catalog order.
func (c *Catalog) RegionsForCategory(category domain.Category) []Region {
	var out []Region
	for _, r := range c.regions {
		if r.Categories.Has(category) {
			out = append(out, r)
		}
	}
	return out
}

// Boundary returns the polygons whose union is the country's landmass.
func (c *Catalog) Boundary() []geo.Polygon {
	out := make([]geo.Polygon, len(c.boundary))
	copy(out, c.boundary)
	return out
}

// PointInCountry reports whether the point lies inside at least one boundary polygon.
func (c *Catalog) PointInCountry(lat, lon float64) bool {
	for _, poly := range c.boundary {
		if geo.PointInPolygon(lat, lon, poly) {
			return true
		}
	}
	return false
}

// Extent returns the bounding box covering the boundary and every region.
func (c *Catalog) Extent() geo.BBox {
	var b orb.Bound
	first := true
	add := func(p geo.Polygon) {
		if len(p) == 0 {
			return
		}
		rb := p.Ring().Bound()
		if first {
			b = rb
			first = false
			return
		}
		b = b.Union(rb)
	}
	for _, p := range c.boundary {
		add(p)
	}
	for _, r := range c.regions {
		add(r.Polygon)
	}
	return geo.BBox{MinLat: b.Min.Lat(), MaxLat: b.Max.Lat(), MinLon: b.Min.Lon(), MaxLon: b.Max.Lon()}
}

// FeatureCollection exports the boundary and hotspots as GeoJSON. Boundary
// features carry kind=boundary; hotspots carry kind=hotspot, their weight and
// minerals.
func (c *Catalog) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, poly := range c.boundary {
		f := geojson.NewFeature(orb.Polygon{poly.Ring()})
		f.Properties["kind"] = "boundary"
		f.Properties["index"] = i
		fc.Append(f)
	}

	for _, r := range c.regions {
		minerals := make([]string, len(r.Categories))
		for i, m := range r.Categories {
			minerals[i] = string(m)
		}
		f := geojson.NewFeature(orb.Polygon{r.Polygon.Ring()})
		f.ID = r.Name
		f.Properties["kind"] = "hotspot"
		f.Properties["name"] = r.Name
		f.Properties["weight"] = r.Weight
		f.Properties["minerals"] = minerals
		fc.Append(f)
	}

	return fc
}
