// Package spatial classifies points against boundary polygons and rebuilds
// burnt-area footprints from clustered hotspots.
package spatial

import (
	"fmt"
	"slices"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// Property names tried, in order, for the country and continent of a
// boundary feature. Natural Earth uses ADMIN/CONTINENT; simpler country
// files carry only a name.
var (
	countryProps   = []string{"ADMIN", "name", "NAME", "country"}
	continentProps = []string{"CONTINENT", "continent"}
)

type boundaryFeature struct {
	continent string
	country   string
	geometry  orb.Geometry // orb.Polygon or orb.MultiPolygon
}

// BoundaryIndex answers point-in-region queries against a set of boundary
// polygons. Features are matched in document order and the first
// containing feature wins; the R-tree only narrows the candidates.
type BoundaryIndex struct {
	features []boundaryFeature
	tree     rtree.RTreeG[int]
	bound    orb.Bound
}

// NewBoundaryIndex indexes every polygonal feature of fc. Features with
// other geometry types are ignored. It returns domain.ErrNoBoundary when
// no polygonal feature remains.
func NewBoundaryIndex(fc *geojson.FeatureCollection) (*BoundaryIndex, error) {
	idx := &BoundaryIndex{}
	if fc == nil {
		return nil, domain.ErrNoBoundary
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		var geom orb.Geometry
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			geom = g
		case orb.MultiPolygon:
			geom = g
		default:
			continue
		}
		b := geom.Bound()
		i := len(idx.features)
		idx.features = append(idx.features, boundaryFeature{
			continent: stringProp(f.Properties, continentProps),
			country:   stringProp(f.Properties, countryProps),
			geometry:  geom,
		})
		idx.tree.Insert(b.Min, b.Max, i)
		if i == 0 {
			idx.bound = b
		} else {
			idx.bound = idx.bound.Union(b)
		}
	}
	if len(idx.features) == 0 {
		return nil, fmt.Errorf("boundary index: %w", domain.ErrNoBoundary)
	}
	return idx, nil
}

// Len returns the number of indexed features.
func (idx *BoundaryIndex) Len() int { return len(idx.features) }

// Binary reports whether the index holds a single boundary, in which case
// classification only distinguishes inside from outside.
func (idx *BoundaryIndex) Binary() bool { return len(idx.features) == 1 }

// Bound is the box enclosing every boundary feature.
func (idx *BoundaryIndex) Bound() orb.Bound { return idx.bound }

// Classify returns the region containing p, or the fallback region.
func (idx *BoundaryIndex) Classify(p orb.Point) domain.RegionKey {
	var candidates []int
	idx.tree.Search(p, p, func(_, _ [2]float64, i int) bool {
		candidates = append(candidates, i)
		return true
	})
	slices.Sort(candidates)

	for _, i := range candidates {
		f := idx.features[i]
		if !contains(f.geometry, p) {
			continue
		}
		if idx.Binary() {
			return domain.RegionKey{Binary: true, Inside: true}
		}
		return domain.RegionKey{Continent: f.continent, Country: f.country}
	}
	return domain.FallbackRegion(idx.Binary())
}

// Group assigns every observation to exactly one region bucket.
func (idx *BoundaryIndex) Group(observations []domain.Observation) domain.Regions {
	regions := domain.Regions{}
	for _, o := range observations {
		regions.Add(idx.Classify(o.Point()), o)
	}
	return regions
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	default:
		return false
	}
}

func stringProp(props geojson.Properties, names []string) string {
	for _, n := range names {
		if v, ok := props[n].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
