package spatial

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

func square(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

func feature(g orb.Geometry, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties = props
	return f
}

func countries() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(square(-10, 36, -6, 42), geojson.Properties{"ADMIN": "Portugal", "CONTINENT": "Europe"}))
	// Overlaps Portugal's eastern edge; Portugal comes first in the document.
	fc.Append(feature(orb.MultiPolygon{square(-7, 36, 3, 44), square(2, 39, 4, 40)},
		geojson.Properties{"ADMIN": "Spain", "CONTINENT": "Europe"}))
	fc.Append(feature(square(-18, 27, -13, 29), geojson.Properties{"name": "Canarias"}))
	fc.Append(feature(orb.Point{0, 0}, geojson.Properties{"name": "ignored"}))
	return fc
}

func TestBoundaryIndex_Classify(t *testing.T) {
	idx, err := NewBoundaryIndex(countries())
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.False(t, idx.Binary())

	tests := []struct {
		name string
		pt   orb.Point
		want domain.RegionKey
	}{
		{"inside first feature", orb.Point{-8, 40}, domain.RegionKey{Continent: "Europe", Country: "Portugal"}},
		{"overlap resolves to first in document order", orb.Point{-6.5, 40}, domain.RegionKey{Continent: "Europe", Country: "Portugal"}},
		{"multipolygon second part", orb.Point{3.5, 39.5}, domain.RegionKey{Continent: "Europe", Country: "Spain"}},
		{"name-only feature", orb.Point{-15, 28}, domain.RegionKey{Country: "Canarias"}},
		{"in bounding box but outside polygon", orb.Point{3.5, 41}, domain.FallbackRegion(false)},
		{"open ocean", orb.Point{-30, 40}, domain.FallbackRegion(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.Classify(tt.pt))
		})
	}
}

func TestBoundaryIndex_Bound(t *testing.T) {
	idx, err := NewBoundaryIndex(countries())
	require.NoError(t, err)

	assert.Equal(t, orb.Bound{Min: orb.Point{-18, 27}, Max: orb.Point{4, 44}}, idx.Bound())
}

func TestBoundaryIndex_Binary(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(square(-10, 36, -6, 42), nil))

	idx, err := NewBoundaryIndex(fc)
	require.NoError(t, err)
	assert.True(t, idx.Binary())

	assert.Equal(t, domain.RegionKey{Binary: true, Inside: true}, idx.Classify(orb.Point{-8, 40}))
	assert.Equal(t, domain.RegionKey{Binary: true, Inside: false}, idx.Classify(orb.Point{0, 0}))
}

func TestBoundaryIndex_Empty(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(orb.LineString{{0, 0}, {1, 1}}, nil))

	_, err := NewBoundaryIndex(fc)
	assert.True(t, errors.Is(err, domain.ErrNoBoundary))

	_, err = NewBoundaryIndex(nil)
	assert.True(t, errors.Is(err, domain.ErrNoBoundary))
}

func TestBoundaryIndex_Group(t *testing.T) {
	idx, err := NewBoundaryIndex(countries())
	require.NoError(t, err)

	obs := []domain.Observation{
		{Longitude: -8, Latitude: 40},
		{Longitude: -8.5, Latitude: 39},
		{Longitude: 0, Latitude: 40},
		{Longitude: -30, Latitude: 40},
	}
	regions := idx.Group(obs)

	assert.Equal(t, len(obs), regions.Total(), "every observation gets exactly one key")
	assert.Len(t, regions[domain.RegionKey{Continent: "Europe", Country: "Portugal"}].Observations, 2)
	assert.Len(t, regions[domain.RegionKey{Continent: "Europe", Country: "Spain"}].Observations, 1)
	assert.Len(t, regions[domain.FallbackRegion(false)].Observations, 1)
}

func TestAdminUnits(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(square(0, 0, 1, 1), geojson.Properties{"DICO": "0101", "NAME_2": "Águeda"}))
	fc.Append(feature(square(1, 0, 2, 1), geojson.Properties{"DICO": 1102.0, "name": "Lisboa"}))
	fc.Append(feature(square(2, 0, 3, 1), geojson.Properties{"name": "no code"}))

	units, err := AdminUnits(fc)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "0101", units[0].Code)
	assert.Equal(t, "Águeda", units[0].Name)
	assert.Equal(t, "1102", units[1].Code)
	assert.Equal(t, "Lisboa", units[1].Name)

	_, err = AdminUnits(geojson.NewFeatureCollection())
	assert.True(t, errors.Is(err, domain.ErrNoBoundary))
}
