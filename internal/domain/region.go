package domain

import (
	"sort"

	"github.com/paulmach/orb"
)

// Fallback region names for observations outside every boundary.
const (
	FallbackContinent = "Ocean"
	FallbackCountry   = "Unknown"
)

// RegionKey identifies the bucket an observation belongs to. With a
// multi-feature boundary Continent/Country come from the matching feature;
// with a single boundary feature only Binary and Inside are meaningful.
type RegionKey struct {
	Continent string `json:"continent,omitempty"`
	Country   string `json:"country,omitempty"`
	Binary    bool   `json:"binary,omitempty"`
	Inside    bool   `json:"inside,omitempty"`
}

// FallbackRegion is assigned when no boundary feature contains the point.
func FallbackRegion(binary bool) RegionKey {
	if binary {
		return RegionKey{Binary: true, Inside: false}
	}
	return RegionKey{Continent: FallbackContinent, Country: FallbackCountry}
}

// IsFallback reports whether the key is the no-match bucket.
func (k RegionKey) IsFallback() bool {
	if k.Binary {
		return !k.Inside
	}
	return k.Continent == FallbackContinent && k.Country == FallbackCountry
}

// String renders the key for logs and output file names.
func (k RegionKey) String() string {
	if k.Binary {
		if k.Inside {
			return "inside"
		}
		return "outside"
	}
	return k.Continent + "/" + k.Country
}

// BurntArea is the reconstructed burnt footprint of one region.
type BurntArea struct {
	Polygons orb.MultiPolygon `json:"-"`
	AreaKm2  float64          `json:"area_km2"`
	Clusters int              `json:"clusters"`
}

// RegionBucket collects the observations of one region for a single run.
type RegionBucket struct {
	Key          RegionKey
	Observations []Observation
	Area         *BurntArea
}

// Points returns the observation locations in bucket order.
func (b *RegionBucket) Points() []orb.Point {
	pts := make([]orb.Point, len(b.Observations))
	for i, o := range b.Observations {
		pts[i] = o.Point()
	}
	return pts
}

// Regions maps each key to its bucket.
type Regions map[RegionKey]*RegionBucket

// Add appends obs to the bucket for key, creating the bucket on first use.
func (r Regions) Add(key RegionKey, obs Observation) {
	b, ok := r[key]
	if !ok {
		b = &RegionBucket{Key: key}
		r[key] = b
	}
	b.Observations = append(b.Observations, obs)
}

// Total returns the number of observations across every bucket.
func (r Regions) Total() int {
	n := 0
	for _, b := range r {
		n += len(b.Observations)
	}
	return n
}

// Sorted returns the buckets ordered by key string, fallback last.
func (r Regions) Sorted() []*RegionBucket {
	out := make([]*RegionBucket, 0, len(r))
	for _, b := range r {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		fi, fj := out[i].Key.IsFallback(), out[j].Key.IsFallback()
		if fi != fj {
			return fj
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}
