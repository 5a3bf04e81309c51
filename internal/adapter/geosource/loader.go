// Package geosource loads GeoJSON reference documents (boundaries and
// administrative units) from disk or over HTTP.
package geosource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Fetcher retrieves a URL, retrying as it sees fit.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Loader reads GeoJSON documents from file paths or http(s) URLs.
type Loader struct {
	fetcher Fetcher
}

// NewLoader creates a loader. A nil fetcher restricts it to local files.
func NewLoader(fetcher Fetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Load reads src and normalizes it to a FeatureCollection.
func (l *Loader) Load(ctx context.Context, src string) (*geojson.FeatureCollection, error) {
	data, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}
	fc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}
	return fc, nil
}

func (l *Loader) read(ctx context.Context, src string) ([]byte, error) {
	if isURL(src) {
		if l.fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for %s", src)
		}
		return l.fetcher.Get(ctx, src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return data, nil
}

func isURL(src string) bool {
	s := strings.ToLower(src)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Decode accepts a FeatureCollection, a single Feature, a bare geometry or a
// GeometryCollection. Each member of a GeometryCollection becomes its own
// feature without properties.
func Decode(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case "FeatureCollection":
		return geojson.UnmarshalFeatureCollection(data)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	case "":
		return nil, fmt.Errorf("missing GeoJSON type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		geom := g.Geometry()
		if coll, ok := geom.(orb.Collection); ok {
			for _, member := range coll {
				fc.Append(geojson.NewFeature(member))
			}
			return fc, nil
		}
		fc.Append(geojson.NewFeature(geom))
		return fc, nil
	}
}
