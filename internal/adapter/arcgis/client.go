// Package arcgis queries the ArcGIS feature services that publish the MODIS
// and VIIRS thermal-anomaly products.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// Fetcher retrieves a URL, retrying as it sees fit.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client queries one feature-service endpoint per hotspot source.
type Client struct {
	fetcher Fetcher
	urls    map[domain.Source]string
}

// NewClient creates a client for the given per-source query endpoints.
func NewClient(fetcher Fetcher, urls map[domain.Source]string) *Client {
	return &Client{fetcher: fetcher, urls: urls}
}

// Detections returns every point feature of source intersecting bbox and
// acquired within window.
func (c *Client) Detections(ctx context.Context, source domain.Source, bbox orb.Bound, window domain.TimeWindow) ([]domain.RawDetection, error) {
	endpoint, ok := c.urls[source]
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("no endpoint for source %s", source)
	}
	u, err := QueryURL(endpoint, bbox, window)
	if err != nil {
		return nil, err
	}

	body, err := c.fetcher.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s features: %w", source, err)
	}

	out := make([]domain.RawDetection, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		out = append(out, domain.RawDetection{
			Source:     source,
			Point:      pt,
			Properties: map[string]any(f.Properties),
		})
	}
	return out, nil
}

type envelope struct {
	XMin             float64          `json:"xmin"`
	YMin             float64          `json:"ymin"`
	XMax             float64          `json:"xmax"`
	YMax             float64          `json:"ymax"`
	SpatialReference spatialReference `json:"spatialReference"`
}

type spatialReference struct {
	WKID int `json:"wkid"`
}

// QueryURL builds a GeoJSON feature query for bbox (WGS 84) and window
// (epoch milliseconds) against a FeatureServer layer's query endpoint.
func QueryURL(endpoint string, bbox orb.Bound, window domain.TimeWindow) (string, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	geom, err := json.Marshal(envelope{
		XMin:             bbox.Min.Lon(),
		YMin:             bbox.Min.Lat(),
		XMax:             bbox.Max.Lon(),
		YMax:             bbox.Max.Lat(),
		SpatialReference: spatialReference{WKID: 4326},
	})
	if err != nil {
		return "", err
	}

	q := base.Query()
	q.Set("where", "1=1")
	q.Set("returnGeometry", "true")
	q.Set("time", strconv.FormatInt(window.Start.UnixMilli(), 10)+", "+strconv.FormatInt(window.End.UnixMilli(), 10))
	q.Set("outSR", "4326")
	q.Set("inSR", "4326")
	q.Set("outFields", "*")
	q.Set("geometry", string(geom))
	q.Set("geometryType", "esriGeometryEnvelope")
	q.Set("spatialRel", "esriSpatialRelIntersects")
	q.Set("f", "geojson")
	base.RawQuery = q.Encode()
	return base.String(), nil
}
