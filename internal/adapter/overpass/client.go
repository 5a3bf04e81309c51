// Package overpass resolves nearest settlements from OpenStreetMap place
// nodes through an Overpass API endpoint.
package overpass

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/serjvanilla/go-overpass"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

const provider = "overpass"

var countryTags = []string{"is_in:country", "addr:country", "country"}

// Client implements domain.PlaceResolver with an around-radius search for
// city, town and village nodes.
type Client struct {
	endpoint   string
	radiusKm   float64
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Overpass resolver searching radiusKm around each
// coordinate.
func NewClient(endpoint string, radiusKm float64, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &Client{
		endpoint:   endpoint,
		radiusKm:   radiusKm,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// NearestPlace returns the closest named settlement within the search
// radius, or an empty Place when there is none.
func (c *Client) NearestPlace(ctx context.Context, lat, lon float64) (domain.Place, error) {
	start := time.Now()
	result, err := c.query(ctx, placeQuery(lat, lon, c.radiusKm))
	c.metrics.PlaceAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.PlaceRequests.WithLabelValues(provider, "error").Inc()
		return domain.Place{}, fmt.Errorf("overpass query failed: %w", err)
	}

	place := nearest(result, orb.Point{lon, lat})
	if place.Name == "" {
		c.metrics.PlaceRequests.WithLabelValues(provider, "empty").Inc()
	} else {
		c.metrics.PlaceRequests.WithLabelValues(provider, "success").Inc()
	}
	c.logger.Debug("place resolved", "provider", provider, "candidates", len(result.Nodes), "place", place.Label())
	return place, nil
}

func (c *Client) query(ctx context.Context, q string) (overpass.Result, error) {
	client := overpass.NewWithSettings(c.endpoint, 1, contextPoster{ctx: ctx, client: c.httpClient})
	return client.Query(q)
}

func placeQuery(lat, lon, radiusKm float64) string {
	radius := int(math.Round(radiusKm * 1000))
	return fmt.Sprintf(`[out:json][timeout:25];
node["place"~"^(city|town|village)$"]["name"](around:%d,%.6f,%.6f);
out body;`, radius, lat, lon)
}

// nearest picks the named node closest to p. Ties keep the lowest node ID so
// the answer does not depend on map iteration order.
func nearest(result overpass.Result, p orb.Point) domain.Place {
	var (
		best     domain.Place
		bestID   int64
		bestDist = math.Inf(1)
	)
	for id, node := range result.Nodes {
		if node == nil || node.Tags["name"] == "" {
			continue
		}
		d := geo.Distance(p, orb.Point{node.Lon, node.Lat})
		if d > bestDist || (d == bestDist && id > bestID) {
			continue
		}
		bestDist, bestID = d, id
		best = domain.Place{
			Name:      node.Tags["name"],
			Country:   country(node.Tags),
			Latitude:  node.Lat,
			Longitude: node.Lon,
		}
	}
	return best
}

func country(tags map[string]string) string {
	for _, k := range countryTags {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return ""
}

// contextPoster satisfies overpass.HTTPClient, binding each form post to the
// caller's context.
type contextPoster struct {
	ctx    context.Context
	client *http.Client
}

func (d contextPoster) PostForm(endpoint string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return d.client.Do(req)
}
