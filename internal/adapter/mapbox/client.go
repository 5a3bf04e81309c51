// Package mapbox resolves nearest settlements with the Mapbox reverse
// geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
)

const (
	DefaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	provider       = "mapbox"
)

// Client implements domain.PlaceResolver using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox reverse geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: DefaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// NearestPlace returns the settlement containing or nearest to the
// coordinate. An empty Place means Mapbox matched nothing.
func (c *Client) NearestPlace(ctx context.Context, lat, lon float64) (domain.Place, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality"},
	}

	start := time.Now()
	place, err := c.doRequest(ctx, u+"?"+params.Encode())
	c.metrics.PlaceAPIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.PlaceRequests.WithLabelValues(provider, "error").Inc()
	case place.Name == "":
		c.metrics.PlaceRequests.WithLabelValues(provider, "empty").Inc()
	default:
		c.metrics.PlaceRequests.WithLabelValues(provider, "success").Inc()
	}
	return place, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Place{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Place{}, fmt.Errorf("reverse geocode request: %w", redact(err, c.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Place{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.Place{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return domain.Place{}, nil
	}

	f := mapboxResp.Features[0]
	place := domain.Place{Name: f.Text, Country: f.country()}
	if len(f.Center) == 2 {
		place.Longitude = f.Center[0]
		place.Latitude = f.Center[1]
	}
	c.logger.Debug("place resolved", "provider", provider, "place", place.Label())
	return place, nil
}

// redact strips the access token from transport errors, which echo the URL.
func redact(err error, token string) error {
	if token == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "REDACTED"))
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64      `json:"center"` // [lon, lat]
	PlaceName string         `json:"place_name"`
	Text      string         `json:"text"`
	Context   []contextEntry `json:"context"`
}

type contextEntry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// country picks the country entry from the feature's context hierarchy.
func (f feature) country() string {
	for _, c := range f.Context {
		if strings.HasPrefix(c.ID, "country.") {
			return c.Text
		}
	}
	return ""
}
