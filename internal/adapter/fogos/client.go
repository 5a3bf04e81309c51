// Package fogos reads the active-incident and fire-risk forecast feeds.
package fogos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
)

// Fetcher retrieves a URL, retrying as it sees fit.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// ErrUnsuccessful is returned when a feed answers with success=false.
var ErrUnsuccessful = errors.New("feed reported failure")

// Client decodes the feed envelopes into domain values.
type Client struct {
	fetcher  Fetcher
	location *time.Location
}

// NewClient creates a client. Incident start times without an explicit
// offset are interpreted in loc (UTC when nil).
func NewClient(fetcher Fetcher, loc *time.Location) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{fetcher: fetcher, location: loc}
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func fetch[T any](ctx context.Context, f Fetcher, rawURL string) (T, error) {
	var zero T
	body, err := f.Get(ctx, rawURL)
	if err != nil {
		return zero, err
	}
	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "no message"
		}
		return zero, fmt.Errorf("%s: %w: %s", rawURL, ErrUnsuccessful, msg)
	}
	return env.Data, nil
}

// flexNumber accepts a JSON number, a numeric string or null.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*n = flexNumber(v)
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if string(b) == "null" {
		*s = ""
		return nil
	}
	*s = flexString(b)
	return nil
}

type incidentRecord struct {
	ID         flexString `json:"id"`
	Lat        flexNumber `json:"lat"`
	Lng        flexNumber `json:"lng"`
	Status     string     `json:"status"`
	StatusCode flexNumber `json:"statusCode"`
	Man        flexNumber `json:"man"`
	Terrain    flexNumber `json:"terrain"`
	Aerial     flexNumber `json:"aerial"`
	Important  bool       `json:"important"`
	District   string     `json:"district"`
	Concelho   string     `json:"concelho"`
	Freguesia  string     `json:"freguesia"`
	Natureza   string     `json:"natureza"`
	Date       string     `json:"date"`
	Hour       string     `json:"hour"`
}

// Incidents fetches the active-incident list.
func (c *Client) Incidents(ctx context.Context, rawURL string) ([]domain.Incident, error) {
	records, err := fetch[[]incidentRecord](ctx, c.fetcher, rawURL)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Incident, 0, len(records))
	for i := range records {
		out = append(out, c.toIncident(&records[i]))
	}
	return out, nil
}

func (c *Client) toIncident(r *incidentRecord) domain.Incident {
	return domain.Incident{
		ID:           string(r.ID),
		Latitude:     float64(r.Lat),
		Longitude:    float64(r.Lng),
		Status:       r.Status,
		StatusCode:   int(r.StatusCode),
		Personnel:    int(r.Man),
		GroundUnits:  int(r.Terrain),
		AerialUnits:  int(r.Aerial),
		Important:    r.Important,
		District:     r.District,
		Municipality: r.Concelho,
		Parish:       r.Freguesia,
		Nature:       r.Natureza,
		StartedAt:    c.startedAt(r.Date, r.Hour),
	}
}

var dateLayouts = []string{"02-01-2006", "2006-01-02", "02/01/2006"}

// startedAt combines the feed's date and hour fields. Unparseable values
// yield the zero time.
func (c *Client) startedAt(date, hour string) time.Time {
	date = strings.TrimSpace(date)
	hour = strings.TrimSpace(hour)
	if date == "" {
		return time.Time{}
	}
	if hour == "" {
		hour = "00:00"
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout+" 15:04", date+" "+hour, c.location); err == nil {
			return t
		}
	}
	return time.Time{}
}

type riskData struct {
	DataPrev string                   `json:"dataPrev"`
	Local    map[string]riskLocalUnit `json:"local"`
}

type riskLocalUnit struct {
	Data struct {
		RCM flexNumber `json:"rcm"`
	} `json:"data"`
}

// Risk fetches one forecast horizon.
func (c *Client) Risk(ctx context.Context, rawURL string) (domain.RiskForecast, error) {
	data, err := fetch[riskData](ctx, c.fetcher, rawURL)
	if err != nil {
		return domain.RiskForecast{}, err
	}
	classes := make(map[string]int, len(data.Local))
	for code, unit := range data.Local {
		classes[code] = int(unit.Data.RCM)
	}
	return domain.RiskForecast{Date: forecastDate(data.DataPrev), Classes: classes}, nil
}

// forecastDate reduces the feed's forecast timestamp to a calendar date,
// leaving unrecognized values as given.
func forecastDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
