package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Source identifies a thermal-anomaly feed.
type Source string

const (
	SourceMODIS Source = "modis"
	SourceVIIRS Source = "viirs"
)

// AllSources lists every supported feed in query order.
var AllSources = []Source{SourceMODIS, SourceVIIRS}

// ParseSource accepts a feed name in any case.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceMODIS, SourceVIIRS:
		return src, nil
	default:
		return "", fmt.Errorf("unknown hotspot source %q", s)
	}
}

// DayNight records whether a detection was acquired during a day or night pass.
type DayNight string

const (
	Day   DayNight = "day"
	Night DayNight = "night"
)

// ConfidenceLevel is the categorical confidence reported by VIIRS-style feeds.
type ConfidenceLevel string

const (
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceNominal ConfidenceLevel = "nominal"
	ConfidenceHigh    ConfidenceLevel = "high"
)

// Confidence carries either a categorical level, a raw numeric value (MODIS
// reports 0-100), or both, plus a display label.
type Confidence struct {
	Level ConfidenceLevel `json:"level,omitempty"`
	Value *float64        `json:"value,omitempty"`
	Label string          `json:"label,omitempty"`
}

// Satellite pairs the feed's platform code with a human-readable name.
type Satellite struct {
	Code  string `json:"code,omitempty"`
	Label string `json:"label,omitempty"`
}

// RawDetection is one point feature as returned by a hotspot feed, before
// its attribute schema has been normalized.
type RawDetection struct {
	Source     Source
	Point      orb.Point
	Properties map[string]any
}

// Observation is a normalized thermal-anomaly detection. Values are never
// mutated in place; enrichment returns a modified copy.
type Observation struct {
	Source         Source     `json:"source"`
	Longitude      float64    `json:"longitude"`
	Latitude       float64    `json:"latitude"`
	Brightness     float64    `json:"brightness"`
	AcquiredAt     time.Time  `json:"acquired_at"`
	Satellite      Satellite  `json:"satellite"`
	Confidence     Confidence `json:"confidence"`
	DayNight       DayNight   `json:"day_night,omitempty"`
	DayNightLabel  string     `json:"day_night_label,omitempty"`
	RadiativePower float64    `json:"frp"`

	// Place enrichment fields.
	Place       string `json:"place,omitempty"`
	PlaceSource string `json:"place_source,omitempty"` // "resolver", "remote", "region", "failed"
}

// Point returns the observation location in orb's lon/lat order.
func (o Observation) Point() orb.Point {
	return orb.Point{o.Longitude, o.Latitude}
}

// TimeWindow is the closed acquisition interval queried from the feeds.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// WindowEndingAt returns [end - dayRange days, end].
func WindowEndingAt(end time.Time, dayRange int) TimeWindow {
	return TimeWindow{
		Start: end.Add(-time.Duration(dayRange) * 24 * time.Hour),
		End:   end,
	}
}
