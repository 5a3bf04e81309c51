package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Schema lists, per canonical Observation field, the attribute names a feed
// may use. Names are tried in order: the source-specific capitalized name
// first, then the generic lowercase alternative.
type Schema struct {
	Brightness     []string
	AcquiredAt     []string
	Satellite      []string
	Confidence     []string
	DayNight       []string
	RadiativePower []string
}

// schemas is the normalization table for every supported feed.
var schemas = map[Source]Schema{
	SourceMODIS: {
		Brightness:     []string{"BRIGHTNESS", "brightness"},
		AcquiredAt:     []string{"ACQ_DATE", "acq_date"},
		Satellite:      []string{"SATELLITE", "satellite"},
		Confidence:     []string{"CONFIDENCE", "confidence"},
		DayNight:       []string{"DAYNIGHT", "daynight"},
		RadiativePower: []string{"FRP", "frp"},
	},
	SourceVIIRS: {
		Brightness:     []string{"BRIGHT_TI4", "bright_ti4"},
		AcquiredAt:     []string{"ACQ_TIME", "acq_time", "ACQ_DATE", "acq_date"},
		Satellite:      []string{"SATELLITE", "satellite"},
		Confidence:     []string{"CONFIDENCE", "confidence"},
		DayNight:       []string{"DAYNIGHT", "daynight"},
		RadiativePower: []string{"FRP", "frp"},
	},
}

// SchemaFor returns the normalization table entry for a feed.
func SchemaFor(source Source) (Schema, bool) {
	s, ok := schemas[source]
	return s, ok
}

// satelliteNames maps platform codes to display names. Codes not listed are
// shown as-is.
var satelliteNames = map[string]string{
	"A":   "Aqua",
	"T":   "Terra",
	"N":   "Suomi NPP",
	"1":   "NOAA-20",
	"N20": "NOAA-20",
	"2":   "NOAA-21",
	"N21": "NOAA-21",
}

// confidenceLevels accepts both spelled-out and FIRMS single-letter levels.
var confidenceLevels = map[string]ConfidenceLevel{
	"low":     ConfidenceLow,
	"l":       ConfidenceLow,
	"nominal": ConfidenceNominal,
	"n":       ConfidenceNominal,
	"high":    ConfidenceHigh,
	"h":       ConfidenceHigh,
}

// Normalize maps a raw feed feature onto the canonical Observation using the
// feed's schema. Labels come from the given Labeler.
func Normalize(raw RawDetection, labels *Labeler) (Observation, error) {
	schema, ok := schemas[raw.Source]
	if !ok {
		return Observation{}, fmt.Errorf("normalize: unknown source %q", raw.Source)
	}
	lon, lat := raw.Point[0], raw.Point[1]
	if !validCoordinate(lon, lat) {
		return Observation{}, fmt.Errorf("normalize: invalid coordinate (%g, %g)", lon, lat)
	}

	props := raw.Properties
	obs := Observation{
		Source:    raw.Source,
		Longitude: lon,
		Latitude:  lat,
	}
	obs.Brightness, _ = numberValue(lookup(props, schema.Brightness))
	obs.RadiativePower, _ = numberValue(lookup(props, schema.RadiativePower))
	obs.AcquiredAt = timeValue(lookup(props, schema.AcquiredAt))
	obs.Satellite = normalizeSatellite(lookup(props, schema.Satellite))
	obs.Confidence = normalizeConfidence(lookup(props, schema.Confidence), labels)
	obs.DayNight = normalizeDayNight(lookup(props, schema.DayNight))
	obs.DayNightLabel = labels.DayNight(obs.DayNight)
	return obs, nil
}

func validCoordinate(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// lookup returns the first non-empty attribute among names.
func lookup(props map[string]any, names []string) any {
	for _, name := range names {
		v, ok := props[name]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// timeValue accepts epoch milliseconds (ArcGIS date fields) or common
// string layouts. Unparseable values yield the zero time.
func timeValue(v any) time.Time {
	if ms, ok := numberValue(v); ok {
		return time.UnixMilli(int64(ms)).UTC()
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func normalizeSatellite(v any) Satellite {
	code := strings.TrimSpace(stringValue(v))
	if code == "" {
		return Satellite{}
	}
	if name, ok := satelliteNames[strings.ToUpper(code)]; ok {
		return Satellite{Code: code, Label: name}
	}
	return Satellite{Code: code, Label: code}
}

// normalizeConfidence maps categorical levels through the lookup table and
// keeps numeric values raw, labelled as-is.
func normalizeConfidence(v any, labels *Labeler) Confidence {
	if v == nil {
		return Confidence{}
	}
	if s, ok := v.(string); ok {
		if level, known := confidenceLevels[strings.ToLower(strings.TrimSpace(s))]; known {
			return Confidence{Level: level, Label: labels.Confidence(level)}
		}
	}
	if f, ok := numberValue(v); ok {
		return Confidence{Value: &f, Label: strconv.FormatFloat(f, 'f', -1, 64)}
	}
	return Confidence{Label: stringValue(v)}
}

func normalizeDayNight(v any) DayNight {
	switch strings.ToUpper(strings.TrimSpace(stringValue(v))) {
	case "D", "DAY":
		return Day
	case "N", "NIGHT":
		return Night
	default:
		return ""
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}
