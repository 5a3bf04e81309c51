package domain

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acqMillis = 1760870400000 // 2025-10-19T10:40:00Z

func TestNormalize(t *testing.T) {
	acquired := time.UnixMilli(acqMillis).UTC()

	t.Run("MODIS feature", func(t *testing.T) {
		raw := RawDetection{
			Source: SourceMODIS,
			Point:  orb.Point{-8.12, 40.31},
			Properties: map[string]any{
				"BRIGHTNESS": 331.4,
				"ACQ_DATE":   float64(acqMillis),
				"SATELLITE":  "A",
				"CONFIDENCE": 87.0,
				"DAYNIGHT":   "D",
				"FRP":        21.3,
			},
		}
		obs, err := Normalize(raw, nil)

		require.NoError(t, err)
		assert.Equal(t, SourceMODIS, obs.Source)
		assert.Equal(t, -8.12, obs.Longitude)
		assert.Equal(t, 40.31, obs.Latitude)
		assert.Equal(t, 331.4, obs.Brightness)
		assert.Equal(t, acquired, obs.AcquiredAt)
		assert.Equal(t, Satellite{Code: "A", Label: "Aqua"}, obs.Satellite)
		require.NotNil(t, obs.Confidence.Value)
		assert.Equal(t, 87.0, *obs.Confidence.Value)
		assert.Empty(t, obs.Confidence.Level)
		assert.Equal(t, "87", obs.Confidence.Label)
		assert.Equal(t, Day, obs.DayNight)
		assert.Equal(t, "Day", obs.DayNightLabel)
		assert.Equal(t, 21.3, obs.RadiativePower)
	})

	t.Run("VIIRS feature", func(t *testing.T) {
		raw := RawDetection{
			Source: SourceVIIRS,
			Point:  orb.Point{-7.9, 41.2},
			Properties: map[string]any{
				"bright_ti4": 367.0,
				"acq_time":   float64(acqMillis),
				"satellite":  "N",
				"confidence": "high",
				"daynight":   "N",
				"frp":        4.1,
			},
		}
		obs, err := Normalize(raw, NewLabeler("pt"))

		require.NoError(t, err)
		assert.Equal(t, 367.0, obs.Brightness)
		assert.Equal(t, acquired, obs.AcquiredAt)
		assert.Equal(t, "Suomi NPP", obs.Satellite.Label)
		assert.Equal(t, ConfidenceHigh, obs.Confidence.Level)
		assert.Equal(t, "Alta", obs.Confidence.Label)
		assert.Nil(t, obs.Confidence.Value)
		assert.Equal(t, Night, obs.DayNight)
		assert.Equal(t, "Noite", obs.DayNightLabel)
	})

	t.Run("capitalized name wins over generic", func(t *testing.T) {
		raw := RawDetection{
			Source:     SourceMODIS,
			Point:      orb.Point{0, 0},
			Properties: map[string]any{"BRIGHTNESS": 300.0, "brightness": 999.0},
		}
		obs, err := Normalize(raw, nil)

		require.NoError(t, err)
		assert.Equal(t, 300.0, obs.Brightness)
	})

	t.Run("generic name used when specific is empty", func(t *testing.T) {
		raw := RawDetection{
			Source:     SourceVIIRS,
			Point:      orb.Point{0, 0},
			Properties: map[string]any{"BRIGHT_TI4": "", "bright_ti4": "345.5"},
		}
		obs, err := Normalize(raw, nil)

		require.NoError(t, err)
		assert.Equal(t, 345.5, obs.Brightness)
	})

	t.Run("single-letter confidence", func(t *testing.T) {
		raw := RawDetection{
			Source:     SourceVIIRS,
			Point:      orb.Point{0, 0},
			Properties: map[string]any{"confidence": "n"},
		}
		obs, err := Normalize(raw, nil)

		require.NoError(t, err)
		assert.Equal(t, ConfidenceNominal, obs.Confidence.Level)
		assert.Equal(t, "Nominal", obs.Confidence.Label)
	})

	t.Run("unknown satellite code kept as label", func(t *testing.T) {
		raw := RawDetection{
			Source:     SourceVIIRS,
			Point:      orb.Point{0, 0},
			Properties: map[string]any{"satellite": "X9"},
		}
		obs, err := Normalize(raw, nil)

		require.NoError(t, err)
		assert.Equal(t, Satellite{Code: "X9", Label: "X9"}, obs.Satellite)
	})

	t.Run("string date", func(t *testing.T) {
		raw := RawDetection{
			Source:     SourceMODIS,
			Point:      orb.Point{0, 0},
			Properties: map[string]any{"acq_date": "2025-10-19"},
		}
		obs, err := Normalize(raw, nil)

		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 10, 19, 0, 0, 0, 0, time.UTC), obs.AcquiredAt)
	})

	t.Run("missing attributes yield zero values", func(t *testing.T) {
		obs, err := Normalize(RawDetection{Source: SourceMODIS, Point: orb.Point{1, 2}}, nil)

		require.NoError(t, err)
		assert.Zero(t, obs.Brightness)
		assert.True(t, obs.AcquiredAt.IsZero())
		assert.Empty(t, obs.DayNight)
		assert.Empty(t, obs.DayNightLabel)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := Normalize(RawDetection{Source: "goes", Point: orb.Point{0, 0}}, nil)
		assert.Error(t, err)
	})

	t.Run("invalid coordinate", func(t *testing.T) {
		_, err := Normalize(RawDetection{Source: SourceMODIS, Point: orb.Point{200, 0}}, nil)
		assert.Error(t, err)
	})
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource(" VIIRS ")
	require.NoError(t, err)
	assert.Equal(t, SourceVIIRS, src)

	_, err = ParseSource("goes")
	assert.Error(t, err)
}

func TestWindowEndingAt(t *testing.T) {
	end := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	w := WindowEndingAt(end, 2)

	assert.Equal(t, end, w.End)
	assert.Equal(t, int64(2*86_400_000), w.End.Sub(w.Start).Milliseconds())
}

func TestLabeler(t *testing.T) {
	tests := []struct {
		lang     string
		low      string
		night    string
		riskName string
	}{
		{"en", "Low", "Night", "Risk 2026-10-19"},
		{"pt", "Baixa", "Noite", "Risco 2026-10-19"},
		{"pt-PT", "Baixa", "Noite", "Risco 2026-10-19"},
		{"de", "Low", "Night", "Risk 2026-10-19"},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			l := NewLabeler(tt.lang)
			assert.Equal(t, tt.low, l.Confidence(ConfidenceLow))
			assert.Equal(t, tt.night, l.DayNight(Night))
			assert.Equal(t, tt.riskName, l.RiskLayer("2026-10-19"))
		})
	}

	var nilLabeler *Labeler
	assert.Equal(t, "High", nilLabeler.Confidence(ConfidenceHigh))
}
