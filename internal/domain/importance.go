package domain

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// Incident is one active-fire record from the incident feed.
type Incident struct {
	ID           string    `json:"id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Status       string    `json:"status"`
	StatusCode   int       `json:"status_code"`
	Personnel    int       `json:"personnel"`
	GroundUnits  int       `json:"ground_units"`
	AerialUnits  int       `json:"aerial_units"`
	Important    bool      `json:"important"`
	District     string    `json:"district,omitempty"`
	Municipality string    `json:"municipality,omitempty"`
	Parish       string    `json:"parish,omitempty"`
	Nature       string    `json:"nature,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
}

// Terminal incident states always render at a fixed size factor.
const (
	StatusConclusion = 11
	StatusFalseAlarm = 12
)

// terminalSizeFactor applies to incidents in a terminal or false-alarm state.
const terminalSizeFactor = 0.6

// ScoredIncident is an incident annotated with its importance and size factor.
type ScoredIncident struct {
	Incident
	Importance float64 `json:"importance"`
	SizeFactor float64 `json:"size_factor"`
}

// ImportanceStats is the running aggregate for one run. Top never
// decreases and Average is the incremental mean of every observed value.
type ImportanceStats struct {
	Count   int     `json:"count"`
	Top     float64 `json:"top"`
	Average float64 `json:"average"`
}

// Observe folds one importance value into the stats.
func (s *ImportanceStats) Observe(importance float64) {
	s.Count++
	if importance > s.Top {
		s.Top = importance
	}
	s.Average += (importance - s.Average) / float64(s.Count)
}

// SizeFactor derives the marker scale of an incident relative to the run's
// stats. The below-average branch has a 0.5 floor and no ceiling.
func SizeFactor(importance float64, statusCode int, stats ImportanceStats) float64 {
	if statusCode == StatusConclusion || statusCode == StatusFalseAlarm {
		return terminalSizeFactor
	}
	switch {
	case importance > stats.Average:
		if stats.Top == 0 {
			return 1.0
		}
		f := (importance/stats.Top)*2.3 + 0.5 - stats.Average/importance
		return math.Min(math.Max(f, 1.0), 1.75)
	case importance < stats.Average:
		return math.Max((importance/stats.Average)*0.8, 0.5)
	default:
		return 1.0
	}
}

// ImportanceScorer weights incident resources by the local time of day.
type ImportanceScorer struct {
	clock    clockwork.Clock
	location *time.Location
}

// NewImportanceScorer returns a scorer evaluating day or night in loc.
// A nil clock uses real time; a nil loc uses UTC.
func NewImportanceScorer(clock clockwork.Clock, loc *time.Location) *ImportanceScorer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ImportanceScorer{clock: clock, location: loc}
}

// IsNight reports whether the current local hour is in [20,24) or [0,9].
func (s *ImportanceScorer) IsNight() bool {
	h := s.clock.Now().In(s.location).Hour()
	return h >= 20 || h <= 9
}

// Importance returns the weighted resource count of inc.
func (s *ImportanceScorer) Importance(inc Incident) float64 {
	personnel := float64(inc.Personnel)
	ground := float64(inc.GroundUnits)
	if s.IsNight() {
		return 1.5*personnel + 4.5*ground
	}
	return 1.0*personnel + 2.5*ground + 10.0*float64(inc.AerialUnits)
}

// Score computes the importance of inc and folds it into stats.
func (s *ImportanceScorer) Score(inc Incident, stats *ImportanceStats) float64 {
	imp := s.Importance(inc)
	stats.Observe(imp)
	return imp
}

// ScoreAll scores every incident against fresh stats, then derives size
// factors from the final aggregate so each factor sees the whole run.
func (s *ImportanceScorer) ScoreAll(incidents []Incident) ([]ScoredIncident, ImportanceStats) {
	var stats ImportanceStats
	out := make([]ScoredIncident, len(incidents))
	for i, inc := range incidents {
		out[i] = ScoredIncident{Incident: inc, Importance: s.Score(inc, &stats)}
	}
	for i := range out {
		out[i].SizeFactor = SizeFactor(out[i].Importance, out[i].StatusCode, stats)
	}
	return out, stats
}
