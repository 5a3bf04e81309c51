package domain

import "time"

// MessageType classifies what a run reports to its caller.
type MessageType string

const (
	// MessageProgress is a human-readable status update.
	MessageProgress MessageType = "progress"
	// MessageError is a recoverable failure; the run carries on.
	MessageError MessageType = "error"
	// MessageFailure ends one stage; sibling stages carry on.
	MessageFailure MessageType = "failure"
	// MessageResult carries a stage's output in Data.
	MessageResult MessageType = "result"
)

// Stage names used on messages, metrics and logs.
const (
	StageHotspots  = "hotspots"
	StageIncidents = "incidents"
	StageRisk      = "risk"
)

// Message is one report from a run. Data is set on results only and is
// one of HotspotResult, IncidentResult or RiskResult.
type Message struct {
	RunID string      `json:"run_id"`
	Type  MessageType `json:"type"`
	Stage string      `json:"stage,omitempty"`
	Text  string      `json:"message,omitempty"`
	Data  any         `json:"data,omitempty"`
	Time  time.Time   `json:"time"`
}
