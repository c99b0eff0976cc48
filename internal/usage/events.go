// Package usage records what visitors ask the predictor for. Events flow
// from the web service to Kafka in batches, and an aggregator folds them
// into counters that can be snapshotted to PostgreSQL.
package usage

import "time"

// Outcome of a prediction request.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeNotReady    Outcome = "not_ready"
	OutcomeUnavailable Outcome = "unavailable"
)

// PredictionEvent describes one predict attempt. It carries the selections
// but nothing that identifies the visitor.
type PredictionEvent struct {
	Outcome    Outcome   `json:"outcome"`
	Category   string    `json:"category,omitempty"`
	JobTitle   string    `json:"job_title,omitempty"`
	State      string    `json:"state,omitempty"`
	Experience int       `json:"experience"`
	Salary     float64   `json:"salary,omitempty"`
	Low        float64   `json:"low,omitempty"`
	High       float64   `json:"high,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Tracker accepts events without blocking the caller.
type Tracker interface {
	Track(event PredictionEvent)
}
