package domain

import "time"

type EventType string

const (
	EventTypeState    EventType = "state"
	EventTypeProgress EventType = "progress"
	EventTypeOutcome  EventType = "outcome"
)

// Event is one sequenced notification emitted by the orchestrator.
type Event struct {
	Seq       int64             `json:"seq"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	JobID     string            `json:"job_id,omitempty"`
	State     OrchestratorState `json:"state"`
	Progress  int               `json:"progress"`
	Outcome   *JobOutcome       `json:"outcome,omitempty"`
}
