package models

import "time"

// RunStatus is the lifecycle state of a journey run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// JourneyRun records one execution of a journey. The workflow engine creates and
// updates it through task callbacks; the compiler never builds one.
type JourneyRun struct {
	ID           string                    `json:"id"`
	Account      string                    `json:"account"`
	Contact      string                    `json:"contact,omitempty"`
	Journey      string                    `json:"journey"                 validate:"required"`
	Status       RunStatus                 `json:"status"                  validate:"required,oneof=running completed failed"`
	Results      map[string]RunStateResult `json:"results"`
	TriggerEvent map[string]any            `json:"trigger_event,omitempty"`
	TimeStarted  time.Time                 `json:"time_started"`
	TimeEnded    *time.Time                `json:"time_ended,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}

// RunStateResult is what one state reported back to its run.
type RunStateResult struct {
	Name        string         `json:"name"`
	Result      map[string]any `json:"result,omitempty"`
	Status      RunStatus      `json:"status"`
	TimeStarted time.Time      `json:"time_started"`
	TimeEnded   time.Time      `json:"time_ended"`
}
