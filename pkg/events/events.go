// Package events defines the notifications published around journey lifecycle changes.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every journey lifecycle event.
const Topic = "journeys.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	JourneySyncedEvent     EventType = "journey.synced"
	JourneySyncFailedEvent EventType = "journey.sync_failed"
	JourneyDeletedEvent    EventType = "journey.deleted"
	RunFinishedEvent       EventType = "journey.run.finished"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	JourneyID string         `json:"journey_id"`
	Account   string         `json:"account,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a new event for a journey.
func NewBaseEvent(eventType EventType, journeyID, account string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		JourneyID: journeyID,
		Account:   account,
	}
}

// JourneySynced is published after a journey's workflow and trigger were registered.
type JourneySynced struct {
	BaseEvent

	Created     bool   `json:"created"`
	TriggerType string `json:"trigger_type"`
	Active      bool   `json:"active"`
	StateCount  int    `json:"state_count"`
	Schedule    string `json:"schedule,omitempty"`
}

func (e JourneySynced) GetType() EventType {
	return JourneySyncedEvent
}

// JourneySyncFailed is published when compilation or registration of a journey fails.
type JourneySyncFailed struct {
	BaseEvent

	Created bool   `json:"created"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

func (e JourneySyncFailed) GetType() EventType {
	return JourneySyncFailedEvent
}

// CleanupStep mirrors one teardown step result.
type CleanupStep struct {
	Step   string `json:"step"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// JourneyDeleted is published after the teardown of a journey's resources ran.
type JourneyDeleted struct {
	BaseEvent

	Steps []CleanupStep `json:"steps"`
}

func (e JourneyDeleted) GetType() EventType {
	return JourneyDeletedEvent
}

// RunFinished is published when a journey run reaches a terminal status.
type RunFinished struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
}

func (e RunFinished) GetType() EventType {
	return RunFinishedEvent
}

// New returns an empty event value for the type, ready to be decoded into, or nil for
// unknown types.
func New(eventType EventType) any {
	switch eventType {
	case JourneySyncedEvent:
		return &JourneySynced{}
	case JourneySyncFailedEvent:
		return &JourneySyncFailed{}
	case JourneyDeletedEvent:
		return &JourneyDeleted{}
	case RunFinishedEvent:
		return &RunFinished{}
	default:
		return nil
	}
}
