package models

import (
	"encoding/json"
	"fmt"
)

// TriggerType selects how a journey is started.
type TriggerType string

const (
	TriggerTypeEvent    TriggerType = "event"
	TriggerTypeSchedule TriggerType = "schedule"
)

// OperatorKind is a filter comparison.
type OperatorKind string

const (
	OperatorEqual              OperatorKind = "equal"
	OperatorNotEqual           OperatorKind = "not_equal"
	OperatorExists             OperatorKind = "exists"
	OperatorNotExists          OperatorKind = "not_exists"
	OperatorStartsWith         OperatorKind = "starts_with"
	OperatorNotStartsWith      OperatorKind = "not_starts_with"
	OperatorEndsWith           OperatorKind = "ends_with"
	OperatorNotEndsWith        OperatorKind = "not_ends_with"
	OperatorGreaterThan        OperatorKind = "greater_than"
	OperatorGreaterThanOrEqual OperatorKind = "greater_than_or_equal"
	OperatorLessThan           OperatorKind = "less_than"
	OperatorLessThanOrEqual    OperatorKind = "less_than_or_equal"
)

// Filter compares one event or contact field against a value.
type Filter struct {
	Field    string       `json:"field"           mapstructure:"field"    validate:"required"`
	Operator OperatorKind `json:"operator"        mapstructure:"operator" validate:"required"`
	Value    any          `json:"value,omitempty" mapstructure:"value"`
}

// Trigger starts a journey. Exactly one of Event or Schedule is set for a known Type;
// an unknown Type decodes with neither and is rejected when the journey is compiled.
type Trigger struct {
	Type     TriggerType
	Event    *EventTrigger
	Schedule *ScheduleTrigger
}

// EventTrigger matches platform events by source and detail type.
type EventTrigger struct {
	Source        string   `json:"source"                   validate:"required"`
	DetailType    string   `json:"detail_type"              validate:"required"`
	DetailFilters []Filter `json:"detail_filters,omitempty" validate:"dive"`

	// Window restricts matches to events created inside it. It is a predicate on the
	// event, not a timer.
	Window *TimeWindow `json:"schedule,omitempty"`
}

// TimeWindow bounds event creation time, in epoch seconds. Either bound is optional.
type TimeWindow struct {
	Start *int64 `json:"start,omitempty"`
	End   *int64 `json:"end,omitempty"`
}

// ScheduleTrigger starts a journey on a timer.
type ScheduleTrigger struct {
	Schedule ScheduleSpec `json:"schedule"`
}

// ScheduleSpec holds exactly one of At, Cron or Rate plus optional active bounds.
type ScheduleSpec struct {
	At    *int64 `json:"at,omitempty"`
	Cron  string `json:"cron,omitempty"`
	Rate  string `json:"rate,omitempty"`
	Start *int64 `json:"start,omitempty"`
	End   *int64 `json:"end,omitempty"`
}

type triggerDocument struct {
	Type   TriggerType     `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON decodes the config into the type selected by the trigger type.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var doc triggerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*t = Trigger{Type: doc.Type}

	if len(doc.Config) == 0 || string(doc.Config) == "null" {
		return nil
	}

	switch doc.Type {
	case TriggerTypeEvent:
		t.Event = &EventTrigger{}
		if err := json.Unmarshal(doc.Config, t.Event); err != nil {
			return fmt.Errorf("decode event trigger config: %w", err)
		}
	case TriggerTypeSchedule:
		t.Schedule = &ScheduleTrigger{}
		if err := json.Unmarshal(doc.Config, t.Schedule); err != nil {
			return fmt.Errorf("decode schedule trigger config: %w", err)
		}
	}

	return nil
}

// MarshalJSON writes the trigger back in its {type, config} document form.
func (t Trigger) MarshalJSON() ([]byte, error) {
	var config any

	switch {
	case t.Event != nil:
		config = t.Event
	case t.Schedule != nil:
		config = t.Schedule
	}

	doc := struct {
		Type   TriggerType `json:"type"`
		Config any         `json:"config,omitempty"`
	}{Type: t.Type, Config: config}

	return json.Marshal(doc)
}
