// Package models defines the journey domain: action graphs, triggers and run records.
package models

import (
	"slices"
	"time"
)

// ActionKind identifies what a journey state does.
type ActionKind string

const (
	ActionCreateNote       ActionKind = "create_note"
	ActionSendAppMessage   ActionKind = "send_app_message"
	ActionSendEmailMessage ActionKind = "send_email_message"
	ActionSendReward       ActionKind = "send_reward"
	ActionTagContact       ActionKind = "tag_contact"
	ActionMatchAll         ActionKind = "match_all"
	ActionMatchAny         ActionKind = "match_any"
	ActionWait             ActionKind = "wait"
)

// ActionKinds lists every supported action kind.
var ActionKinds = []ActionKind{
	ActionCreateNote,
	ActionSendAppMessage,
	ActionSendEmailMessage,
	ActionSendReward,
	ActionTagContact,
	ActionMatchAll,
	ActionMatchAny,
	ActionWait,
}

// StartEnd is the start marker of a journey with nothing to do: the run goes
// straight to the success tail.
const StartEnd = "end"

// Journey is a declarative automation: one trigger plus a named graph of action states.
type Journey struct {
	ID          string             `json:"id"`
	Account     string             `json:"account"               validate:"required"`
	Name        string             `json:"name"                  validate:"required"`
	Description string             `json:"description,omitempty"`
	Active      bool               `json:"active"`
	Start       string             `json:"start"                 validate:"required"`
	States      map[string]*Action `json:"states"                validate:"dive"`
	Trigger     Trigger            `json:"trigger"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Action is one node of the journey graph.
type Action struct {
	Type    ActionKind     `json:"type"              validate:"required"`
	Config  map[string]any `json:"config,omitempty"`
	Next    string         `json:"next,omitempty"`
	End     bool           `json:"end,omitempty"`
	Comment string         `json:"comment,omitempty"`
}

// FailureProne reports whether the action runs as a task that can fail.
func (k ActionKind) FailureProne() bool {
	return k != ActionWait
}

// Branching reports whether the action is followed by a match decision.
func (k ActionKind) Branching() bool {
	return k == ActionMatchAll || k == ActionMatchAny
}

// Clone returns a deep copy of the journey. Config and metadata values keep their
// dynamic types.
func (j *Journey) Clone() *Journey {
	clone := *j

	if j.States != nil {
		clone.States = make(map[string]*Action, len(j.States))
		for name, action := range j.States {
			if action == nil {
				clone.States[name] = nil

				continue
			}

			copied := *action
			copied.Config = cloneMap(action.Config)
			clone.States[name] = &copied
		}
	}

	clone.Metadata = cloneMap(j.Metadata)
	clone.Trigger = j.Trigger.clone()

	return &clone
}

func (t Trigger) clone() Trigger {
	if t.Event != nil {
		event := *t.Event
		event.DetailFilters = make([]Filter, len(t.Event.DetailFilters))
		for i, filter := range t.Event.DetailFilters {
			filter.Value = cloneValue(filter.Value)
			event.DetailFilters[i] = filter
		}

		if t.Event.DetailFilters == nil {
			event.DetailFilters = nil
		}

		if t.Event.Window != nil {
			window := TimeWindow{Start: cloneInt64(t.Event.Window.Start), End: cloneInt64(t.Event.Window.End)}
			event.Window = &window
		}

		t.Event = &event
	}

	if t.Schedule != nil {
		schedule := *t.Schedule
		schedule.Schedule.At = cloneInt64(t.Schedule.Schedule.At)
		schedule.Schedule.Start = cloneInt64(t.Schedule.Schedule.Start)
		schedule.Schedule.End = cloneInt64(t.Schedule.Schedule.End)
		t.Schedule = &schedule
	}

	return t
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return cloneMap(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}

		return out
	case []string:
		return slices.Clone(value)
	default:
		return v
	}
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}

	out := *v

	return &out
}
