package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/journeys/pkg/models"
)

// EventPattern is an event rule pattern. Keys marshal in sorted order, so the JSON
// form is stable for a given journey.
type EventPattern map[string]any

// JSON renders the pattern as the string event rules are registered with.
func (p EventPattern) JSON() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

func invalidTriggerType(t models.TriggerType) error {
	return fmt.Errorf("%w: %q", ErrInvalidTriggerType, t)
}

// EventPattern builds the rule pattern matching the events that start an
// event-triggered journey.
func (c *Compiler) EventPattern(journey *models.Journey) (EventPattern, error) {
	trigger := journey.Trigger.Event
	if journey.Trigger.Type != models.TriggerTypeEvent || trigger == nil {
		return nil, compileError(journey.ID, "", invalidTriggerType(journey.Trigger.Type))
	}

	detail := map[string]any{
		"account":     []any{journey.Account},
		"source":      []any{trigger.Source},
		"detail_type": []any{trigger.DetailType},
	}

	if created := createdPredicate(trigger.Window); created != nil {
		detail["created"] = created
	}

	if len(trigger.DetailFilters) > 0 {
		filters, err := translateFilters(trigger.DetailFilters)
		if err != nil {
			return nil, compileError(journey.ID, "", err)
		}

		detail["detail"] = filters
	}

	return EventPattern{
		"source":      []any{c.opts.PlatformSource},
		"detail-type": []any{c.opts.EnvelopeDetailType},
		"detail":      detail,
	}, nil
}

// createdPredicate bounds the event creation time. It returns nil when the window
// has no bounds.
func createdPredicate(window *models.TimeWindow) Predicate {
	if window == nil || (window.Start == nil && window.End == nil) {
		return nil
	}

	var bounds []any
	if window.Start != nil {
		bounds = append(bounds, ">=", *window.Start)
	}

	if window.End != nil {
		bounds = append(bounds, "<=", *window.End)
	}

	return Predicate{map[string]any{"numeric": bounds}}
}

func translateFilters(filters []models.Filter) (map[string]any, error) {
	out := make(map[string]any, len(filters))

	for i, filter := range filters {
		field := strings.TrimSpace(filter.Field)
		if field == "" {
			return nil, fmt.Errorf("%w: filter %d has no field", ErrInvalidFilter, i)
		}

		if _, exists := out[field]; exists {
			return nil, fmt.Errorf("%w: field %q is filtered more than once", ErrInvalidFilter, field)
		}

		predicate, err := TranslateOperator(filter.Operator, filter.Value)
		if err != nil {
			return nil, fmt.Errorf("filter on %q: %w", field, err)
		}

		out[field] = predicate
	}

	return out, nil
}
