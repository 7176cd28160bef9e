package compiler

import (
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/statemachine"
)

const (
	DefaultComment            = "Workflow for Journeys"
	DefaultStartWaitSeconds   = 3
	DefaultPlatformSource     = "versify"
	DefaultEnvelopeDetailType = "event.created"
)

// Options configure a Compiler. Zero values fall back to the defaults above.
type Options struct {
	// TaskResource is the executor identity used as Resource of every task state.
	TaskResource string

	Comment          string
	StartWaitSeconds int

	// PlatformSource and EnvelopeDetailType are the top-level source and detail-type
	// every platform event is published with.
	PlatformSource     string
	EnvelopeDetailType string

	// Location renders at() schedule expressions. Defaults to UTC.
	Location *time.Location
}

// Compiler produces workflow definitions and trigger descriptions from journeys.
// It holds no mutable state and is safe for concurrent use.
type Compiler struct {
	opts Options
}

// New returns a compiler with defaults applied to opts.
func New(opts Options) *Compiler {
	if opts.Comment == "" {
		opts.Comment = DefaultComment
	}

	if opts.StartWaitSeconds <= 0 {
		opts.StartWaitSeconds = DefaultStartWaitSeconds
	}

	if opts.PlatformSource == "" {
		opts.PlatformSource = DefaultPlatformSource
	}

	if opts.EnvelopeDetailType == "" {
		opts.EnvelopeDetailType = DefaultEnvelopeDetailType
	}

	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Compiler{opts: opts}
}

// Artifacts is everything a journey compiles to. Exactly one of Pattern or Schedule
// is set, matching the trigger type.
type Artifacts struct {
	Definition *statemachine.Definition
	Pattern    EventPattern
	Schedule   *Schedule
}

// Compile builds the definition and the trigger description of a journey. Nothing is
// returned unless both compile.
func (c *Compiler) Compile(journey *models.Journey) (*Artifacts, error) {
	definition, err := c.Definition(journey)
	if err != nil {
		return nil, err
	}

	artifacts := &Artifacts{Definition: definition}

	switch journey.Trigger.Type {
	case models.TriggerTypeEvent:
		artifacts.Pattern, err = c.EventPattern(journey)
	case models.TriggerTypeSchedule:
		artifacts.Schedule, err = c.Schedule(journey)
	default:
		err = compileError(journey.ID, "", invalidTriggerType(journey.Trigger.Type))
	}

	if err != nil {
		return nil, err
	}

	return artifacts, nil
}
