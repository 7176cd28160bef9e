package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/compiler"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/metrics"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/otelhelper"
	"github.com/dukex/journeys/pkg/registrar"
	"github.com/dukex/journeys/pkg/statemachine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sync failure stages.
const (
	StageCompile  = "compile"
	StageRegister = "register"
)

// Registrar upserts and tears down the provider resources of a journey.
type Registrar interface {
	Register(ctx context.Context, reg registrar.Registration, create bool) error
	Deregister(ctx context.Context, journeyID string) *registrar.CleanupReport
}

// Sync keeps the workflow engine and the trigger provider in line with a journey.
// It does not serialize calls for the same journey; callers hold the lock.
type Sync struct {
	compiler  *compiler.Compiler
	registrar Registrar
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type SyncOption func(*Sync)

// WithEventPublisher announces sync and delete outcomes on the bus.
func WithEventPublisher(publisher eventbus.EventPublisher) SyncOption {
	return func(s *Sync) { s.publisher = publisher }
}

func WithTracer(tracer trace.Tracer) SyncOption {
	return func(s *Sync) { s.tracer = tracer }
}

func WithMetrics(m *metrics.Metrics) SyncOption {
	return func(s *Sync) { s.metrics = m }
}

// NewSync creates the sync orchestrator. Tracing defaults to a no-op tracer and
// metrics to unregistered collectors.
func NewSync(c *compiler.Compiler, r Registrar, logger *slog.Logger, opts ...SyncOption) *Sync {
	s := &Sync{
		compiler:  c,
		registrar: r,
		logger:    logger.With("module", "sync"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.tracer == nil {
		s.tracer = otelhelper.NewNoopTracer()
	}

	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}

	return s
}

// Sync compiles the journey and registers its workflow and trigger. Everything is
// compiled before the first provider call, so a compilation error leaves the
// provider untouched. With create set the resources are created first, otherwise
// updated first; both fall back to the other when the resource state disagrees.
func (s *Sync) Sync(ctx context.Context, journey *models.Journey, create bool) (*compiler.Artifacts, error) {
	if journey == nil {
		return nil, ErrJourneyNil
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "journeys.sync",
		attribute.String(otelhelper.JourneyIDKey, journey.ID),
		attribute.String(otelhelper.AccountKey, journey.Account),
		attribute.String(otelhelper.TriggerTypeKey, string(journey.Trigger.Type)),
		attribute.Bool(otelhelper.CreateKey, create),
	)
	defer span.End()

	started := time.Now()
	mode := syncMode(create)
	triggerType := string(journey.Trigger.Type)
	logger := s.logger.With("journey_id", journey.ID, "trigger_type", triggerType, "mode", mode)

	artifacts, err := s.compiler.Compile(journey)
	if err != nil {
		s.failed(ctx, span, logger, journey, create, StageCompile, err)

		return nil, err
	}

	span.SetAttributes(attribute.Int(otelhelper.StateCountKey, artifacts.Definition.Len()))

	err = s.registrar.Register(ctx, registrar.Registration{
		JourneyID:  journey.ID,
		Active:     journey.Active,
		Definition: artifacts.Definition,
		Pattern:    artifacts.Pattern,
		Schedule:   artifacts.Schedule,
	}, create)
	if err != nil {
		s.failed(ctx, span, logger, journey, create, StageRegister, err)

		return nil, err
	}

	s.metrics.Syncs.WithLabelValues(triggerType, mode, metrics.OutcomeSuccess).Inc()
	s.metrics.SyncDuration.WithLabelValues(triggerType).Observe(time.Since(started).Seconds())

	logger.InfoContext(ctx, "journey synced", "states", artifacts.Definition.Len(), "active", journey.Active)

	event := events.JourneySynced{
		BaseEvent:   events.NewBaseEvent(events.JourneySyncedEvent, journey.ID, journey.Account),
		Created:     create,
		TriggerType: triggerType,
		Active:      journey.Active,
		StateCount:  artifacts.Definition.Len(),
	}
	if artifacts.Schedule != nil {
		event.Schedule = artifacts.Schedule.Expression
	}

	s.publish(ctx, journey.ID, event)

	return artifacts, nil
}

func (s *Sync) failed(
	ctx context.Context,
	span trace.Span,
	logger *slog.Logger,
	journey *models.Journey,
	create bool,
	stage string,
	err error,
) {
	otelhelper.SetError(span, err, attribute.String("journeys.sync.stage", stage))
	s.metrics.Syncs.WithLabelValues(string(journey.Trigger.Type), syncMode(create), metrics.OutcomeFailure).Inc()

	logger.ErrorContext(ctx, "journey sync failed", "stage", stage, "error", err)

	s.publish(ctx, journey.ID, events.JourneySyncFailed{
		BaseEvent: events.NewBaseEvent(events.JourneySyncFailedEvent, journey.ID, journey.Account),
		Created:   create,
		Stage:     stage,
		Error:     err.Error(),
	})
}

// Delete tears down every provider resource of the journey. Each step runs even
// when an earlier one failed; the report lists all of them.
func (s *Sync) Delete(ctx context.Context, journeyID string) *registrar.CleanupReport {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "journeys.delete",
		attribute.String(otelhelper.JourneyIDKey, journeyID),
	)
	defer span.End()

	report := s.registrar.Deregister(ctx, journeyID)

	steps := make([]events.CleanupStep, 0, len(report.Steps))
	for _, step := range report.Steps {
		s.metrics.CleanupSteps.WithLabelValues(string(step.Step), string(step.Status)).Inc()

		cleanupStep := events.CleanupStep{Step: string(step.Step), Status: string(step.Status)}
		if step.Err != nil {
			cleanupStep.Error = step.Err.Error()
		}

		steps = append(steps, cleanupStep)
	}

	err := report.Err()
	s.metrics.Deletes.WithLabelValues(metrics.Outcome(err)).Inc()

	if err != nil {
		otelhelper.SetError(span, err)
		s.logger.WarnContext(ctx, "journey teardown incomplete", "journey_id", journeyID, "failed_steps", len(report.Failed()), "error", err)
	} else {
		s.logger.InfoContext(ctx, "journey torn down", "journey_id", journeyID)
	}

	s.publish(ctx, journeyID, events.JourneyDeleted{
		BaseEvent: events.NewBaseEvent(events.JourneyDeletedEvent, journeyID, ""),
		Steps:     steps,
	})

	return report
}

// Preview is what a journey would compile to, without registering anything.
type Preview struct {
	Definition    *statemachine.Definition `json:"definition"`
	EventPattern  compiler.EventPattern    `json:"event_pattern,omitempty"`
	Schedule      *compiler.Schedule       `json:"schedule,omitempty"`
	NextFireTimes []time.Time              `json:"next_fire_times,omitempty"`
}

// Preview compiles the journey and, for schedules, computes the next fire times
// after from.
func (s *Sync) Preview(journey *models.Journey, from time.Time, next int) (*Preview, error) {
	if journey == nil {
		return nil, ErrJourneyNil
	}

	artifacts, err := s.compiler.Compile(journey)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		Definition:   artifacts.Definition,
		EventPattern: artifacts.Pattern,
		Schedule:     artifacts.Schedule,
	}

	if artifacts.Schedule != nil && next > 0 {
		preview.NextFireTimes, err = s.compiler.NextFireTimes(artifacts.Schedule, from, next)
		if err != nil {
			return nil, err
		}
	}

	return preview, nil
}

func (s *Sync) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "journey_id", key, "error", err)
	}
}

func syncMode(create bool) string {
	if create {
		return "create"
	}

	return "update"
}
