// Package registrar creates, updates and removes the cloud resources backing a
// journey: the workflow state machine and its event rule or schedule.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	schedtypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/dukex/journeys/pkg/compiler"
	"github.com/dukex/journeys/pkg/statemachine"
)

// StateMachineAPI is the part of the Step Functions client the registrar uses.
type StateMachineAPI interface {
	CreateStateMachine(ctx context.Context, params *sfn.CreateStateMachineInput, optFns ...func(*sfn.Options)) (*sfn.CreateStateMachineOutput, error)
	UpdateStateMachine(ctx context.Context, params *sfn.UpdateStateMachineInput, optFns ...func(*sfn.Options)) (*sfn.UpdateStateMachineOutput, error)
	DeleteStateMachine(ctx context.Context, params *sfn.DeleteStateMachineInput, optFns ...func(*sfn.Options)) (*sfn.DeleteStateMachineOutput, error)
}

// RuleAPI is the part of the EventBridge client the registrar uses.
type RuleAPI interface {
	PutRule(ctx context.Context, params *eventbridge.PutRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error)
	PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error)
	RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error)
	DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error)
}

// ScheduleAPI is the part of the EventBridge Scheduler client the registrar uses.
type ScheduleAPI interface {
	CreateSchedule(ctx context.Context, params *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	UpdateSchedule(ctx context.Context, params *scheduler.UpdateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.UpdateScheduleOutput, error)
	DeleteSchedule(ctx context.Context, params *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
}

const (
	DefaultEventBusName          = "versify"
	DefaultScheduleGroup         = "default"
	DefaultFlexibleWindowMinutes = 5
)

// Config names the shared resources journeys are wired to.
type Config struct {
	// StateMachineARNPrefix + journey id is the ARN of a journey's state machine.
	StateMachineARNPrefix string
	RoleARN               string
	LogGroupARN           string
	EventBusName          string
	ScheduleGroup         string

	// ScheduleTimezone is the IANA zone at() expressions are evaluated in.
	ScheduleTimezone      string
	FlexibleWindowMinutes int32
}

// Registration is everything needed to register one journey.
type Registration struct {
	JourneyID  string
	Active     bool
	Definition *statemachine.Definition

	// Exactly one of Pattern or Schedule is set.
	Pattern  compiler.EventPattern
	Schedule *compiler.Schedule
}

// Registrar upserts and removes journey resources. Calls are sequential and not
// transactional.
type Registrar struct {
	machines  StateMachineAPI
	rules     RuleAPI
	schedules ScheduleAPI
	config    Config
	logger    *slog.Logger
}

// New creates a registrar with defaults applied to cfg.
func New(machines StateMachineAPI, rules RuleAPI, schedules ScheduleAPI, cfg Config, logger *slog.Logger) *Registrar {
	if cfg.EventBusName == "" {
		cfg.EventBusName = DefaultEventBusName
	}

	if cfg.ScheduleGroup == "" {
		cfg.ScheduleGroup = DefaultScheduleGroup
	}

	if cfg.FlexibleWindowMinutes <= 0 {
		cfg.FlexibleWindowMinutes = DefaultFlexibleWindowMinutes
	}

	return &Registrar{
		machines:  machines,
		rules:     rules,
		schedules: schedules,
		config:    cfg,
		logger:    logger.With("module", "registrar"),
	}
}

// StateMachineARN returns the ARN of the journey's state machine.
func (r *Registrar) StateMachineARN(journeyID string) string {
	return r.config.StateMachineARNPrefix + journeyID
}

// TargetID returns the rule target id of the journey.
func TargetID(journeyID string) string {
	return journeyID + "-target"
}

// Register upserts the state machine and then the trigger. With create set the
// resources are created first and updated if they already exist; otherwise they
// are updated first and created if missing.
func (r *Registrar) Register(ctx context.Context, reg Registration, create bool) error {
	if reg.Pattern == nil && reg.Schedule == nil {
		return &RegistrationError{Op: "Register", JourneyID: reg.JourneyID, Err: ErrNoTrigger}
	}

	if err := r.upsertStateMachine(ctx, reg, create); err != nil {
		return err
	}

	if reg.Pattern != nil {
		if err := r.putRule(ctx, reg); err != nil {
			return err
		}

		if !create {
			r.removeStale(ctx, reg.JourneyID, StepDeleteSchedule)
		}

		return nil
	}

	if err := r.upsertSchedule(ctx, reg, create); err != nil {
		return err
	}

	if !create {
		r.removeStale(ctx, reg.JourneyID, StepRemoveTargets, StepDeleteRule)
	}

	return nil
}

func (r *Registrar) upsertStateMachine(ctx context.Context, reg Registration, create bool) error {
	definition := reg.Definition.String()
	arn := r.StateMachineARN(reg.JourneyID)

	logging := &sfntypes.LoggingConfiguration{
		Level:                sfntypes.LogLevelAll,
		IncludeExecutionData: true,
	}
	if r.config.LogGroupARN != "" {
		logging.Destinations = []sfntypes.LogDestination{{
			CloudWatchLogsLogGroup: &sfntypes.CloudWatchLogsLogGroup{LogGroupArn: aws.String(r.config.LogGroupARN)},
		}}
	}

	tracing := &sfntypes.TracingConfiguration{Enabled: true}

	createMachine := func() error {
		_, err := r.machines.CreateStateMachine(ctx, &sfn.CreateStateMachineInput{
			Name:                 aws.String(reg.JourneyID),
			Definition:           aws.String(definition),
			RoleArn:              aws.String(r.config.RoleARN),
			Type:                 sfntypes.StateMachineTypeStandard,
			LoggingConfiguration: logging,
			TracingConfiguration: tracing,
		})

		return err
	}

	updateMachine := func() error {
		_, err := r.machines.UpdateStateMachine(ctx, &sfn.UpdateStateMachineInput{
			StateMachineArn:      aws.String(arn),
			Definition:           aws.String(definition),
			RoleArn:              aws.String(r.config.RoleARN),
			LoggingConfiguration: logging,
			TracingConfiguration: tracing,
		})

		return err
	}

	if create {
		err := createMachine()

		var exists *sfntypes.StateMachineAlreadyExists
		if errors.As(err, &exists) {
			r.logger.InfoContext(ctx, "state machine exists, updating", "journey_id", reg.JourneyID)

			err = updateMachine()
			if err != nil {
				return &RegistrationError{Op: "UpdateStateMachine", JourneyID: reg.JourneyID, Err: err}
			}

			return nil
		}

		if err != nil {
			return &RegistrationError{Op: "CreateStateMachine", JourneyID: reg.JourneyID, Err: err}
		}

		return nil
	}

	err := updateMachine()

	var missing *sfntypes.StateMachineDoesNotExist
	if errors.As(err, &missing) {
		r.logger.InfoContext(ctx, "state machine missing, creating", "journey_id", reg.JourneyID)

		if err := createMachine(); err != nil {
			return &RegistrationError{Op: "CreateStateMachine", JourneyID: reg.JourneyID, Err: err}
		}

		return nil
	}

	if err != nil {
		return &RegistrationError{Op: "UpdateStateMachine", JourneyID: reg.JourneyID, Err: err}
	}

	return nil
}

// putRule upserts the rule and its single target. Both calls are idempotent.
func (r *Registrar) putRule(ctx context.Context, reg Registration) error {
	pattern, err := reg.Pattern.JSON()
	if err != nil {
		return &RegistrationError{Op: "PutRule", JourneyID: reg.JourneyID, Err: fmt.Errorf("encode pattern: %w", err)}
	}

	state := ebtypes.RuleStateDisabled
	if reg.Active {
		state = ebtypes.RuleStateEnabled
	}

	_, err = r.rules.PutRule(ctx, &eventbridge.PutRuleInput{
		Name:         aws.String(reg.JourneyID),
		EventBusName: aws.String(r.config.EventBusName),
		EventPattern: aws.String(pattern),
		State:        state,
	})
	if err != nil {
		return &RegistrationError{Op: "PutRule", JourneyID: reg.JourneyID, Err: err}
	}

	out, err := r.rules.PutTargets(ctx, &eventbridge.PutTargetsInput{
		Rule:         aws.String(reg.JourneyID),
		EventBusName: aws.String(r.config.EventBusName),
		Targets: []ebtypes.Target{{
			Id:        aws.String(TargetID(reg.JourneyID)),
			Arn:       aws.String(r.StateMachineARN(reg.JourneyID)),
			RoleArn:   aws.String(r.config.RoleARN),
			InputPath: aws.String("$.detail"),
		}},
	})
	if err != nil {
		return &RegistrationError{Op: "PutTargets", JourneyID: reg.JourneyID, Err: err}
	}

	if out != nil && len(out.FailedEntries) > 0 {
		entry := out.FailedEntries[0]

		return &RegistrationError{
			Op:        "PutTargets",
			JourneyID: reg.JourneyID,
			Err:       fmt.Errorf("%w: %s: %s", ErrTargetRejected, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage)),
		}
	}

	return nil
}

func (r *Registrar) upsertSchedule(ctx context.Context, reg Registration, create bool) error {
	state := schedtypes.ScheduleStateDisabled
	if reg.Active {
		state = schedtypes.ScheduleStateEnabled
	}

	window := &schedtypes.FlexibleTimeWindow{
		Mode:                   schedtypes.FlexibleTimeWindowModeFlexible,
		MaximumWindowInMinutes: aws.Int32(r.config.FlexibleWindowMinutes),
	}

	target := &schedtypes.Target{
		Arn:     aws.String(r.StateMachineARN(reg.JourneyID)),
		RoleArn: aws.String(r.config.RoleARN),
	}

	var timezone *string
	if r.config.ScheduleTimezone != "" {
		timezone = aws.String(r.config.ScheduleTimezone)
	}

	createSchedule := func() error {
		_, err := r.schedules.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
			Name:                       aws.String(reg.JourneyID),
			GroupName:                  aws.String(r.config.ScheduleGroup),
			ScheduleExpression:         aws.String(reg.Schedule.Expression),
			ScheduleExpressionTimezone: timezone,
			FlexibleTimeWindow:         window,
			Target:                     target,
			State:                      state,
			StartDate:                  reg.Schedule.StartTime(),
			EndDate:                    reg.Schedule.EndTime(),
		})

		return err
	}

	updateSchedule := func() error {
		_, err := r.schedules.UpdateSchedule(ctx, &scheduler.UpdateScheduleInput{
			Name:                       aws.String(reg.JourneyID),
			GroupName:                  aws.String(r.config.ScheduleGroup),
			ScheduleExpression:         aws.String(reg.Schedule.Expression),
			ScheduleExpressionTimezone: timezone,
			FlexibleTimeWindow:         window,
			Target:                     target,
			State:                      state,
			StartDate:                  reg.Schedule.StartTime(),
			EndDate:                    reg.Schedule.EndTime(),
		})

		return err
	}

	if create {
		err := createSchedule()

		var conflict *schedtypes.ConflictException
		if errors.As(err, &conflict) {
			r.logger.InfoContext(ctx, "schedule exists, updating", "journey_id", reg.JourneyID)

			if err := updateSchedule(); err != nil {
				return &RegistrationError{Op: "UpdateSchedule", JourneyID: reg.JourneyID, Err: err}
			}

			return nil
		}

		if err != nil {
			return &RegistrationError{Op: "CreateSchedule", JourneyID: reg.JourneyID, Err: err}
		}

		return nil
	}

	err := updateSchedule()

	var missing *schedtypes.ResourceNotFoundException
	if errors.As(err, &missing) {
		r.logger.InfoContext(ctx, "schedule missing, creating", "journey_id", reg.JourneyID)

		if err := createSchedule(); err != nil {
			return &RegistrationError{Op: "CreateSchedule", JourneyID: reg.JourneyID, Err: err}
		}

		return nil
	}

	if err != nil {
		return &RegistrationError{Op: "UpdateSchedule", JourneyID: reg.JourneyID, Err: err}
	}

	return nil
}

// removeStale drops the trigger of the other kind after a journey switched
// between event and schedule triggers. Missing resources are the common case.
func (r *Registrar) removeStale(ctx context.Context, journeyID string, steps ...Step) {
	for _, step := range steps {
		result := r.runStep(ctx, journeyID, step)
		if result.Status == StepFailed {
			r.logger.WarnContext(ctx, "failed to remove stale trigger",
				"journey_id", journeyID, "step", step, "error", result.Err)
		}
	}
}
