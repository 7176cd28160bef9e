package registrar

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	schedtypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"
)

// Step is one teardown call.
type Step string

const (
	StepDeleteStateMachine Step = "delete_state_machine"
	StepRemoveTargets      Step = "remove_targets"
	StepDeleteRule         Step = "delete_rule"
	StepDeleteSchedule     Step = "delete_schedule"
)

// CleanupSteps is the order Deregister runs its steps in.
var CleanupSteps = []Step{StepDeleteStateMachine, StepRemoveTargets, StepDeleteRule, StepDeleteSchedule}

// StepStatus is the outcome of a teardown step.
type StepStatus string

const (
	StepDeleted  StepStatus = "deleted"
	StepNotFound StepStatus = "not_found"
	StepFailed   StepStatus = "failed"
)

// StepResult reports one teardown step.
type StepResult struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
	Err    error      `json:"-"`
}

// CleanupReport lists every teardown step of a journey in the order they ran.
type CleanupReport struct {
	JourneyID string       `json:"journey_id"`
	Steps     []StepResult `json:"steps"`
}

// Failed returns the steps that failed.
func (r *CleanupReport) Failed() []StepResult {
	var failed []StepResult

	for _, step := range r.Steps {
		if step.Status == StepFailed {
			failed = append(failed, step)
		}
	}

	return failed
}

// Err joins the step failures, or returns nil when every step deleted its resource
// or found nothing to delete.
func (r *CleanupReport) Err() error {
	var errs []error

	for _, step := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", step.Step, step.Err))
	}

	return errors.Join(errs...)
}

// Deregister removes every resource a journey may own. Each step runs regardless
// of the outcome of the previous ones; failures are logged and reported, never
// returned early.
func (r *Registrar) Deregister(ctx context.Context, journeyID string) *CleanupReport {
	report := &CleanupReport{JourneyID: journeyID, Steps: make([]StepResult, 0, len(CleanupSteps))}

	for _, step := range CleanupSteps {
		result := r.runStep(ctx, journeyID, step)
		if result.Status == StepFailed {
			r.logger.ErrorContext(ctx, "cleanup step failed", "journey_id", journeyID, "step", step, "error", result.Err)
		} else {
			r.logger.DebugContext(ctx, "cleanup step done", "journey_id", journeyID, "step", step, "status", result.Status)
		}

		report.Steps = append(report.Steps, result)
	}

	return report
}

func (r *Registrar) runStep(ctx context.Context, journeyID string, step Step) StepResult {
	var err error

	switch step {
	case StepDeleteStateMachine:
		_, err = r.machines.DeleteStateMachine(ctx, &sfn.DeleteStateMachineInput{
			StateMachineArn: aws.String(r.StateMachineARN(journeyID)),
		})
	case StepRemoveTargets:
		var out *eventbridge.RemoveTargetsOutput

		out, err = r.rules.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
			Rule:         aws.String(journeyID),
			EventBusName: aws.String(r.config.EventBusName),
			Ids:          []string{TargetID(journeyID)},
		})
		if err == nil && out != nil && len(out.FailedEntries) > 0 {
			entry := out.FailedEntries[0]
			err = fmt.Errorf("%w: %s: %s", ErrTargetRejected, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
		}
	case StepDeleteRule:
		_, err = r.rules.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
			Name:         aws.String(journeyID),
			EventBusName: aws.String(r.config.EventBusName),
		})
	case StepDeleteSchedule:
		_, err = r.schedules.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
			Name:      aws.String(journeyID),
			GroupName: aws.String(r.config.ScheduleGroup),
		})
	default:
		err = fmt.Errorf("unknown cleanup step %q", step)
	}

	switch {
	case err == nil:
		return StepResult{Step: step, Status: StepDeleted}
	case isNotFound(err):
		return StepResult{Step: step, Status: StepNotFound}
	default:
		return StepResult{Step: step, Status: StepFailed, Err: err}
	}
}

func isNotFound(err error) bool {
	var (
		machineMissing  *sfntypes.StateMachineDoesNotExist
		ruleMissing     *ebtypes.ResourceNotFoundException
		scheduleMissing *schedtypes.ResourceNotFoundException
	)

	return errors.As(err, &machineMissing) ||
		errors.As(err, &ruleMissing) ||
		errors.As(err, &scheduleMissing)
}
