package compiler

import (
	"fmt"
	"slices"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/statemachine"
)

// Names of the fixed states every definition carries.
const (
	StateCreateRun      = "Create run"
	StateStartRun       = "Start run"
	StateSaveSuccessRun = "Save success run"
	StateSuccess        = "Success"
	StateSaveFailRun    = "Save fail run"
	StateFail           = "Fail"
)

var reservedStates = []string{
	StateCreateRun, StateStartRun, StateSaveSuccessRun, StateSuccess, StateSaveFailRun, StateFail,
}

// Task types the executor understands besides the action kinds.
const (
	TaskCreateRun = "create_run"
	TaskUpdateRun = "update_run"
)

// MatchVariable is the boolean the match tasks report and the choice states read.
const MatchVariable = "$.match"

// ChoiceStateName names the decision that follows a match node.
func ChoiceStateName(node string) string {
	return node + " matched?"
}

// Definition compiles the journey graph into a state machine definition: the entry
// sequence, one or two states per node in sorted name order, the success tail and,
// when any state can fail, the failure tail.
func (c *Compiler) Definition(journey *models.Journey) (*statemachine.Definition, error) {
	if journey.Start == "" {
		return nil, compileError(journey.ID, "", ErrMissingStart)
	}

	names := make([]string, 0, len(journey.States))
	for name := range journey.States {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		if slices.Contains(reservedStates, name) {
			return nil, compileError(journey.ID, name, fmt.Errorf("%w: %q is reserved", ErrDuplicateState, name))
		}
	}

	first := journey.Start
	if _, ok := journey.States[first]; !ok {
		if first != models.StartEnd {
			return nil, compileError(journey.ID, "", fmt.Errorf("%w: start %q", ErrUnknownState, first))
		}

		first = StateSaveSuccessRun
	}

	builder := statemachine.NewBuilder(c.opts.Comment).StartAt(StateCreateRun)

	builder.
		Add(StateCreateRun, statemachine.Task{
			Resource:  c.opts.TaskResource,
			InputPath: "$",
			Parameters: map[string]any{
				"state_name.$":    "$$.State.Name",
				"task_type":       TaskCreateRun,
				"journey_id":      journey.ID,
				"trigger_event.$": "$",
			},
			OutputPath: "$",
			Next:       StateStartRun,
		}).
		Add(StateStartRun, statemachine.Wait{Seconds: c.opts.StartWaitSeconds, Next: first})

	failureProne := false

	for _, name := range names {
		action := journey.States[name]
		if action == nil {
			return nil, compileError(journey.ID, name, ErrInvalidActionType)
		}

		next, err := nextState(journey, action)
		if err != nil {
			return nil, compileError(journey.ID, name, err)
		}

		prone, err := c.addAction(builder, journey.ID, name, action, next)
		if err != nil {
			return nil, compileError(journey.ID, name, err)
		}

		failureProne = failureProne || prone
	}

	builder.
		Add(StateSaveSuccessRun, c.updateRunTask(journey.ID, models.RunStatusCompleted, StateSuccess)).
		Add(StateSuccess, statemachine.Succeed{})

	if failureProne {
		builder.
			Add(StateSaveFailRun, c.updateRunTask(journey.ID, models.RunStatusFailed, StateFail)).
			Add(StateFail, statemachine.Fail{})
	}

	definition, err := builder.Build()
	if err != nil {
		return nil, compileError(journey.ID, "", err)
	}

	return definition, nil
}

// nextState resolves where a node goes once it is done. Exactly one of end and next
// must be set, and next must name another node.
func nextState(journey *models.Journey, action *models.Action) (string, error) {
	switch {
	case action.End && action.Next != "":
		return "", ErrAmbiguousTransition
	case action.End:
		return StateSaveSuccessRun, nil
	case action.Next == "":
		return "", ErrMissingTransition
	}

	if _, ok := journey.States[action.Next]; !ok {
		return "", fmt.Errorf("%w: next %q", ErrUnknownState, action.Next)
	}

	return action.Next, nil
}

// addAction emits the states of one node and reports whether any of them can fail.
func (c *Compiler) addAction(builder *statemachine.Builder, journeyID, name string, action *models.Action, next string) (bool, error) {
	if !slices.Contains(models.ActionKinds, action.Type) {
		return false, fmt.Errorf("%w: %q", ErrInvalidActionType, action.Type)
	}

	switch {
	case action.Type == models.ActionWait:
		seconds, err := action.WaitSeconds()
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrMissingWaitSeconds, err)
		}

		builder.Add(name, statemachine.Wait{Seconds: seconds, Next: next})
	case action.Type.Branching():
		if err := checkMatchFilters(action); err != nil {
			return false, err
		}

		choice := ChoiceStateName(name)

		builder.
			Add(name, c.actionTask(journeyID, action.Type, choice)).
			Add(choice, statemachine.Choice{
				Choices: []statemachine.ChoiceRule{{Variable: MatchVariable, BooleanEquals: true, Next: next}},
				Default: StateSaveSuccessRun,
			})
	default:
		builder.Add(name, c.actionTask(journeyID, action.Type, next))
	}

	return action.Type.FailureProne(), nil
}

// checkMatchFilters rejects match filters the executor could not evaluate.
func checkMatchFilters(action *models.Action) error {
	var cfg models.MatchConfig
	if err := action.DecodeConfig(&cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}

	for _, filter := range cfg.Filters {
		if filter.Field == "" {
			return fmt.Errorf("%w: empty field", ErrInvalidFilter)
		}

		if _, err := TranslateOperator(filter.Operator, filter.Value); err != nil {
			return err
		}
	}

	return nil
}

func (c *Compiler) actionTask(journeyID string, kind models.ActionKind, next string) statemachine.Task {
	return statemachine.Task{
		Resource:  c.opts.TaskResource,
		InputPath: "$",
		Parameters: map[string]any{
			"state_name.$":     "$$.State.Name",
			"task_type":        string(kind),
			"journey_id":       journeyID,
			"journey_run_id.$": "$.journey_run_id",
		},
		OutputPath: "$",
		Catch:      []statemachine.Catcher{{ErrorEquals: []string{statemachine.ErrorsAll}, Next: StateSaveFailRun}},
		Next:       next,
	}
}

func (c *Compiler) updateRunTask(journeyID string, status models.RunStatus, next string) statemachine.Task {
	return statemachine.Task{
		Resource:  c.opts.TaskResource,
		InputPath: "$",
		Parameters: map[string]any{
			"state_name.$":     "$$.State.Name",
			"task_type":        TaskUpdateRun,
			"journey_id":       journeyID,
			"journey_run_id.$": "$.journey_run_id",
			"status":           string(status),
		},
		OutputPath: "$",
		Next:       next,
	}
}
