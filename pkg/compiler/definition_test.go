package compiler

import (
	"encoding/json"
	"testing"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResource = "arn:aws:lambda:us-east-1:123456789012:function:journey-tasks"

func stateNames(def *statemachine.Definition) []string {
	names := make([]string, 0, def.Len())
	for _, named := range def.States() {
		names = append(names, named.Name)
	}

	return names
}

func mustState[T statemachine.State](t *testing.T, def *statemachine.Definition, name string) T {
	t.Helper()

	state, ok := def.State(name)
	require.True(t, ok, "state %q not found", name)

	typed, ok := state.(T)
	require.True(t, ok, "state %q is %T", name, state)

	return typed
}

func TestCompiler_Definition_WaitThenReward(t *testing.T) {
	journey := &models.Journey{
		ID:    "jny_1",
		Start: "A",
		States: map[string]*models.Action{
			"A": {Type: models.ActionWait, Config: map[string]any{"seconds": 5}, Next: "B"},
			"B": {Type: models.ActionSendReward, Config: map[string]any{"product": "prd_1"}, End: true},
		},
		Trigger: models.Trigger{Type: models.TriggerTypeEvent},
	}

	def, err := New(Options{TaskResource: testResource}).Definition(journey)
	require.NoError(t, err)

	assert.Equal(t, StateCreateRun, def.StartAt())
	assert.Equal(t, []string{
		StateCreateRun, StateStartRun, "A", "B", StateSaveSuccessRun, StateSuccess, StateSaveFailRun, StateFail,
	}, stateNames(def))

	createRun := mustState[statemachine.Task](t, def, StateCreateRun)
	assert.Equal(t, testResource, createRun.Resource)
	assert.Equal(t, StateStartRun, createRun.Next)
	assert.Equal(t, TaskCreateRun, createRun.Parameters["task_type"])
	assert.Equal(t, "jny_1", createRun.Parameters["journey_id"])
	assert.Equal(t, "$", createRun.Parameters["trigger_event.$"])
	assert.Empty(t, createRun.Catch)

	startRun := mustState[statemachine.Wait](t, def, StateStartRun)
	assert.Equal(t, DefaultStartWaitSeconds, startRun.Seconds)
	assert.Equal(t, "A", startRun.Next)

	wait := mustState[statemachine.Wait](t, def, "A")
	assert.Equal(t, 5, wait.Seconds)
	assert.Equal(t, "B", wait.Next)

	reward := mustState[statemachine.Task](t, def, "B")
	assert.Equal(t, "send_reward", reward.Parameters["task_type"])
	assert.Equal(t, "$.journey_run_id", reward.Parameters["journey_run_id.$"])
	assert.Equal(t, StateSaveSuccessRun, reward.Next)
	require.Len(t, reward.Catch, 1)
	assert.Equal(t, []string{statemachine.ErrorsAll}, reward.Catch[0].ErrorEquals)
	assert.Equal(t, StateSaveFailRun, reward.Catch[0].Next)

	success := mustState[statemachine.Task](t, def, StateSaveSuccessRun)
	assert.Equal(t, TaskUpdateRun, success.Parameters["task_type"])
	assert.Equal(t, "completed", success.Parameters["status"])
	assert.Equal(t, StateSuccess, success.Next)

	fail := mustState[statemachine.Task](t, def, StateSaveFailRun)
	assert.Equal(t, "failed", fail.Parameters["status"])
	assert.Equal(t, StateFail, fail.Next)

	mustState[statemachine.Succeed](t, def, StateSuccess)
	mustState[statemachine.Fail](t, def, StateFail)
}

func TestCompiler_Definition_NoFailureTailWithoutFailureProneStates(t *testing.T) {
	journey := &models.Journey{
		ID:    "jny_wait",
		Start: "Pause",
		States: map[string]*models.Action{
			"Pause":  {Type: models.ActionWait, Config: map[string]any{"seconds": 60}, Next: "Pause2"},
			"Pause2": {Type: models.ActionWait, Config: map[string]any{"seconds": 0}, End: true},
		},
	}

	def, err := New(Options{}).Definition(journey)
	require.NoError(t, err)

	_, ok := def.State(StateSaveFailRun)
	assert.False(t, ok)
	_, ok = def.State(StateFail)
	assert.False(t, ok)
}

func TestCompiler_Definition_FailurePronePropertyHoldsForEveryTaskKind(t *testing.T) {
	kinds := []models.ActionKind{
		models.ActionCreateNote, models.ActionSendAppMessage, models.ActionSendEmailMessage,
		models.ActionSendReward, models.ActionTagContact, models.ActionMatchAll, models.ActionMatchAny,
	}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			journey := &models.Journey{
				ID:    "jny_" + string(kind),
				Start: "Step",
				States: map[string]*models.Action{
					"Step": {Type: kind, End: true},
				},
			}

			def, err := New(Options{}).Definition(journey)
			require.NoError(t, err)

			var saveFail, failStates int

			for _, named := range def.States() {
				switch named.Name {
				case StateSaveFailRun:
					saveFail++
				case StateFail:
					failStates++
				}

				if task, ok := named.State.(statemachine.Task); ok && len(task.Catch) > 0 {
					for _, catcher := range task.Catch {
						assert.Equal(t, StateSaveFailRun, catcher.Next)
					}
				}
			}

			assert.Equal(t, 1, saveFail)
			assert.Equal(t, 1, failStates)

			step := mustState[statemachine.Task](t, def, "Step")
			assert.Equal(t, string(kind), step.Parameters["task_type"])
			require.Len(t, step.Catch, 1)
		})
	}
}

func TestCompiler_Definition_MatchBranches(t *testing.T) {
	journey := &models.Journey{
		ID:    "jny_match",
		Start: "Is VIP",
		States: map[string]*models.Action{
			"Is VIP": {
				Type: models.ActionMatchAll,
				Config: map[string]any{"filters": []any{
					map[string]any{"field": "tier", "operator": "equal", "value": "vip"},
				}},
				Next: "Has email",
			},
			"Has email": {Type: models.ActionMatchAny, End: true},
		},
	}

	def, err := New(Options{}).Definition(journey)
	require.NoError(t, err)

	vip := mustState[statemachine.Task](t, def, "Is VIP")
	assert.Equal(t, ChoiceStateName("Is VIP"), vip.Next)

	vipChoice := mustState[statemachine.Choice](t, def, "Is VIP matched?")
	require.Len(t, vipChoice.Choices, 1)
	assert.Equal(t, MatchVariable, vipChoice.Choices[0].Variable)
	assert.True(t, vipChoice.Choices[0].BooleanEquals)
	assert.Equal(t, "Has email", vipChoice.Choices[0].Next)
	assert.Equal(t, StateSaveSuccessRun, vipChoice.Default)

	emailChoice := mustState[statemachine.Choice](t, def, "Has email matched?")
	assert.Equal(t, StateSaveSuccessRun, emailChoice.Choices[0].Next)
	assert.Equal(t, StateSaveSuccessRun, emailChoice.Default)

	assert.NotEqual(t, vip.Next, mustState[statemachine.Task](t, def, "Has email").Next)
}

func TestCompiler_Definition_NextReferencesResolve(t *testing.T) {
	journey := &models.Journey{
		ID:    "jny_chain",
		Start: "One",
		States: map[string]*models.Action{
			"One":   {Type: models.ActionTagContact, Next: "Two"},
			"Two":   {Type: models.ActionCreateNote, Next: "Three"},
			"Three": {Type: models.ActionSendEmailMessage, End: true},
		},
	}

	def, err := New(Options{}).Definition(journey)
	require.NoError(t, err)

	for name, action := range journey.States {
		task := mustState[statemachine.Task](t, def, name)
		if action.End {
			assert.Equal(t, StateSaveSuccessRun, task.Next)
		} else {
			assert.Equal(t, action.Next, task.Next)

			_, ok := def.State(action.Next)
			assert.True(t, ok)
		}
	}
}

func TestCompiler_Definition_StartEnd(t *testing.T) {
	def, err := New(Options{}).Definition(&models.Journey{ID: "jny_empty", Start: models.StartEnd})
	require.NoError(t, err)

	startRun := mustState[statemachine.Wait](t, def, StateStartRun)
	assert.Equal(t, StateSaveSuccessRun, startRun.Next)
	assert.Equal(t, 4, def.Len())
}

func TestCompiler_Definition_Deterministic(t *testing.T) {
	journey := &models.Journey{
		ID:    "jny_det",
		Start: "c",
		States: map[string]*models.Action{
			"c": {Type: models.ActionCreateNote, Next: "a"},
			"a": {Type: models.ActionMatchAny, Next: "b"},
			"b": {Type: models.ActionWait, Config: map[string]any{"seconds": 1.0}, End: true},
		},
	}

	c := New(Options{TaskResource: testResource})

	first, err := c.Definition(journey)
	require.NoError(t, err)

	for range 5 {
		again, err := c.Definition(journey)
		require.NoError(t, err)
		assert.Equal(t, first.String(), again.String())
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(first.String()), &decoded))
	assert.Equal(t, DefaultComment, decoded["Comment"])
}

func TestCompiler_Definition_Errors(t *testing.T) {
	tests := []struct {
		name    string
		journey *models.Journey
		wantErr error
		state   string
	}{
		{
			name:    "missing start",
			journey: &models.Journey{ID: "j"},
			wantErr: ErrMissingStart,
		},
		{
			name:    "unknown start",
			journey: &models.Journey{ID: "j", Start: "Nope", States: map[string]*models.Action{}},
			wantErr: ErrUnknownState,
		},
		{
			name: "invalid action type",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A": {Type: "send_sms", End: true},
			}},
			wantErr: ErrInvalidActionType,
			state:   "A",
		},
		{
			name: "missing transition",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A": {Type: models.ActionCreateNote},
			}},
			wantErr: ErrMissingTransition,
			state:   "A",
		},
		{
			name: "ambiguous transition",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A": {Type: models.ActionCreateNote, Next: "B", End: true},
				"B": {Type: models.ActionCreateNote, End: true},
			}},
			wantErr: ErrAmbiguousTransition,
			state:   "A",
		},
		{
			name: "dangling next",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A": {Type: models.ActionCreateNote, Next: "Ghost"},
			}},
			wantErr: ErrUnknownState,
			state:   "A",
		},
		{
			name: "wait without seconds",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A": {Type: models.ActionWait, End: true},
			}},
			wantErr: ErrMissingWaitSeconds,
			state:   "A",
		},
		{
			name: "negative wait",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A": {Type: models.ActionWait, Config: map[string]any{"seconds": -1}, End: true},
			}},
			wantErr: ErrMissingWaitSeconds,
			state:   "A",
		},
		{
			name: "fractional wait",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A": {Type: models.ActionWait, Config: map[string]any{"seconds": 5.9}, End: true},
			}},
			wantErr: ErrMissingWaitSeconds,
			state:   "A",
		},
		{
			name: "match filter with unknown operator",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A": {Type: models.ActionMatchAny, Config: map[string]any{"filters": []any{
					map[string]any{"field": "plan", "operator": "like", "value": "pro"},
				}}, End: true},
			}},
			wantErr: ErrInvalidOperator,
			state:   "A",
		},
		{
			name: "reserved name",
			journey: &models.Journey{ID: "j", Start: "Success", States: map[string]*models.Action{
				"Success": {Type: models.ActionWait, Config: map[string]any{"seconds": 1}, End: true},
			}},
			wantErr: ErrDuplicateState,
			state:   "Success",
		},
		{
			name: "choice name collision",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A":          {Type: models.ActionMatchAll, Next: "A matched?"},
				"A matched?": {Type: models.ActionCreateNote, End: true},
			}},
			wantErr: ErrDuplicateState,
			state:   "A matched?",
		},
		{
			name: "unreachable state",
			journey: &models.Journey{ID: "j", Start: "A", States: map[string]*models.Action{
				"A":      {Type: models.ActionCreateNote, End: true},
				"Orphan": {Type: models.ActionCreateNote, End: true},
			}},
			wantErr: ErrUnreachableState,
			state:   "Orphan",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := New(Options{}).Definition(tt.journey)
			require.Error(t, err)
			assert.Nil(t, def)
			assert.ErrorIs(t, err, tt.wantErr)

			var compErr *CompilationError
			require.ErrorAs(t, err, &compErr)
			assert.Equal(t, "j", compErr.Journey)
			assert.Equal(t, tt.state, compErr.State)
		})
	}
}

func TestCompiler_Compile(t *testing.T) {
	c := New(Options{})

	artifacts, err := c.Compile(eventJourney(&models.EventTrigger{Source: "contacts", DetailType: "contact.created"}))
	require.NoError(t, err)
	assert.NotNil(t, artifacts.Definition)
	assert.NotNil(t, artifacts.Pattern)
	assert.Nil(t, artifacts.Schedule)

	artifacts, err = c.Compile(scheduleJourney(models.ScheduleSpec{Rate: "5 minutes"}))
	require.NoError(t, err)
	assert.Nil(t, artifacts.Pattern)
	require.NotNil(t, artifacts.Schedule)
	assert.Equal(t, "rate(5 minutes)", artifacts.Schedule.Expression)

	journey := eventJourney(nil)
	journey.Trigger.Type = "webhook"

	_, err = c.Compile(journey)
	assert.ErrorIs(t, err, ErrInvalidTriggerType)
}
