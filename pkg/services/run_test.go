package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dukex/journeys/pkg/compiler"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/metrics"
	"github.com/dukex/journeys/pkg/mocks"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence/file"
	"github.com/dukex/journeys/pkg/services"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type runsFixture struct {
	runs    *services.Runs
	bus     *mocks.MockEventBus
	metrics *metrics.Metrics
}

func newRunsFixture(t *testing.T) *runsFixture {
	t.Helper()

	bus := &mocks.MockEventBus{}
	m := metrics.New(nil)

	return &runsFixture{
		runs:    services.NewRuns(file.NewPersistence(t.TempDir()), bus, m, testLogger()),
		bus:     bus,
		metrics: m,
	}
}

func (f *runsFixture) createRun(t *testing.T, journeyID string) string {
	t.Helper()

	output, err := f.runs.HandleTask(context.Background(), services.TaskInput{
		TaskType:  compiler.TaskCreateRun,
		JourneyID: journeyID,
		StateName: compiler.StateCreateRun,
		TriggerEvent: map[string]any{
			"account": "acct_1",
			"contact": "ct_1",
			"detail":  map[string]any{"plan": "pro"},
		},
	})
	require.NoError(t, err)

	return output.JourneyRunID
}

func TestRuns_CreateRun(t *testing.T) {
	f := newRunsFixture(t)
	ctx := context.Background()

	runID := f.createRun(t, "jny_1")
	assert.True(t, strings.HasPrefix(runID, services.RunIDPrefix))

	run, err := f.runs.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Equal(t, "jny_1", run.Journey)
	assert.Equal(t, "acct_1", run.Account)
	assert.Equal(t, "ct_1", run.Contact)
	assert.Empty(t, run.Results)
	assert.Nil(t, run.TimeEnded)
	assert.Equal(t, "pro", run.TriggerEvent["detail"].(map[string]any)["plan"])

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.RunCallbacks.WithLabelValues(compiler.TaskCreateRun, metrics.OutcomeSuccess)), 0)
}

func TestRuns_UpdateRun(t *testing.T) {
	tests := []struct {
		name   string
		status models.RunStatus
	}{
		{"completed", models.RunStatusCompleted},
		{"failed", models.RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunsFixture(t)
			ctx := context.Background()
			runID := f.createRun(t, "jny_1")

			f.bus.On("Publish", mock.Anything, "jny_1", mock.MatchedBy(func(e events.RunFinished) bool {
				return e.RunID == runID && e.Status == string(tt.status) && e.Account == "acct_1"
			})).Return(nil).Once()

			input := services.TaskInput{
				TaskType:     compiler.TaskUpdateRun,
				JourneyID:    "jny_1",
				JourneyRunID: runID,
				Status:       tt.status,
			}

			output, err := f.runs.HandleTask(ctx, input)
			require.NoError(t, err)
			assert.Equal(t, &services.TaskOutput{JourneyID: "jny_1", JourneyRunID: runID}, output)

			run, err := f.runs.Get(ctx, runID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, run.Status)
			require.NotNil(t, run.TimeEnded)
			assert.False(t, run.TimeEnded.Before(run.TimeStarted))

			// Redelivery of the same callback is accepted without a second event.
			_, err = f.runs.HandleTask(ctx, input)
			require.NoError(t, err)
			f.bus.AssertExpectations(t)
		})
	}
}

func TestRuns_UpdateRunErrors(t *testing.T) {
	f := newRunsFixture(t)
	ctx := context.Background()
	runID := f.createRun(t, "jny_1")

	tests := []struct {
		name  string
		input services.TaskInput
		check func(t *testing.T, err error)
	}{
		{
			name:  "missing status",
			input: services.TaskInput{TaskType: compiler.TaskUpdateRun, JourneyID: "jny_1", JourneyRunID: runID},
			check: func(t *testing.T, err error) { require.ErrorIs(t, err, services.ErrInvalidRunStatus) },
		},
		{
			name:  "running is not a final status",
			input: services.TaskInput{TaskType: compiler.TaskUpdateRun, JourneyID: "jny_1", JourneyRunID: runID, Status: models.RunStatusRunning},
			check: func(t *testing.T, err error) { require.ErrorIs(t, err, services.ErrInvalidRunStatus) },
		},
		{
			name:  "missing run id",
			input: services.TaskInput{TaskType: compiler.TaskUpdateRun, JourneyID: "jny_1", Status: models.RunStatusCompleted},
			check: func(t *testing.T, err error) { require.ErrorIs(t, err, services.ErrInvalidTaskInput) },
		},
		{
			name:  "unknown run",
			input: services.TaskInput{TaskType: compiler.TaskUpdateRun, JourneyID: "jny_1", JourneyRunID: "run_missing", Status: models.RunStatusCompleted},
			check: func(t *testing.T, err error) { assert.True(t, services.IsNotFoundError(err)) },
		},
		{
			name:  "run of another journey",
			input: services.TaskInput{TaskType: compiler.TaskUpdateRun, JourneyID: "jny_2", JourneyRunID: runID, Status: models.RunStatusCompleted},
			check: func(t *testing.T, err error) { require.ErrorIs(t, err, services.ErrRunMismatch) },
		},
		{
			name:  "missing task type",
			input: services.TaskInput{JourneyID: "jny_1"},
			check: func(t *testing.T, err error) { require.ErrorIs(t, err, services.ErrInvalidTaskInput) },
		},
		{
			name:  "action tasks run elsewhere",
			input: services.TaskInput{TaskType: string(models.ActionSendReward), JourneyID: "jny_1", JourneyRunID: runID},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, services.ErrUnsupportedTask)
				assert.True(t, services.IsValidationError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.runs.HandleTask(ctx, tt.input)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	run, err := f.runs.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
}

func TestRuns_FinishedRunCannotChangeStatus(t *testing.T) {
	f := newRunsFixture(t)
	ctx := context.Background()
	runID := f.createRun(t, "jny_1")

	f.bus.On("Publish", mock.Anything, "jny_1", mock.Anything).Return(errors.New("bus down")).Once()

	_, err := f.runs.HandleTask(ctx, services.TaskInput{
		TaskType: compiler.TaskUpdateRun, JourneyID: "jny_1", JourneyRunID: runID, Status: models.RunStatusFailed,
	})
	require.NoError(t, err)

	_, err = f.runs.HandleTask(ctx, services.TaskInput{
		TaskType: compiler.TaskUpdateRun, JourneyID: "jny_1", JourneyRunID: runID, Status: models.RunStatusCompleted,
	})
	require.ErrorIs(t, err, services.ErrRunFinished)
	assert.True(t, services.IsConflictError(err))

	_, err = f.runs.RecordStateResult(ctx, runID, "Note", services.StateResult{})
	require.ErrorIs(t, err, services.ErrRunFinished)
}

func TestRuns_RecordStateResult(t *testing.T) {
	f := newRunsFixture(t)
	ctx := context.Background()
	runID := f.createRun(t, "jny_1")
	started := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	run, err := f.runs.RecordStateResult(ctx, runID, "Tag", services.StateResult{
		Result:      map[string]any{"tags": []any{"vip"}},
		TimeStarted: &started,
	})
	require.NoError(t, err)
	require.Contains(t, run.Results, "Tag")
	assert.Equal(t, models.RunStatusCompleted, run.Results["Tag"].Status)
	assert.True(t, started.Equal(run.Results["Tag"].TimeStarted))

	_, err = f.runs.RecordStateResult(ctx, runID, "Match", services.StateResult{
		Status: models.RunStatusFailed,
		Result: map[string]any{"match": false},
	})
	require.NoError(t, err)

	stored, err := f.runs.Get(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, stored.Results, 2)
	assert.Equal(t, models.RunStatusFailed, stored.Results["Match"].Status)
	assert.Equal(t, models.RunStatusRunning, stored.Status)

	_, err = f.runs.RecordStateResult(ctx, runID, " ", services.StateResult{})
	require.ErrorIs(t, err, services.ErrInvalidRequest)

	_, err = f.runs.RecordStateResult(ctx, runID, "Tag", services.StateResult{Status: models.RunStatusRunning})
	require.ErrorIs(t, err, services.ErrInvalidRunStatus)

	_, err = f.runs.RecordStateResult(ctx, "run_missing", "Tag", services.StateResult{})
	assert.True(t, services.IsNotFoundError(err))
}

func TestRuns_List(t *testing.T) {
	f := newRunsFixture(t)
	ctx := context.Background()

	first := f.createRun(t, "jny_1")
	f.createRun(t, "jny_1")
	f.createRun(t, "jny_2")

	f.bus.On("Publish", mock.Anything, "jny_1", mock.Anything).Return(nil)

	_, err := f.runs.HandleTask(ctx, services.TaskInput{
		TaskType: compiler.TaskUpdateRun, JourneyID: "jny_1", JourneyRunID: first, Status: models.RunStatusCompleted,
	})
	require.NoError(t, err)

	runs, err := f.runs.List(ctx, "jny_1", services.ListRunsRequest{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = f.runs.List(ctx, "jny_1", services.ListRunsRequest{Status: models.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, first, runs[0].ID)

	_, err = f.runs.List(ctx, "jny_1", services.ListRunsRequest{Status: "paused"})
	require.ErrorIs(t, err, services.ErrInvalidRunStatus)

	_, err = f.runs.List(ctx, "jny_1", services.ListRunsRequest{Limit: -1})
	require.ErrorIs(t, err, services.ErrInvalidRequest)
}
