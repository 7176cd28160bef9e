package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/journeys/pkg/compiler"
	"github.com/dukex/journeys/pkg/eventbus"
	"github.com/dukex/journeys/pkg/events"
	"github.com/dukex/journeys/pkg/metrics"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RunIDPrefix starts every journey run id.
const RunIDPrefix = "run_"

var validate = validator.New(validator.WithRequiredStructEnabled())

// TaskInput is the payload a workflow task sends back. Its fields are the task
// parameters of the compiled definition.
type TaskInput struct {
	TaskType     string           `json:"task_type"                validate:"required"`
	JourneyID    string           `json:"journey_id"               validate:"required"`
	JourneyRunID string           `json:"journey_run_id,omitempty"`
	StateName    string           `json:"state_name,omitempty"`
	Status       models.RunStatus `json:"status,omitempty"`
	TriggerEvent map[string]any   `json:"trigger_event,omitempty"`
}

// TaskOutput is handed to the next state of the workflow.
type TaskOutput struct {
	JourneyID    string `json:"journey_id"`
	JourneyRunID string `json:"journey_run_id"`
}

// StateResult is what one action state reports for a run.
type StateResult struct {
	Status      models.RunStatus `json:"status,omitempty"`
	Result      map[string]any   `json:"result,omitempty"`
	TimeStarted *time.Time       `json:"time_started,omitempty"`
	TimeEnded   *time.Time       `json:"time_ended,omitempty"`
}

// Runs maintains journey run records from workflow callbacks. It never executes
// actions; the external executor does.
type Runs struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewRuns creates the run service. publisher and m may be nil.
func NewRuns(p persistence.Persistence, publisher eventbus.EventPublisher, m *metrics.Metrics, logger *slog.Logger) *Runs {
	if m == nil {
		m = metrics.New(nil)
	}

	return &Runs{
		persistence: p,
		publisher:   publisher,
		metrics:     m,
		logger:      logger.With("module", "runs"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleTask applies a create_run or update_run callback. Action task types are run
// by the executor and rejected here with ErrUnsupportedTask.
func (r *Runs) HandleTask(ctx context.Context, input TaskInput) (*TaskOutput, error) {
	if err := validate.Struct(input); err != nil {
		return nil, NewValidationError("HandleTask", "INVALID_TASK", err.Error(), ErrInvalidTaskInput)
	}

	var (
		output *TaskOutput
		err    error
	)

	switch input.TaskType {
	case compiler.TaskCreateRun:
		output, err = r.createRun(ctx, input)
	case compiler.TaskUpdateRun:
		output, err = r.updateRun(ctx, input)
	default:
		err = NewValidationError("HandleTask", "UNSUPPORTED_TASK",
			fmt.Sprintf("task type %q is executed by the action executor", input.TaskType), ErrUnsupportedTask)
	}

	r.metrics.RunCallbacks.WithLabelValues(input.TaskType, metrics.Outcome(err)).Inc()

	if err != nil {
		r.logger.WarnContext(ctx, "task callback failed", "task_type", input.TaskType, "journey_id", input.JourneyID, "error", err)

		return nil, err
	}

	return output, nil
}

func (r *Runs) createRun(ctx context.Context, input TaskInput) (*TaskOutput, error) {
	now := r.now()
	run := &models.JourneyRun{
		ID:           RunIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Account:      stringField(input.TriggerEvent, "account"),
		Contact:      stringField(input.TriggerEvent, "contact"),
		Journey:      input.JourneyID,
		Status:       models.RunStatusRunning,
		Results:      map[string]models.RunStateResult{},
		TriggerEvent: input.TriggerEvent,
		TimeStarted:  now,
		CreatedAt:    now,
	}

	if err := r.persistence.RunRepository().Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	r.logger.InfoContext(ctx, "run created", "journey_id", run.Journey, "run_id", run.ID, "contact", run.Contact)

	return &TaskOutput{JourneyID: run.Journey, JourneyRunID: run.ID}, nil
}

func (r *Runs) updateRun(ctx context.Context, input TaskInput) (*TaskOutput, error) {
	if !input.Status.Terminal() {
		return nil, NewValidationError("HandleTask", "INVALID_STATUS",
			fmt.Sprintf("update_run status must be completed or failed, got %q", input.Status), ErrInvalidRunStatus)
	}

	run, err := r.load(ctx, input.JourneyID, input.JourneyRunID)
	if err != nil {
		return nil, err
	}

	if run.Status.Terminal() {
		if run.Status == input.Status {
			return &TaskOutput{JourneyID: run.Journey, JourneyRunID: run.ID}, nil
		}

		return nil, &ServiceError{
			Op:      "HandleTask",
			Code:    "RUN_FINISHED",
			Message: fmt.Sprintf("run %s already %s", run.ID, run.Status),
			Err:     ErrRunFinished,
		}
	}

	ended := r.now()
	run.Status = input.Status
	run.TimeEnded = &ended

	if err := r.persistence.RunRepository().Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update run: %w", err)
	}

	r.logger.InfoContext(ctx, "run finished", "journey_id", run.Journey, "run_id", run.ID, "status", run.Status)

	if r.publisher != nil {
		event := events.RunFinished{
			BaseEvent: events.NewBaseEvent(events.RunFinishedEvent, run.Journey, run.Account),
			RunID:     run.ID,
			Status:    string(run.Status),
			Duration:  ended.Sub(run.TimeStarted),
		}

		if err := r.publisher.Publish(ctx, run.Journey, event); err != nil {
			r.logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "run_id", run.ID, "error", err)
		}
	}

	return &TaskOutput{JourneyID: run.Journey, JourneyRunID: run.ID}, nil
}

// RecordStateResult stores the result of one state of a running run. A repeated
// state overwrites its earlier result.
func (r *Runs) RecordStateResult(ctx context.Context, runID, state string, result StateResult) (*models.JourneyRun, error) {
	if strings.TrimSpace(state) == "" {
		return nil, NewValidationError("RecordStateResult", "INVALID_STATE", "state name is required", ErrInvalidRequest)
	}

	status := result.Status
	if status == "" {
		status = models.RunStatusCompleted
	}

	if status != models.RunStatusCompleted && status != models.RunStatusFailed {
		return nil, NewValidationError("RecordStateResult", "INVALID_STATUS",
			fmt.Sprintf("state status must be completed or failed, got %q", status), ErrInvalidRunStatus)
	}

	run, err := r.load(ctx, "", runID)
	if err != nil {
		return nil, err
	}

	if run.Status.Terminal() {
		return nil, &ServiceError{
			Op:      "RecordStateResult",
			Code:    "RUN_FINISHED",
			Message: fmt.Sprintf("run %s already %s", run.ID, run.Status),
			Err:     ErrRunFinished,
		}
	}

	now := r.now()
	stateResult := models.RunStateResult{
		Name:        state,
		Result:      result.Result,
		Status:      status,
		TimeStarted: now,
		TimeEnded:   now,
	}

	if result.TimeStarted != nil {
		stateResult.TimeStarted = result.TimeStarted.UTC()
	}

	if result.TimeEnded != nil {
		stateResult.TimeEnded = result.TimeEnded.UTC()
	}

	if run.Results == nil {
		run.Results = map[string]models.RunStateResult{}
	}

	run.Results[state] = stateResult

	if err := r.persistence.RunRepository().Save(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record state result: %w", err)
	}

	r.logger.DebugContext(ctx, "state result recorded", "run_id", run.ID, "state", state, "status", status)

	return run, nil
}

// Get retrieves a run by its ID.
func (r *Runs) Get(ctx context.Context, runID string) (*models.JourneyRun, error) {
	return r.persistence.RunRepository().GetByID(ctx, runID)
}

// ListRunsRequest filters the runs of a journey.
type ListRunsRequest struct {
	Status models.RunStatus
	Limit  int
	Offset int
}

// List returns the runs of a journey, newest first.
func (r *Runs) List(ctx context.Context, journeyID string, req ListRunsRequest) ([]*models.JourneyRun, error) {
	switch req.Status {
	case "", models.RunStatusRunning, models.RunStatusCompleted, models.RunStatusFailed:
	default:
		return nil, NewValidationError("List", "INVALID_STATUS", fmt.Sprintf("invalid run status %q", req.Status), ErrInvalidRunStatus)
	}

	if req.Limit < 0 || req.Limit > persistence.MaxListLimit || req.Offset < 0 {
		return nil, NewValidationError("List", "INVALID_PAGE", "invalid limit or offset", ErrInvalidRequest)
	}

	runs, err := r.persistence.RunRepository().ListByJourney(ctx, journeyID, persistence.ListRunsOptions{
		Status: req.Status,
		Limit:  persistence.NormalizeLimit(req.Limit),
		Offset: req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

func (r *Runs) load(ctx context.Context, journeyID, runID string) (*models.JourneyRun, error) {
	if runID == "" {
		return nil, NewValidationError("HandleTask", "MISSING_RUN_ID", "journey_run_id is required", ErrInvalidTaskInput)
	}

	run, err := r.persistence.RunRepository().GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if journeyID != "" && run.Journey != journeyID {
		return nil, &ServiceError{
			Op:      "HandleTask",
			Code:    "RUN_MISMATCH",
			Message: fmt.Sprintf("run %s belongs to journey %s", run.ID, run.Journey),
			Err:     ErrRunMismatch,
		}
	}

	return run, nil
}

func stringField(document map[string]any, key string) string {
	value, _ := document[key].(string)

	return value
}
