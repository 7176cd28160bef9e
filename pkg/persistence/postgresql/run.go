package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// RunRepository handles journey run database operations.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

const runColumns = `
			id
		  , journey_id
		  , account
		  , contact
		  , status
		  , results
		  , trigger_event
		  , time_started
		  , time_ended
		  , created_at
		  , updated_at`

func scanRun(row rowScanner) (*models.JourneyRun, error) {
	var (
		run                   models.JourneyRun
		results, triggerEvent []byte
		timeEnded             sql.NullTime
	)

	err := row.Scan(
		&run.ID,
		&run.Journey,
		&run.Account,
		&run.Contact,
		&run.Status,
		&results,
		&triggerEvent,
		&run.TimeStarted,
		&timeEnded,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(results, &run.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}

	if len(triggerEvent) > 0 {
		if err := json.Unmarshal(triggerEvent, &run.TriggerEvent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger event: %w", err)
		}
	}

	if timeEnded.Valid {
		ended := timeEnded.Time.UTC()
		run.TimeEnded = &ended
	}

	return &run, nil
}

// GetByID returns a run by id.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.JourneyRun, error) {
	query := `SELECT ` + runColumns + `
		FROM journey_runs
		WHERE id = $1
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, err)
	}

	return run, nil
}

// ListByJourney returns the runs of one journey, most recently started first.
func (r *RunRepository) ListByJourney(ctx context.Context, journeyID string, opts persistence.ListRunsOptions) ([]*models.JourneyRun, error) {
	query := `SELECT ` + runColumns + `
		FROM journey_runs
		WHERE journey_id = $1 AND ($2::TEXT = '' OR status = $2)
		ORDER BY time_started DESC, id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query,
		journeyID, string(opts.Status), persistence.NormalizeLimit(opts.Limit), max(opts.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs of journey %s: %w", journeyID, err)
	}
	defer closeRows(ctx, r.logger, rows)

	runs := make([]*models.JourneyRun, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Save inserts or replaces a run.
func (r *RunRepository) Save(ctx context.Context, run *models.JourneyRun) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}

	run.UpdatedAt = now

	results := run.Results
	if results == nil {
		results = map[string]models.RunStateResult{}
	}

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to marshal results: %w", err))
	}

	var triggerJSON []byte
	if run.TriggerEvent != nil {
		triggerJSON, err = json.Marshal(run.TriggerEvent)
		if err != nil {
			return persistence.NewRunError("Save", run.ID, fmt.Errorf("failed to marshal trigger event: %w", err))
		}
	}

	var timeEnded sql.NullTime
	if run.TimeEnded != nil {
		timeEnded = sql.NullTime{Time: *run.TimeEnded, Valid: true}
	}

	query := `
		INSERT INTO journey_runs (id, journey_id, account, contact, status, results, trigger_event, time_started, time_ended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status
		  , contact = EXCLUDED.contact
		  , results = EXCLUDED.results
		  , time_ended = EXCLUDED.time_ended
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Journey,
		run.Account,
		run.Contact,
		string(run.Status),
		resultsJSON,
		triggerJSON,
		run.TimeStarted,
		timeEnded,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	return nil
}
