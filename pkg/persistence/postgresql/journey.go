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

// JourneyRepository handles journey-related database operations.
type JourneyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJourneyRepository creates a new journey repository.
func NewJourneyRepository(db *sql.DB, logger *slog.Logger) *JourneyRepository {
	return &JourneyRepository{db: db, logger: logger}
}

const journeyColumns = `
			id
		  , account
		  , name
		  , description
		  , active
		  , start
		  , states
		  , trigger
		  , metadata
		  , created_at
		  , updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJourney(row rowScanner) (*models.Journey, error) {
	var (
		journey                   models.Journey
		states, trigger, metadata []byte
	)

	err := row.Scan(
		&journey.ID,
		&journey.Account,
		&journey.Name,
		&journey.Description,
		&journey.Active,
		&journey.Start,
		&states,
		&trigger,
		&metadata,
		&journey.CreatedAt,
		&journey.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(states, &journey.States); err != nil {
		return nil, fmt.Errorf("failed to unmarshal states: %w", err)
	}

	if err := json.Unmarshal(trigger, &journey.Trigger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &journey.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &journey, nil
}

// GetByID returns a journey by id.
func (r *JourneyRepository) GetByID(ctx context.Context, id string) (*models.Journey, error) {
	query := `SELECT ` + journeyColumns + `
		FROM journeys
		WHERE id = $1
	`

	journey, err := scanJourney(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewJourneyError("GetByID", id, persistence.ErrJourneyNotFound)
		}

		return nil, persistence.NewJourneyError("GetByID", id, err)
	}

	return journey, nil
}

// List returns a page of journeys, newest first.
func (r *JourneyRepository) List(ctx context.Context, opts persistence.ListJourneysOptions) (*persistence.JourneyListResult, error) {
	where := `WHERE ($1::TEXT = '' OR account = $1) AND ($2::BOOLEAN IS NULL OR active = $2)`

	var active sql.NullBool
	if opts.Active != nil {
		active = sql.NullBool{Bool: *opts.Active, Valid: true}
	}

	var total int64

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journeys `+where, opts.Account, active).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count journeys: %w", err)
	}

	limit := persistence.NormalizeLimit(opts.Limit)
	offset := max(opts.Offset, 0)

	query := `SELECT ` + journeyColumns + `
		FROM journeys
		` + where + `
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, opts.Account, active, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query journeys: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	journeys := make([]*models.Journey, 0, limit)

	for rows.Next() {
		journey, err := scanJourney(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}

		journeys = append(journeys, journey)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journeys: %w", err)
	}

	return &persistence.JourneyListResult{
		Journeys:    journeys,
		TotalCount:  total,
		HasNextPage: int64(offset+len(journeys)) < total,
	}, nil
}

// Save inserts or replaces a journey.
func (r *JourneyRepository) Save(ctx context.Context, journey *models.Journey) error {
	now := time.Now().UTC()
	if journey.CreatedAt.IsZero() {
		journey.CreatedAt = now
	}

	if journey.UpdatedAt.IsZero() {
		journey.UpdatedAt = now
	}

	states, err := json.Marshal(journey.States)
	if err != nil {
		return persistence.NewJourneyError("Save", journey.ID, fmt.Errorf("failed to marshal states: %w", err))
	}

	trigger, err := json.Marshal(journey.Trigger)
	if err != nil {
		return persistence.NewJourneyError("Save", journey.ID, fmt.Errorf("failed to marshal trigger: %w", err))
	}

	var metadata []byte
	if journey.Metadata != nil {
		metadata, err = json.Marshal(journey.Metadata)
		if err != nil {
			return persistence.NewJourneyError("Save", journey.ID, fmt.Errorf("failed to marshal metadata: %w", err))
		}
	}

	query := `
		INSERT INTO journeys (id, account, name, description, active, start, states, trigger, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			account = EXCLUDED.account
		  , name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , active = EXCLUDED.active
		  , start = EXCLUDED.start
		  , states = EXCLUDED.states
		  , trigger = EXCLUDED.trigger
		  , metadata = EXCLUDED.metadata
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		journey.ID,
		journey.Account,
		journey.Name,
		journey.Description,
		journey.Active,
		journey.Start,
		states,
		trigger,
		metadata,
		journey.CreatedAt,
		journey.UpdatedAt,
	)
	if err != nil {
		return persistence.NewJourneyError("Save", journey.ID, err)
	}

	return nil
}

// Delete removes a journey.
func (r *JourneyRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM journeys WHERE id = $1`, id)
	if err != nil {
		return persistence.NewJourneyError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewJourneyError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewJourneyError("Delete", id, persistence.ErrJourneyNotFound)
	}

	return nil
}
