package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/journeys/pkg/compiler"
	"github.com/dukex/journeys/pkg/locker"
	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/dukex/journeys/pkg/registrar"
	"github.com/google/uuid"
)

// JourneyIDPrefix starts every journey id.
const JourneyIDPrefix = "jny_"

// Syncer is the part of Sync the CRUD service drives.
type Syncer interface {
	Sync(ctx context.Context, journey *models.Journey, create bool) (*compiler.Artifacts, error)
	Delete(ctx context.Context, journeyID string) *registrar.CleanupReport
}

// Journeys is the CRUD layer over journey documents. Every mutation holds the
// journey lock and re-runs the full sync.
type Journeys struct {
	persistence persistence.Persistence
	syncer      Syncer
	locker      locker.Locker
	lockTTL     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewJourneys(p persistence.Persistence, syncer Syncer, l locker.Locker, logger *slog.Logger) *Journeys {
	return &Journeys{
		persistence: p,
		syncer:      syncer,
		locker:      l,
		lockTTL:     locker.DefaultTTL,
		logger:      logger.With("module", "journeys"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NewJourneyID returns a fresh journey id.
func NewJourneyID() string {
	return JourneyIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HealthCheck checks the health of the persistence layer.
func (j *Journeys) HealthCheck(ctx context.Context) (string, bool) {
	if j.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := j.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Get retrieves a journey by its ID.
func (j *Journeys) Get(ctx context.Context, id string) (*models.Journey, error) {
	return j.persistence.JourneyRepository().GetByID(ctx, id)
}

// ListJourneysRequest contains options for listing journeys.
type ListJourneysRequest struct {
	Account string
	Active  *bool
	Limit   int
	Offset  int
}

// List returns a page of journeys, newest first.
func (j *Journeys) List(ctx context.Context, req ListJourneysRequest) (*persistence.JourneyListResult, error) {
	if req.Limit < 0 || req.Limit > persistence.MaxListLimit {
		return nil, NewValidationError("List", "INVALID_LIMIT",
			fmt.Sprintf("limit must be between 1 and %d", persistence.MaxListLimit), ErrInvalidRequest)
	}

	if req.Offset < 0 {
		return nil, NewValidationError("List", "INVALID_OFFSET", "offset must not be negative", ErrInvalidRequest)
	}

	result, err := j.persistence.JourneyRepository().List(ctx, persistence.ListJourneysOptions{
		Account: strings.TrimSpace(req.Account),
		Active:  req.Active,
		Limit:   persistence.NormalizeLimit(req.Limit),
		Offset:  req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list journeys: %w", err)
	}

	return result, nil
}

// Create assigns an id, syncs the journey with create semantics and stores it. A
// journey whose sync fails is not stored.
func (j *Journeys) Create(ctx context.Context, journey *models.Journey) (*models.Journey, error) {
	if journey == nil {
		return nil, ErrJourneyNil
	}

	if err := models.ValidateJourney(journey); err != nil {
		return nil, NewValidationError("Create", "INVALID_JOURNEY", err.Error(), err)
	}

	now := j.now()
	journey.ID = NewJourneyID()
	journey.CreatedAt = now
	journey.UpdatedAt = now

	unlock, err := j.lock(ctx, journey.ID)
	if err != nil {
		return nil, err
	}
	defer j.unlock(ctx, journey.ID, unlock)

	if _, err := j.syncer.Sync(ctx, journey, true); err != nil {
		return nil, err
	}

	if err := j.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		j.logger.ErrorContext(ctx, "failed to store synced journey, tearing down", "journey_id", journey.ID, "error", err)
		j.syncer.Delete(ctx, journey.ID)

		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	j.logger.InfoContext(ctx, "journey created", "journey_id", journey.ID, "account", journey.Account)

	return journey, nil
}

// UpdateJourneyRequest holds the fields to change. Nil fields are left as they are;
// States and Metadata replace the stored maps when set.
type UpdateJourneyRequest struct {
	Name        *string                   `json:"name,omitempty"`
	Description *string                   `json:"description,omitempty"`
	Active      *bool                     `json:"active,omitempty"`
	Start       *string                   `json:"start,omitempty"`
	States      map[string]*models.Action `json:"states,omitempty"`
	Trigger     *models.Trigger           `json:"trigger,omitempty"`
	Metadata    map[string]any            `json:"metadata,omitempty"`
}

func (r UpdateJourneyRequest) apply(journey *models.Journey) {
	if r.Name != nil {
		journey.Name = *r.Name
	}

	if r.Description != nil {
		journey.Description = *r.Description
	}

	if r.Active != nil {
		journey.Active = *r.Active
	}

	if r.Start != nil {
		journey.Start = *r.Start
	}

	if r.States != nil {
		journey.States = r.States
	}

	if r.Trigger != nil {
		journey.Trigger = *r.Trigger
	}

	if r.Metadata != nil {
		journey.Metadata = r.Metadata
	}
}

// Update merges the request into the stored journey, syncs it with update
// semantics and stores the result. The stored document is left untouched when the
// sync fails.
func (j *Journeys) Update(ctx context.Context, id string, req UpdateJourneyRequest) (*models.Journey, error) {
	unlock, err := j.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer j.unlock(ctx, id, unlock)

	journey, err := j.persistence.JourneyRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req.apply(journey)

	if err := models.ValidateJourney(journey); err != nil {
		return nil, NewValidationError("Update", "INVALID_JOURNEY", err.Error(), err)
	}

	journey.UpdatedAt = j.now()

	if _, err := j.syncer.Sync(ctx, journey, false); err != nil {
		return nil, err
	}

	if err := j.persistence.JourneyRepository().Save(ctx, journey); err != nil {
		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	j.logger.InfoContext(ctx, "journey updated", "journey_id", id)

	return journey, nil
}

// Duplicate creates an inactive copy of a journey under a new id.
func (j *Journeys) Duplicate(ctx context.Context, id string) (*models.Journey, error) {
	source, err := j.persistence.JourneyRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	duplicate := source.Clone()
	duplicate.Name = "Duplicate of " + source.Name
	duplicate.Active = false

	return j.Create(ctx, duplicate)
}

// Delete removes the journey document and then tears down its provider resources.
// Teardown runs even when the document is already gone, so resources left behind by
// an interrupted create can be removed. Teardown failures do not fail the delete;
// they are in the returned report.
func (j *Journeys) Delete(ctx context.Context, id string) (*registrar.CleanupReport, error) {
	unlock, err := j.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer j.unlock(ctx, id, unlock)

	if err := j.persistence.JourneyRepository().Delete(ctx, id); err != nil {
		if !persistence.IsJourneyNotFound(err) {
			return nil, err
		}

		j.logger.WarnContext(ctx, "journey document not found, tearing down provider resources", "journey_id", id)
	}

	report := j.syncer.Delete(ctx, id)

	j.logger.InfoContext(ctx, "journey deleted", "journey_id", id, "failed_steps", len(report.Failed()))

	return report, nil
}

func (j *Journeys) lock(ctx context.Context, id string) (locker.UnlockFunc, error) {
	unlock, err := j.locker.TryLock(ctx, id, j.lockTTL)
	if err != nil {
		if errors.Is(err, locker.ErrLocked) {
			return nil, &ServiceError{Op: "lock", Code: "JOURNEY_LOCKED", Message: "journey " + id + " is being modified", Err: err}
		}

		return nil, fmt.Errorf("failed to lock journey %s: %w", id, err)
	}

	return unlock, nil
}

func (j *Journeys) unlock(ctx context.Context, id string, unlock locker.UnlockFunc) {
	if err := unlock(context.WithoutCancel(ctx)); err != nil {
		j.logger.WarnContext(ctx, "failed to release journey lock", "journey_id", id, "error", err)
	}
}
