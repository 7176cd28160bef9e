// Package persistence provides the storage abstraction for journeys and journey runs.
package persistence

import (
	"context"

	"github.com/dukex/journeys/pkg/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type Persistence interface {
	JourneyRepository() JourneyRepository
	RunRepository() RunRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// JourneyRepository stores journey documents. GetByID returns ErrJourneyNotFound
// for unknown ids.
type JourneyRepository interface {
	GetByID(ctx context.Context, id string) (*models.Journey, error)
	List(ctx context.Context, opts ListJourneysOptions) (*JourneyListResult, error)
	Save(ctx context.Context, journey *models.Journey) error
	Delete(ctx context.Context, id string) error
}

// RunRepository stores journey run records. GetByID returns ErrRunNotFound for
// unknown ids.
type RunRepository interface {
	GetByID(ctx context.Context, id string) (*models.JourneyRun, error)
	ListByJourney(ctx context.Context, journeyID string, opts ListRunsOptions) ([]*models.JourneyRun, error)
	Save(ctx context.Context, run *models.JourneyRun) error
}

// ListJourneysOptions filters and paginates journey listings. Results are sorted by
// creation time, newest first.
type ListJourneysOptions struct {
	Account string
	Active  *bool
	Limit   int
	Offset  int
}

// JourneyListResult is one page of journeys.
type JourneyListResult struct {
	Journeys    []*models.Journey `json:"journeys"`
	TotalCount  int64             `json:"total_count"`
	HasNextPage bool              `json:"has_next_page"`
}

// ListRunsOptions filters and paginates run listings. Results are sorted by start
// time, newest first.
type ListRunsOptions struct {
	Status models.RunStatus
	Limit  int
	Offset int
}

// NormalizeLimit clamps a page size to (0, MaxListLimit], using DefaultListLimit
// for unset values.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}

	if limit > MaxListLimit {
		return MaxListLimit
	}

	return limit
}
