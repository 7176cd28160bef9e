package file

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// JourneyRepository handles journey-related file operations.
type JourneyRepository struct {
	mu    sync.RWMutex
	store store
}

// GetByID retrieves a journey by its ID from the file system.
func (jr *JourneyRepository) GetByID(_ context.Context, id string) (*models.Journey, error) {
	jr.mu.RLock()
	defer jr.mu.RUnlock()

	var journey models.Journey

	found, err := jr.store.read(id, &journey)
	if err != nil {
		return nil, persistence.NewJourneyError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewJourneyError("GetByID", id, persistence.ErrJourneyNotFound)
	}

	return &journey, nil
}

// List returns paginated journeys with in-memory filtering, newest first.
func (jr *JourneyRepository) List(ctx context.Context, opts persistence.ListJourneysOptions) (*persistence.JourneyListResult, error) {
	jr.mu.RLock()
	defer jr.mu.RUnlock()

	ids, err := jr.store.ids()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Journey, 0, len(ids))

	for _, id := range ids {
		var journey models.Journey

		found, err := jr.store.read(id, &journey)
		if err != nil {
			return nil, persistence.NewJourneyError("List", id, err)
		}

		if !found {
			continue
		}

		if opts.Account != "" && journey.Account != opts.Account {
			continue
		}

		if opts.Active != nil && journey.Active != *opts.Active {
			continue
		}

		filtered = append(filtered, &journey)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].ID < filtered[j].ID
		}

		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	limit := persistence.NormalizeLimit(opts.Limit)
	total := len(filtered)

	start := min(max(opts.Offset, 0), total)
	end := min(start+limit, total)

	return &persistence.JourneyListResult{
		Journeys:    filtered[start:end],
		TotalCount:  int64(total),
		HasNextPage: end < total,
	}, nil
}

// Save writes a journey to the file system.
func (jr *JourneyRepository) Save(_ context.Context, journey *models.Journey) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	now := time.Now().UTC()
	if journey.CreatedAt.IsZero() {
		journey.CreatedAt = now
	}

	if journey.UpdatedAt.IsZero() {
		journey.UpdatedAt = now
	}

	if err := jr.store.write(journey.ID, journey); err != nil {
		return persistence.NewJourneyError("Save", journey.ID, err)
	}

	return nil
}

// Delete removes a journey from the file system.
func (jr *JourneyRepository) Delete(_ context.Context, id string) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	found, err := jr.store.remove(id)
	if err != nil {
		return persistence.NewJourneyError("Delete", id, err)
	}

	if !found {
		return persistence.NewJourneyError("Delete", id, persistence.ErrJourneyNotFound)
	}

	return nil
}
