package file

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
)

// RunRepository handles journey run file operations.
type RunRepository struct {
	mu    sync.RWMutex
	store store
}

// GetByID retrieves a run by its ID.
func (rr *RunRepository) GetByID(_ context.Context, id string) (*models.JourneyRun, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	var run models.JourneyRun

	found, err := rr.store.read(id, &run)
	if err != nil {
		return nil, persistence.NewRunError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
	}

	return &run, nil
}

// ListByJourney returns the runs of one journey, most recently started first.
func (rr *RunRepository) ListByJourney(_ context.Context, journeyID string, opts persistence.ListRunsOptions) ([]*models.JourneyRun, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	ids, err := rr.store.ids()
	if err != nil {
		return nil, err
	}

	runs := make([]*models.JourneyRun, 0)

	for _, id := range ids {
		var run models.JourneyRun

		found, err := rr.store.read(id, &run)
		if err != nil {
			return nil, persistence.NewRunError("ListByJourney", id, err)
		}

		if !found || run.Journey != journeyID {
			continue
		}

		if opts.Status != "" && run.Status != opts.Status {
			continue
		}

		runs = append(runs, &run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].TimeStarted.Equal(runs[j].TimeStarted) {
			return runs[i].ID < runs[j].ID
		}

		return runs[i].TimeStarted.After(runs[j].TimeStarted)
	})

	start := min(max(opts.Offset, 0), len(runs))
	end := min(start+persistence.NormalizeLimit(opts.Limit), len(runs))

	return runs[start:end], nil
}

// Save writes a run to the file system.
func (rr *RunRepository) Save(_ context.Context, run *models.JourneyRun) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}

	run.UpdatedAt = now

	if err := rr.store.write(run.ID, run); err != nil {
		return persistence.NewRunError("Save", run.ID, err)
	}

	return nil
}
