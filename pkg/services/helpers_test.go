package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/registrar"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

func eventJourney(id string) *models.Journey {
	return &models.Journey{
		ID:      id,
		Account: "acct_1",
		Name:    "Welcome",
		Active:  true,
		Start:   "Pause",
		States: map[string]*models.Action{
			"Pause": {Type: models.ActionWait, Config: map[string]any{"seconds": 60}, Next: "Note"},
			"Note":  {Type: models.ActionCreateNote, Config: map[string]any{"note": "hi"}, End: true},
		},
		Trigger: models.Trigger{
			Type: models.TriggerTypeEvent,
			Event: &models.EventTrigger{
				Source:     "contacts",
				DetailType: "contact.created",
			},
		},
	}
}

func scheduleJourney(id string) *models.Journey {
	journey := eventJourney(id)
	journey.Trigger = models.Trigger{
		Type: models.TriggerTypeSchedule,
		Schedule: &models.ScheduleTrigger{
			Schedule: models.ScheduleSpec{Rate: "1 hour", Start: int64Ptr(1700000000)},
		},
	}

	return journey
}

type registerCall struct {
	Registration registrar.Registration
	Create       bool
}

// fakeRegistrar records calls and returns canned results.
type fakeRegistrar struct {
	mu          sync.Mutex
	registered  []registerCall
	deregistered []string

	registerErr error
	report      func(journeyID string) *registrar.CleanupReport
}

func (f *fakeRegistrar) Register(_ context.Context, reg registrar.Registration, create bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.registered = append(f.registered, registerCall{Registration: reg, Create: create})

	return f.registerErr
}

func (f *fakeRegistrar) Deregister(_ context.Context, journeyID string) *registrar.CleanupReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deregistered = append(f.deregistered, journeyID)

	if f.report != nil {
		return f.report(journeyID)
	}

	steps := make([]registrar.StepResult, 0, len(registrar.CleanupSteps))
	for _, step := range registrar.CleanupSteps {
		steps = append(steps, registrar.StepResult{Step: step, Status: registrar.StepDeleted})
	}

	return &registrar.CleanupReport{JourneyID: journeyID, Steps: steps}
}

func (f *fakeRegistrar) calls() []registerCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]registerCall(nil), f.registered...)
}

func (f *fakeRegistrar) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.deregistered...)
}

var errThrottled = errors.New("throttled")
