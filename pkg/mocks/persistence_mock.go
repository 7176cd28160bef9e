package mocks

import (
	"context"

	"github.com/dukex/journeys/pkg/models"
	"github.com/dukex/journeys/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockJourneyRepository is a mock implementation of persistence.JourneyRepository.
type MockJourneyRepository struct {
	mock.Mock
}

func (m *MockJourneyRepository) GetByID(ctx context.Context, id string) (*models.Journey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Journey), args.Error(1)
}

func (m *MockJourneyRepository) List(ctx context.Context, opts persistence.ListJourneysOptions) (*persistence.JourneyListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.JourneyListResult), args.Error(1)
}

func (m *MockJourneyRepository) Save(ctx context.Context, journey *models.Journey) error {
	args := m.Called(ctx, journey)

	return args.Error(0)
}

func (m *MockJourneyRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockRunRepository is a mock implementation of persistence.RunRepository.
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) GetByID(ctx context.Context, id string) (*models.JourneyRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.JourneyRun), args.Error(1)
}

func (m *MockRunRepository) ListByJourney(ctx context.Context, journeyID string, opts persistence.ListRunsOptions) ([]*models.JourneyRun, error) {
	args := m.Called(ctx, journeyID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.JourneyRun), args.Error(1)
}

func (m *MockRunRepository) Save(ctx context.Context, run *models.JourneyRun) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock

	Journeys *MockJourneyRepository
	Runs     *MockRunRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Journeys: &MockJourneyRepository{},
		Runs:     &MockRunRepository{},
	}
}

func (m *MockPersistence) JourneyRepository() persistence.JourneyRepository {
	return m.Journeys
}

func (m *MockPersistence) RunRepository() persistence.RunRepository {
	return m.Runs
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
