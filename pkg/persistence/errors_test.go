package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/journeys/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		journeyErr := persistence.NewJourneyError("GetByID", "jny_123", persistence.ErrJourneyNotFound)
		runErr := persistence.NewRunError("GetByID", "run_456", persistence.ErrRunNotFound)

		assert.True(t, persistence.IsJourneyNotFound(journeyErr))
		assert.False(t, persistence.IsRunNotFound(journeyErr))
		assert.True(t, persistence.IsRunNotFound(runErr))

		assert.True(t, errors.Is(journeyErr, persistence.ErrJourneyNotFound))
		assert.True(t, errors.Is(runErr, persistence.ErrRunNotFound))
	})

	t.Run("journey error contains context", func(t *testing.T) {
		err := persistence.NewJourneyError("Delete", "jny_123", persistence.ErrJourneyNotFound)

		assert.Contains(t, err.Error(), "Delete")
		assert.Contains(t, err.Error(), "jny_123")
		assert.Contains(t, err.Error(), "journey not found")
	})

	t.Run("run error contains context", func(t *testing.T) {
		err := persistence.NewRunError("Save", "run_456", errors.New("disk full"))

		assert.Contains(t, err.Error(), "Save")
		assert.Contains(t, err.Error(), "run_456")
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, persistence.DefaultListLimit, persistence.NormalizeLimit(0))
	assert.Equal(t, persistence.DefaultListLimit, persistence.NormalizeLimit(-3))
	assert.Equal(t, 7, persistence.NormalizeLimit(7))
	assert.Equal(t, persistence.MaxListLimit, persistence.NormalizeLimit(1000))
}
