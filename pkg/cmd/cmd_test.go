package cmd

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/journeys/pkg/locker"
	"github.com/dukex/journeys/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"postgres://user@localhost/journeys":   "postgres",
		"postgresql://user@localhost/journeys": "postgresql",
		"file:///var/lib/journeys":             "file",
		"./data":                               "file",
		"mysql://localhost/journeys":           "file",
	}

	for url, expected := range tests {
		assert.Equal(t, expected, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence_File(t *testing.T) {
	store, err := NewPersistence(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, store)
}

func TestNewEventBus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bus, err := NewEventBus("", "", logger)
	require.NoError(t, err)
	assert.Nil(t, bus)

	bus, err = NewEventBus("gochannel", "", logger)
	require.NoError(t, err)
	require.NotNil(t, bus)
	assert.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", " , ", logger)
	assert.Error(t, err)

	_, err = NewEventBus("rabbitmq", "", logger)
	assert.ErrorContains(t, err, "unsupported event bus provider")
}

func TestNewLocker(t *testing.T) {
	l, closeFn, err := NewLocker("")
	require.NoError(t, err)
	assert.IsType(t, &locker.Memory{}, l)
	assert.NoError(t, closeFn())

	server := miniredis.RunT(t)

	l, closeFn, err = NewLocker("redis://" + server.Addr())
	require.NoError(t, err)
	assert.IsType(t, &locker.Redis{}, l)

	unlock, err := l.TryLock(context.Background(), "jny_1", 0)
	require.NoError(t, err)
	assert.NoError(t, unlock(context.Background()))
	assert.NoError(t, closeFn())

	_, _, err = NewLocker("not a url")
	assert.Error(t, err)
}
