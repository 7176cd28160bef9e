// Package locker serializes mutations of a single journey across processes.
package locker

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long a crashed holder can keep a journey locked.
const DefaultTTL = 2 * time.Minute

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("journey is locked by another operation")

// UnlockFunc releases a lock. Releasing a lock that expired or was taken over is a no-op.
type UnlockFunc func(ctx context.Context) error

// Locker hands out non-blocking, expiring locks keyed by journey id.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
