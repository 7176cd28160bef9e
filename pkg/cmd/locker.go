package cmd

import (
	"fmt"

	"github.com/dukex/journeys/pkg/locker"
)

// NewLocker returns a Redis locker when redisURL is set and an in-process one
// otherwise. The in-process locker only serializes edits within one instance.
func NewLocker(redisURL string) (locker.Locker, func() error, error) {
	if redisURL == "" {
		return locker.NewMemory(), func() error { return nil }, nil
	}

	l, err := locker.NewRedisFromURL(redisURL, locker.DefaultPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis locker: %w", err)
	}

	return l, l.Close, nil
}
