// Package lock provides non-blocking, per-key mutual exclusion so that two
// reconciliation cycles never work on the same site at once.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("lock held")

// Locker acquires named locks without waiting.
type Locker interface {
	// Acquire takes the lock for key or fails with ErrLocked. The returned
	// release func must be called exactly once.
	Acquire(ctx context.Context, key string) (func(), error)
}

// SiteKey returns the lock key for a site.
func SiteKey(siteID string) string {
	return "fuelguard:site:" + siteID
}

// Memory is an in-process Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemory returns an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) Acquire(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[key]; ok {
		return nil, ErrLocked
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}
