// Package locker defines the lock store used to deduplicate unique broadcasts.
// A lock is held for a TTL window; duplicate acquisitions within the window
// fail, which the caller treats as "drop the duplicate", not as an error.
package locker

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Locker acquires named TTL locks. Implementations must be safe for use from
// multiple processes where the underlying store is shared (e.g. Redis).
type Locker interface {
	// Acquire takes the lock for ttl. Returns false without error when the
	// lock is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops the lock early. Releasing an expired or unheld lock is a
	// no-op.
	Release(ctx context.Context, key string) error
}

// Memory is an in-process Locker. Suitable for single-instance deployments
// and tests; multi-instance deployments need the Redis locker.
type Memory struct {
	mu    sync.Mutex
	clock clockwork.Clock
	held  map[string]time.Time
}

// NewMemory creates an in-process lock store.
func NewMemory(clock clockwork.Clock) *Memory {
	return &Memory{clock: clock, held: make(map[string]time.Time)}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if expiry, ok := m.held[key]; ok && now.Before(expiry) {
		return false, nil
	}
	m.held[key] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}
