package redis

import (
	"context"
	"time"

	"github.com/pscheid92/fanout/internal/locker"
)

// Locker implements TTL locks on Redis via SET NX. Safe across instances, so
// unique broadcasts stay deduplicated in multi-instance deployments.
type Locker struct {
	client *Client
}

var _ locker.Locker = (*Locker)(nil)

// NewLocker creates a Redis-backed lock store.
func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.rdb.SetNX(ctx, l.client.key(key), "1", ttl).Result()
}

func (l *Locker) Release(ctx context.Context, key string) error {
	return l.client.rdb.Del(ctx, l.client.key(key)).Err()
}
