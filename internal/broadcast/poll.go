package broadcast

import (
	"context"

	"github.com/pscheid92/fanout/internal/channel"
	"github.com/pscheid92/fanout/internal/metrics"
)

// EventStore is the append-only event log behind the poll backend. Appends
// assign the record's ID (the poll cursor) in commit order, so per-channel
// publish order is preserved.
type EventStore interface {
	Append(ctx context.Context, rec Record) (Record, error)
	Since(ctx context.Context, channels []string, cursor string) ([]Record, string, error)
}

// PresenceStore tracks presence-channel membership. Member expiry is the
// store's concern; the dispatcher only touches.
type PresenceStore interface {
	Touch(ctx context.Context, channel string, member Member) ([]Member, error)
}

// PollBroadcaster persists broadcasts and serves them on demand, emulating
// push delivery for clients polling with a cursor.
type PollBroadcaster struct {
	store    EventStore
	presence PresenceStore
	guard    *Guard
}

var _ Pollable = (*PollBroadcaster)(nil)

// NewPollBroadcaster creates a poll backend over the given stores.
func NewPollBroadcaster(store EventStore, presence PresenceStore, guard *Guard) *PollBroadcaster {
	return &PollBroadcaster{store: store, presence: presence, guard: guard}
}

func (b *PollBroadcaster) Broadcast(ctx context.Context, channels []channel.Channel, event string, payload map[string]any) error {
	data, socket := SplitSocket(payload)
	for _, ch := range channels {
		rec := Record{
			Channel: ch.WireName(),
			Event:   event,
			Payload: data,
			Socket:  socket,
		}
		if _, err := b.store.Append(ctx, rec); err != nil {
			metrics.BroadcastFailuresTotal.WithLabelValues("poll").Inc()
			return err
		}
	}
	metrics.BroadcastsTotal.WithLabelValues("poll").Inc()
	return nil
}

func (b *PollBroadcaster) Auth(ctx context.Context, req AuthRequest) (AuthResult, error) {
	return b.guard.Authorize(ctx, req.Channel, req.Principal)
}

func (b *PollBroadcaster) EventsSince(ctx context.Context, channels []string, cursor string) ([]Record, string, error) {
	if len(channels) == 0 {
		return nil, cursor, nil
	}
	return b.store.Since(ctx, channels, cursor)
}

func (b *PollBroadcaster) TouchPresence(ctx context.Context, ch string, member Member) ([]Member, error) {
	metrics.PresenceTouchesTotal.Inc()
	return b.presence.Touch(ctx, ch, member)
}
