package broadcast

import (
	"context"

	"github.com/pscheid92/fanout/internal/channel"
	"github.com/pscheid92/fanout/internal/metrics"
)

// NullBroadcaster discards every broadcast. Authorization still applies, so
// the auth endpoint behaves identically across backends.
type NullBroadcaster struct {
	guard *Guard
}

// NewNullBroadcaster creates a discarding backend authorizing against guard.
func NewNullBroadcaster(guard *Guard) *NullBroadcaster {
	return &NullBroadcaster{guard: guard}
}

func (b *NullBroadcaster) Broadcast(context.Context, []channel.Channel, string, map[string]any) error {
	metrics.BroadcastsTotal.WithLabelValues("null").Inc()
	return nil
}

func (b *NullBroadcaster) Auth(ctx context.Context, req AuthRequest) (AuthResult, error) {
	return b.guard.Authorize(ctx, req.Channel, req.Principal)
}
