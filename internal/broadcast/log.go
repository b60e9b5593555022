package broadcast

import (
	"context"
	"log/slog"

	"github.com/pscheid92/fanout/internal/channel"
	"github.com/pscheid92/fanout/internal/metrics"
)

// LogBroadcaster writes every broadcast to the structured log instead of
// delivering it. The development default.
type LogBroadcaster struct {
	log   *slog.Logger
	guard *Guard
}

// NewLogBroadcaster creates a logging backend authorizing against guard.
func NewLogBroadcaster(guard *Guard) *LogBroadcaster {
	return &LogBroadcaster{log: slog.Default(), guard: guard}
}

func (b *LogBroadcaster) Broadcast(_ context.Context, channels []channel.Channel, event string, payload map[string]any) error {
	data, socket := SplitSocket(payload)
	for _, ch := range channels {
		b.log.Info("Broadcast",
			"channel", ch.WireName(),
			"event", event,
			"payload", data,
			"socket", socket,
		)
	}
	metrics.BroadcastsTotal.WithLabelValues("log").Inc()
	return nil
}

func (b *LogBroadcaster) Auth(ctx context.Context, req AuthRequest) (AuthResult, error) {
	return b.guard.Authorize(ctx, req.Channel, req.Principal)
}
