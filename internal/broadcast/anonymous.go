package broadcast

import (
	"context"

	"github.com/pscheid92/fanout/internal/channel"
)

// Anonymous is a one-shot fluent builder for broadcasting without declaring
// an event type. It implements Event plus every optional capability, so the
// manager treats it like any other event.
//
//	err := broadcast.On(channel.NewPrivate("orders.42")).
//		As("OrderShipped").
//		With(map[string]any{"orderId": 42}).
//		ToOthers(socketID).
//		Send(ctx, mgr)
type Anonymous struct {
	channels   []channel.Channel
	name       string
	payload    map[string]any
	socket     string
	connection string
	queue      string
	now        bool
}

// On starts an anonymous broadcast on the given channels.
func On(channels ...channel.Channel) *Anonymous {
	return &Anonymous{channels: channels}
}

// As sets the wire event name. Defaults to "anonymous".
func (a *Anonymous) As(name string) *Anonymous {
	a.name = name
	return a
}

// With sets the event payload.
func (a *Anonymous) With(payload map[string]any) *Anonymous {
	a.payload = payload
	return a
}

// Via selects a named broadcaster connection.
func (a *Anonymous) Via(connection string) *Anonymous {
	a.connection = connection
	return a
}

// OnQueue routes the delivery job to a named queue.
func (a *Anonymous) OnQueue(queue string) *Anonymous {
	a.queue = queue
	return a
}

// ToOthers excludes the given sender socket from the broadcast.
func (a *Anonymous) ToOthers(socket string) *Anonymous {
	a.socket = socket
	return a
}

// Now bypasses the asynchronous queue.
func (a *Anonymous) Now() *Anonymous {
	a.now = true
	return a
}

// Send queues the broadcast through the manager.
func (a *Anonymous) Send(ctx context.Context, m *Manager) error {
	return m.Queue(ctx, a)
}

func (a *Anonymous) BroadcastChannels() []channel.Channel { return a.channels }
func (a *Anonymous) BroadcastPayload() map[string]any     { return a.payload }

func (a *Anonymous) BroadcastName() string {
	if a.name == "" {
		return "anonymous"
	}
	return a.name
}

func (a *Anonymous) BroadcastQueue() string      { return a.queue }
func (a *Anonymous) BroadcastConnection() string { return a.connection }
func (a *Anonymous) BroadcastNow() bool          { return a.now }
func (a *Anonymous) BroadcastSocket() string     { return a.socket }
