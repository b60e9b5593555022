package broadcast

import (
	"context"
	"time"

	"github.com/pscheid92/fanout/internal/channel"
)

// Principal is the authenticated identity performing a channel subscription.
// Resolution of the principal (sessions, tokens) is the caller's concern.
type Principal struct {
	ID   string
	Info map[string]any
}

// Member is a presence-channel member: the principal's broadcast identity
// plus arbitrary metadata shown to other members.
type Member struct {
	ID   string         `json:"id"`
	Info map[string]any `json:"info,omitempty"`
}

// Record is a persisted broadcast as stored by pollable backends. Records are
// append-only and never mutated; ID doubles as the poll cursor.
type Record struct {
	ID        string         `json:"id"`
	Channel   string         `json:"channel"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Socket    string         `json:"socket,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuthRequest asks whether a principal may subscribe to a channel.
type AuthRequest struct {
	Channel   channel.Channel
	Principal *Principal
}

// AuthResult is the outcome of a channel authorization check. Denial is a
// result, not an error. Member is set only for allowed presence channels.
type AuthResult struct {
	Allowed bool
	Member  *Member
}

// Broadcaster is the capability contract every backend implements.
type Broadcaster interface {
	// Broadcast publishes or persists the event on every given channel.
	// Channels with zero subscribers are not an error. Transport failures
	// propagate to the caller, which owns the retry decision.
	Broadcast(ctx context.Context, channels []channel.Channel, event string, payload map[string]any) error

	// Auth decides whether the request's principal may subscribe to the
	// request's channel.
	Auth(ctx context.Context, req AuthRequest) (AuthResult, error)
}

// Pollable is implemented by backends that persist events and serve them on
// demand to clients without a push connection.
type Pollable interface {
	Broadcaster

	// EventsSince returns all records on the given wire channels newer than
	// cursor, plus the cursor to use on the next poll. An empty cursor means
	// "from the beginning". With no new records the input cursor is returned
	// unchanged, so repeated polls are idempotent.
	EventsSince(ctx context.Context, channels []string, cursor string) ([]Record, string, error)

	// TouchPresence refreshes the member's membership on a presence channel
	// and returns the channel's current member list.
	TouchPresence(ctx context.Context, channel string, member Member) ([]Member, error)
}

// SplitSocket separates the sender's socket id from a delivery payload. The
// socket id travels inside the payload between the delivery job and the
// backend, but backends store and transmit it out of band so clients never
// see it as event data. The returned map is a copy.
func SplitSocket(payload map[string]any) (map[string]any, string) {
	data := make(map[string]any, len(payload))
	socket := ""
	for k, v := range payload {
		if k == "socket" {
			if s, ok := v.(string); ok {
				socket = s
			}
			continue
		}
		data[k] = v
	}
	return data, socket
}
