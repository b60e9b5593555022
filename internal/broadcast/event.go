package broadcast

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pscheid92/fanout/internal/channel"
	apperrors "github.com/pscheid92/fanout/internal/errors"
)

// Event is the contract every broadcastable event implements. Payload
// construction is explicit: there is no field reflection, so what goes on the
// wire is exactly what BroadcastPayload returns.
type Event interface {
	// BroadcastChannels names the channels the event is sent on.
	BroadcastChannels() []channel.Channel
	// BroadcastPayload returns the JSON-serializable event data.
	BroadcastPayload() map[string]any
}

// Named overrides the wire event name. Without it, the event's Go type name
// is used.
type Named interface {
	BroadcastName() string
}

// Queued routes the delivery job to a named queue. Empty means the default
// queue.
type Queued interface {
	BroadcastQueue() string
}

// OnConnection overrides the broadcaster connection used for delivery. Empty
// means the manager's default connection.
type OnConnection interface {
	BroadcastConnection() string
}

// Immediate bypasses the asynchronous queue: the delivery job runs inline on
// the caller's goroutine.
type Immediate interface {
	BroadcastNow() bool
}

// Unique deduplicates in-flight deliveries: while a broadcast with the same
// UniqueID is pending (within UniqueFor), further enqueues are silently
// dropped. An empty UniqueID defaults to the event's wire name.
type Unique interface {
	UniqueID() string
	UniqueFor() time.Duration
}

// FromSocket marks the event with the sender's socket id so the sender's own
// connection is excluded from delivery.
type FromSocket interface {
	BroadcastSocket() string
}

// EventName derives the wire event name: the Named override if present,
// otherwise the event's bare type name.
func EventName(evt Event) string {
	if named, ok := evt.(Named); ok {
		if name := named.BroadcastName(); name != "" {
			return name
		}
	}
	return typeName(evt)
}

func typeName(evt Event) string {
	name := strings.TrimPrefix(fmt.Sprintf("%T", evt), "*")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// envelope is the frozen snapshot of an event taken at queue time. Mutating
// the original event after queuing cannot alter an envelope.
type envelope struct {
	channels   []channel.Channel
	event      string
	payload    map[string]any
	socket     string
	connection string
	queue      string
}

// newEnvelope snapshots evt. socketOverride wins over the event's own
// FromSocket capability. The payload is frozen by a JSON round trip, which
// also enforces the "payload must be JSON-serializable" invariant up front.
func newEnvelope(evt Event, socketOverride string) (envelope, error) {
	channels := evt.BroadcastChannels()
	if len(channels) == 0 {
		return envelope{}, apperrors.ValidationError("event declares no broadcast channels")
	}

	payload, err := clonePayload(evt.BroadcastPayload())
	if err != nil {
		return envelope{}, apperrors.ValidationError("broadcast payload is not JSON-serializable").WithField("cause", err.Error())
	}

	env := envelope{
		channels: append([]channel.Channel(nil), channels...),
		event:    EventName(evt),
		payload:  payload,
		socket:   socketOverride,
	}

	if env.socket == "" {
		if fs, ok := evt.(FromSocket); ok {
			env.socket = fs.BroadcastSocket()
		}
	}
	if oc, ok := evt.(OnConnection); ok {
		env.connection = oc.BroadcastConnection()
	}
	if q, ok := evt.(Queued); ok {
		env.queue = q.BroadcastQueue()
	}

	return env, nil
}

func clonePayload(payload map[string]any) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	clone := make(map[string]any, len(payload))
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, err
	}
	return clone, nil
}
