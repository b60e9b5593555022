package broadcast

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	apperrors "github.com/pscheid92/fanout/internal/errors"
	"github.com/pscheid92/fanout/internal/locker"
	"github.com/pscheid92/fanout/internal/metrics"
	"github.com/pscheid92/fanout/internal/queue"
)

// SocketHeader carries the sender's live-connection id on inbound requests so
// delivery can exclude the sender from its own broadcast.
const SocketHeader = "X-Socket-ID"

const uniqueLockPrefix = "broadcast:unique:"

// Factory builds a broadcaster for a named connection. Factories run at most
// once per name; the result is memoized for the process lifetime.
type Factory func() (Broadcaster, error)

// Manager is the single point of driver resolution and broadcast dispatch.
// Connections are registered with Extend and resolved lazily; resolution of
// an unregistered name is a configuration error and is never retried.
type Manager struct {
	mu          sync.Mutex
	defaultName string
	factories   map[string]Factory
	resolved    map[string]Broadcaster
	queue       queue.Queue
	locks       locker.Locker
}

// NewManager creates a manager dispatching to q, using locks for unique
// broadcast deduplication. defaultName is the connection used when an event
// names none.
func NewManager(defaultName string, q queue.Queue, locks locker.Locker) *Manager {
	return &Manager{
		defaultName: defaultName,
		factories:   make(map[string]Factory),
		resolved:    make(map[string]Broadcaster),
		queue:       q,
		locks:       locks,
	}
}

// Extend registers a connection factory under a name. Registering over an
// existing name replaces the factory but not an already-resolved instance.
func (m *Manager) Extend(name string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[name] = factory
}

// Driver resolves the default connection.
func (m *Manager) Driver() (Broadcaster, error) {
	return m.Connection("")
}

// Connection resolves a named connection, memoizing the instance. An empty
// name resolves the default.
func (m *Manager) Connection(name string) (Broadcaster, error) {
	if name == "" {
		name = m.defaultName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.resolved[name]; ok {
		return b, nil
	}

	factory, ok := m.factories[name]
	if !ok {
		return nil, apperrors.ConfigurationError("unknown broadcaster connection").WithField("connection", name)
	}

	b, err := factory()
	if err != nil {
		return nil, apperrors.ConfigurationError("failed to build broadcaster").WithField("connection", name).WithField("cause", err.Error())
	}

	m.resolved[name] = b
	return b, nil
}

// Event wraps an event for scoped dispatch: the broadcast fires when the
// returned Pending is fired, typically via defer at the end of the current
// operation.
func (m *Manager) Event(evt Event) *Pending {
	return &Pending{manager: m, event: evt}
}

// Queue snapshots the event and hands a delivery job to the queue. Events
// implementing Immediate run inline instead. Unique events acquire the
// deduplication lock first; a held lock drops the enqueue silently.
func (m *Manager) Queue(ctx context.Context, evt Event) error {
	return m.queueWith(ctx, evt, "")
}

func (m *Manager) queueWith(ctx context.Context, evt Event, socketOverride string) error {
	env, err := newEnvelope(evt, socketOverride)
	if err != nil {
		return err
	}

	queueName := env.queue
	if queueName == "" {
		queueName = "default"
	}

	var release func(context.Context)
	if u, ok := evt.(Unique); ok {
		id := u.UniqueID()
		if id == "" {
			id = env.event
		}
		key := uniqueLockPrefix + id

		acquired, err := m.locks.Acquire(ctx, key, u.UniqueFor())
		if err != nil {
			return err
		}
		if !acquired {
			metrics.DuplicateDropsTotal.Inc()
			slog.Debug("Duplicate unique broadcast dropped", "event", env.event, "unique_id", id)
			return nil
		}
		release = func(ctx context.Context) {
			if err := m.locks.Release(ctx, key); err != nil {
				slog.Warn("Failed to release unique broadcast lock", "unique_id", id, "error", err)
			}
		}
	}

	job := &deliveryJob{manager: m, env: env, release: release}

	if imm, ok := evt.(Immediate); ok && imm.BroadcastNow() {
		return queue.Sync{}.Enqueue(ctx, queueName, job)
	}

	if err := m.queue.Enqueue(ctx, queueName, job); err != nil {
		return err
	}
	metrics.QueuedJobsTotal.Inc()
	return nil
}

// SocketID extracts the sender's connection id from a request, or "" when
// absent.
func SocketID(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Header.Get(SocketHeader)
}
