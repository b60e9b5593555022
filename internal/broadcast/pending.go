package broadcast

import (
	"context"
	"sync"
)

// Pending is a scoped broadcast: it queues its event when fired and fires at
// most once. Callers defer Fire so the broadcast goes out when the current
// operation completes, without relying on garbage collection timing.
//
//	pb := mgr.Event(evt).ToOthers(socketID)
//	defer pb.Fire(ctx)
type Pending struct {
	manager *Manager
	event   Event
	socket  string

	mu    sync.Mutex
	fired bool
}

// ToOthers excludes the given sender socket from the broadcast.
func (p *Pending) ToOthers(socket string) *Pending {
	p.socket = socket
	return p
}

// Fire queues the broadcast. Subsequent calls are no-ops, so a deferred Fire
// after an explicit one does nothing.
func (p *Pending) Fire(ctx context.Context) error {
	p.mu.Lock()
	if p.fired {
		p.mu.Unlock()
		return nil
	}
	p.fired = true
	p.mu.Unlock()

	return p.manager.queueWith(ctx, p.event, p.socket)
}
