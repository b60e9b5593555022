package broadcast

import "context"

// deliveryJob carries a frozen envelope through the queue to the backend.
// State machine: queued, running, then delivered or failed; failure handling
// (retry, dead-letter) belongs to the queue, not the job.
type deliveryJob struct {
	manager *Manager
	env     envelope
	// release drops the unique-broadcast lock after successful delivery.
	// On failure the lock is left to expire so retries within the window
	// stay deduplicated.
	release func(context.Context)
}

func (j *deliveryJob) Name() string {
	return "broadcast:" + j.env.event
}

func (j *deliveryJob) Handle(ctx context.Context) error {
	drv, err := j.manager.Connection(j.env.connection)
	if err != nil {
		return err
	}

	payload := make(map[string]any, len(j.env.payload)+1)
	for k, v := range j.env.payload {
		payload[k] = v
	}
	if j.env.socket != "" {
		payload["socket"] = j.env.socket
	}

	if err := drv.Broadcast(ctx, j.env.channels, j.env.event, payload); err != nil {
		return err
	}

	if j.release != nil {
		j.release(ctx)
	}
	return nil
}
