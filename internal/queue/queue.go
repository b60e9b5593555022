// Package queue provides the asynchronous delivery queue for broadcast jobs.
// The dispatch core only depends on the Queue contract; the in-memory worker
// pool is the default implementation, and Sync serves immediate broadcasts.
package queue

import "context"

// Job is one unit of asynchronous work.
type Job interface {
	// Name identifies the job in logs and metrics.
	Name() string
	// Handle performs the work. A returned error triggers the queue's retry
	// policy; the job itself declares none of its own.
	Handle(ctx context.Context) error
}

// Queue accepts jobs for execution. queueName routes the job to a named
// queue; implementations may ignore it beyond logging.
type Queue interface {
	Enqueue(ctx context.Context, queueName string, job Job) error
}

// Sync executes jobs inline on the caller's goroutine. Used for broadcasts
// that demand immediate delivery and as a test double.
type Sync struct{}

func (Sync) Enqueue(ctx context.Context, _ string, job Job) error {
	return job.Handle(ctx)
}
