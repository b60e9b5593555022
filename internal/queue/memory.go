package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fanout/internal/metrics"
)

// RetryPolicy controls how workers retry failed jobs. Backoff doubles after
// each attempt.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy matches the behaviour expected of a standard queue
// backend: a few attempts with short exponential backoff, then dead-letter
// (here: log and drop).
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
}

type queuedJob struct {
	queue string
	job   Job
}

// Memory is an in-process queue drained by a pool of worker goroutines.
// Cancelling the context passed to Start shuts the pool down; Wait blocks
// until all workers have returned.
type Memory struct {
	jobs    chan queuedJob
	workers int
	retry   RetryPolicy
	clock   clockwork.Clock
	wg      sync.WaitGroup
}

// NewMemory creates a queue with the given worker count and buffer capacity.
func NewMemory(workers, capacity int, retry RetryPolicy, clock clockwork.Clock) *Memory {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Memory{
		jobs:    make(chan queuedJob, capacity),
		workers: workers,
		retry:   retry,
		clock:   clock,
	}
}

// Start launches the worker pool. The pool stops when ctx is cancelled;
// jobs still buffered at that point are dropped and logged.
func (m *Memory) Start(ctx context.Context) {
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go func(id int) {
			defer m.wg.Done()
			m.run(ctx, id)
		}(i)
	}
}

// Wait blocks until every worker has returned after ctx cancellation.
func (m *Memory) Wait() {
	m.wg.Wait()
	if depth := len(m.jobs); depth > 0 {
		slog.Warn("Queue stopped with jobs still buffered", "dropped", depth)
	}
}

// Enqueue hands a job to the pool. Returns an error when the buffer is full
// rather than blocking the caller.
func (m *Memory) Enqueue(ctx context.Context, queueName string, job Job) error {
	select {
	case m.jobs <- queuedJob{queue: queueName, job: job}:
		metrics.QueueDepth.Set(float64(len(m.jobs)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue %q is full (capacity %d)", queueName, cap(m.jobs))
	}
}

func (m *Memory) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case qj := <-m.jobs:
			metrics.QueueDepth.Set(float64(len(m.jobs)))
			m.process(ctx, id, qj)
		}
	}
}

func (m *Memory) process(ctx context.Context, worker int, qj queuedJob) {
	backoff := m.retry.InitialBackoff

	for attempt := 1; attempt <= m.retry.MaxAttempts; attempt++ {
		err := qj.job.Handle(ctx)
		if err == nil {
			return
		}

		if attempt == m.retry.MaxAttempts {
			metrics.QueueFailedJobsTotal.Inc()
			slog.Error("Job permanently failed",
				"job", qj.job.Name(),
				"queue", qj.queue,
				"worker", worker,
				"attempts", attempt,
				"error", err,
			)
			return
		}

		metrics.QueueRetriesTotal.Inc()
		slog.Warn("Job failed, retrying",
			"job", qj.job.Name(),
			"queue", qj.queue,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-m.clock.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return
		}
	}
}
