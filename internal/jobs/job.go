// Package jobs holds the in-process job queue, the email job worker and the
// ticker that schedules pending-email sweeps.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
)

const (
	JobSendPendingEmails = "send_pending_emails"
	JobSendBulkEmail     = "send_bulk_email"

	defaultQueueCapacity = 100
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("job queue closed")

// Job is a named unit of background work with an opaque JSON payload.
type Job struct {
	Name    string
	Payload string
}

// BulkEmailPayload is the payload of a send_bulk_email job.
type BulkEmailPayload struct {
	EmailIDs []string `json:"email_ids"`
}

// NewSendPendingEmailsJob builds the sweep job.
func NewSendPendingEmailsJob() Job {
	return Job{Name: JobSendPendingEmails, Payload: "{}"}
}

// NewSendBulkEmailJob builds a job that re-sends the given emails.
func NewSendBulkEmailJob(ids []uuid.UUID) (Job, error) {
	payload := BulkEmailPayload{EmailIDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		payload.EmailIDs = append(payload.EmailIDs, id.String())
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, err
	}
	return Job{Name: JobSendBulkEmail, Payload: string(raw)}, nil
}

// Queue accepts jobs for the email job worker.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// MemoryQueue is a bounded FIFO. Enqueue blocks while the queue is full.
type MemoryQueue struct {
	ch     chan Job
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once
}

// NewMemoryQueue creates a queue holding at most capacity jobs.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &MemoryQueue{
		ch:   make(chan Job, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue waits for room in the queue, the context to end, or the queue to close.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

// Jobs is the receive side consumed by the worker.
func (q *MemoryQueue) Jobs() <-chan Job {
	return q.ch
}

// Len reports the number of queued jobs.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Close stops accepting jobs. Jobs already queued are still delivered, after
// which the Jobs channel is closed.
func (q *MemoryQueue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
}
