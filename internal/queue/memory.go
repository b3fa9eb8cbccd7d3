package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements an in-memory job queue
type MemoryQueue struct {
	jobChan chan Message
	logger  *slog.Logger
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(bufferSize int, logger *slog.Logger) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &MemoryQueue{
		jobChan: make(chan Message, bufferSize),
		logger:  logger,
	}

	logger.Info("Initialized in-memory job queue", "buffer_size", bufferSize)
	return q
}

// Enqueue adds a job to the queue
func (q *MemoryQueue) Enqueue(ctx context.Context, msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	if msg.JobID == uuid.Nil {
		return fmt.Errorf("job must have an ID")
	}

	// Send to channel (non-blocking with timeout)
	select {
	case q.jobChan <- msg:
		q.logger.Debug("Job enqueued", "job_id", msg.JobID, "type", msg.Type)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("queue is full, could not enqueue job %s", msg.JobID)
	}
}

// Dequeue retrieves the next job from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Message, error) {
	select {
	case msg, ok := <-q.jobChan:
		if !ok {
			return nil, ErrClosed
		}
		q.logger.Debug("Job dequeued", "job_id", msg.JobID, "type", msg.Type)
		return &msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the queue and releases resources
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.jobChan)
	q.logger.Info("Memory queue closed")
	return nil
}
