package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taskhub/internal/config"
	"taskhub/internal/model"

	"github.com/google/uuid"
)

// ErrClosed is returned by Dequeue once the queue has been closed and drained.
var ErrClosed = errors.New("queue closed")

// Message identifies a job to run. The job row in the database is the
// source of truth; the queue only transports ids.
type Message struct {
	JobID uuid.UUID     `json:"id"`
	Type  model.JobType `json:"type"`
}

// Queue represents a job queue interface
type Queue interface {
	// Enqueue adds a job to the queue
	Enqueue(ctx context.Context, msg Message) error

	// Dequeue blocks until the next job is available. It returns
	// context.DeadlineExceeded when a poll interval passes without work.
	Dequeue(ctx context.Context) (*Message, error)

	// Close closes the queue and releases resources
	Close() error
}

// New builds the queue selected by cfg.Type.
func New(cfg config.QueueConfig, logger *slog.Logger) (Queue, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryQueue(100, logger), nil
	case "valkey":
		return NewValkeyQueue(cfg.ValkeyAddr, logger)
	default:
		return nil, fmt.Errorf("unknown queue type %q", cfg.Type)
	}
}
