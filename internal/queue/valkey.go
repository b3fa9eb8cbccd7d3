package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const defaultValkeyKey = "taskhub:jobs"

// ValkeyQueue implements a distributed job queue using Valkey.
// Only job ids travel through Valkey; job state lives in the database.
type ValkeyQueue struct {
	client      valkey.Client
	key         string
	pollSeconds float64
	logger      *slog.Logger
}

// NewValkeyQueue connects to addr and verifies the connection.
func NewValkeyQueue(addr string, logger *slog.Logger) (*ValkeyQueue, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	q, err := NewValkeyQueueFromClient(client, defaultValkeyKey, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	q.logger.Info("Initialized Valkey job queue", "address", addr, "queue_key", q.key)
	return q, nil
}

// NewValkeyQueueFromClient wraps an existing client. The queue owns the client
// and closes it on Close.
func NewValkeyQueueFromClient(client valkey.Client, key string, logger *slog.Logger) (*ValkeyQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	return &ValkeyQueue{
		client:      client,
		key:         key,
		pollSeconds: 5,
		logger:      logger,
	}, nil
}

// Enqueue pushes the job id onto the Valkey list (RPUSH for FIFO).
func (q *ValkeyQueue) Enqueue(ctx context.Context, msg Message) error {
	if msg.JobID == uuid.Nil {
		return fmt.Errorf("job must have an ID")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job data: %w", err)
	}

	cmd := q.client.B().Rpush().Key(q.key).Element(string(data)).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to push job to Valkey: %w", err)
	}

	q.logger.Debug("Job enqueued", "job_id", msg.JobID, "type", msg.Type, "queue_key", q.key)
	return nil
}

// Dequeue blocks on BLPOP for up to the poll interval.
func (q *ValkeyQueue) Dequeue(ctx context.Context) (*Message, error) {
	cmd := q.client.B().Blpop().Key(q.key).Timeout(q.pollSeconds).Build()
	result := q.client.Do(ctx, cmd)

	values, err := result.AsStrSlice()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if valkey.IsValkeyNil(err) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("failed to pop job from Valkey: %w", err)
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("invalid BLPOP result: expected 2 values, got %d", len(values))
	}

	var msg Message
	if err := json.Unmarshal([]byte(values[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	q.logger.Debug("Job dequeued", "job_id", msg.JobID, "type", msg.Type)
	return &msg, nil
}

// Close closes the Valkey client
func (q *ValkeyQueue) Close() error {
	q.client.Close()
	q.logger.Info("Valkey queue closed")
	return nil
}
