package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(10, discardLogger)
	defer q.Close()
	ctx := context.Background()

	first := Message{JobID: uuid.New(), Type: model.JobTypeImportTasks}
	second := Message{JobID: uuid.New(), Type: model.JobTypeExportTasks}
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, *got)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, *got)
}

func TestMemoryQueueRejectsNilID(t *testing.T) {
	q := NewMemoryQueue(1, discardLogger)
	defer q.Close()
	assert.Error(t, q.Enqueue(context.Background(), Message{Type: model.JobTypeImportTasks}))
}

func TestMemoryQueueDequeueHonoursContext(t *testing.T) {
	q := NewMemoryQueue(1, discardLogger)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(1, discardLogger)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(context.Background(), Message{JobID: uuid.New()}), ErrClosed)
	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewSelectsImplementation(t *testing.T) {
	q, err := New(config.QueueConfig{}, discardLogger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryQueue{}, q)
	q.Close()

	_, err = New(config.QueueConfig{Type: "kafka"}, discardLogger)
	assert.Error(t, err)
}

func newValkeyQueue(t *testing.T) *ValkeyQueue {
	t.Helper()
	srv := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{srv.Addr()},
		DisableCache: true,
	})
	if err != nil {
		t.Skipf("valkey client cannot talk to miniredis: %v", err)
	}
	q, err := NewValkeyQueueFromClient(client, "test:jobs", discardLogger)
	require.NoError(t, err)
	q.pollSeconds = 0.1
	t.Cleanup(func() { q.Close() })
	return q
}

func TestValkeyQueueRoundTrip(t *testing.T) {
	q := newValkeyQueue(t)
	ctx := context.Background()

	msg := Message{JobID: uuid.New(), Type: model.JobTypeExportTasks}
	require.NoError(t, q.Enqueue(ctx, msg))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg, *got)
}

func TestValkeyQueueEmptyPoll(t *testing.T) {
	q := newValkeyQueue(t)
	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestValkeyQueueRejectsNilID(t *testing.T) {
	q := newValkeyQueue(t)
	assert.Error(t, q.Enqueue(context.Background(), Message{}))
}
