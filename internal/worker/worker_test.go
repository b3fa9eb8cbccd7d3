package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/model"
	"taskhub/internal/queue"
	"taskhub/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeProcessor struct {
	err   error
	panic bool
}

func (p fakeProcessor) ProcessJob(_ context.Context, job *model.Job) (string, map[string]interface{}, error) {
	if p.panic {
		panic("boom")
	}
	if p.err != nil {
		return "partial", nil, p.err
	}
	return "done", map[string]interface{}{"count": 3}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	users  []uuid.UUID
}

func (n *recordingNotifier) Notify(userID uuid.UUID, event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.users = append(n.users, userID)
}

func (n *recordingNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func newJobRepo(t *testing.T) repository.JobRepository {
	t.Helper()
	db, err := database.NewConnection(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "worker.db"),
	}, true)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, false))
	return repository.NewJobRepository(db)
}

// runJob enqueues a single pending job, lets the worker drain it and returns
// the stored row once the worker has stopped.
func runJob(t *testing.T, processor Processor, notifier Notifier) *model.Job {
	t.Helper()
	ctx := context.Background()
	jobs := newJobRepo(t)
	q := queue.NewMemoryQueue(4, discardLogger)

	job := &model.Job{UserID: uuid.New(), Type: model.JobTypeExportTasks}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, q.Enqueue(ctx, queue.Message{JobID: job.ID, Type: job.Type}))

	w := New(jobs, q, processor, notifier, 1, discardLogger)
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool {
		got, err := jobs.GetByID(ctx, job.ID)
		return err == nil && (got.Status == model.JobStatusCompleted || got.Status == model.JobStatusFailed)
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, q.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after queue close")
	}

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	return got
}

func TestWorkerCompletesJob(t *testing.T) {
	notifier := &recordingNotifier{}
	job := runJob(t, fakeProcessor{}, notifier)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, "done", job.Logs)
	assert.EqualValues(t, 3, job.Metadata["count"])
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, notifier.snapshot())
}

func TestWorkerFailsJob(t *testing.T) {
	notifier := &recordingNotifier{}
	job := runJob(t, fakeProcessor{err: errors.New("bad csv")}, notifier)

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "bad csv", job.Error)
	assert.Equal(t, "partial", job.Logs)
	assert.Equal(t, []string{EventJobFailed}, notifier.snapshot())
}

func TestWorkerRecoversPanic(t *testing.T) {
	job := runJob(t, fakeProcessor{panic: true}, nil)

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "panicked")
}

func TestWorkerSkipsJobsThatAreNotPending(t *testing.T) {
	ctx := context.Background()
	jobs := newJobRepo(t)
	q := queue.NewMemoryQueue(4, discardLogger)

	job := &model.Job{UserID: uuid.New(), Type: model.JobTypeImportTasks}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, jobs.Complete(ctx, job.ID, "earlier", nil))
	require.NoError(t, q.Enqueue(ctx, queue.Message{JobID: job.ID, Type: job.Type}))
	require.NoError(t, q.Close())

	w := New(jobs, q, fakeProcessor{err: errors.New("must not run")}, nil, 1, discardLogger)
	require.NoError(t, w.Start(ctx))

	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, "earlier", got.Logs)
}

func TestWorkerStopsOnCancel(t *testing.T) {
	q := queue.NewMemoryQueue(1, discardLogger)
	defer q.Close()
	ctx, cancel := context.WithCancel(context.Background())

	w := New(newJobRepo(t), q, fakeProcessor{}, nil, 1, discardLogger)
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

type slowProcessor struct {
	started  chan struct{}
	finished chan struct{}
}

func (p slowProcessor) ProcessJob(_ context.Context, _ *model.Job) (string, map[string]interface{}, error) {
	close(p.started)
	time.Sleep(100 * time.Millisecond)
	close(p.finished)
	return "done", nil, nil
}

func TestWorkerBackgroundStopWaitsForJobs(t *testing.T) {
	ctx := context.Background()
	jobs := newJobRepo(t)
	q := queue.NewMemoryQueue(1, discardLogger)
	defer q.Close()

	job := &model.Job{UserID: uuid.New(), Type: model.JobTypeExportTasks}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, q.Enqueue(ctx, queue.Message{JobID: job.ID, Type: job.Type}))

	p := slowProcessor{started: make(chan struct{}), finished: make(chan struct{})}
	stop := New(jobs, q, p, nil, 1, discardLogger).Background(ctx)

	select {
	case <-p.started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}
	stop()

	select {
	case <-p.finished:
	default:
		t.Fatal("stop returned before the in-flight job finished")
	}
	stop()
}
