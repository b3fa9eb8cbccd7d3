package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/queue"
	"taskhub/internal/repository"

	"github.com/google/uuid"
)

// Processor runs a single job and returns its log output and result metadata.
type Processor interface {
	ProcessJob(ctx context.Context, job *model.Job) (string, map[string]interface{}, error)
}

// Notifier tells a user that one of their jobs failed.
type Notifier interface {
	Notify(userID uuid.UUID, event string, payload interface{})
}

const EventJobFailed = "job.failed"

// Worker processes jobs from the queue
type Worker struct {
	jobs       repository.JobRepository
	queue      queue.Queue
	processor  Processor
	notifier   Notifier
	logger     *slog.Logger
	maxWorkers int
	semaphore  chan struct{}
	wg         sync.WaitGroup
}

// New creates a new worker instance. notifier may be nil.
func New(jobs repository.JobRepository, q queue.Queue, processor Processor, notifier Notifier, maxWorkers int, logger *slog.Logger) *Worker {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobs:       jobs,
		queue:      q,
		processor:  processor,
		notifier:   notifier,
		logger:     logger,
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Start begins processing jobs from the queue. It returns when ctx is cancelled
// or the queue is closed, after in-flight jobs finish.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started", "max_concurrent_jobs", w.maxWorkers)
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker shutting down, waiting for jobs to complete")
			return ctx.Err()
		default:
		}

		msg, err := w.queue.Dequeue(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				// No jobs available
				continue
			case errors.Is(err, queue.ErrClosed):
				w.logger.Info("Queue closed, worker stopping")
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			}
			w.logger.Error("Failed to dequeue job", "error", err)
			time.Sleep(time.Second)
			continue
		}

		// Acquire semaphore slot (blocks if max workers reached)
		select {
		case w.semaphore <- struct{}{}:
			w.wg.Add(1)
			go func(m queue.Message) {
				defer w.wg.Done()
				defer func() { <-w.semaphore }()

				w.processJob(ctx, m)
			}(*msg)
		case <-ctx.Done():
			w.logger.Info("Context cancelled while waiting for worker slot")
			return ctx.Err()
		}
	}
}

// Background runs Start in its own goroutine. The returned stop cancels it and
// blocks until in-flight jobs finish; it is safe to call more than once.
func (w *Worker) Background(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("Worker failed", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (w *Worker) processJob(ctx context.Context, msg queue.Message) {
	job, err := w.jobs.GetByID(ctx, msg.JobID)
	if err != nil {
		w.logger.Error("Failed to load job", "job_id", msg.JobID, "error", err)
		return
	}
	if job.Status != model.JobStatusPending {
		w.logger.Warn("Skipping job that is not pending", "job_id", job.ID, "status", job.Status)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Panic recovered in processJob", "job_id", job.ID, "panic", r)
			w.fail(ctx, job, fmt.Sprintf("Job panicked: %v", r), "")
		}
	}()

	w.logger.Info("Processing job", "job_id", job.ID, "type", job.Type)

	if err := w.jobs.MarkRunning(ctx, job.ID, time.Now()); err != nil {
		w.logger.Error("Failed to mark job running", "job_id", job.ID, "error", err)
		return
	}

	logs, result, err := w.processor.ProcessJob(ctx, job)
	if err != nil {
		w.logger.Error("Job failed", "job_id", job.ID, "error", err)
		w.fail(ctx, job, err.Error(), logs)
		return
	}

	if err := w.jobs.Complete(ctx, job.ID, logs, result); err != nil {
		w.logger.Error("Failed to mark job completed", "job_id", job.ID, "error", err)
		return
	}
	w.logger.Info("Job completed", "job_id", job.ID)
}

func (w *Worker) fail(ctx context.Context, job *model.Job, reason, logs string) {
	// The job context may already be cancelled during shutdown.
	if err := w.jobs.Fail(context.WithoutCancel(ctx), job.ID, reason, logs); err != nil {
		w.logger.Error("Failed to mark job failed", "job_id", job.ID, "error", err)
	}
	if w.notifier != nil {
		w.notifier.Notify(job.UserID, EventJobFailed, map[string]interface{}{
			"job_id": job.ID,
			"type":   job.Type,
			"error":  reason,
		})
	}
}
