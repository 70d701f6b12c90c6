package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff/v5"
)

// SyncJob is one unit of post-commit external synchronization.
type SyncJob struct {
	Name string
	Run  func(ctx context.Context) error
}

// SyncQueue retries external synchronization with exponential backoff,
// decoupled from order commit: a job that ultimately fails is logged and
// dropped, the committed order remains valid either way.
type SyncQueue struct {
	jobs     chan SyncJob
	maxTries uint
	wg       sync.WaitGroup
}

func NewSyncQueue(buffer int, maxTries uint) *SyncQueue {
	if buffer <= 0 {
		buffer = 64
	}
	if maxTries == 0 {
		maxTries = 5
	}
	return &SyncQueue{
		jobs:     make(chan SyncJob, buffer),
		maxTries: maxTries,
	}
}

// Start launches the worker. It drains until ctx is cancelled.
func (q *SyncQueue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-q.jobs:
				q.process(ctx, job)
			}
		}
	}()
}

func (q *SyncQueue) process(ctx context.Context, job SyncJob) {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, job.Run(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(q.maxTries))
	if err != nil {
		slog.Error("External sync gave up after retries", "job", job.Name, "err", err)
		return
	}
	slog.Info("External sync completed", "job", job.Name)
}

// Enqueue hands a job to the worker. It never blocks the caller: when the
// queue is full the job is dropped with an error log, matching the advisory
// nature of external sync.
func (q *SyncQueue) Enqueue(job SyncJob) {
	select {
	case q.jobs <- job:
	default:
		slog.Error("Sync queue full, dropping job", "job", job.Name)
	}
}

// Wait blocks until the worker has exited after context cancellation.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}
