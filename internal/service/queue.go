package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/Somerville-Events/somerville.events-sub000/internal/extract"
	"github.com/Somerville-Events/somerville.events-sub000/internal/metrics"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
)

var (
	ErrQueueFull   = errors.New("intake queue is full")
	ErrQueueClosed = errors.New("intake queue is shut down")
)

// Job is one accepted upload waiting for background processing.
type Job struct {
	Key        string
	Path       string
	Format     extract.Format
	EnqueuedAt time.Time
}

// Handler processes a job and reports its outcome label.
type Handler func(ctx context.Context, job Job) string

// JobQueue is a bounded queue drained by a fixed worker pool. Enqueue never
// blocks; a full queue rejects the job.
type JobQueue struct {
	ch         chan Job
	handle     Handler
	jobTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewJobQueue(size int, jobTimeout time.Duration, handle Handler) *JobQueue {
	if size <= 0 {
		size = 64
	}
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}
	return &JobQueue{ch: make(chan Job, size), handle: handle, jobTimeout: jobTimeout}
}

// Start launches the workers and returns the stop function. Stop refuses
// new jobs, lets workers drain what is queued until ctx expires, and
// returns how many jobs were still waiting.
func (q *JobQueue) Start(workers int) func(context.Context) (int, error) {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}

	var once sync.Once
	return func(ctx context.Context) (int, error) {
		once.Do(func() {
			q.mu.Lock()
			q.closed = true
			close(q.ch)
			q.mu.Unlock()
		})

		done := make(chan struct{})
		go func() {
			q.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return 0, nil
		case <-ctx.Done():
			left := len(q.ch)
			logger.Warn("intake queue drain interrupted", zap.Int("pending", left))
			return left, ctx.Err()
		}
	}
}

func (q *JobQueue) work() {
	defer q.wg.Done()
	for job := range q.ch {
		metrics.IntakeQueueDepth.Set(float64(len(q.ch)))
		q.run(job)
	}
}

func (q *JobQueue) run(job Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), q.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			sentry.CurrentHub().Recover(r)
			logger.Error("intake job panicked",
				zap.String("idempotency_key", job.Key),
				zap.Any("panic", r))
			metrics.RecordJob(metrics.OutcomeFailed, time.Since(start))
		}
	}()

	outcome := q.handle(ctx, job)
	metrics.RecordJob(outcome, time.Since(start))
	logger.Debug("intake job finished",
		zap.String("idempotency_key", job.Key),
		zap.String("outcome", outcome),
		zap.Duration("queued", start.Sub(job.EnqueuedAt)),
		zap.Duration("took", time.Since(start)))
}

func (q *JobQueue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	select {
	case q.ch <- job:
		metrics.IntakeQueueDepth.Set(float64(len(q.ch)))
		return nil
	default:
		metrics.RecordJob(metrics.OutcomeDropped, 0)
		logger.Warn("intake queue full, rejecting upload", zap.String("idempotency_key", job.Key))
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(q.ch))
	}
}

// Len samples the number of queued jobs.
func (q *JobQueue) Len() int { return len(q.ch) }
