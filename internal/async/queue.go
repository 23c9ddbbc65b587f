// Package async runs scan extractions on a bounded pool of workers.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
)

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks a worker to extract one scan.
type Job struct {
	ScanID      uuid.UUID
	Force       bool // enqueue even if deduplicated
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// ScanProcessor is the work a job triggers.
type ScanProcessor interface {
	ProcessScan(ctx context.Context, id uuid.UUID) (*entity.Scan, error)
}

type ProcessorQueue struct {
	proc    ScanProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc ScanProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker.started", "worker_id", workerID)

				for job := range q.ch {
					metrics.SetQueueDepth(len(q.ch))
					q.run(workerID, job)
				}

				q.logger.Debug("worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	scan, err := q.proc.ProcessScan(ctx, job.ScanID)
	if err != nil {
		q.logger.Error("worker.scan.failed", "worker_id", workerID, "scan_id", job.ScanID, "trace_id", job.TraceID, "err", err)
		return
	}
	q.logger.Info("worker.scan.ok",
		"worker_id", workerID,
		"scan_id", job.ScanID,
		"status", scan.Status,
		"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// Enqueue hands job to a worker. When the buffer is full it blocks until a
// slot frees up or ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "scan_id", job.ScanID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.full", "scan_id", job.ScanID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	metrics.SetQueueDepth(len(q.ch))
	q.logger.Debug("queue.enqueued", "scan_id", job.ScanID, "force", job.Force)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for
// ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
