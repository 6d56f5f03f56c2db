package dispatch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/charmbracelet/log"
	"github.com/tiagowl/ImgMigrator/internal/shared"
	"github.com/tiagowl/ImgMigrator/internal/tasks"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 100
	defaultMaxAttempts = 3
	defaultBaseBackoff = time.Second
	defaultMaxBackoff  = time.Minute
)

// Runner executes migrations. See tasks.MigrationEngine.
type Runner interface {
	Run(ctx context.Context, migrationID, userID string, progress chan<- tasks.ProgressUpdate) (*tasks.Outcome, error)
	Fail(ctx context.Context, migrationID, reason string) (bool, error)
}

// Job is one scheduled run.
type Job struct {
	MigrationID string
	UserID      string
	Attempt     int
}

// Queue runs migrations on a worker pool with retries.
type Queue struct {
	runner  Runner
	cfg     shared.DispatchConfig
	logger  *log.Logger
	limiter *rate.Limiter
	jobs    chan Job

	mu     sync.Mutex
	active map[string]struct{}
	timers map[string]*time.Timer
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a stopped queue. Zero config values fall back to defaults.
func NewQueue(runner Runner, cfg shared.DispatchConfig, logger *log.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Queue{
		runner:  runner,
		cfg:     cfg,
		logger:  shared.WithLogger(logger, "component", "dispatch"),
		limiter: rate.NewLimiter(limit, 1),
		jobs:    make(chan Job, cfg.QueueSize),
		active:  map[string]struct{}{},
		timers:  map[string]*time.Timer{},
	}
}

// Start launches the workers. They stop when ctx is done or [Queue.Stop] is called.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancel = cancel
	q.mu.Unlock()

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.logger.Info("queue started", "workers", q.cfg.Workers, "size", q.cfg.QueueSize)
}

// Stop cancels running jobs, drops pending retries and waits for the workers to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue schedules a run of migrationID.
//
// Returns [shared.ErrAlreadyQueued] when the migration is queued, running or waiting for a retry and
// [shared.ErrQueueFull] when the buffer is full.
func (q *Queue) Enqueue(migrationID, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("%w: queue is stopped", shared.ErrServiceUnavailable)
	}
	if _, ok := q.active[migrationID]; ok {
		return fmt.Errorf("%w: %s", shared.ErrAlreadyQueued, migrationID)
	}

	select {
	case q.jobs <- Job{MigrationID: migrationID, UserID: userID}:
		q.active[migrationID] = struct{}{}
		q.logger.Debug("job queued", "migration", migrationID)
		return nil
	default:
		return shared.ErrQueueFull
	}
}

// Pending returns the number of jobs waiting for a worker.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Backoff returns the delay before retry attempt n (1-based): base·2^(n-1), capped at the maximum.
func (q *Queue) Backoff(attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     q.cfg.BaseBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         q.cfg.MaxBackoff,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	logger := shared.WithLogger(q.logger, "worker", id)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.limiter.Wait(ctx); err != nil {
				q.release(job.MigrationID)
				return
			}
			q.process(ctx, logger, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, logger *log.Logger, job Job) {
	logger = shared.WithLogger(logger, "migration", job.MigrationID, "attempt", job.Attempt+1)

	runCtx := ctx
	cancel := func() {}
	if q.cfg.SoftTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, q.cfg.SoftTimeout)
	}
	outcome, err := q.runner.Run(runCtx, job.MigrationID, job.UserID, nil)
	cancel()

	switch {
	case err == nil && outcome.Yielded() && ctx.Err() == nil:
		logger.Info("run yielded, requeueing")
		q.requeue(Job{MigrationID: job.MigrationID, UserID: job.UserID})
	case err == nil:
		logger.Info("run finished", "outcome", outcome)
		q.release(job.MigrationID)
	case ctx.Err() != nil:
		q.release(job.MigrationID)
	case shared.IsFatal(err):
		logger.Error("run rejected", "error", err)
		q.release(job.MigrationID)
	default:
		q.retry(ctx, logger, job, err)
	}
}

func (q *Queue) retry(ctx context.Context, logger *log.Logger, job Job, cause error) {
	job.Attempt++
	if job.Attempt >= q.cfg.MaxAttempts {
		reason := fmt.Sprintf("gave up after %d attempts: %v", job.Attempt, cause)
		if _, err := q.runner.Fail(ctx, job.MigrationID, reason); err != nil {
			logger.Error("failed to mark migration failed", "error", err)
		}
		logger.Error("run failed permanently", "error", cause)
		q.release(job.MigrationID)
		return
	}

	delay := q.Backoff(job.Attempt)
	logger.Warn("run failed, retrying", "error", cause, "delay", delay)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		delete(q.active, job.MigrationID)
		return
	}
	q.timers[job.MigrationID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, job.MigrationID)
		q.mu.Unlock()
		q.requeue(job)
	})
}

// requeue puts an already active job back on the channel. A full buffer drops it; the sweeper will
// find the migration again.
func (q *Queue) requeue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		delete(q.active, job.MigrationID)
		return
	}
	select {
	case q.jobs <- job:
	default:
		delete(q.active, job.MigrationID)
		q.logger.Warn("queue full, dropping job", "migration", job.MigrationID)
	}
}

func (q *Queue) release(migrationID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, migrationID)
}
