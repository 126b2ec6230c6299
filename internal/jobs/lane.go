package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrQueueFull is returned by Submit when a lane's queue is at capacity.
var ErrQueueFull = errors.New("lane queue full")

// retryBaseDelay is the backoff base between task attempts.
const retryBaseDelay = 2 * time.Second

// onFailureGrace bounds the terminal-state write after a task's final
// attempt, independent of the attempt's own (possibly expired) deadline.
const onFailureGrace = 30 * time.Second

// Lane is a named bounded worker pool. All workers pull from a single
// shared queue - natural load balancing via Go channel semantics.
type Lane struct {
	name        string
	logger      *slog.Logger
	workerCount int
	queue       chan Task

	inFlight atomic.Int32
}

// LaneConfig configures a new lane.
type LaneConfig struct {
	Name        string
	Logger      *slog.Logger
	WorkerCount int // Number of worker goroutines (default 1)
	QueueSize   int // Queue size (default 1000)
}

// NewLane creates a new lane.
func NewLane(cfg LaneConfig) *Lane {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	return &Lane{
		name:        cfg.Name,
		logger:      logger.With("lane", cfg.Name, "workers", workerCount),
		workerCount: workerCount,
		queue:       make(chan Task, queueSize),
	}
}

// Name returns the lane name.
func (l *Lane) Name() string {
	return l.name
}

// Start begins the lane's processing. Blocks until ctx is cancelled.
func (l *Lane) Start(ctx context.Context) {
	for i := 0; i < l.workerCount; i++ {
		go l.worker(ctx, i)
	}

	<-ctx.Done()
	l.logger.Info("lane stopping")
}

// Submit adds a task to the lane's queue.
func (l *Lane) Submit(task Task) error {
	select {
	case l.queue <- task:
		l.logger.Debug("task queued", "type", task.Type(), "job_id", task.JobID(), "queue_len", len(l.queue))
		return nil
	default:
		l.logger.Warn("lane queue full", "type", task.Type(), "job_id", task.JobID())
		return fmt.Errorf("%w: %s", ErrQueueFull, l.name)
	}
}

// Status reports the lane's current state.
func (l *Lane) Status() LaneStatus {
	return LaneStatus{
		Name:       l.name,
		Workers:    l.workerCount,
		InFlight:   int(l.inFlight.Load()),
		QueueDepth: len(l.queue),
	}
}

// LaneStatus reports a lane's current state.
type LaneStatus struct {
	Name       string `json:"name"`
	Workers    int    `json:"workers"`
	InFlight   int    `json:"in_flight"`
	QueueDepth int    `json:"queue_depth"`
}

func (l *Lane) worker(ctx context.Context, id int) {
	logger := l.logger.With("worker", id)
	logger.Debug("lane worker started")

	for {
		select {
		case <-ctx.Done():
			return

		case task := <-l.queue:
			l.inFlight.Add(1)
			l.run(ctx, task)
			l.inFlight.Add(-1)
		}
	}
}

// run drives a task through its attempt loop.
func (l *Lane) run(ctx context.Context, task Task) {
	logger := l.logger.With("type", task.Type(), "job_id", task.JobID())

	attempts := task.MaxAttempts()
	if attempts < 1 {
		attempts = 1
	}

	start := time.Now()
	err := retry.Do(
		func() error {
			attemptCtx := ctx
			if timeout := task.Timeout(); timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return task.Execute(attemptCtx)
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(retryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("task attempt failed, retrying", "attempt", n+1, "error", err)
		}),
	)

	if err != nil {
		logger.Error("task failed", "attempts", attempts, "duration", time.Since(start), "error", err)

		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), onFailureGrace)
		defer cancel()
		task.OnFailure(failCtx, err)
		return
	}

	logger.Debug("task completed", "duration", time.Since(start))
}
