// Package jobs is the execution substrate for extraction work: named,
// concurrency-limited lanes that tasks are dispatched onto.
package jobs

import (
	"context"
	"time"
)

// Task is an independently schedulable unit of work.
type Task interface {
	// Type returns the task type identifier.
	Type() string

	// JobID returns the parent document job this task belongs to.
	JobID() string

	// MaxAttempts returns how many times Execute may run before the task
	// is recorded as failed. Must be >= 1.
	MaxAttempts() int

	// Timeout bounds a single attempt. Zero means no per-task ceiling.
	Timeout() time.Duration

	// Execute runs one attempt. It should respect context cancellation.
	// Returning an error triggers a retry until MaxAttempts is exhausted.
	Execute(ctx context.Context) error

	// OnFailure is called once, after the final attempt fails, so the task
	// can record its terminal state. The context passed is detached from
	// the (possibly expired) attempt context.
	OnFailure(ctx context.Context, err error)
}
