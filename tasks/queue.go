package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrExecutionNotFinished is returned by Execution.Result when the execution
// has not reached a terminal state yet.
var ErrExecutionNotFinished = errors.New("execution not finished")

// ExecutionError carries the stored failure of a task execution across the
// queue boundary.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// ExecutionState is the queue engine's view of an execution. It is mapped to
// the coarser task State for protocol responses.
type ExecutionState string

const (
	ExecStateScheduled ExecutionState = "scheduled"
	ExecStateQueued    ExecutionState = "queued"
	ExecStateRunning   ExecutionState = "running"
	ExecStateCompleted ExecutionState = "completed"
	ExecStateFailed    ExecutionState = "failed"
	ExecStateCancelled ExecutionState = "cancelled"
)

// TaskState projects the execution state onto the protocol-visible task
// state. Everything before completion reads as working.
func (s ExecutionState) TaskState() State {
	switch s {
	case ExecStateScheduled, ExecStateQueued, ExecStateRunning:
		return StateWorking
	case ExecStateCompleted:
		return StateCompleted
	case ExecStateFailed:
		return StateFailed
	case ExecStateCancelled:
		return StateCancelled
	default:
		return StateUnknown
	}
}

// Job is the callable executed by the work queue. Its return value is
// marshaled to JSON and stored as the task result.
type Job func(ctx context.Context) (any, error)

// Queue is the contract between the task submission path and the work queue
// engine. A queue owns a Store and writes terminal outcomes through it, so
// executions survive restarts of the handling node.
type Queue interface {
	// Add enqueues job under key. Retention bounds how long the terminal
	// result stays queryable.
	Add(ctx context.Context, key Key, retention time.Duration, job Job) error

	// GetExecution returns a handle on the execution for key, or nil when
	// the queue knows nothing about it.
	GetExecution(ctx context.Context, key Key) (Execution, error)

	// Cancel stops the execution for key if it is still in flight. Cancelling
	// a terminal or unknown execution is a no-op.
	Cancel(ctx context.Context, key Key) error

	// ExecutionTTL is how long the queue engine retains execution metadata.
	ExecutionTTL() time.Duration
}

// Execution is a handle on one enqueued job.
type Execution interface {
	// Sync refreshes the handle's view of the execution from the backing
	// store, picking up transitions made by other queue instances.
	Sync(ctx context.Context) error

	// State returns the last synced execution state.
	State() ExecutionState

	// Result returns the stored outcome. It returns ErrExecutionNotFinished
	// before the terminal state, and an *ExecutionError for failed or
	// cancelled executions.
	Result(ctx context.Context) (json.RawMessage, error)
}
