package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const (
	defaultWorkers      = 4
	defaultExecutionTTL = time.Hour
	defaultJobBuffer    = 256
)

// MemoryQueue is the in-process reference Queue: a bounded worker pool that
// executes enqueued jobs and writes terminal outcomes through its Store.
type MemoryQueue struct {
	store   Store
	ttl     time.Duration
	workers int

	jobs       chan *memExecution
	wg         sync.WaitGroup
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu         sync.Mutex
	executions map[string]*memExecution
	closed     bool
}

var _ Queue = (*MemoryQueue)(nil)

type MemoryQueueOption func(*MemoryQueue)

// WithWorkers sets the size of the worker pool.
func WithWorkers(n int) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithExecutionTTL sets how long execution metadata is considered live.
func WithExecutionTTL(d time.Duration) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if d > 0 {
			q.ttl = d
		}
	}
}

func NewMemoryQueue(store Store, opts ...MemoryQueueOption) *MemoryQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &MemoryQueue{
		store:      store,
		ttl:        defaultExecutionTTL,
		workers:    defaultWorkers,
		jobs:       make(chan *memExecution, defaultJobBuffer),
		baseCtx:    ctx,
		baseCancel: cancel,
		executions: make(map[string]*memExecution),
	}
	for _, opt := range opts {
		opt(q)
	}

	q.wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go q.worker()
	}
	return q
}

func (q *MemoryQueue) ExecutionTTL() time.Duration {
	return q.ttl
}

// Store exposes the queue's backing store, mainly for expiration sweeps.
func (q *MemoryQueue) Store() Store {
	return q.store
}

func (q *MemoryQueue) Add(ctx context.Context, key Key, retention time.Duration, job Job) error {
	exec := &memExecution{
		queue:     q,
		key:       key,
		retention: retention,
		job:       job,
		state:     ExecStateQueued,
		done:      make(chan struct{}),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue closed")
	}
	q.executions[key.Encode()] = exec
	q.mu.Unlock()

	// The record exists as soon as the task is accepted, so polls issued
	// before the first transition see a working task.
	if err := q.store.SetState(ctx, key, StateWorking); err != nil {
		return fmt.Errorf("init task record: %w", err)
	}

	select {
	case q.jobs <- exec:
		return nil
	default:
		return fmt.Errorf("queue full")
	}
}

func (q *MemoryQueue) GetExecution(ctx context.Context, key Key) (Execution, error) {
	q.mu.Lock()
	exec, ok := q.executions[key.Encode()]
	q.mu.Unlock()
	if ok {
		return exec, nil
	}

	// No in-process handle, either because the task finished (terminal
	// handles are evicted) or because another node handled it; reconstruct
	// from the store so record expiration stays authoritative.
	rec, found, err := q.store.GetRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &storeExecution{store: q.store, key: key, record: rec}, nil
}

func (q *MemoryQueue) Cancel(ctx context.Context, key Key) error {
	q.mu.Lock()
	exec, ok := q.executions[key.Encode()]
	q.mu.Unlock()

	if ok {
		exec.markCancelled()
	}

	_, err := q.store.Cancel(ctx, key)
	return err
}

// Close stops the worker pool. In-flight jobs observe context cancellation.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.baseCancel()
	close(q.jobs)
	q.wg.Wait()
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for exec := range q.jobs {
		q.run(exec)
	}
}

func (q *MemoryQueue) run(exec *memExecution) {
	exec.mu.Lock()
	if exec.state == ExecStateCancelled {
		exec.mu.Unlock()
		return
	}
	jobCtx, cancel := context.WithCancel(q.baseCtx)
	exec.cancel = cancel
	exec.state = ExecStateRunning
	exec.mu.Unlock()
	defer cancel()

	value, err := exec.job(jobCtx)
	if err != nil {
		if exec.cancelled() {
			// Cancellation already recorded; the job error is just the
			// context unwinding.
			return
		}
		_ = q.store.StoreError(q.baseCtx, exec.key, err.Error(), exec.retention)
		exec.finish(ExecStateFailed, nil, err.Error())
		q.evict(exec.key)
		return
	}

	raw, merr := json.Marshal(value)
	if merr != nil {
		msg := fmt.Sprintf("marshal task result: %v", merr)
		_ = q.store.StoreError(q.baseCtx, exec.key, msg, exec.retention)
		exec.finish(ExecStateFailed, nil, msg)
		q.evict(exec.key)
		return
	}

	if exec.cancelled() {
		return
	}
	_ = q.store.StoreResult(q.baseCtx, exec.key, raw, exec.retention)
	exec.finish(ExecStateCompleted, raw, "")
	q.evict(exec.key)
}

// evict drops the in-process handle once the execution is terminal. From then
// on GetExecution serves the store-backed handle, so retention expiry applies
// on the node that ran the job too. Callers that already hold the handle keep
// using it.
func (q *MemoryQueue) evict(key Key) {
	q.mu.Lock()
	delete(q.executions, key.Encode())
	q.mu.Unlock()
}

// memExecution is the in-process execution handle.
type memExecution struct {
	queue     *MemoryQueue
	key       Key
	retention time.Duration
	job       Job

	mu     sync.Mutex
	state  ExecutionState
	result json.RawMessage
	errMsg string
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Execution = (*memExecution)(nil)

func (e *memExecution) State() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *memExecution) cancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == ExecStateCancelled
}

func (e *memExecution) finish(state ExecutionState, result json.RawMessage, errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == ExecStateCancelled {
		return
	}
	e.state = state
	e.result = result
	e.errMsg = errMsg
	close(e.done)
}

func (e *memExecution) markCancelled() {
	e.mu.Lock()
	if e.state.TaskState().Terminal() {
		e.mu.Unlock()
		return
	}
	e.state = ExecStateCancelled
	cancel := e.cancel
	close(e.done)
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.queue.evict(e.key)
}

func (e *memExecution) Sync(ctx context.Context) error {
	e.mu.Lock()
	terminal := e.state.TaskState().Terminal()
	e.mu.Unlock()
	if terminal {
		return nil
	}

	// Pick up cancellations recorded by another queue instance sharing the
	// store.
	state, ok, err := e.queue.store.GetState(ctx, e.key)
	if err != nil || !ok {
		return err
	}
	if state == StateCancelled {
		e.markCancelled()
	}
	return nil
}

func (e *memExecution) Result(ctx context.Context) (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case ExecStateCompleted:
		return e.result, nil
	case ExecStateFailed:
		return nil, &ExecutionError{Message: e.errMsg}
	case ExecStateCancelled:
		return nil, &ExecutionError{Message: "execution cancelled"}
	default:
		return nil, ErrExecutionNotFinished
	}
}

// Done exposes the terminal-state signal, used by tests.
func (e *memExecution) Done() <-chan struct{} {
	return e.done
}

// storeExecution is a read-only handle reconstructed from a stored record
// when no in-process execution exists.
type storeExecution struct {
	store Store
	key   Key

	mu     sync.Mutex
	record Record
}

var _ Execution = (*storeExecution)(nil)

func (e *storeExecution) Sync(ctx context.Context) error {
	rec, ok, err := e.store.GetRecord(ctx, e.key)
	if err != nil {
		return err
	}
	if ok {
		e.mu.Lock()
		e.record = rec
		e.mu.Unlock()
	}
	return nil
}

func (e *storeExecution) State() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.record.State {
	case StateSubmitted:
		return ExecStateQueued
	case StateWorking:
		return ExecStateRunning
	case StateCompleted:
		return ExecStateCompleted
	case StateFailed:
		return ExecStateFailed
	case StateCancelled:
		return ExecStateCancelled
	default:
		return ExecStateQueued
	}
}

func (e *storeExecution) Result(ctx context.Context) (json.RawMessage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.record.State {
	case StateCompleted:
		return e.record.Value, nil
	case StateFailed:
		return nil, &ExecutionError{Message: e.record.Error}
	case StateCancelled:
		return nil, &ExecutionError{Message: "execution cancelled"}
	default:
		return nil, ErrExecutionNotFinished
	}
}
