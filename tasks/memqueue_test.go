package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

func waitTerminal(t *testing.T, q *MemoryQueue, key Key) Execution {
	t.Helper()
	ctx := context.Background()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exec, err := q.GetExecution(ctx, key)
		if err != nil {
			t.Fatalf("GetExecution: %v", err)
		}
		if exec == nil {
			t.Fatal("GetExecution returned nil for enqueued task")
		}
		if err := exec.Sync(ctx); err != nil {
			t.Fatalf("Sync: %v", err)
		}
		if exec.State().TaskState().Terminal() {
			return exec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("execution did not reach a terminal state")
	return nil
}

func TestMemoryQueueExecutesJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := NewMemoryQueue(store, WithWorkers(2))
	defer q.Close()

	key := testKey("t1")
	err := q.Add(ctx, key, time.Minute, func(ctx context.Context) (any, error) {
		return map[string]any{"sum": 5}, nil
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	// The record exists immediately, before the job runs.
	if _, found, _ := store.GetState(ctx, key); !found {
		t.Error("no record immediately after Add")
	}

	exec := waitTerminal(t, q, key)
	if exec.State() != ExecStateCompleted {
		t.Fatalf("state = %q, want completed", exec.State())
	}

	raw, err := exec.Result(ctx)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	var out map[string]int
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if out["sum"] != 5 {
		t.Errorf("sum = %d, want 5", out["sum"])
	}

	// The terminal outcome is also visible through the store.
	rec, found, _ := store.GetRecord(ctx, key)
	if !found || rec.State != StateCompleted {
		t.Errorf("store record: found=%v state=%q", found, rec.State)
	}
}

func TestMemoryQueueStoresFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := NewMemoryQueue(store)
	defer q.Close()

	key := testKey("t1")
	err := q.Add(ctx, key, time.Minute, func(ctx context.Context) (any, error) {
		return nil, fmt.Errorf("boom")
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	exec := waitTerminal(t, q, key)
	if exec.State() != ExecStateFailed {
		t.Fatalf("state = %q, want failed", exec.State())
	}

	_, err = exec.Result(ctx)
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Result error = %v, want *ExecutionError", err)
	}
	if execErr.Message != "boom" {
		t.Errorf("message = %q, want %q", execErr.Message, "boom")
	}

	rec, _, _ := store.GetRecord(ctx, key)
	if rec.State != StateFailed || rec.Error != "boom" {
		t.Errorf("store record state=%q error=%q", rec.State, rec.Error)
	}
}

func TestMemoryQueueResultBeforeTerminal(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(NewMemoryStore(), WithWorkers(1))
	defer q.Close()

	release := make(chan struct{})
	key := testKey("t1")
	_ = q.Add(ctx, key, time.Minute, func(ctx context.Context) (any, error) {
		<-release
		return 1, nil
	})

	exec, err := q.GetExecution(ctx, key)
	if err != nil || exec == nil {
		t.Fatalf("GetExecution: exec=%v err=%v", exec, err)
	}
	if _, err := exec.Result(ctx); !errors.Is(err, ErrExecutionNotFinished) {
		t.Errorf("Result before terminal = %v, want ErrExecutionNotFinished", err)
	}
	close(release)
	waitTerminal(t, q, key)
}

func TestMemoryQueueCancel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := NewMemoryQueue(store, WithWorkers(1))
	defer q.Close()

	started := make(chan struct{})
	key := testKey("t1")
	_ = q.Add(ctx, key, time.Minute, func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	<-started
	if err := q.Cancel(ctx, key); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	exec := waitTerminal(t, q, key)
	if exec.State() != ExecStateCancelled {
		t.Fatalf("state = %q, want cancelled", exec.State())
	}

	// Cancelled tasks remain pollable through the store.
	state, found, _ := store.GetState(ctx, key)
	if !found || state != StateCancelled {
		t.Errorf("store state: found=%v state=%q", found, state)
	}

	// Cancel is idempotent, including on terminal executions.
	if err := q.Cancel(ctx, key); err != nil {
		t.Errorf("second Cancel: %v", err)
	}
}

func TestMemoryQueueCancelUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(NewMemoryStore())
	defer q.Close()

	if err := q.Cancel(ctx, testKey("missing")); err != nil {
		t.Errorf("Cancel on unknown key: %v", err)
	}
}

func TestMemoryQueueExecutionFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey("t1")

	// Simulate a record written by another node: no in-process execution.
	_ = store.StoreResult(ctx, key, json.RawMessage(`"done"`), time.Minute)

	q := NewMemoryQueue(store)
	defer q.Close()

	exec, err := q.GetExecution(ctx, key)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if exec == nil {
		t.Fatal("no execution reconstructed from store record")
	}
	if exec.State() != ExecStateCompleted {
		t.Errorf("state = %q, want completed", exec.State())
	}
	raw, err := exec.Result(ctx)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if string(raw) != `"done"` {
		t.Errorf("result = %s, want \"done\"", raw)
	}
}

func TestMemoryQueueEvictsTerminalExecution(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := NewMemoryQueue(store, WithWorkers(1))
	defer q.Close()

	key := testKey("t1")
	err := q.Add(ctx, key, 0, func(ctx context.Context) (any, error) {
		return 5, nil
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitTerminal(t, q, key)

	// Zero retention expires the record as soon as it completes. Once the
	// sweep removes it, no lingering in-process handle may keep serving the
	// result.
	swept, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	exec, err := q.GetExecution(ctx, key)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if exec != nil {
		t.Errorf("execution still served after its record expired, state = %q", exec.State())
	}
}

func TestMemoryQueueEvictsCancelledExecution(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	q := NewMemoryQueue(store, WithWorkers(1))
	defer q.Close()

	started := make(chan struct{})
	key := testKey("t1")
	_ = q.Add(ctx, key, time.Minute, func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	<-started
	if err := q.Cancel(ctx, key); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// After cancellation the store-backed handle takes over.
	exec := waitTerminal(t, q, key)
	if _, ok := exec.(*storeExecution); !ok {
		t.Errorf("execution = %T, want store-backed handle", exec)
	}
	if exec.State() != ExecStateCancelled {
		t.Errorf("state = %q, want cancelled", exec.State())
	}
}

func TestMemoryQueueGetExecutionUnknown(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(NewMemoryStore())
	defer q.Close()

	exec, err := q.GetExecution(ctx, testKey("missing"))
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if exec != nil {
		t.Error("execution returned for unknown key")
	}
}

func TestMemoryQueueAddAfterClose(t *testing.T) {
	q := NewMemoryQueue(NewMemoryStore())
	q.Close()

	err := q.Add(context.Background(), testKey("t1"), time.Minute, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err == nil {
		t.Error("Add after Close succeeded")
	}
}
