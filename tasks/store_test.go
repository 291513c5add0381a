package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testKey(taskID string) Key {
	return NewKey("sess", taskID, KindTool, "add")
}

func TestMemoryStoreStateLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey("t1")

	if _, found, _ := store.GetState(ctx, key); found {
		t.Fatal("state found before any write")
	}

	if err := store.SetState(ctx, key, StateWorking); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	state, found, err := store.GetState(ctx, key)
	if err != nil || !found {
		t.Fatalf("GetState: found=%v err=%v", found, err)
	}
	if state != StateWorking {
		t.Errorf("state = %q, want %q", state, StateWorking)
	}
}

func TestMemoryStoreResultRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey("t1")

	value := json.RawMessage(`{"answer":42}`)
	if err := store.StoreResult(ctx, key, value, time.Minute); err != nil {
		t.Fatalf("StoreResult: %v", err)
	}

	rec, found, err := store.GetRecord(ctx, key)
	if err != nil || !found {
		t.Fatalf("GetRecord: found=%v err=%v", found, err)
	}
	if rec.State != StateCompleted {
		t.Errorf("state = %q, want %q", rec.State, StateCompleted)
	}
	if diff := cmp.Diff(value, rec.Value); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
	if rec.Error != "" {
		t.Errorf("error = %q on completed record", rec.Error)
	}
	if rec.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}
}

func TestMemoryStoreErrorExcludesValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey("t1")

	// A failed write after a (hypothetical) value write must leave only the
	// error behind.
	if err := store.StoreResult(ctx, key, json.RawMessage(`1`), time.Minute); err != nil {
		t.Fatalf("StoreResult: %v", err)
	}
	if err := store.StoreError(ctx, key, "boom", time.Minute); err != nil {
		t.Fatalf("StoreError: %v", err)
	}

	rec, _, _ := store.GetRecord(ctx, key)
	if rec.State != StateFailed {
		t.Errorf("state = %q, want %q", rec.State, StateFailed)
	}
	if rec.Value != nil {
		t.Errorf("value = %s on failed record, want nil", rec.Value)
	}
	if rec.Error != "boom" {
		t.Errorf("error = %q, want %q", rec.Error, "boom")
	}
}

func TestMemoryStoreCancelPreservesRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey("t1")

	if err := store.SetState(ctx, key, StateWorking); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	found, err := store.Cancel(ctx, key)
	if err != nil || !found {
		t.Fatalf("Cancel: found=%v err=%v", found, err)
	}

	// Cancelled tasks stay pollable.
	state, found, _ := store.GetState(ctx, key)
	if !found || state != StateCancelled {
		t.Errorf("after cancel: found=%v state=%q, want found cancelled", found, state)
	}

	// Cancel after completion does not regress the state.
	key2 := testKey("t2")
	_ = store.StoreResult(ctx, key2, json.RawMessage(`1`), time.Minute)
	if found, _ := store.Cancel(ctx, key2); !found {
		t.Error("Cancel on completed task reported not found")
	}
	state2, _, _ := store.GetState(ctx, key2)
	if state2 != StateCompleted {
		t.Errorf("cancel regressed completed task to %q", state2)
	}
}

func TestMemoryStoreCancelledRecordSurvivesSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	now := base
	store.now = func() time.Time { return now }

	key := testKey("t1")
	_ = store.SetState(ctx, key, StateWorking)
	if found, err := store.Cancel(ctx, key); err != nil || !found {
		t.Fatalf("Cancel: found=%v err=%v", found, err)
	}

	rec, _, _ := store.GetRecord(ctx, key)
	if rec.Retention <= 0 {
		t.Fatalf("retention = %v after cancel, want positive", rec.Retention)
	}

	// An in-flight task carries no caller retention; cancelling must not turn
	// it into a record the very next sweep removes.
	now = base.Add(time.Hour)
	swept, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if swept != 0 {
		t.Errorf("swept = %d, want 0", swept)
	}
	state, found, _ := store.GetState(ctx, key)
	if !found || state != StateCancelled {
		t.Errorf("after sweep: found=%v state=%q, want found cancelled", found, state)
	}
}

func TestMemoryStoreDeleteRemovesRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	key := testKey("t1")

	_ = store.StoreResult(ctx, key, json.RawMessage(`1`), time.Minute)

	found, err := store.Delete(ctx, key)
	if err != nil || !found {
		t.Fatalf("Delete: found=%v err=%v", found, err)
	}

	// A deleted task is indistinguishable from one that never existed.
	if _, found, _ := store.GetState(ctx, key); found {
		t.Error("record still present after delete")
	}
	if found, _ := store.Delete(ctx, key); found {
		t.Error("second delete reported found")
	}
}

func TestMemoryStoreSweepExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	now := base
	store.now = func() time.Time { return now }

	expired := testKey("expired")
	live := testKey("live")
	inFlight := testKey("inflight")

	_ = store.StoreResult(ctx, expired, json.RawMessage(`1`), time.Minute)
	_ = store.StoreResult(ctx, live, json.RawMessage(`2`), time.Hour)
	_ = store.SetState(ctx, inFlight, StateWorking)

	now = base.Add(2 * time.Minute)

	swept, err := store.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
	if _, found, _ := store.GetRecord(ctx, expired); found {
		t.Error("expired record survived sweep")
	}
	if _, found, _ := store.GetRecord(ctx, live); !found {
		t.Error("live record was swept")
	}
	if _, found, _ := store.GetRecord(ctx, inFlight); !found {
		t.Error("in-flight record was swept")
	}

	// Sweeping is idempotent.
	swept, _ = store.SweepExpired(ctx)
	if swept != 0 {
		t.Errorf("second sweep = %d, want 0", swept)
	}
}

func TestMemoryStoreZeroRetentionExpiresImmediately(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	now := base
	store.now = func() time.Time { return now }

	key := testKey("t1")
	_ = store.StoreResult(ctx, key, json.RawMessage(`1`), 0)

	now = base.Add(time.Nanosecond)
	swept, _ := store.SweepExpired(ctx)
	if swept != 1 {
		t.Errorf("swept = %d, want 1 for zero retention", swept)
	}
}

func TestMemoryMappingsTTL(t *testing.T) {
	ctx := context.Background()
	mappings := NewMemoryMappings()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	now := base
	mappings.now = func() time.Time { return now }

	m := Mapping{Key: testKey("t1"), CreatedAt: base}
	if err := mappings.PutMapping(ctx, "sess", "t1", m, time.Minute); err != nil {
		t.Fatalf("PutMapping: %v", err)
	}

	got, found, err := mappings.GetMapping(ctx, "sess", "t1")
	if err != nil || !found {
		t.Fatalf("GetMapping: found=%v err=%v", found, err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}

	// Wrong session does not resolve.
	if _, found, _ := mappings.GetMapping(ctx, "other", "t1"); found {
		t.Error("mapping resolved for wrong session")
	}

	now = base.Add(2 * time.Minute)
	if _, found, _ := mappings.GetMapping(ctx, "sess", "t1"); found {
		t.Error("expired mapping still resolves")
	}
}

func TestMemoryMappingsDelete(t *testing.T) {
	ctx := context.Background()
	mappings := NewMemoryMappings()

	_ = mappings.PutMapping(ctx, "sess", "t1", Mapping{Key: testKey("t1")}, time.Minute)

	found, err := mappings.DeleteMapping(ctx, "sess", "t1")
	if err != nil || !found {
		t.Fatalf("DeleteMapping: found=%v err=%v", found, err)
	}
	if _, found, _ := mappings.GetMapping(ctx, "sess", "t1"); found {
		t.Error("mapping still resolves after delete")
	}
	if found, _ := mappings.DeleteMapping(ctx, "sess", "t1"); found {
		t.Error("second delete reported found")
	}
}
