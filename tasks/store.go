package tasks

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Store persists task state and terminal results. Implementations must make
// StoreResult and StoreError atomic: the record and its terminal state become
// visible together or not at all.
type Store interface {
	// SetState records the task's lifecycle state, creating the record if
	// it does not exist yet.
	SetState(ctx context.Context, key Key, state State) error

	// GetState returns the task's current state. The second return value is
	// false when no record exists.
	GetState(ctx context.Context, key Key) (State, bool, error)

	// StoreResult stores a successful outcome and transitions the task to
	// StateCompleted.
	StoreResult(ctx context.Context, key Key, value json.RawMessage, retention time.Duration) error

	// StoreError stores a failure message and transitions the task to
	// StateFailed.
	StoreError(ctx context.Context, key Key, message string, retention time.Duration) error

	// GetRecord returns the full task record.
	GetRecord(ctx context.Context, key Key) (Record, bool, error)

	// Cancel transitions the task to StateCancelled while preserving the
	// record, so the task remains pollable. Returns false when no record
	// exists.
	Cancel(ctx context.Context, key Key) (bool, error)

	// Delete removes the record entirely. A deleted task becomes
	// indistinguishable from one that never existed. Returns false when no
	// record exists.
	Delete(ctx context.Context, key Key) (bool, error)

	// SweepExpired removes terminal records whose retention has elapsed and
	// returns how many were removed. It is safe to call concurrently and
	// repeatedly.
	SweepExpired(ctx context.Context) (int, error)
}

// cancelledRetention keeps cancelled records pollable for a generous window.
// Cancellation is the one terminal transition that carries no caller-supplied
// retention, so the store applies its own, matching the Redis store's record
// expiration.
const cancelledRetention = 24 * time.Hour

// MemoryStore is the in-process Store. A single mutex guards the record map;
// it is never held across I/O since there is none.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record

	now func() time.Time // overridden in tests
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// ensureLocked returns the record for key, creating it if absent.
func (s *MemoryStore) ensureLocked(key Key) *Record {
	enc := key.Encode()
	rec, ok := s.records[enc]
	if !ok {
		rec = &Record{
			State:     StateSubmitted,
			CreatedAt: s.now().UTC(),
		}
		s.records[enc] = rec
	}
	return rec
}

func (s *MemoryStore) SetState(ctx context.Context, key Key, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureLocked(key)
	rec.State = state
	return nil
}

func (s *MemoryStore) GetState(ctx context.Context, key Key) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key.Encode()]
	if !ok {
		return StateUnknown, false, nil
	}
	return rec.State, true, nil
}

func (s *MemoryStore) StoreResult(ctx context.Context, key Key, value json.RawMessage, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureLocked(key)
	rec.State = StateCompleted
	rec.Value = value
	rec.Error = ""
	rec.CompletedAt = s.now().UTC()
	rec.Retention = retention
	return nil
}

func (s *MemoryStore) StoreError(ctx context.Context, key Key, message string, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureLocked(key)
	rec.State = StateFailed
	rec.Value = nil
	rec.Error = message
	rec.CompletedAt = s.now().UTC()
	rec.Retention = retention
	return nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, key Key) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key.Encode()]
	if !ok {
		return Record{}, false, nil
	}
	return *rec, true, nil
}

func (s *MemoryStore) Cancel(ctx context.Context, key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key.Encode()]
	if !ok {
		return false, nil
	}
	// Cancelling an already-terminal record is a no-op; the task was found
	// either way.
	if !rec.State.Terminal() {
		rec.State = StateCancelled
		rec.CompletedAt = s.now().UTC()
		rec.Retention = cancelledRetention
	}
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enc := key.Encode()
	if _, ok := s.records[enc]; !ok {
		return false, nil
	}
	delete(s.records, enc)
	return true, nil
}

func (s *MemoryStore) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	swept := 0
	for enc, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, enc)
			swept++
		}
	}
	return swept, nil
}

// Len reports how many records the store currently holds.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
