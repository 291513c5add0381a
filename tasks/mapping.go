package tasks

import (
	"context"
	"sync"
	"time"
)

// Mapping associates a client-visible task id with its routing key. The
// creation timestamp is kept alongside so protocol results can report it
// after process restarts.
type Mapping struct {
	Key       Key
	CreatedAt time.Time
}

// MappingStore resolves (session, task id) pairs to routing keys. Entries
// carry a TTL so abandoned tasks do not accumulate; an expired mapping is
// indistinguishable from one that never existed.
type MappingStore interface {
	PutMapping(ctx context.Context, sessionID, taskID string, m Mapping, ttl time.Duration) error
	GetMapping(ctx context.Context, sessionID, taskID string) (Mapping, bool, error)
	DeleteMapping(ctx context.Context, sessionID, taskID string) (bool, error)
}

type mappingEntry struct {
	mapping   Mapping
	expiresAt time.Time
}

// MemoryMappings is the in-process MappingStore. Expired entries are pruned
// lazily on access.
type MemoryMappings struct {
	mu      sync.Mutex
	entries map[string]mappingEntry

	now func() time.Time // overridden in tests
}

var _ MappingStore = (*MemoryMappings)(nil)

func NewMemoryMappings() *MemoryMappings {
	return &MemoryMappings{
		entries: make(map[string]mappingEntry),
		now:     time.Now,
	}
}

func mappingKey(sessionID, taskID string) string {
	return sessionID + "/" + taskID
}

func (m *MemoryMappings) PutMapping(ctx context.Context, sessionID, taskID string, mapping Mapping, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := mappingEntry{mapping: mapping}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[mappingKey(sessionID, taskID)] = entry
	return nil
}

func (m *MemoryMappings) GetMapping(ctx context.Context, sessionID, taskID string) (Mapping, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := mappingKey(sessionID, taskID)
	entry, ok := m.entries[k]
	if !ok {
		return Mapping{}, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, k)
		return Mapping{}, false, nil
	}
	return entry.mapping, true, nil
}

func (m *MemoryMappings) DeleteMapping(ctx context.Context, sessionID, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := mappingKey(sessionID, taskID)
	if _, ok := m.entries[k]; !ok {
		return false, nil
	}
	delete(m.entries, k)
	return true, nil
}
