package tasks

import (
	"encoding/json"
	"time"
)

// State is the lifecycle state of a task as tracked by the store.
type State string

const (
	StateSubmitted State = "submitted"
	StateWorking   State = "working"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateUnknown   State = "unknown"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Record is the stored outcome of one task execution. Value and Error are
// mutually exclusive: Value is set only for completed tasks, Error only for
// failed ones.
type Record struct {
	State       State           `json:"state"`
	Value       json.RawMessage `json:"value,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt time.Time       `json:"completed_at,omitzero"`
	// Retention bounds how long the record stays queryable after the task
	// reaches a terminal state.
	Retention time.Duration `json:"retention"`
}

// ExpiresAt returns when the record becomes eligible for sweeping. The zero
// time means the record has not reached a terminal state yet.
func (r Record) ExpiresAt() time.Time {
	if r.CompletedAt.IsZero() {
		return time.Time{}
	}
	return r.CompletedAt.Add(r.Retention)
}

// Expired reports whether the record may be swept at the given instant.
func (r Record) Expired(now time.Time) bool {
	exp := r.ExpiresAt()
	return !exp.IsZero() && !now.Before(exp)
}
