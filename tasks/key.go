// Package tasks implements the background task execution subsystem:
// routing keys, task state and result storage, client task id mappings,
// and the work queue contract used by the server's task handlers.
package tasks

import (
	"fmt"
	"strings"
)

// Kind identifies which component family a task executes.
type Kind string

const (
	KindTool     Kind = "tool"
	KindPrompt   Kind = "prompt"
	KindResource Kind = "resource"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTool, KindPrompt, KindResource:
		return true
	}
	return false
}

const keySeparator = ":"

// Key is the internal routing identifier of one background execution. It
// binds a client-visible task id to its session, component family, and
// component identifier.
//
// The component segment is last on the wire so it may itself contain the
// separator; resource URIs routinely do.
type Key struct {
	SessionID string
	TaskID    string
	Kind      Kind
	Component string
}

func NewKey(sessionID, taskID string, kind Kind, component string) Key {
	return Key{
		SessionID: sessionID,
		TaskID:    taskID,
		Kind:      kind,
		Component: component,
	}
}

// Encode renders the key as session:task:kind:component.
// Session and task ids are generated as UUIDs and never contain the separator.
func (k Key) Encode() string {
	return strings.Join([]string{k.SessionID, k.TaskID, string(k.Kind), k.Component}, keySeparator)
}

func (k Key) String() string {
	return k.Encode()
}

// ParseKey decodes a key produced by Encode. The split is bounded so the
// component segment keeps any separators it contains.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, keySeparator, 4)
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("malformed task key %q: want 4 segments, got %d", s, len(parts))
	}

	k := Key{
		SessionID: parts[0],
		TaskID:    parts[1],
		Kind:      Kind(parts[2]),
		Component: parts[3],
	}
	if k.SessionID == "" || k.TaskID == "" {
		return Key{}, fmt.Errorf("malformed task key %q: empty session or task id", s)
	}
	if !k.Kind.Valid() {
		return Key{}, fmt.Errorf("malformed task key %q: unknown kind %q", s, parts[2])
	}
	return k, nil
}

// MustParseKey is ParseKey for keys that never cross a trust boundary.
// An ill-formed key indicates a programming error, so it panics.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}
