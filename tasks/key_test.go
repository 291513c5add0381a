package tasks

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  Key
	}{
		{
			name: "tool",
			key:  NewKey("sess-1", "task-1", KindTool, "add"),
		},
		{
			name: "prompt",
			key:  NewKey("sess-1", "task-2", KindPrompt, "greeting"),
		},
		{
			name: "resource uri component keeps separators",
			key:  NewKey("sess-1", "task-3", KindResource, "file:///tmp/data.txt"),
		},
		{
			name: "component with nested colons",
			key:  NewKey("sess-1", "task-4", KindResource, "a/b:c:d"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseKey(tt.key.Encode())
			if err != nil {
				t.Fatalf("ParseKey(%q): %v", tt.key.Encode(), err)
			}
			if diff := cmp.Diff(tt.key, parsed); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseKeyErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"too few segments", "sess:task:tool"},
		{"unknown kind", "sess:task:widget:thing"},
		{"empty session", ":task:tool:add"},
		{"empty task", "sess::tool:add"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseKey(tt.in); err == nil {
				t.Errorf("ParseKey(%q): want error, got nil", tt.in)
			}
		})
	}
}

func TestMustParseKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParseKey on malformed key did not panic")
		}
	}()
	MustParseKey("not-a-key")
}

func TestKeyCodecProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// Session and task ids are UUIDs in practice: non-empty and free of the
	// separator. Components may contain anything, separators included.
	idGen := gen.RegexMatch(`[a-f0-9]{8}-[a-f0-9]{4}`)
	kindGen := gen.OneConstOf(KindTool, KindPrompt, KindResource)
	componentGen := gen.AnyString().SuchThat(func(s string) bool {
		return !strings.ContainsRune(s, '\x00')
	})

	properties.Property("encode/parse round trips", prop.ForAll(
		func(sessionID, taskID string, kind Kind, component string) bool {
			k := NewKey(sessionID, taskID, kind, component)
			parsed, err := ParseKey(k.Encode())
			return err == nil && parsed == k
		},
		idGen, idGen, kindGen, componentGen,
	))

	properties.Property("distinct keys encode distinctly", prop.ForAll(
		func(sessionID, taskA, taskB string, kind Kind, component string) bool {
			if taskA == taskB {
				return true
			}
			a := NewKey(sessionID, taskA, kind, component)
			b := NewKey(sessionID, taskB, kind, component)
			return a.Encode() != b.Encode()
		},
		idGen, idGen, idGen, kindGen, componentGen,
	))

	properties.TestingRun(t)
}
