package client

import (
	"context"
	"testing"

	"github.com/taskmcp/mcp-sdk-go/protocol"
)

func TestEnsureToolTaskMeta(t *testing.T) {
	params := &protocol.CallToolParams{Name: "add"}
	augmented := ensureToolTaskMeta(params)

	if augmented == params {
		t.Error("expected a copy when task metadata is added")
	}
	if augmented.Task == nil {
		t.Fatal("task metadata not filled in")
	}
	if params.Task != nil {
		t.Error("original params mutated")
	}

	// Caller-provided metadata passes through untouched.
	ttl := int64(5000)
	withMeta := &protocol.CallToolParams{Name: "add", Task: &protocol.TaskMetadata{TTL: &ttl}}
	if got := ensureToolTaskMeta(withMeta); got != withMeta {
		t.Error("params with task metadata should be returned as-is")
	}
}

func TestEnsurePromptAndResourceTaskMeta(t *testing.T) {
	p := ensurePromptTaskMeta(&protocol.GetPromptParams{Name: "greet"})
	if p.Task == nil {
		t.Error("prompt params missing task metadata")
	}
	r := ensureResourceTaskMeta(&protocol.ReadResourceParams{URI: "file:///x"})
	if r.Task == nil {
		t.Error("resource params missing task metadata")
	}
}

func TestImmediateHandleNeedsNoSession(t *testing.T) {
	ctx := context.Background()

	// An immediate handle never touches the session, so a nil one is fine.
	h := Task{immediate: true}

	if h.ID() != "" {
		t.Errorf("id = %q, want empty", h.ID())
	}
	status, err := h.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != protocol.TaskStatusCompleted {
		t.Errorf("status = %q, want completed", status.Status)
	}
	if _, err := h.Wait(ctx); err != nil {
		t.Errorf("Wait: %v", err)
	}
	if err := h.Cancel(ctx, "reason"); err != nil {
		t.Errorf("Cancel: %v", err)
	}
	if err := h.Delete(ctx); err != nil {
		t.Errorf("Delete: %v", err)
	}
}
