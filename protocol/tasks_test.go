package protocol

import "testing"

func TestTaskStatusIsTerminal(t *testing.T) {
	terminal := []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []TaskStatus{TaskStatusSubmitted, TaskStatusWorking, TaskStatusInputRequired, TaskStatusUnknown}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestTaskIDFromMeta(t *testing.T) {
	meta := TaskStubMeta("task-123")

	taskID, ok := TaskIDFromMeta(meta)
	if !ok || taskID != "task-123" {
		t.Errorf("TaskIDFromMeta = %q, %v", taskID, ok)
	}

	entry, ok := meta[MetaKeyTask].(map[string]any)
	if !ok {
		t.Fatalf("stub meta entry has type %T", meta[MetaKeyTask])
	}
	if entry["status"] != string(TaskStatusWorking) {
		t.Errorf("stub status = %v, want working", entry["status"])
	}

	if _, ok := TaskIDFromMeta(nil); ok {
		t.Error("nil meta produced a task id")
	}
	if _, ok := TaskIDFromMeta(map[string]any{"unrelated": true}); ok {
		t.Error("unrelated meta produced a task id")
	}
	if _, ok := TaskIDFromMeta(map[string]any{MetaKeyTask: map[string]any{"taskId": ""}}); ok {
		t.Error("empty task id accepted")
	}
}

func TestRelatedTaskMeta(t *testing.T) {
	meta := RelatedTaskMeta("task-9")
	entry, ok := meta[MetaKeyRelatedTask].(map[string]any)
	if !ok {
		t.Fatalf("related meta entry has type %T", meta[MetaKeyRelatedTask])
	}
	if entry["taskId"] != "task-9" {
		t.Errorf("taskId = %v", entry["taskId"])
	}
}

func TestMergeMeta(t *testing.T) {
	if got := MergeMeta(nil, nil); got != nil {
		t.Errorf("MergeMeta(nil, nil) = %v, want nil", got)
	}

	merged := MergeMeta(nil, RelatedTaskMeta("t1"))
	if merged[MetaKeyRelatedTask] == nil {
		t.Error("src keys not copied into nil dst")
	}

	// Existing keys in dst win.
	dst := map[string]any{"k": "original"}
	merged = MergeMeta(dst, map[string]any{"k": "overlay", "extra": 1})
	if merged["k"] != "original" {
		t.Errorf("dst key overwritten: %v", merged["k"])
	}
	if merged["extra"] != 1 {
		t.Errorf("missing overlay key: %v", merged["extra"])
	}
}
