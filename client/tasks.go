package client

import (
	"context"
	"sync"
	"time"

	"github.com/taskmcp/mcp-sdk-go/protocol"
)

// defaultPollInterval is used while waiting on a task whose server did not
// suggest a poll cadence.
const defaultPollInterval = time.Second

// Task is a client-side handle on a task-augmented request.
//
// When the server does not support tasks it may execute the request
// synchronously and return the final result directly. Such a handle is
// "immediate": its result is already in hand, Status and Wait report a
// synthetic completed task, and Cancel and Delete are no-ops. No further
// network calls are made through an immediate handle.
type Task struct {
	cs        *ClientSession
	taskID    string
	immediate bool
	createdAt time.Time
}

// ID returns the server-assigned task id, or the empty string for an
// immediate handle.
func (t *Task) ID() string {
	return t.taskID
}

// Immediate reports whether the server executed the request synchronously
// instead of creating a task.
func (t *Task) Immediate() bool {
	return t.immediate
}

func (t *Task) syntheticTask() protocol.Task {
	return protocol.Task{
		Status:    protocol.TaskStatusCompleted,
		CreatedAt: t.createdAt.UTC().Format(time.RFC3339Nano),
	}
}

// Status polls the current task status
func (t *Task) Status(ctx context.Context) (protocol.Task, error) {
	if t.immediate {
		return t.syntheticTask(), nil
	}
	res, err := t.cs.GetTask(ctx, &protocol.GetTaskParams{TaskID: t.taskID})
	if err != nil {
		return protocol.Task{}, err
	}
	return res.Task, nil
}

// Wait polls until the task reaches a terminal state or one of the states in
// until, honoring the server's suggested poll interval. It also returns when
// the task becomes unknown to the server, since no further transition can be
// observed then.
//
// If ctx expires first, Wait returns the last observed status with a nil
// error; callers decide whether a non-terminal status is a failure.
func (t *Task) Wait(ctx context.Context, until ...protocol.TaskStatus) (protocol.Task, error) {
	if t.immediate {
		return t.syntheticTask(), nil
	}

	last := protocol.Task{
		TaskID:    t.taskID,
		Status:    protocol.TaskStatusWorking,
		CreatedAt: t.createdAt.UTC().Format(time.RFC3339Nano),
	}
	interval := defaultPollInterval
	for {
		res, err := t.cs.GetTask(ctx, &protocol.GetTaskParams{TaskID: t.taskID})
		if err != nil {
			// A poll cut short by the deadline still resolves to the last
			// known status.
			if ctx.Err() != nil {
				return last, nil
			}
			return protocol.Task{}, err
		}
		last = res.Task
		if res.Status.IsTerminal() || res.Status == protocol.TaskStatusUnknown || statusIn(res.Status, until) {
			return res.Task, nil
		}
		if res.PollInterval != nil && *res.PollInterval > 0 {
			interval = time.Duration(*res.PollInterval) * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return last, nil
		case <-time.After(interval):
		}
	}
}

func statusIn(status protocol.TaskStatus, set []protocol.TaskStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// Cancel requests cancellation of the task. It is a no-op on an immediate
// handle.
func (t *Task) Cancel(ctx context.Context, reason string) error {
	if t.immediate {
		return nil
	}
	_, err := t.cs.CancelTask(ctx, &protocol.CancelTaskParams{TaskID: t.taskID, Reason: reason})
	return err
}

// Delete removes the task and its stored result from the server. It is a
// no-op on an immediate handle.
func (t *Task) Delete(ctx context.Context) error {
	if t.immediate {
		return nil
	}
	return t.cs.DeleteTask(ctx, &protocol.DeleteTaskParams{TaskID: t.taskID})
}

// ToolTask is a handle on a task-augmented tools/call request
type ToolTask struct {
	Task

	mu     sync.Mutex
	result *protocol.CallToolResult
}

// CallToolAsTask invokes a tool as a background task and returns a handle on
// it. Task metadata is filled in if the caller did not provide any.
func (cs *ClientSession) CallToolAsTask(ctx context.Context, params *protocol.CallToolParams) (*ToolTask, error) {
	params = ensureToolTaskMeta(params)

	res, err := cs.CallTool(ctx, params)
	if err != nil {
		return nil, err
	}

	if taskID, ok := protocol.TaskIDFromMeta(res.Meta); ok {
		return &ToolTask{Task: Task{cs: cs, taskID: taskID, createdAt: time.Now()}}, nil
	}
	return &ToolTask{
		Task:   Task{cs: cs, immediate: true, createdAt: time.Now()},
		result: res,
	}, nil
}

// Result waits for the task to finish and returns its stored result. The
// result is fetched at most once and memoized.
func (t *ToolTask) Result(ctx context.Context) (*protocol.CallToolResult, error) {
	t.mu.Lock()
	cached := t.result
	t.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	if _, err := t.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := taskResult[protocol.CallToolResult](ctx, t.cs, t.taskID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.result = res
	t.mu.Unlock()
	return res, nil
}

// PromptTask is a handle on a task-augmented prompts/get request
type PromptTask struct {
	Task

	mu     sync.Mutex
	result *protocol.GetPromptResult
}

// GetPromptAsTask retrieves a prompt as a background task and returns a
// handle on it.
func (cs *ClientSession) GetPromptAsTask(ctx context.Context, params *protocol.GetPromptParams) (*PromptTask, error) {
	params = ensurePromptTaskMeta(params)

	res, err := cs.GetPrompt(ctx, params)
	if err != nil {
		return nil, err
	}

	if taskID, ok := protocol.TaskIDFromMeta(res.Meta); ok {
		return &PromptTask{Task: Task{cs: cs, taskID: taskID, createdAt: time.Now()}}, nil
	}
	return &PromptTask{
		Task:   Task{cs: cs, immediate: true, createdAt: time.Now()},
		result: res,
	}, nil
}

// Result waits for the task to finish and returns its stored result. The
// result is fetched at most once and memoized.
func (t *PromptTask) Result(ctx context.Context) (*protocol.GetPromptResult, error) {
	t.mu.Lock()
	cached := t.result
	t.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	if _, err := t.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := taskResult[protocol.GetPromptResult](ctx, t.cs, t.taskID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.result = res
	t.mu.Unlock()
	return res, nil
}

// ResourceTask is a handle on a task-augmented resources/read request
type ResourceTask struct {
	Task

	mu     sync.Mutex
	result *protocol.ReadResourceResult
}

// ReadResourceAsTask reads a resource as a background task and returns a
// handle on it.
func (cs *ClientSession) ReadResourceAsTask(ctx context.Context, params *protocol.ReadResourceParams) (*ResourceTask, error) {
	params = ensureResourceTaskMeta(params)

	res, err := cs.ReadResource(ctx, params)
	if err != nil {
		return nil, err
	}

	if taskID, ok := protocol.TaskIDFromMeta(res.Meta); ok {
		return &ResourceTask{Task: Task{cs: cs, taskID: taskID, createdAt: time.Now()}}, nil
	}
	return &ResourceTask{
		Task:   Task{cs: cs, immediate: true, createdAt: time.Now()},
		result: res,
	}, nil
}

// Result waits for the task to finish and returns its stored result. The
// result is fetched at most once and memoized.
func (t *ResourceTask) Result(ctx context.Context) (*protocol.ReadResourceResult, error) {
	t.mu.Lock()
	cached := t.result
	t.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	if _, err := t.Wait(ctx); err != nil {
		return nil, err
	}
	res, err := taskResult[protocol.ReadResourceResult](ctx, t.cs, t.taskID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.result = res
	t.mu.Unlock()
	return res, nil
}

func ensureToolTaskMeta(params *protocol.CallToolParams) *protocol.CallToolParams {
	if params.Task != nil {
		return params
	}
	copied := *params
	copied.Task = &protocol.TaskMetadata{}
	return &copied
}

func ensurePromptTaskMeta(params *protocol.GetPromptParams) *protocol.GetPromptParams {
	if params.Task != nil {
		return params
	}
	copied := *params
	copied.Task = &protocol.TaskMetadata{}
	return &copied
}

func ensureResourceTaskMeta(params *protocol.ReadResourceParams) *protocol.ReadResourceParams {
	if params.Task != nil {
		return params
	}
	copied := *params
	copied.Task = &protocol.TaskMetadata{}
	return &copied
}
