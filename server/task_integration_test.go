package server_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/taskmcp/mcp-sdk-go/client"
	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/server"
	"github.com/taskmcp/mcp-sdk-go/tasks"
	"github.com/taskmcp/mcp-sdk-go/transport/inmem"
)

// taskServer builds a server with the in-memory task stack and a few tools
// covering every task support mode.
func taskServer(t *testing.T) *server.Server {
	t.Helper()

	store := tasks.NewMemoryStore()
	queue := tasks.NewMemoryQueue(store, tasks.WithWorkers(2))
	t.Cleanup(func() { queue.Close() })

	srv := server.NewServer(&protocol.ServerInfo{Name: "task-test", Version: "0.1.0"}, &server.ServerOptions{
		Tasks: &server.TaskOptions{
			Queue:        queue,
			Mappings:     tasks.NewMemoryMappings(),
			Store:        store,
			PollInterval: 10 * time.Millisecond,
		},
	})

	srv.AddTool(&protocol.Tool{
		Name:        "add",
		Description: "adds two numbers",
		InputSchema: protocol.JSONSchema{"type": "object"},
		Execution:   &protocol.ToolExecution{TaskSupport: protocol.TaskSupportOptional},
	}, func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
		sum := server.GetFloat(req, "a", 0) + server.GetFloat(req, "b", 0)
		return server.JSONResult(map[string]float64{"sum": sum})
	})

	srv.AddTool(&protocol.Tool{
		Name:        "fail",
		Description: "always fails",
		InputSchema: protocol.JSONSchema{"type": "object"},
		Execution:   &protocol.ToolExecution{TaskSupport: protocol.TaskSupportOptional},
	}, func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
		return nil, fmt.Errorf("boom")
	})

	srv.AddTool(&protocol.Tool{
		Name:        "slow",
		Description: "runs until cancelled",
		InputSchema: protocol.JSONSchema{"type": "object"},
		Execution:   &protocol.ToolExecution{TaskSupport: protocol.TaskSupportOptional},
	}, func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	srv.AddTool(&protocol.Tool{
		Name:        "strict",
		Description: "must run as a task",
		InputSchema: protocol.JSONSchema{"type": "object"},
		Execution:   &protocol.ToolExecution{TaskSupport: protocol.TaskSupportRequired},
	}, func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
		return server.TextResult("done"), nil
	})

	srv.AddTool(&protocol.Tool{
		Name:        "plain",
		Description: "no task support declared",
		InputSchema: protocol.JSONSchema{"type": "object"},
	}, func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
		return server.TextResult("plain"), nil
	})

	return srv
}

func connectPair(t *testing.T, srv *server.Server, opts *client.ClientOptions) *client.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientSide, serverSide := inmem.NewPipe()

	ss, err := srv.Connect(ctx, serverSide, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { ss.Close() })

	c := client.NewClient(&client.ClientInfo{Name: "task-test-client", Version: "0.1.0"}, opts)
	cs, err := c.Connect(ctx, clientSide, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })

	return cs
}

func TestToolTaskCompletes(t *testing.T) {
	ctx := context.Background()
	cs := connectPair(t, taskServer(t), nil)

	task, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{
		Name:      "add",
		Arguments: map[string]any{"a": 2, "b": 3},
	})
	if err != nil {
		t.Fatalf("CallToolAsTask: %v", err)
	}
	if task.Immediate() {
		t.Fatal("expected a background task, got an immediate result")
	}
	if task.ID() == "" {
		t.Fatal("task handle has no id")
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := task.Result(waitCtx)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.IsError {
		t.Fatalf("result flagged as error: %+v", res)
	}
	text, ok := res.Content[0].(protocol.TextContent)
	if !ok {
		t.Fatalf("content[0] = %T, want TextContent", res.Content[0])
	}
	if !strings.Contains(text.Text, "sum") {
		t.Errorf("result text %q does not mention sum", text.Text)
	}
	if res.Meta[protocol.MetaKeyRelatedTask] == nil {
		t.Error("result is missing related-task metadata")
	}

	// A second Result call is served from the memo, not the wire.
	again, err := task.Result(waitCtx)
	if err != nil {
		t.Fatalf("second Result: %v", err)
	}
	if again != res {
		t.Error("second Result returned a different value")
	}
}

func TestToolTaskFailureSurfacesAsErrorResult(t *testing.T) {
	ctx := context.Background()
	cs := connectPair(t, taskServer(t), nil)

	task, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{Name: "fail"})
	if err != nil {
		t.Fatalf("CallToolAsTask: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	final, err := task.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if final.Status != protocol.TaskStatusFailed {
		t.Fatalf("status = %q, want failed", final.Status)
	}
	if final.Error != "boom" {
		t.Errorf("task error = %q, want %q", final.Error, "boom")
	}

	res, err := task.Result(waitCtx)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if !res.IsError {
		t.Fatal("failed task result not flagged as error")
	}
	text := res.Content[0].(protocol.TextContent)
	if !strings.Contains(text.Text, "boom") {
		t.Errorf("error text = %q, want to contain %q", text.Text, "boom")
	}
}

func TestTasksGetUnknownID(t *testing.T) {
	ctx := context.Background()
	cs := connectPair(t, taskServer(t), nil)

	res, err := cs.GetTask(ctx, &protocol.GetTaskParams{TaskID: "no-such-task"})
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if res.Status != protocol.TaskStatusUnknown {
		t.Errorf("status = %q, want unknown", res.Status)
	}
}

func TestTasksResultAfterDeleteIsError(t *testing.T) {
	ctx := context.Background()
	cs := connectPair(t, taskServer(t), nil)

	task, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{Name: "add", Arguments: map[string]any{"a": 1, "b": 2}})
	if err != nil {
		t.Fatalf("CallToolAsTask: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := task.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := task.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// The mapping is gone, so fetching the stored result must fail.
	if _, err := task.Result(waitCtx); err == nil {
		t.Error("tasks/result after delete succeeded")
	}
}

func TestTaskModeEnforcement(t *testing.T) {
	ctx := context.Background()
	cs := connectPair(t, taskServer(t), nil)

	// Forbidden (undeclared) tool rejects task metadata.
	_, err := cs.CallTool(ctx, &protocol.CallToolParams{
		Name: "plain",
		Task: &protocol.TaskMetadata{},
	})
	if err == nil {
		t.Error("task-augmented call to a forbidden tool succeeded")
	}

	// Required tool rejects plain calls.
	_, err = cs.CallTool(ctx, &protocol.CallToolParams{Name: "strict"})
	if err == nil {
		t.Error("plain call to a required-task tool succeeded")
	}

	// Required tool works as a task.
	task, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{Name: "strict"})
	if err != nil {
		t.Fatalf("CallToolAsTask on required tool: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := task.Result(waitCtx); err != nil {
		t.Fatalf("Result: %v", err)
	}
}

func TestWaitDeadlineReturnsLastStatus(t *testing.T) {
	ctx := context.Background()
	cs := connectPair(t, taskServer(t), nil)

	task, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{Name: "slow"})
	if err != nil {
		t.Fatalf("CallToolAsTask: %v", err)
	}

	// The deadline elapses while the task is still running. Wait resolves to
	// the last observed status instead of failing; the caller decides what a
	// non-terminal status means.
	waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	last, err := task.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if last.Status != protocol.TaskStatusWorking {
		t.Errorf("status = %q, want working", last.Status)
	}
	if last.TaskID != task.ID() {
		t.Errorf("taskId = %q, want %q", last.TaskID, task.ID())
	}

	// Waiting for a state the task is already in returns promptly.
	quickCtx, quickCancel := context.WithTimeout(ctx, 5*time.Second)
	defer quickCancel()
	cur, err := task.Wait(quickCtx, protocol.TaskStatusWorking)
	if err != nil {
		t.Fatalf("Wait(working): %v", err)
	}
	if cur.Status != protocol.TaskStatusWorking {
		t.Errorf("status = %q, want working", cur.Status)
	}
}

func TestTaskCancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cs := connectPair(t, taskServer(t), nil)

	task, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{Name: "slow"})
	if err != nil {
		t.Fatalf("CallToolAsTask: %v", err)
	}

	if err := task.Cancel(ctx, "no longer needed"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := task.Cancel(ctx, "still not needed"); err != nil {
		t.Errorf("second Cancel: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	final, err := task.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if final.Status != protocol.TaskStatusCancelled {
		t.Errorf("status = %q, want cancelled", final.Status)
	}
}

func TestTaskDeleteMakesTaskUnknown(t *testing.T) {
	ctx := context.Background()
	cs := connectPair(t, taskServer(t), nil)

	task, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{Name: "add", Arguments: map[string]any{"a": 1, "b": 1}})
	if err != nil {
		t.Fatalf("CallToolAsTask: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := task.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if err := task.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	res, err := cs.GetTask(ctx, &protocol.GetTaskParams{TaskID: task.ID()})
	if err != nil {
		t.Fatalf("GetTask after delete: %v", err)
	}
	if res.Status != protocol.TaskStatusUnknown {
		t.Errorf("status after delete = %q, want unknown", res.Status)
	}
}

func TestTasksListReturnsEmptyPage(t *testing.T) {
	ctx := context.Background()
	cs := connectPair(t, taskServer(t), nil)

	// Even with a live task, listing is an empty page.
	if _, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{Name: "slow"}); err != nil {
		t.Fatalf("CallToolAsTask: %v", err)
	}

	res, err := cs.ListTasks(ctx, nil)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(res.Tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(res.Tasks))
	}
	if res.NextCursor != nil {
		t.Errorf("nextCursor = %v, want nil", *res.NextCursor)
	}
}

func TestGracefulDegradationWithoutTaskSupport(t *testing.T) {
	ctx := context.Background()

	srv := server.NewServer(&protocol.ServerInfo{Name: "no-tasks", Version: "0.1.0"}, nil)
	srv.AddTool(&protocol.Tool{
		Name:        "add",
		Description: "adds two numbers",
		InputSchema: protocol.JSONSchema{"type": "object"},
		Execution:   &protocol.ToolExecution{TaskSupport: protocol.TaskSupportOptional},
	}, func(ctx context.Context, req *server.CallToolRequest) (*protocol.CallToolResult, error) {
		return server.TextResult("7"), nil
	})

	cs := connectPair(t, srv, nil)

	task, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{Name: "add", Arguments: map[string]any{"a": 3, "b": 4}})
	if err != nil {
		t.Fatalf("CallToolAsTask: %v", err)
	}
	if !task.Immediate() {
		t.Fatal("expected an immediate handle from a server without task support")
	}

	status, err := task.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != protocol.TaskStatusCompleted {
		t.Errorf("status = %q, want completed", status.Status)
	}

	res, err := task.Result(ctx)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.Content[0].(protocol.TextContent).Text != "7" {
		t.Errorf("result = %+v", res)
	}

	// Cancel and Delete are no-ops on immediate handles.
	if err := task.Cancel(ctx, "whatever"); err != nil {
		t.Errorf("Cancel on immediate handle: %v", err)
	}
	if err := task.Delete(ctx); err != nil {
		t.Errorf("Delete on immediate handle: %v", err)
	}
}

func TestTaskNotifications(t *testing.T) {
	ctx := context.Background()

	created := make(chan *protocol.TaskCreatedNotificationParams, 4)
	statuses := make(chan *protocol.TaskStatusNotificationParams, 16)

	cs := connectPair(t, taskServer(t), &client.ClientOptions{
		TaskCreatedHandler: func(_ context.Context, p *protocol.TaskCreatedNotificationParams) {
			created <- p
		},
		TaskStatusHandler: func(_ context.Context, p *protocol.TaskStatusNotificationParams) {
			statuses <- p
		},
	})

	task, err := cs.CallToolAsTask(ctx, &protocol.CallToolParams{Name: "add", Arguments: map[string]any{"a": 1, "b": 2}})
	if err != nil {
		t.Fatalf("CallToolAsTask: %v", err)
	}

	select {
	case p := <-created:
		if p.TaskID != task.ID() {
			t.Errorf("created notification for %q, want %q", p.TaskID, task.ID())
		}
		if p.Status != protocol.TaskStatusWorking {
			t.Errorf("created status = %q, want working", p.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no tasks/created notification")
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case p := <-statuses:
			if p.TaskID != task.ID() {
				continue
			}
			if p.Status.IsTerminal() {
				if p.Status != protocol.TaskStatusCompleted {
					t.Errorf("terminal status = %q, want completed", p.Status)
				}
				return
			}
		case <-deadline:
			t.Fatal("no terminal tasks/status notification")
		}
	}
}
