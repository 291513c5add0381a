package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/tasks"
)

func (s *Server) requireTasks() (*TaskOptions, error) {
	if s.opts.Tasks == nil {
		return nil, protocol.NewMCPError(protocol.MethodNotFound, "tasks are not supported by this server", nil)
	}
	return s.opts.Tasks, nil
}

// resolveExecution resolves a client task id to its execution. A missing
// mapping or execution yields (zero, nil, nil): the caller decides whether
// that is an "unknown" status or an error.
func (s *Server) resolveExecution(ctx context.Context, ss *ServerSession, taskID string) (tasks.Mapping, tasks.Execution, error) {
	opts := s.opts.Tasks

	mapping, found, err := opts.Mappings.GetMapping(ctx, ss.ID(), taskID)
	if err != nil {
		return tasks.Mapping{}, nil, fmt.Errorf("resolve task mapping: %w", err)
	}
	if !found {
		return tasks.Mapping{}, nil, nil
	}

	exec, err := opts.Queue.GetExecution(ctx, mapping.Key)
	if err != nil {
		return tasks.Mapping{}, nil, fmt.Errorf("look up task execution: %w", err)
	}
	if exec == nil {
		return tasks.Mapping{}, nil, nil
	}
	if err := exec.Sync(ctx); err != nil {
		return tasks.Mapping{}, nil, fmt.Errorf("sync task execution: %w", err)
	}
	return mapping, exec, nil
}

// unknownTask is the response shape for ids the server has no knowledge of:
// expired, deleted, or never created. Reporting "unknown" instead of an error
// lets clients poll ids across record expiry without special-casing.
func unknownTask(taskID string) protocol.Task {
	return protocol.Task{
		TaskID:    taskID,
		Status:    protocol.TaskStatusUnknown,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// executionError extracts the stored failure message of a terminal execution.
func executionError(ctx context.Context, exec tasks.Execution) (string, bool) {
	_, err := exec.Result(ctx)
	var execErr *tasks.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Message, true
	}
	return "", false
}

// handleTasksGet handles the tasks/get request
func (s *Server) handleTasksGet(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.GetTaskResult, error) {
	if _, err := s.requireTasks(); err != nil {
		return nil, err
	}

	var req protocol.GetTaskParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, protocol.NewMCPError(protocol.InvalidParams, fmt.Sprintf("invalid tasks/get params: %v", err), nil)
	}
	if req.TaskID == "" {
		return nil, protocol.NewMCPError(protocol.InvalidParams, "taskId is required", nil)
	}

	mapping, exec, err := s.resolveExecution(ctx, ss, req.TaskID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return &protocol.GetTaskResult{Task: unknownTask(req.TaskID)}, nil
	}

	status := protocol.TaskStatus(exec.State().TaskState())
	poll := s.opts.Tasks.pollInterval().Milliseconds()
	task := protocol.Task{
		TaskID:       req.TaskID,
		Status:       status,
		CreatedAt:    mapping.CreatedAt.UTC().Format(time.RFC3339Nano),
		PollInterval: &poll,
	}
	if status == protocol.TaskStatusFailed {
		if msg, ok := executionError(ctx, exec); ok {
			task.Error = msg
		}
	}
	return &protocol.GetTaskResult{Task: task}, nil
}

// handleTasksResult handles the tasks/result request
func (s *Server) handleTasksResult(ctx context.Context, ss *ServerSession, params json.RawMessage) (any, error) {
	if _, err := s.requireTasks(); err != nil {
		return nil, err
	}

	var req protocol.TaskResultParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, protocol.NewMCPError(protocol.InvalidParams, fmt.Sprintf("invalid tasks/result params: %v", err), nil)
	}
	if req.TaskID == "" {
		return nil, protocol.NewMCPError(protocol.InvalidParams, "taskId is required", nil)
	}

	mapping, exec, err := s.resolveExecution(ctx, ss, req.TaskID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, protocol.NewMCPError(protocol.InvalidParams, fmt.Sprintf("unknown task: %s", req.TaskID), nil)
	}

	status := protocol.TaskStatus(exec.State().TaskState())
	if !status.IsTerminal() {
		return nil, protocol.NewMCPError(protocol.InvalidParams,
			fmt.Sprintf("task %s is not completed (current status: %s)", req.TaskID, status), nil)
	}

	raw, err := exec.Result(ctx)
	if err != nil {
		var execErr *tasks.ExecutionError
		if errors.As(err, &execErr) {
			return failedTaskResult(req.TaskID, execErr.Message), nil
		}
		return nil, err
	}

	return convertTaskResult(mapping.Key.Kind, req.TaskID, raw)
}

// handleTasksList handles the tasks/list request.
//
// Listing is deliberately unimplemented as an enumeration: tasks are keyed by
// session in external stores and enumerating them is unbounded work there.
// The response is a valid empty page, which clients treat as "nothing to
// resume".
func (s *Server) handleTasksList(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.ListTasksResult, error) {
	if _, err := s.requireTasks(); err != nil {
		return nil, err
	}

	var req protocol.ListTasksParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, protocol.NewMCPError(protocol.InvalidParams, fmt.Sprintf("invalid tasks/list params: %v", err), nil)
		}
	}

	return &protocol.ListTasksResult{Tasks: []protocol.Task{}}, nil
}

// handleTasksCancel handles the tasks/cancel request
func (s *Server) handleTasksCancel(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.CancelTaskResult, error) {
	opts, err := s.requireTasks()
	if err != nil {
		return nil, err
	}

	var req protocol.CancelTaskParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, protocol.NewMCPError(protocol.InvalidParams, fmt.Sprintf("invalid tasks/cancel params: %v", err), nil)
	}
	if req.TaskID == "" {
		return nil, protocol.NewMCPError(protocol.InvalidParams, "taskId is required", nil)
	}

	mapping, exec, err := s.resolveExecution(ctx, ss, req.TaskID)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, protocol.NewMCPError(protocol.InvalidParams, fmt.Sprintf("unknown task: %s", req.TaskID), nil)
	}

	// Cancel is idempotent; a task that already finished keeps its terminal
	// status.
	if err := opts.Queue.Cancel(ctx, mapping.Key); err != nil {
		return nil, fmt.Errorf("cancel task: %w", err)
	}

	status := protocol.TaskStatusCancelled
	if refreshed, err := opts.Queue.GetExecution(ctx, mapping.Key); err == nil && refreshed != nil {
		if err := refreshed.Sync(ctx); err == nil {
			if st := protocol.TaskStatus(refreshed.State().TaskState()); st.IsTerminal() {
				status = st
			}
		}
	}

	task := protocol.Task{
		TaskID:        req.TaskID,
		Status:        status,
		StatusMessage: req.Reason,
		CreatedAt:     mapping.CreatedAt.UTC().Format(time.RFC3339Nano),
		LastUpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	return &protocol.CancelTaskResult{Task: task}, nil
}

// handleTasksDelete handles the tasks/delete request
func (s *Server) handleTasksDelete(ctx context.Context, ss *ServerSession, params json.RawMessage) (*protocol.EmptyResult, error) {
	opts, err := s.requireTasks()
	if err != nil {
		return nil, err
	}

	var req protocol.DeleteTaskParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, protocol.NewMCPError(protocol.InvalidParams, fmt.Sprintf("invalid tasks/delete params: %v", err), nil)
	}
	if req.TaskID == "" {
		return nil, protocol.NewMCPError(protocol.InvalidParams, "taskId is required", nil)
	}

	mapping, found, err := opts.Mappings.GetMapping(ctx, ss.ID(), req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("resolve task mapping: %w", err)
	}
	if !found {
		return nil, protocol.NewMCPError(protocol.InvalidParams, fmt.Sprintf("unknown task: %s", req.TaskID), nil)
	}

	// Stop any in-flight work first; a delete of a running task implies its
	// cancellation.
	if err := opts.Queue.Cancel(ctx, mapping.Key); err != nil {
		taskLog.Warn("cancel task on delete", "taskId", req.TaskID, "error", err)
	}
	if opts.Store != nil {
		if _, err := opts.Store.Delete(ctx, mapping.Key); err != nil {
			taskLog.Warn("delete task record", "taskId", req.TaskID, "error", err)
		}
	}
	if _, err := opts.Mappings.DeleteMapping(ctx, ss.ID(), req.TaskID); err != nil {
		return nil, fmt.Errorf("delete task mapping: %w", err)
	}

	return &protocol.EmptyResult{}, nil
}
