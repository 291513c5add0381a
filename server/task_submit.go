package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/tasks"
)

// taskLog reports failures of best-effort task plumbing that must not fail
// the originating request.
var taskLog = slog.Default()

// mappingTTLBuffer is added to the queue's execution TTL when storing id
// mappings, so a mapping always outlives the execution it points at.
const mappingTTLBuffer = 15 * time.Minute

// submitTask runs the shared submission path for task-augmented requests:
// mint an id, persist the mapping, announce the task, enqueue the work and
// start the status relay. It returns the client-visible task id.
//
// Persisting the mapping is the only step that may fail the request; once the
// mapping exists the task is pollable, so enqueue and notification failures
// are logged and the stub result is returned anyway.
func (s *Server) submitTask(ctx context.Context, ss *ServerSession, kind tasks.Kind, component string, meta *protocol.TaskMetadata, run func(ctx context.Context) (any, error)) (string, error) {
	opts := s.opts.Tasks
	taskID := uuid.NewString()
	key := tasks.NewKey(ss.ID(), taskID, kind, component)
	createdAt := time.Now().UTC()

	mappingTTL := opts.Queue.ExecutionTTL() + mappingTTLBuffer
	mapping := tasks.Mapping{Key: key, CreatedAt: createdAt}
	if err := opts.Mappings.PutMapping(ctx, ss.ID(), taskID, mapping, mappingTTL); err != nil {
		return "", fmt.Errorf("store task mapping: %w", err)
	}

	retention := opts.resultTTL()
	if meta != nil && meta.TTL != nil {
		retention = time.Duration(*meta.TTL) * time.Millisecond
	}

	// The created notification goes out before the work is enqueued, so a
	// client never observes work without having been told about the task.
	created := &protocol.TaskCreatedNotificationParams{
		Task: s.taskView(taskID, protocol.TaskStatusWorking, createdAt, retention),
	}
	if err := ss.conn.SendNotification(ctx, protocol.NotificationTasksCreated, created); err != nil {
		taskLog.Warn("send tasks/created notification", "taskId", taskID, "error", err)
	}

	job := func(jobCtx context.Context) (any, error) {
		return run(contextWithTaskID(jobCtx, taskID))
	}
	if err := opts.Queue.Add(ctx, key, retention, job); err != nil {
		taskLog.Error("enqueue task", "taskId", taskID, "error", err)
	}

	go s.watchTask(ss, taskID, key, createdAt, retention)

	return taskID, nil
}

// taskView assembles the wire representation of a task.
func (s *Server) taskView(taskID string, status protocol.TaskStatus, createdAt time.Time, retention time.Duration) protocol.Task {
	ttl := retention.Milliseconds()
	poll := s.opts.Tasks.pollInterval().Milliseconds()
	return protocol.Task{
		TaskID:       taskID,
		Status:       status,
		CreatedAt:    createdAt.UTC().Format(time.RFC3339Nano),
		TTL:          &ttl,
		PollInterval: &poll,
	}
}

func (s *Server) submitToolTask(ctx context.Context, ss *ServerSession, st *serverTool, params *protocol.CallToolParams) (*protocol.CallToolResult, error) {
	run := func(ctx context.Context) (any, error) {
		return st.handler(ctx, &CallToolRequest{Session: ss, Params: params})
	}
	taskID, err := s.submitTask(ctx, ss, tasks.KindTool, params.Name, params.Task, run)
	if err != nil {
		return nil, err
	}
	return &protocol.CallToolResult{Meta: protocol.TaskStubMeta(taskID)}, nil
}

func (s *Server) submitPromptTask(ctx context.Context, ss *ServerSession, sp *serverPrompt, params *protocol.GetPromptParams) (*protocol.GetPromptResult, error) {
	run := func(ctx context.Context) (any, error) {
		return sp.handler(ctx, &GetPromptRequest{Session: ss, Params: params})
	}
	taskID, err := s.submitTask(ctx, ss, tasks.KindPrompt, params.Name, params.Task, run)
	if err != nil {
		return nil, err
	}
	return &protocol.GetPromptResult{Meta: protocol.TaskStubMeta(taskID)}, nil
}

func (s *Server) submitResourceTask(ctx context.Context, ss *ServerSession, sr *serverResource, params *protocol.ReadResourceParams) (*protocol.ReadResourceResult, error) {
	run := func(ctx context.Context) (any, error) {
		return sr.handler(ctx, &ReadResourceRequest{Session: ss, Params: params})
	}
	taskID, err := s.submitTask(ctx, ss, tasks.KindResource, params.URI, params.Task, run)
	if err != nil {
		return nil, err
	}
	return &protocol.ReadResourceResult{Meta: protocol.TaskStubMeta(taskID)}, nil
}
