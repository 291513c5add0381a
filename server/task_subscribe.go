package server

import (
	"errors"
	"time"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/tasks"
)

// watchTask relays task status transitions to the client as
// notifications/tasks/status until the task reaches a terminal state or the
// session ends. It polls the queue rather than hooking the execution so the
// relay also works when the execution runs on another node.
func (s *Server) watchTask(ss *ServerSession, taskID string, key tasks.Key, createdAt time.Time, retention time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			taskLog.Error("task status relay panicked", "taskId", taskID, "panic", r)
		}
	}()

	ctx := ss.ctx
	interval := s.opts.Tasks.pollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := protocol.TaskStatusWorking

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		exec, err := s.opts.Tasks.Queue.GetExecution(ctx, key)
		if err != nil {
			taskLog.Warn("task status relay lookup", "taskId", taskID, "error", err)
			continue
		}
		if exec == nil {
			// The record expired or was deleted under us; nothing left to relay.
			return
		}
		if err := exec.Sync(ctx); err != nil {
			taskLog.Warn("task status relay sync", "taskId", taskID, "error", err)
			continue
		}

		status := protocol.TaskStatus(exec.State().TaskState())
		if status == last {
			continue
		}
		last = status

		task := s.taskView(taskID, status, createdAt, retention)
		task.LastUpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
		if status == protocol.TaskStatusFailed {
			if _, rerr := exec.Result(ctx); rerr != nil {
				var execErr *tasks.ExecutionError
				if errors.As(rerr, &execErr) {
					task.Error = execErr.Message
				}
			}
		}

		params := &protocol.TaskStatusNotificationParams{
			Meta: protocol.RelatedTaskMeta(taskID),
			Task: task,
		}
		if err := ss.conn.SendNotification(ctx, protocol.NotificationTasksStatus, params); err != nil {
			taskLog.Warn("send tasks/status notification", "taskId", taskID, "error", err)
		}

		if status.IsTerminal() {
			return
		}
	}
}
