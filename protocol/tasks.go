package protocol

// TaskStatus represents the current state of a task (MCP 2025-11-25)
type TaskStatus string

const (
	// TaskStatusSubmitted indicates the task has been accepted but not yet started
	TaskStatusSubmitted TaskStatus = "submitted"
	// TaskStatusWorking indicates the task is currently being processed
	TaskStatusWorking TaskStatus = "working"
	// TaskStatusInputRequired indicates the task requires additional input from the requestor
	TaskStatusInputRequired TaskStatus = "input_required"
	// TaskStatusCompleted indicates the task has completed successfully
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed during execution
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled
	TaskStatusCancelled TaskStatus = "cancelled"
	// TaskStatusUnknown indicates the task is not known to the server, either
	// because it never existed or because its record has expired
	TaskStatusUnknown TaskStatus = "unknown"
)

// IsTerminal reports whether the status is a final state
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Task represents a durable state machine that carries information about the underlying
// execution state of a request (MCP 2025-11-25)
type Task struct {
	// TaskID is the unique identifier for this task
	TaskID string `json:"taskId"`
	// Status is the current state of the task execution
	Status TaskStatus `json:"status"`
	// StatusMessage is an optional human-readable message providing additional details
	StatusMessage string `json:"statusMessage,omitempty"`
	// CreatedAt is the ISO 8601 timestamp when the task was created
	CreatedAt string `json:"createdAt"`
	// LastUpdatedAt is the ISO 8601 timestamp when the task status was last updated
	LastUpdatedAt string `json:"lastUpdatedAt,omitempty"`
	// TTL is the time-to-live in milliseconds from creation before task may be deleted
	// null indicates no TTL is set
	TTL *int64 `json:"ttl"`
	// PollInterval is the suggested time in milliseconds between status checks
	PollInterval *int64 `json:"pollInterval,omitempty"`
	// Error carries the failure message when Status is failed
	Error string `json:"error,omitempty"`
}

// TaskMetadata is used for augmenting requests with task execution details (MCP 2025-11-25)
type TaskMetadata struct {
	// TTL specifies the retention duration of a task result in milliseconds
	TTL *int64 `json:"ttl,omitempty"`
}

// TaskSupport indicates the level of task support for a component (MCP 2025-11-25)
type TaskSupport string

const (
	// TaskSupportRequired means clients MUST invoke the component as a task
	TaskSupportRequired TaskSupport = "required"
	// TaskSupportOptional means clients MAY invoke the component as a task or normal request
	TaskSupportOptional TaskSupport = "optional"
	// TaskSupportForbidden means clients MUST NOT invoke the component as a task
	TaskSupportForbidden TaskSupport = "forbidden"
)

// CreateTaskResult is returned when a task-augmented request is accepted (MCP 2025-11-25)
type CreateTaskResult struct {
	Meta map[string]any `json:"_meta,omitempty"`
	Task Task           `json:"task"`
}

// GetTaskParams represents the parameters for tasks/get request (MCP 2025-11-25)
type GetTaskParams struct {
	Meta   map[string]any `json:"_meta,omitempty"`
	TaskID string         `json:"taskId"`
}

// GetTaskResult represents the result of tasks/get request (MCP 2025-11-25)
// Per spec, the result directly contains Task fields (no "task" wrapper)
type GetTaskResult struct {
	Task
}

// ListTasksParams represents the parameters for tasks/list request (MCP 2025-11-25)
type ListTasksParams struct {
	Meta   map[string]any `json:"_meta,omitempty"`
	Cursor string         `json:"cursor,omitempty"`
}

// ListTasksResult represents the result of tasks/list request (MCP 2025-11-25)
type ListTasksResult struct {
	Meta       map[string]any `json:"_meta,omitempty"`
	Tasks      []Task         `json:"tasks"`
	NextCursor *string        `json:"nextCursor,omitempty"`
}

// CancelTaskParams represents the parameters for tasks/cancel request (MCP 2025-11-25)
type CancelTaskParams struct {
	Meta   map[string]any `json:"_meta,omitempty"`
	TaskID string         `json:"taskId"`
	Reason string         `json:"reason,omitempty"`
}

// CancelTaskResult represents the result of tasks/cancel request (MCP 2025-11-25)
// Per spec, the result directly contains Task fields (no "task" wrapper)
type CancelTaskResult struct {
	Task
}

// TaskResultParams represents the parameters for tasks/result request (MCP 2025-11-25)
type TaskResultParams struct {
	Meta   map[string]any `json:"_meta,omitempty"`
	TaskID string         `json:"taskId"`
}

// DeleteTaskParams represents the parameters for tasks/delete request (MCP 2025-11-25)
type DeleteTaskParams struct {
	Meta   map[string]any `json:"_meta,omitempty"`
	TaskID string         `json:"taskId"`
}

// TaskStatusNotificationParams represents the parameters for notifications/tasks/status (MCP 2025-11-25)
type TaskStatusNotificationParams struct {
	Meta map[string]any `json:"_meta,omitempty"`
	Task
}

// TaskCreatedNotificationParams represents the parameters for notifications/tasks/created (MCP 2025-11-25)
type TaskCreatedNotificationParams struct {
	Meta map[string]any `json:"_meta,omitempty"`
	Task
}

// Reserved _meta keys for task correlation (MCP 2025-11-25)
const (
	// MetaKeyTask marks a stub result produced for a task-augmented request.
	// Its value is an object with "taskId" and "status" fields.
	MetaKeyTask = "modelcontextprotocol.io/task"
	// MetaKeyRelatedTask marks messages emitted on behalf of a running task.
	// Its value is an object with a "taskId" field.
	MetaKeyRelatedTask = "modelcontextprotocol.io/related-task"
)

// TaskStubMeta builds the _meta payload of a stub result returned from a
// task-augmented request
func TaskStubMeta(taskID string) map[string]any {
	return map[string]any{
		MetaKeyTask: map[string]any{
			"taskId": taskID,
			"status": string(TaskStatusWorking),
		},
	}
}

// RelatedTaskMeta builds the _meta payload attached to notifications and
// results associated with a task
func RelatedTaskMeta(taskID string) map[string]any {
	return map[string]any{
		MetaKeyRelatedTask: map[string]any{
			"taskId": taskID,
		},
	}
}

// TaskIDFromMeta extracts the task id from a stub result's _meta, if present
func TaskIDFromMeta(meta map[string]any) (string, bool) {
	if meta == nil {
		return "", false
	}
	entry, ok := meta[MetaKeyTask].(map[string]any)
	if !ok {
		return "", false
	}
	taskID, ok := entry["taskId"].(string)
	if !ok || taskID == "" {
		return "", false
	}
	return taskID, true
}

// MergeMeta overlays src onto dst, allocating dst if needed. dst wins on
// conflicting keys.
func MergeMeta(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
	return dst
}

// TasksCapability represents the tasks capability for servers (MCP 2025-11-25)
type TasksCapability struct {
	// List indicates server supports the tasks/list operation
	List *struct{} `json:"list,omitempty"`
	// Cancel indicates server supports the tasks/cancel operation
	Cancel *struct{} `json:"cancel,omitempty"`
	// Requests specifies which request types support task augmentation
	Requests *ServerTaskRequestsCapability `json:"requests,omitempty"`
}

// ServerTaskRequestsCapability specifies which server-side requests support tasks (MCP 2025-11-25)
type ServerTaskRequestsCapability struct {
	// Tools specifies task support for tool-related requests
	Tools *ToolsTaskCapability `json:"tools,omitempty"`
	// Prompts specifies task support for prompt-related requests
	Prompts *PromptsTaskCapability `json:"prompts,omitempty"`
	// Resources specifies task support for resource-related requests
	Resources *ResourcesTaskCapability `json:"resources,omitempty"`
}

// ToolsTaskCapability specifies task support for tool operations (MCP 2025-11-25)
type ToolsTaskCapability struct {
	// Call specifies task augmentation support for tools/call
	Call *struct{} `json:"call,omitempty"`
}

// PromptsTaskCapability specifies task support for prompt operations (MCP 2025-11-25)
type PromptsTaskCapability struct {
	// Get specifies task augmentation support for prompts/get
	Get *struct{} `json:"get,omitempty"`
}

// ResourcesTaskCapability specifies task support for resource operations (MCP 2025-11-25)
type ResourcesTaskCapability struct {
	// Read specifies task augmentation support for resources/read
	Read *struct{} `json:"read,omitempty"`
}

// ClientTasksCapability represents the tasks capability for clients (MCP 2025-11-25)
type ClientTasksCapability struct {
	// List indicates client supports the tasks/list operation
	List *struct{} `json:"list,omitempty"`
	// Cancel indicates client supports the tasks/cancel operation
	Cancel *struct{} `json:"cancel,omitempty"`
}
