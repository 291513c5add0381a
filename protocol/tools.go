package protocol

import "encoding/json"

type Tool struct {
	Name        string     `json:"name"`
	Title       string     `json:"title,omitempty"` // MCP 2025-06-18: Human-friendly title
	Description string     `json:"description,omitempty"`
	InputSchema JSONSchema `json:"inputSchema"`
	// OutputSchema describes the shape of StructuredContent in results (MCP 2025-06-18)
	OutputSchema JSONSchema `json:"outputSchema,omitempty"`
	// Execution declares whether the tool may be invoked as a background task (MCP 2025-11-25)
	Execution *ToolExecution `json:"execution,omitempty"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// ToolExecution declares execution-related tool behavior (MCP 2025-11-25)
type ToolExecution struct {
	TaskSupport TaskSupport `json:"taskSupport,omitempty"`
}

type ListToolsParams struct {
	Meta   map[string]any `json:"_meta,omitempty"`
	Cursor string         `json:"cursor,omitempty"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
	PaginatedResult
}

type CallToolParams struct {
	Meta      map[string]any `json:"_meta,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	// Task requests background execution of this call (MCP 2025-11-25)
	Task *TaskMetadata `json:"task,omitempty"`
}

type CallToolResult struct {
	Meta              map[string]any `json:"_meta,omitempty"`
	Content           []Content      `json:"content"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError,omitempty"`
}

// UnmarshalJSON decodes the polymorphic content array
func (r *CallToolResult) UnmarshalJSON(data []byte) error {
	var temp struct {
		Meta              map[string]any    `json:"_meta,omitempty"`
		Content           []json.RawMessage `json:"content"`
		StructuredContent map[string]any    `json:"structuredContent,omitempty"`
		IsError           bool              `json:"isError,omitempty"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	r.Meta = temp.Meta
	r.StructuredContent = temp.StructuredContent
	r.IsError = temp.IsError
	r.Content = make([]Content, 0, len(temp.Content))
	for _, raw := range temp.Content {
		content, err := UnmarshalContent(raw)
		if err != nil {
			return err
		}
		r.Content = append(r.Content, content)
	}
	return nil
}

func NewToolResultText(text string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{NewTextContent(text)},
	}
}

func NewToolResultError(text string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{NewTextContent(text)},
		IsError: true,
	}
}
