package server

import (
	"encoding/json"
	"fmt"

	"github.com/taskmcp/mcp-sdk-go/protocol"
	"github.com/taskmcp/mcp-sdk-go/tasks"
)

// convertTaskResult rehydrates a stored task outcome into the result type of
// the request kind that produced it, tagged with related-task metadata.
func convertTaskResult(kind tasks.Kind, taskID string, raw json.RawMessage) (any, error) {
	switch kind {
	case tasks.KindTool:
		var result protocol.CallToolResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("decode stored tool result: %w", err)
		}
		result.Meta = protocol.MergeMeta(result.Meta, protocol.RelatedTaskMeta(taskID))
		return &result, nil

	case tasks.KindPrompt:
		var result protocol.GetPromptResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("decode stored prompt result: %w", err)
		}
		result.Meta = protocol.MergeMeta(result.Meta, protocol.RelatedTaskMeta(taskID))
		return &result, nil

	case tasks.KindResource:
		var result protocol.ReadResourceResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("decode stored resource result: %w", err)
		}
		result.Meta = protocol.MergeMeta(result.Meta, protocol.RelatedTaskMeta(taskID))
		return &result, nil

	default:
		return nil, fmt.Errorf("unsupported task kind: %q", kind)
	}
}

// failedTaskResult shapes a failed or cancelled execution as an error-flagged
// tool result. Failures are reported in-band rather than as protocol errors,
// so clients can distinguish "the task failed" from "tasks/result misfired".
func failedTaskResult(taskID, message string) *protocol.CallToolResult {
	result := protocol.NewToolResultError(message)
	result.Meta = protocol.MergeMeta(result.Meta, protocol.RelatedTaskMeta(taskID))
	return result
}
