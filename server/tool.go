package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	jsonschemav6 "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/taskmcp/mcp-sdk-go/protocol"
)

// ToolHandlerFor is a type-safe handler for tools/call requests.
//
// Unlike [ToolHandler], ToolHandlerFor provides significant functionality out
// of the box and enforces that the tool conforms to the MCP spec:
//   - The In type provides a default input schema for the tool (which may be
//     overridden in AddTool)
//   - Input values are automatically unmarshaled from req.Params.Arguments
//   - Input values are automatically validated against their schema; invalid
//     input is rejected before it reaches the handler
//   - If the Out type is not [any], it provides a default output schema
//     (which may also be overridden)
//   - The Out value is used to populate result.StructuredContent
//   - If [protocol.CallToolResult.Content] is unset, it is populated with the
//     JSON rendering of the output
//   - Error results are treated as tool errors rather than protocol errors,
//     so they are packed into CallToolResult.Content with the IsError flag set
//
// Most users can therefore ignore the [CallToolRequest] argument and
// [protocol.CallToolResult] return value entirely. Returning a nil
// CallToolResult is allowed if you only care about the output value or error;
// a valid result is populated as described above.
//
// Use [AddTool] to add a ToolHandlerFor to a server.
type ToolHandlerFor[In, Out any] func(
	ctx context.Context,
	req *CallToolRequest,
	input In,
) (result *protocol.CallToolResult, output Out, err error)

// AddTool adds a tool and a type-safe handler to the server.
//
// This is a package-level function rather than a method on Server because Go
// does not support type parameters on methods. See the generics proposal:
// https://go.googlesource.com/proposal/+/refs/heads/master/design/43651-type-parameters.md#no-parameterized-methods
//
// If the tool's input schema is nil, it is inferred from the In type
// parameter. Types are derived from the Go types and property descriptions
// are read from 'jsonschema' struct tags. Internally the SDK uses
// github.com/invopop/jsonschema for inference and
// github.com/santhosh-tekuri/jsonschema for validation. The In type parameter
// must be a map or a struct, so that its inferred JSON Schema has the
// "object" type required by the spec. As a special case, if In is 'any' the
// input schema is set to the empty object schema.
//
// If the tool's output schema is nil and the Out type is not 'any', the
// output schema is inferred from Out, which must also be a map or a struct.
// If Out is 'any', the output schema is omitted.
func AddTool[In, Out any](s *Server, tool *protocol.Tool, handler ToolHandlerFor[In, Out]) {
	wrappedTool, wrappedHandler, err := wrapToolHandler(tool, handler)
	if err != nil {
		panic(fmt.Sprintf("AddTool %q: %v", tool.Name, err))
	}

	s.AddTool(wrappedTool, wrappedHandler)
}

// wrapToolHandler wraps a type-safe handler into a low-level handler
func wrapToolHandler[In, Out any](tool *protocol.Tool, handler ToolHandlerFor[In, Out]) (*protocol.Tool, ToolHandler, error) {
	toolCopy := *tool

	inputSchema, err := setupInputSchema[In](&toolCopy)
	if err != nil {
		return nil, nil, fmt.Errorf("input schema: %w", err)
	}
	inputCompiled, err := compileSchema(inputSchema)
	if err != nil {
		return nil, nil, fmt.Errorf("input schema: %w", err)
	}

	outputSchema, err := setupOutputSchema[Out](&toolCopy)
	if err != nil {
		return nil, nil, fmt.Errorf("output schema: %w", err)
	}
	var outputCompiled *jsonschemav6.Schema
	if outputSchema != nil {
		outputCompiled, err = compileSchema(outputSchema)
		if err != nil {
			return nil, nil, fmt.Errorf("output schema: %w", err)
		}
	}

	wrappedHandler := func(ctx context.Context, req *CallToolRequest) (*protocol.CallToolResult, error) {
		inputData := req.Params.Arguments
		if inputData == nil {
			inputData = make(map[string]any)
		}

		input, err := unmarshalAndValidate[In](inputData, inputSchema, inputCompiled)
		if err != nil {
			return nil, protocol.NewMCPError(protocol.InvalidParams, fmt.Sprintf("invalid parameters: %v", err), nil)
		}

		result, output, err := handler(ctx, req, input)

		if err != nil {
			// A non-nil result alongside an error is a tool-level error,
			// already packed into the result.
			if result != nil {
				return result, nil
			}
			return nil, err
		}

		if result == nil {
			result = &protocol.CallToolResult{}
		}

		if outputSchema != nil {
			// A nil pointer output would marshal to JSON null, which can
			// never satisfy an object schema; substitute the zero struct.
			if rv := reflect.ValueOf(&output).Elem(); rv.Kind() == reflect.Ptr && rv.IsNil() {
				rv.Set(reflect.New(rv.Type().Elem()))
			}

			outputData, err := json.Marshal(output)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal output: %w", err)
			}
			if err := validateJSON(outputCompiled, outputData); err != nil {
				return nil, fmt.Errorf("output does not conform to schema: %w", err)
			}

			var structured map[string]any
			if err := json.Unmarshal(outputData, &structured); err != nil {
				return nil, fmt.Errorf("output must be a JSON object: %w", err)
			}
			result.StructuredContent = structured

			if len(result.Content) == 0 {
				result.Content = append(result.Content, protocol.NewTextContent(string(outputData)))
			}
		}

		return result, nil
	}

	return &toolCopy, wrappedHandler, nil
}

// setupInputSchema resolves the tool's input schema
func setupInputSchema[In any](tool *protocol.Tool) (*jsonschema.Schema, error) {
	// A user-provided schema takes precedence
	if tool.InputSchema != nil {
		schemaBytes, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input schema: %w", err)
		}

		var schema jsonschema.Schema
		if err := json.Unmarshal(schemaBytes, &schema); err != nil {
			return nil, fmt.Errorf("invalid input schema: %w", err)
		}

		if schema.Type != "object" {
			return nil, fmt.Errorf("input schema must have type 'object', got %q", schema.Type)
		}

		return &schema, nil
	}

	schema, err := inferSchema[In]()
	if err != nil {
		return nil, err
	}

	// Expose the inferred schema on the tool as protocol.JSONSchema
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(schemaBytes, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	tool.InputSchema = schemaMap
	return schema, nil
}

// setupOutputSchema resolves the tool's output schema
func setupOutputSchema[Out any](tool *protocol.Tool) (*jsonschema.Schema, error) {
	// For the any type, no output schema is generated
	if reflect.TypeOf((*Out)(nil)).Elem() == reflect.TypeOf((*any)(nil)).Elem() {
		return nil, nil
	}

	// A user-provided schema takes precedence
	if tool.OutputSchema != nil {
		schemaBytes, err := json.Marshal(tool.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal output schema: %w", err)
		}

		var schema jsonschema.Schema
		if err := json.Unmarshal(schemaBytes, &schema); err != nil {
			return nil, fmt.Errorf("invalid output schema: %w", err)
		}

		if schema.Type != "object" {
			return nil, fmt.Errorf("output schema must have type 'object', got %q", schema.Type)
		}

		return &schema, nil
	}

	schema, err := inferSchema[Out]()
	if err != nil {
		return nil, err
	}

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(schemaBytes, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	tool.OutputSchema = schemaMap
	return schema, nil
}
