package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	jsonschemav6 "github.com/santhosh-tekuri/jsonschema/v6"
)

// inferSchema infers a JSON Schema from type T
func inferSchema[T any]() (*jsonschema.Schema, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()

	// If the type is any, return a generic object schema.
	if rt == reflect.TypeOf((*any)(nil)).Elem() {
		return &jsonschema.Schema{
			Type: "object",
		}, nil
	}

	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true, // Inline directly without using $ref
	}

	schema := reflector.Reflect(rt)
	if schema == nil {
		return nil, fmt.Errorf("failed to generate schema for type %v", rt)
	}

	if schema.Type != "object" {
		return nil, fmt.Errorf("schema must have type 'object', got %q", schema.Type)
	}

	return schema, nil
}

// compileSchema compiles a schema for validation. The schema is round-tripped
// through JSON so the validator sees exactly what is advertised to clients.
func compileSchema(schema *jsonschema.Schema) (*jsonschemav6.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	doc, err := jsonschemav6.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid schema document: %w", err)
	}

	compiler := jsonschemav6.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("failed to register schema: %w", err)
	}
	return compiler.Compile("schema.json")
}

// applyDefaults fills absent properties that declare a default value
func applyDefaults(data map[string]any, schema *jsonschema.Schema) {
	if schema == nil || schema.Properties == nil {
		return
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		if _, exists := data[pair.Key]; !exists && pair.Value.Default != nil {
			data[pair.Key] = pair.Value.Default
		}
	}
}

// validateJSON validates raw JSON against a compiled schema
func validateJSON(compiled *jsonschemav6.Schema, raw []byte) error {
	if compiled == nil {
		return nil
	}
	doc, err := jsonschemav6.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return compiled.Validate(doc)
}

// unmarshalAndValidate applies defaults, validates data against the compiled
// schema, and unmarshals it into T
func unmarshalAndValidate[T any](data map[string]any, schema *jsonschema.Schema, compiled *jsonschemav6.Schema) (T, error) {
	var zero T

	applyDefaults(data, schema)

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := validateJSON(compiled, dataBytes); err != nil {
		return zero, err
	}

	var result T
	if err := json.Unmarshal(dataBytes, &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal to target type: %w", err)
	}

	return result, nil
}