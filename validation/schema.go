// Package validation gates a stage handler's structured output against an
// optional JSON Schema before the Orchestrator merges it into workflow
// data, for handlers that declare a schema for their analysis, plan, or
// proposal payload.
package validation

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Error reports a schema-validation failure, wrapping the underlying
// jsonschema validation error so callers can still inspect it via errors.Unwrap.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("validation: %s: %v", e.Stage, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Schema is a compiled JSON Schema ready to validate payloads against.
// Compile once per stage and reuse; compilation is the expensive part.
type Schema struct {
	compiled *jsonschema.Schema
}

// Compile parses and compiles schemaJSON. An empty schemaJSON compiles to a
// Schema whose Validate is a no-op.
func Compile(schemaJSON []byte) (*Schema, error) {
	if len(schemaJSON) == 0 {
		return &Schema{}, nil
	}
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("validation: unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("validation: add schema resource: %w", err)
	}
	compiled, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("validation: compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks payload (any JSON-marshalable value, typically a stage's
// structured output struct) against s. A zero-value Schema (no compiled
// document) always passes.
func (s *Schema) Validate(stage string, payload any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return &Error{Stage: stage, Err: fmt.Errorf("marshal payload: %w", err)}
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &Error{Stage: stage, Err: fmt.Errorf("unmarshal payload: %w", err)}
	}
	if err := s.compiled.Validate(doc); err != nil {
		return &Error{Stage: stage, Err: err}
	}
	return nil
}
