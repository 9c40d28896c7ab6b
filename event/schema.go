package event

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SignalSchema optionally constrains the shape of an Event's opaque Signal
// payload. Hosts that want stronger guarantees than C1's bare presence check
// can compile a JSON Schema document and pass it to ValidateSignal.
type SignalSchema struct {
	schema *jsonschema.Schema
}

// CompileSignalSchema compiles a JSON Schema document (as raw bytes) for use
// with ValidateSignal.
func CompileSignalSchema(name string, document []byte) (*SignalSchema, error) {
	var decoded any
	if err := json.Unmarshal(document, &decoded); err != nil {
		return nil, fmt.Errorf("decode signal schema %q: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, decoded); err != nil {
		return nil, fmt.Errorf("add signal schema resource %q: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile signal schema %q: %w", name, err)
	}
	return &SignalSchema{schema: schema}, nil
}

// ValidateSignal checks ev.Signal against the compiled schema. A nil
// receiver always succeeds, so callers that never configured a schema pay no
// validation cost.
func (s *SignalSchema) ValidateSignal(ev Event) error {
	if s == nil || s.schema == nil {
		return nil
	}
	if err := s.schema.Validate(ev.Signal); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("signal failed schema validation: %v", err)}
	}
	return nil
}
