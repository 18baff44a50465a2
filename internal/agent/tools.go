package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/draco28/ragcore/internal/providers"
	"github.com/draco28/ragcore/internal/resilience"
)

// DefaultToolTimeout matches spec.md §4.16's 30s default per-call timeout.
const DefaultToolTimeout = 30 * time.Second

// ToolResult is what a Tool.Execute returns on success, before it is
// serialized into a tool message (spec.md §4.13 step 4).
type ToolResult map[string]any

// Tool is a single callable action (spec.md §4.16), grounded on the
// teacher's tools.Registry entries but generalized to a schema-validated
// interface rather than ad-hoc struct tags.
type Tool interface {
	Name() string
	Description() string
	ParametersSchema() map[string]any
	// OutputSchema, if non-nil, is validated post-hoc against Execute's
	// result; a mismatch makes Dispatch return a validation error, which the
	// agent loop records, like any other tool error, as a failed observation.
	OutputSchema() map[string]any
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// Registry holds the set of tools available to an Agent (spec.md §4.16),
// grounded on the teacher's tools.Registry.Register/Dispatch shape.
type Registry struct {
	tools   map[string]Tool
	timeout time.Duration
}

// NewRegistry builds an empty registry using DefaultToolTimeout per call.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), timeout: DefaultToolTimeout}
}

// WithTimeout overrides the per-call timeout applied to every dispatch.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// List returns the tool schemas in the shape a chat model provider expects
// (spec.md §6's "Tool JSON shape").
func (r *Registry) List() []providers.ToolSchema {
	out := make([]providers.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, providers.ToolSchema{Name: t.Name(), Description: t.Description(), Parameters: t.ParametersSchema()})
	}
	return out
}

// Dispatch looks up name, validates args against its schema, executes it
// under the registry's timeout, and validates its output schema if any
// (spec.md §4.16). Returns a typed *resilience.RAGError on every failure
// path so the ReAct loop can turn it into an observation without a type
// switch.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, resilience.New(resilience.ErrCodeToolNotFound, fmt.Sprintf("tool %q not found", name), nil)
	}

	if err := validateAgainstSchema(args, tool.ParametersSchema()); err != nil {
		return nil, resilience.New(resilience.ErrCodeValidation, "tool input failed schema validation", err).
			WithDetail("tool", name)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type callOutcome struct {
		result ToolResult
		err    error
	}
	done := make(chan callOutcome, 1)
	go func() {
		result, err := tool.Execute(callCtx, args)
		done <- callOutcome{result, err}
	}()

	select {
	case <-callCtx.Done():
		return nil, resilience.New(resilience.ErrCodeToolTimeout, fmt.Sprintf("tool %q timed out", name), callCtx.Err()).
			WithDetail("tool", name).WithDetail("timedOut", true)
	case outcome := <-done:
		if outcome.err != nil {
			return nil, resilience.Wrap(resilience.ErrCodeValidation, outcome.err).WithDetail("tool", name)
		}
		if schema := tool.OutputSchema(); schema != nil {
			if err := validateAgainstSchema(map[string]any(outcome.result), schema); err != nil {
				return nil, resilience.New(resilience.ErrCodeValidation, "tool output failed schema validation", err).
					WithDetail("tool", name).WithDetail("fatal", true)
			}
		}
		return outcome.result, nil
	}
}

// validateAgainstSchema is a minimal JSON-Schema-compatible check: it only
// enforces "required" and "type" (object/string/number/boolean/array) at the
// top level, matching the narrow subset the teacher's tools actually rely
// on. Full JSON-Schema validation is out of scope.
func validateAgainstSchema(value map[string]any, schema map[string]any) error {
	if schema == nil {
		return nil
	}
	required, _ := schema["required"].([]string)
	for _, field := range required {
		if _, ok := value[field]; !ok {
			return fmt.Errorf("missing required field %q", field)
		}
	}
	props, _ := schema["properties"].(map[string]any)
	for field, rawSpec := range props {
		fieldSpec, ok := rawSpec.(map[string]any)
		if !ok {
			continue
		}
		wantType, _ := fieldSpec["type"].(string)
		fieldValue, present := value[field]
		if !present || wantType == "" {
			continue
		}
		if !matchesJSONType(fieldValue, wantType) {
			return fmt.Errorf("field %q: expected type %q", field, wantType)
		}
	}
	return nil
}

func matchesJSONType(v any, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number", "integer":
		switch v.(type) {
		case float64, float32, int, int64, json.Number:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
