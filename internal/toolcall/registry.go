package toolcall

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/pkg/types"
)

// defaultCallTimeout bounds a single tool execution.
const defaultCallTimeout = 10 * time.Second

// registered pairs a tool with its compiled parameter schema.
type registered struct {
	tool   Tool
	schema *jsonschema.Resolved
}

// Registry holds the tools available to the LLM and validates directive
// parameters before execution.
//
// The zero value is not usable; create instances with [NewRegistry].
type Registry struct {
	timeout time.Duration
	metrics *observe.Metrics

	mu    sync.RWMutex
	tools map[string]registered
}

// RegistryOption configures a [Registry].
type RegistryOption func(*Registry)

// WithCallTimeout sets the per-call execution timeout. Zero disables the
// timeout. Defaults to 10s.
func WithCallTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = d }
}

// WithRegistryMetrics replaces the registry's metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithRegistryMetrics(m *observe.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty [Registry].
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		timeout: defaultCallTimeout,
		metrics: observe.DefaultMetrics(),
		tools:   make(map[string]registered),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool, compiling its parameter schema. A tool with the same
// name replaces the previous registration. Returns an error if the tool has
// an empty name or its Parameters are not a valid JSON Schema.
func (r *Registry) Register(t Tool) error {
	def := t.Definition()
	if def.Name == "" {
		return fmt.Errorf("tool registry: tool must have a non-empty name")
	}

	resolved, err := compileSchema(def.Parameters)
	if err != nil {
		return fmt.Errorf("tool registry: schema for tool %q: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = registered{tool: t, schema: resolved}
	return nil
}

// Definitions returns the registered tool descriptors sorted by name, ready
// for inclusion in the system prompt.
func (r *Registry) Definitions() []types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]types.ToolDefinition, 0, len(r.tools))
	for _, reg := range r.tools {
		defs = append(defs, reg.tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute validates params against the named tool's schema and runs it under
// the configured timeout.
//
// Errors wrap [ErrUnknownTool], [ErrInvalidParameters], or
// [ErrExecutionFailed].
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if params == nil {
		params = map[string]any{}
	}
	if reg.schema != nil {
		if err := reg.schema.Validate(params); err != nil {
			r.metrics.RecordToolCall(ctx, name, "error")
			return "", fmt.Errorf("%w: tool %q: %v", ErrInvalidParameters, name, err)
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	started := time.Now()
	out, err := reg.tool.Call(ctx, params)
	r.metrics.ToolExecutionDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		r.metrics.RecordToolCall(ctx, name, "error")
		return "", fmt.Errorf("%w: tool %q: %v", ErrExecutionFailed, name, err)
	}
	r.metrics.RecordToolCall(ctx, name, "ok")
	return out, nil
}

// compileSchema resolves a map-form JSON Schema for validation. A nil map
// compiles to the permissive empty object schema.
func compileSchema(params map[string]any) (*jsonschema.Resolved, error) {
	if params == nil {
		params = map[string]any{"type": "object"}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}
