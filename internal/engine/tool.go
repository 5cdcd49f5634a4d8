package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
)

// Tool is an analytic collaborator. Implementations must honour ctx and
// must not retain Call after returning.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, call Call) (any, error)
}

// Call is the input to one tool invocation.
type Call struct {
	Invocation toolplan.Invocation
	Question   string
	// Upstream holds the results of the invocation's dependencies, keyed
	// by tool name. Failed dependencies are included.
	Upstream map[string]ToolResult
}

// Arg returns the named argument.
func (c Call) Arg(name string) (any, bool) {
	v, ok := c.Invocation.Arguments[name]
	return v, ok
}

// StringArg returns a string argument, or def when absent or not a string.
func (c Call) StringArg(name, def string) string {
	if v, ok := c.Invocation.Arguments[name].(string); ok && v != "" {
		return v
	}
	return def
}

// IntArg returns an integer argument. JSON-decoded float64 values are
// accepted.
func (c Call) IntArg(name string, def int) int {
	switch v := c.Invocation.Arguments[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// FloatArg returns a floating-point argument.
func (c Call) FloatArg(name string, def float64) float64 {
	switch v := c.Invocation.Arguments[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// UpstreamPayload returns the payload of a successful upstream result.
func (c Call) UpstreamPayload(tool string) (any, bool) {
	r, ok := c.Upstream[tool]
	if !ok || !r.Succeeded {
		return nil, false
	}
	return r.Payload, true
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry maps tool names to implementations. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns a registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[t.Name()]; dup {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Describe lists registered tools sorted by name.
func (r *Registry) Describe() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, ToolInfo{Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
