// Package tools exposes dashboard figures as named tools an assistant can call.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ArionMiles/financehub/pkg/api"
	"github.com/ArionMiles/financehub/pkg/engine"
)

var (
	// ErrUnknownTool is returned when no tool is registered under a name.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when a tool cannot decode its arguments.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Snapshot is the data a tool call works on: the caller's dataset and the
// dashboard view already built from it.
type Snapshot struct {
	Dataset *api.Dataset
	View    engine.DashboardView
}

// Tool is a callable the assistant can discover and invoke.
type Tool interface {
	// Name returns the tool name (e.g., "get_financial_overview").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// InputSchema returns a JSON schema describing the tool's arguments.
	InputSchema() map[string]any
	// Call runs the tool. The result must be JSON-encodable.
	Call(ctx context.Context, snap Snapshot, args json.RawMessage) (any, error)
}

// Registry holds tools in registration order.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewFinanceRegistry returns a registry holding every finance tool.
func NewFinanceRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []Tool{
		&Overview{},
		&RecentTransactions{},
		&ExpenseAnalysis{},
		&BudgetRecommendations{},
		&RenderDashboard{},
	} {
		// Names are distinct constants.
		_ = r.Register(t)
	}
	return r
}

// Register adds a tool.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t, nil
}

// List returns all tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Call looks up name and runs it against snap.
func (r *Registry) Call(ctx context.Context, name string, snap Snapshot, args json.RawMessage) (any, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if snap.Dataset == nil {
		snap.Dataset = &api.Dataset{}
	}
	return t.Call(ctx, snap, args)
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func emptySchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	}
}
