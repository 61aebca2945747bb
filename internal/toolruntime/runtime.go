// Package toolruntime is the tool registry and execution runtime: policy
// resolution, JSON-schema validation, and dispatch to a registered Tool.
package toolruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nexuscore/agent/pkg/apperrors"
	"github.com/nexuscore/agent/pkg/models"
)

// ToolContext carries per-call ambient state a Tool may need.
type ToolContext struct {
	Ctx         context.Context
	WorkspaceDir string
	ChannelID   string
	SessionID   string
	APIKeys     map[string]string
	Broadcaster Broadcaster
}

// Broadcaster is the narrow event-emission surface tools use; the
// orchestrator passes the same sink the execution tracker emits through.
type Broadcaster interface {
	Emit(name string, payload any)
}

// Tool is one registered capability.
type Tool interface {
	Definition() models.ToolDefinition
	Execute(tc ToolContext, args json.RawMessage) (*models.ToolResult, error)
}

// Registry is the process-wide, thread-safe set of registered tools.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register compiles the tool's input schema once and adds it under its
// (unique) name, replacing any prior registration of the same name.
func (r *Registry) Register(t Tool) error {
	def := t.Definition()
	if def.Name == "" {
		return fmt.Errorf("toolruntime: tool has empty name")
	}

	compiled, err := compileSchema(def.Name, def.InputSchema)
	if err != nil {
		return fmt.Errorf("toolruntime: compiling schema for %q: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = t
	r.schemas[def.Name] = compiled
	return nil
}

func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	url := "mem://" + name + ".json"
	if err := c.AddResource(url, rawReader(raw)); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// Definitions returns every registered tool's wire-visible shape, for
// passing to an Adapter.
func (r *Registry) Definitions() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Definition())
	}
	return out
}

// Execute validates args against the tool's schema then dispatches to it.
// A schema violation is ToolError{InvalidArgs} and never reaches Execute.
func (r *Registry) Execute(tc ToolContext, name string, args json.RawMessage) (*models.ToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewToolError(apperrors.ToolNotFound, name, nil)
	}

	if schema != nil {
		var v any
		if err := json.Unmarshal(args, &v); err != nil {
			return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, name, err)
		}
		if err := schema.Validate(v); err != nil {
			return nil, apperrors.NewToolError(apperrors.ToolInvalidArgs, name, err)
		}
	}

	select {
	case <-tc.Ctx.Done():
		return nil, apperrors.NewToolError(apperrors.ToolInternal, name, tc.Ctx.Err())
	default:
	}

	return tool.Execute(tc, args)
}
