// Package tools holds the functions the model may call during a chat turn.
// Execution never fails with an error value: every outcome, including
// failures, is text the model reads as a tool result.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
)

type Tool interface {
	Name() string
	Definition() openai.Tool
	Execute(ctx context.Context, args json.RawMessage) string
}

type Registry struct {
	log   *logger.Logger
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

func NewRegistry(log *logger.Logger, tools ...Tool) *Registry {
	r := &Registry{log: log.With("service", "ToolRegistry"), tools: map[string]Tool{}}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds t, replacing any tool with the same name in place.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Definitions lists tool definitions in registration order.
func (r *Registry) Definitions() []openai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) Execute(ctx context.Context, call openai.ToolCall) string {
	name := call.Function.Name
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	raw := call.Function.Arguments
	if raw == "" {
		raw = "{}"
	}
	var probe map[string]any
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		r.log.Warn("Tool arguments are not valid JSON", "tool", name, "tool_call_id", call.ID, "error", err)
		return fmt.Sprintf("Tool error: %v", err)
	}
	if !ok {
		r.log.Warn("Model requested unknown tool", "tool", name, "tool_call_id", call.ID)
		return fmt.Sprintf("Unknown tool: %s", name)
	}
	out := t.Execute(ctx, json.RawMessage(raw))
	r.log.Debug("Tool executed", "tool", name, "tool_call_id", call.ID, "result_len", len(out))
	return out
}
