// Package orchestrator runs one chat turn: it lets the model call tools until
// it answers, then returns the answer or an upstream stream to relay.
package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BigPharmacist/ChatApp/internal/chat/tools"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
)

const (
	DefaultModel         = "meta-llama/Llama-3.3-70B-Instruct-fast"
	DefaultMaxTokens     = 2048
	DefaultTemperature   = 0.7
	DefaultMaxIterations = 10

	webSearchMarker = "🔍 *Web search performed*\n\n"
)

type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error)
	StreamChatCompletion(ctx context.Context, req openai.ChatRequest) (io.ReadCloser, error)
}

type ToolExecutor interface {
	Definitions() []openai.Tool
	Execute(ctx context.Context, call openai.ToolCall) string
}

type Config struct {
	DefaultModel  string
	MaxTokens     int
	Temperature   float64
	MaxIterations int
}

type Request struct {
	Messages     []openai.Message
	Model        string
	Stream       bool
	EnableTools  bool
	SystemPrompt string
}

// Result holds exactly one of Response or Stream. Stream is the raw upstream
// SSE body; the caller relays it unchanged and closes it.
type Result struct {
	Response  *openai.ChatResponse
	Stream    io.ReadCloser
	ToolsUsed []string
}

type Orchestrator struct {
	log    *logger.Logger
	client ChatClient
	tools  ToolExecutor
	caps   CapabilityTable
	prompt *PromptBuilder
	cfg    Config
	tracer trace.Tracer
}

func New(log *logger.Logger, client ChatClient, executor ToolExecutor, caps CapabilityTable, prompt *PromptBuilder, cfg Config) *Orchestrator {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Orchestrator{
		log:    log.With("service", "ChatOrchestrator"),
		client: client,
		tools:  executor,
		caps:   caps,
		prompt: prompt,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/BigPharmacist/ChatApp/internal/chat/orchestrator"),
	}
}

func (o *Orchestrator) DefaultModel() string { return o.cfg.DefaultModel }

type state int

const (
	stateRequestModel state = iota
	stateExecuteTools
	stateStreamReissue
	stateFinal
	stateExhausted
)

// turn is the mutable state of one Run.
type turn struct {
	req        Request
	mode       ToolChoice
	useTools   bool
	messages   []openai.Message
	iterations int
	used       []string
	last       *openai.ChatResponse
	calls      []openai.ToolCall
}

func (o *Orchestrator) Run(ctx context.Context, req Request) (res *Result, err error) {
	if req.Model == "" {
		req.Model = o.cfg.DefaultModel
	}
	ctx, span := o.tracer.Start(ctx, "orchestrator.Run", trace.WithAttributes(
		attribute.String("model", req.Model),
		attribute.Bool("stream", req.Stream),
		attribute.Bool("tools_enabled", req.EnableTools),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	t := o.setup(req)
	o.log.Info("Chat request",
		"model", req.Model,
		"messages", len(req.Messages),
		"stream", req.Stream,
		"tools_enabled", req.EnableTools,
		"tool_choice_mode", string(t.mode),
	)

	st := stateRequestModel
	for {
		switch st {
		case stateRequestModel:
			st, err = o.requestModel(ctx, t)
		case stateExecuteTools:
			st = o.executeTools(ctx, t)
		case stateStreamReissue:
			return o.streamReissue(ctx, t)
		case stateFinal:
			span.SetAttributes(attribute.Int("tool_iterations", t.iterations))
			return o.final(t), nil
		case stateExhausted:
			o.log.Warn("Tool loop exhausted", "model", req.Model, "iterations", t.iterations)
			return nil, ErrToolLoopExceeded
		}
		if err != nil {
			return nil, err
		}
	}
}

func (o *Orchestrator) setup(req Request) *turn {
	mode := o.caps.Lookup(req.Model)
	t := &turn{
		req:      req,
		mode:     mode,
		useTools: req.EnableTools && o.tools != nil,
	}
	if hasSystemMessage(req.Messages) {
		t.messages = append([]openai.Message(nil), req.Messages...)
		return t
	}
	t.messages = make([]openai.Message, 0, len(req.Messages)+1)
	t.messages = append(t.messages, openai.TextMessage(openai.RoleSystem, o.prompt.Build(req.SystemPrompt, t.useTools)))
	t.messages = append(t.messages, req.Messages...)
	return t
}

func (o *Orchestrator) requestModel(ctx context.Context, t *turn) (state, error) {
	chatReq := openai.ChatRequest{
		Model:       t.req.Model,
		Messages:    t.messages,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.temperature(),
	}
	if t.useTools && t.iterations < o.cfg.MaxIterations {
		chatReq.Tools = o.tools.Definitions()
		if t.mode == ToolChoiceAuto || t.mode == ToolChoiceRequired {
			chatReq.ToolChoice = string(t.mode)
		}
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.requestModel", trace.WithAttributes(
		attribute.Int("iteration", t.iterations),
		attribute.Bool("tools_attached", len(chatReq.Tools) > 0),
	))
	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	span.End()
	if err != nil {
		return 0, upstream(err)
	}
	msg := resp.FirstMessage()
	if msg == nil {
		return 0, ErrNoAssistantMessage
	}
	t.last = resp

	if len(msg.ToolCalls) == 0 {
		if t.req.Stream && t.iterations == 0 {
			return stateStreamReissue, nil
		}
		return stateFinal, nil
	}
	if t.iterations >= o.cfg.MaxIterations {
		return stateExhausted, nil
	}
	o.log.Debug("Tool calls requested", "iteration", t.iterations, "count", len(msg.ToolCalls))
	t.messages = append(t.messages, openai.Message{
		Role:      openai.RoleAssistant,
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
	})
	t.calls = msg.ToolCalls
	return stateExecuteTools, nil
}

// executeTools runs calls in the order the model emitted them.
func (o *Orchestrator) executeTools(ctx context.Context, t *turn) state {
	for _, call := range t.calls {
		var out string
		if o.tools == nil {
			out = "Unknown tool: " + call.Function.Name
		} else {
			out = o.tools.Execute(ctx, call)
		}
		t.used = append(t.used, call.Function.Name)
		t.messages = append(t.messages, openai.Message{
			Role:       openai.RoleTool,
			ToolCallID: call.ID,
			Content:    &out,
		})
	}
	t.calls = nil
	t.iterations++
	return stateRequestModel
}

// streamReissue replays the caller's own messages as a streaming request.
// The synthesized system prompt and tools are left out.
func (o *Orchestrator) streamReissue(ctx context.Context, t *turn) (*Result, error) {
	body, err := o.client.StreamChatCompletion(ctx, openai.ChatRequest{
		Model:       t.req.Model,
		Messages:    t.req.Messages,
		Stream:      true,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.temperature(),
	})
	if err != nil {
		return nil, upstream(err)
	}
	return &Result{Stream: body}, nil
}

func (o *Orchestrator) final(t *turn) *Result {
	resp := t.last
	if msg := resp.FirstMessage(); msg != nil && len(t.used) > 0 && msg.Text() != "" {
		content := toolMarker(t.used) + msg.Text()
		msg.Content = &content
	}
	return &Result{Response: resp, ToolsUsed: t.used}
}

func toolMarker(used []string) string {
	seen := map[string]bool{}
	var names []string
	for _, name := range used {
		if name == tools.WebSearchName {
			return webSearchMarker
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return "🔧 *Tools used: " + strings.Join(names, ", ") + "*\n\n"
}

func (o *Orchestrator) temperature() *float64 {
	v := o.cfg.Temperature
	return &v
}

func upstream(err error) error {
	var httpErr *openai.HTTPError
	if errors.As(err, &httpErr) {
		return &UpstreamError{Status: httpErr.StatusCode, Body: httpErr.Body}
	}
	return err
}

func hasSystemMessage(msgs []openai.Message) bool {
	for _, m := range msgs {
		if m.Role == openai.RoleSystem {
			return true
		}
	}
	return false
}
