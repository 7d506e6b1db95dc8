package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
)

type fakeChat struct {
	replies   []*openai.ChatResponse
	err       error
	streamErr error
	requests  []openai.ChatRequest
	streamed  []openai.ChatRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	req.Messages = append([]openai.Message(nil), req.Messages...)
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return nil, errors.New("no scripted reply")
	}
	next := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return next, nil
}

func (f *fakeChat) StreamChatCompletion(_ context.Context, req openai.ChatRequest) (io.ReadCloser, error) {
	f.streamed = append(f.streamed, req)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return io.NopCloser(strings.NewReader("data: {}\n\ndata: [DONE]\n\n")), nil
}

type fakeTools struct {
	executed []openai.ToolCall
}

func (f *fakeTools) Definitions() []openai.Tool {
	return []openai.Tool{{Type: "function", Function: openai.FunctionDef{Name: "web_search"}}}
}

func (f *fakeTools) Execute(_ context.Context, call openai.ToolCall) string {
	f.executed = append(f.executed, call)
	return "1. result"
}

func answer(text string) *openai.ChatResponse {
	m := openai.TextMessage(openai.RoleAssistant, text)
	return &openai.ChatResponse{Choices: []openai.Choice{{Message: &m}}}
}

func toolCallReply(ids ...string) *openai.ChatResponse {
	m := openai.Message{Role: openai.RoleAssistant}
	for _, id := range ids {
		m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
			ID: id, Type: "function",
			Function: openai.FunctionCall{Name: "web_search", Arguments: `{"query":"q"}`},
		})
	}
	return &openai.ChatResponse{Choices: []openai.Choice{{Message: &m}}}
}

func newTestOrchestrator(t *testing.T, chat *fakeChat, tl ToolExecutor) *Orchestrator {
	t.Helper()
	p, err := NewPromptBuilder("", DefaultTimezone)
	if err != nil {
		t.Fatalf("NewPromptBuilder: %v", err)
	}
	p.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	return New(logger.Nop(), chat, tl, DefaultCapabilities(), p, Config{Temperature: DefaultTemperature})
}

func userMessages(text string) []openai.Message {
	return []openai.Message{openai.TextMessage(openai.RoleUser, text)}
}

func TestStreamWithoutToolCallsReissuesOriginalMessages(t *testing.T) {
	chat := &fakeChat{replies: []*openai.ChatResponse{answer("Hi")}}
	o := newTestOrchestrator(t, chat, &fakeTools{})

	msgs := userMessages("Hello")
	res, err := o.Run(context.Background(), Request{Messages: msgs, Stream: true, EnableTools: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stream == nil || res.Response != nil {
		t.Fatalf("want stream result got=%+v", res)
	}
	defer res.Stream.Close()

	if len(chat.requests) != 1 {
		t.Fatalf("non-streaming calls: want=1 got=%d", len(chat.requests))
	}
	if len(chat.streamed) != 1 {
		t.Fatalf("streaming calls: want=1 got=%d", len(chat.streamed))
	}
	s := chat.streamed[0]
	if !s.Stream || len(s.Tools) != 0 || s.ToolChoice != "" {
		t.Fatalf("stream request: got=%+v", s)
	}
	if len(s.Messages) != 1 || s.Messages[0].Role != openai.RoleUser {
		t.Fatalf("stream must carry the original messages only, got=%+v", s.Messages)
	}
	if s.Model != DefaultModel || s.MaxTokens != DefaultMaxTokens {
		t.Fatalf("stream defaults: model=%q max_tokens=%d", s.Model, s.MaxTokens)
	}
}

func TestNonStreamingReturnsResponseUnmarked(t *testing.T) {
	chat := &fakeChat{replies: []*openai.ChatResponse{answer("Hi")}}
	o := newTestOrchestrator(t, chat, &fakeTools{})

	res, err := o.Run(context.Background(), Request{Messages: userMessages("Hello"), EnableTools: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Response.FirstMessage().Text(); got != "Hi" {
		t.Fatalf("content: want=%q got=%q", "Hi", got)
	}
	if len(chat.streamed) != 0 {
		t.Fatalf("no streaming call expected")
	}
}

func TestToolRoundThenAnswerAddsMarker(t *testing.T) {
	chat := &fakeChat{replies: []*openai.ChatResponse{toolCallReply("a", "b"), answer("Berlin.")}}
	tl := &fakeTools{}
	o := newTestOrchestrator(t, chat, tl)

	res, err := o.Run(context.Background(), Request{Messages: userMessages("Capital?"), Stream: true, EnableTools: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stream != nil {
		t.Fatalf("stream must not be reissued after tool use")
	}
	want := "🔍 *Web search performed*\n\nBerlin."
	if got := res.Response.FirstMessage().Text(); got != want {
		t.Fatalf("content: want=%q got=%q", want, got)
	}
	if len(tl.executed) != 2 || tl.executed[0].ID != "a" || tl.executed[1].ID != "b" {
		t.Fatalf("tools must run in emitted order, got=%+v", tl.executed)
	}

	second := chat.requests[1].Messages
	// system, user, assistant(tool_calls), tool a, tool b
	if len(second) != 5 {
		t.Fatalf("history: want=5 got=%d", len(second))
	}
	if second[2].Role != openai.RoleAssistant || len(second[2].ToolCalls) != 2 {
		t.Fatalf("assistant tool message: got=%+v", second[2])
	}
	if second[3].Role != openai.RoleTool || second[3].ToolCallID != "a" || second[3].Text() != "1. result" {
		t.Fatalf("tool message: got=%+v", second[3])
	}
}

func TestToolLoopStopsAfterMaxIterations(t *testing.T) {
	chat := &fakeChat{replies: []*openai.ChatResponse{toolCallReply("x")}}
	tl := &fakeTools{}
	o := newTestOrchestrator(t, chat, tl)

	_, err := o.Run(context.Background(), Request{Messages: userMessages("loop"), EnableTools: true})
	if !errors.Is(err, ErrToolLoopExceeded) {
		t.Fatalf("want ErrToolLoopExceeded got=%v", err)
	}
	if len(tl.executed) != DefaultMaxIterations {
		t.Fatalf("tool rounds: want=%d got=%d", DefaultMaxIterations, len(tl.executed))
	}
	if len(chat.requests) != DefaultMaxIterations+1 {
		t.Fatalf("model calls: want=%d got=%d", DefaultMaxIterations+1, len(chat.requests))
	}
	for i, r := range chat.requests {
		attached := len(r.Tools) > 0
		if i < DefaultMaxIterations && !attached {
			t.Fatalf("call %d: tools should be attached", i)
		}
		if i == DefaultMaxIterations && attached {
			t.Fatalf("forced final call must not carry tools")
		}
	}
}

func TestToolChoiceFollowsCapabilityTable(t *testing.T) {
	tests := []struct {
		model      string
		wantChoice string
	}{
		{"meta-llama/Llama-3.3-70B-Instruct-fast", "auto"},
		{"google/gemma-3-27b-it-fast", ""},
		{"unknown/model", ""},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			chat := &fakeChat{replies: []*openai.ChatResponse{answer("ok")}}
			o := newTestOrchestrator(t, chat, &fakeTools{})
			if _, err := o.Run(context.Background(), Request{Messages: userMessages("hi"), Model: tc.model, EnableTools: true}); err != nil {
				t.Fatalf("Run: %v", err)
			}
			r := chat.requests[0]
			if r.ToolChoice != tc.wantChoice {
				t.Fatalf("tool_choice: want=%q got=%q", tc.wantChoice, r.ToolChoice)
			}
			if len(r.Tools) == 0 {
				t.Fatalf("tools should be attached for %s", tc.model)
			}
		})
	}

	caps := DefaultCapabilities().With(map[string]ToolChoice{"custom/model": ToolChoiceRequired})
	if caps.Lookup("custom/model") != ToolChoiceRequired {
		t.Fatalf("override not applied")
	}
	if DefaultCapabilities().Lookup("custom/model") != ToolChoiceNone {
		t.Fatalf("With must not modify the receiver")
	}
}

func TestToolsDisabledSendsNoTools(t *testing.T) {
	chat := &fakeChat{replies: []*openai.ChatResponse{answer("ok")}}
	o := newTestOrchestrator(t, chat, &fakeTools{})
	if _, err := o.Run(context.Background(), Request{Messages: userMessages("hi")}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	r := chat.requests[0]
	if len(r.Tools) != 0 || r.ToolChoice != "" {
		t.Fatalf("tools must be absent: got=%+v", r)
	}
	if sys := r.Messages[0].Text(); strings.Contains(sys, "web_search") {
		t.Fatalf("prompt without tools must not mention web_search: %q", sys)
	}
}

func TestSystemPromptInjectedOnlyWhenAbsent(t *testing.T) {
	chat := &fakeChat{replies: []*openai.ChatResponse{answer("ok")}}
	o := newTestOrchestrator(t, chat, &fakeTools{})

	if _, err := o.Run(context.Background(), Request{Messages: userMessages("hi"), EnableTools: true, SystemPrompt: "Be brief."}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	first := chat.requests[0].Messages
	if len(first) != 2 || first[0].Role != openai.RoleSystem {
		t.Fatalf("want injected system prompt, got=%+v", first)
	}
	sys := first[0].Text()
	for _, want := range []string{"Be brief.", "Current date and time: Friday, 14 March 2025, 10:30", "web_search"} {
		if !strings.Contains(sys, want) {
			t.Fatalf("system prompt missing %q: %q", want, sys)
		}
	}

	msgs := []openai.Message{
		openai.TextMessage(openai.RoleSystem, "Custom"),
		openai.TextMessage(openai.RoleUser, "hi"),
	}
	if _, err := o.Run(context.Background(), Request{Messages: msgs, EnableTools: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	second := chat.requests[1].Messages
	if len(second) != 2 || second[0].Text() != "Custom" {
		t.Fatalf("existing system message must be kept as is, got=%+v", second)
	}
}

func TestUpstreamErrorsSurface(t *testing.T) {
	chat := &fakeChat{err: &openai.HTTPError{StatusCode: 401, Body: "bad key"}}
	o := newTestOrchestrator(t, chat, &fakeTools{})

	_, err := o.Run(context.Background(), Request{Messages: userMessages("hi")})
	var up *UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("want UpstreamError got=%v", err)
	}
	if up.Status != 401 || up.Body != "bad key" {
		t.Fatalf("upstream: got=%+v", up)
	}
	if want := "Model API error (401): bad key"; up.Error() != want {
		t.Fatalf("message: want=%q got=%q", want, up.Error())
	}

	stream := &fakeChat{replies: []*openai.ChatResponse{answer("x")}, streamErr: &openai.HTTPError{StatusCode: 503, Body: "busy"}}
	o = newTestOrchestrator(t, stream, &fakeTools{})
	if _, err := o.Run(context.Background(), Request{Messages: userMessages("hi"), Stream: true}); !errors.As(err, &up) || up.Status != 503 {
		t.Fatalf("stream upstream: got=%v", err)
	}
}

func TestMissingAssistantMessage(t *testing.T) {
	chat := &fakeChat{replies: []*openai.ChatResponse{{}}}
	o := newTestOrchestrator(t, chat, &fakeTools{})
	if _, err := o.Run(context.Background(), Request{Messages: userMessages("hi")}); !errors.Is(err, ErrNoAssistantMessage) {
		t.Fatalf("want ErrNoAssistantMessage got=%v", err)
	}
}

func TestToolMarker(t *testing.T) {
	if got := toolMarker([]string{"lookup", "web_search"}); got != webSearchMarker {
		t.Fatalf("got=%q", got)
	}
	if got, want := toolMarker([]string{"a", "b", "a"}), "🔧 *Tools used: a, b*\n\n"; got != want {
		t.Fatalf("want=%q got=%q", want, got)
	}
}

func TestLoadCapabilitiesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/caps.yaml"
	body := "models:\n  custom/model: required\n  google/gemma-3-27b-it-fast: auto\n"
	if err := writeFile(path, body); err != nil {
		t.Fatalf("write: %v", err)
	}
	caps, err := LoadCapabilities(DefaultCapabilities(), path)
	if err != nil {
		t.Fatalf("LoadCapabilities: %v", err)
	}
	if caps.Lookup("custom/model") != ToolChoiceRequired || caps.Lookup("google/gemma-3-27b-it-fast") != ToolChoiceAuto {
		t.Fatalf("overrides not applied")
	}
	if caps.Lookup("zai-org/GLM-4.5") != ToolChoiceNone {
		t.Fatalf("defaults must survive")
	}

	if err := writeFile(path, "models:\n  x: sometimes\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCapabilities(DefaultCapabilities(), path); err == nil {
		t.Fatalf("want error for unknown mode")
	}
}

func TestRequiredModeSendsRequiredHint(t *testing.T) {
	chat := &fakeChat{replies: []*openai.ChatResponse{answer("ok")}}
	o := newTestOrchestrator(t, chat, &fakeTools{})
	o.caps = o.caps.With(map[string]ToolChoice{"r/model": ToolChoiceRequired})
	if _, err := o.Run(context.Background(), Request{Messages: userMessages("hi"), Model: "r/model", EnableTools: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := chat.requests[0].ToolChoice; got != "required" {
		t.Fatalf("tool_choice: want=required got=%q", got)
	}
}
