package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/BigPharmacist/ChatApp/internal/platform/brave"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
)

type fakeSearcher struct {
	results []brave.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]brave.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func call(name, args string) openai.ToolCall {
	return openai.ToolCall{ID: "call_1", Type: "function", Function: openai.FunctionCall{Name: name, Arguments: args}}
}

func TestRegistryExecutesWebSearch(t *testing.T) {
	s := &fakeSearcher{results: []brave.Result{
		{Title: "Berlin", URL: "https://example.org/berlin", Description: "Capital of Germany"},
		{Title: "Bonn", URL: "https://example.org/bonn", Description: "Former capital"},
	}}
	r := NewRegistry(logger.Nop(), NewWebSearch(s))

	got := r.Execute(context.Background(), call(WebSearchName, `{"query":"capital of germany"}`))
	want := "1. Berlin\n   https://example.org/berlin\n   Capital of Germany\n\n" +
		"2. Bonn\n   https://example.org/bonn\n   Former capital"
	if got != want {
		t.Fatalf("result:\nwant=%q\ngot=%q", want, got)
	}
	if len(s.queries) != 1 || s.queries[0] != "capital of germany" {
		t.Fatalf("queries: got=%v", s.queries)
	}
}

func TestRegistryFailuresAreText(t *testing.T) {
	tests := []struct {
		name     string
		searcher *fakeSearcher
		call     openai.ToolCall
		want     string
	}{
		{"unknown tool", &fakeSearcher{}, call("calculator", `{}`), "Unknown tool: calculator"},
		{"bad json", &fakeSearcher{}, call(WebSearchName, `{"query":`), "Tool error:"},
		{"no results", &fakeSearcher{}, call(WebSearchName, `{"query":"x"}`), "No results found."},
		{"missing key", &fakeSearcher{err: brave.ErrMissingAPIKey}, call(WebSearchName, `{"query":"x"}`), "Error: BRAVE_API_KEY not configured"},
		{"upstream status", &fakeSearcher{err: &brave.StatusError{StatusCode: 429, Status: "429 Too Many Requests"}}, call(WebSearchName, `{"query":"x"}`), "Search failed: 429 Too Many Requests"},
		{"transport", &fakeSearcher{err: errors.New("dial tcp: refused")}, call(WebSearchName, `{"query":"x"}`), "Search failed: dial tcp: refused"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry(logger.Nop(), NewWebSearch(tc.searcher))
			got := r.Execute(context.Background(), tc.call)
			if !strings.HasPrefix(got, tc.want) {
				t.Fatalf("want prefix %q got=%q", tc.want, got)
			}
		})
	}
}

func TestWebSearchCapsResults(t *testing.T) {
	var many []brave.Result
	for i := 0; i < 8; i++ {
		many = append(many, brave.Result{Title: "t", URL: "u", Description: "d"})
	}
	got := NewWebSearch(&fakeSearcher{results: many}).Execute(context.Background(), json.RawMessage(`{"query":"q"}`))
	if n := strings.Count(got, "\n\n") + 1; n != brave.DefaultCount {
		t.Fatalf("results: want=%d got=%d", brave.DefaultCount, n)
	}
}

func TestDefinitionsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry(logger.Nop(), NewWebSearch(nil))
	defs := r.Definitions()
	if len(defs) != 1 {
		t.Fatalf("definitions: want=1 got=%d", len(defs))
	}
	d := defs[0]
	if d.Type != "function" || d.Function.Name != WebSearchName {
		t.Fatalf("definition: got=%+v", d)
	}
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(d.Function.Parameters, &schema); err != nil {
		t.Fatalf("parameters: %v", err)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "query" {
		t.Fatalf("required: got=%v", schema.Required)
	}

	r.Register(NewWebSearch(nil))
	if r.Len() != 1 {
		t.Fatalf("re-register should replace, len=%d", r.Len())
	}
}

func TestNilSearcherReportsMissingKey(t *testing.T) {
	got := NewWebSearch(nil).Execute(context.Background(), json.RawMessage(`{"query":"q"}`))
	if got != "Error: BRAVE_API_KEY not configured" {
		t.Fatalf("got=%q", got)
	}
}
