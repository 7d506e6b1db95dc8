package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BigPharmacist/ChatApp/internal/platform/brave"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
)

const WebSearchName = "web_search"

type Searcher interface {
	Search(ctx context.Context, query string) ([]brave.Result, error)
}

type WebSearch struct {
	searcher   Searcher
	maxResults int
}

func NewWebSearch(searcher Searcher) *WebSearch {
	return &WebSearch{searcher: searcher, maxResults: brave.DefaultCount}
}

func (w *WebSearch) Name() string { return WebSearchName }

var webSearchParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "The search query in German or English"
    }
  },
  "required": ["query"]
}`)

func (w *WebSearch) Definition() openai.Tool {
	return openai.Tool{
		Type: "function",
		Function: openai.FunctionDef{
			Name:        WebSearchName,
			Description: "Searches the internet for current information. Use it for recent news and facts, or when the user explicitly asks for a web search.",
			Parameters:  webSearchParameters,
		},
	}
}

func (w *WebSearch) Execute(ctx context.Context, args json.RawMessage) string {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("Tool error: %v", err)
	}
	if w.searcher == nil {
		return "Error: " + brave.ErrMissingAPIKey.Error()
	}

	results, err := w.searcher.Search(ctx, in.Query)
	if err != nil {
		if errors.Is(err, brave.ErrMissingAPIKey) {
			return "Error: " + err.Error()
		}
		return fmt.Sprintf("Search failed: %v", err)
	}
	if len(results) == 0 {
		return "No results found."
	}
	if len(results) > w.maxResults {
		results = results[:w.maxResults]
	}
	return FormatResults(results)
}

// FormatResults renders results as a numbered list separated by blank lines.
func FormatResults(results []brave.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("%d. %s\n   %s\n   %s", i+1, r.Title, r.URL, r.Description)
	}
	return strings.Join(parts, "\n\n")
}
