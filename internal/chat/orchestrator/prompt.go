package orchestrator

import (
	"strings"
	"time"
)

const (
	DefaultSystemPrompt = "You are a helpful assistant."
	DefaultTimezone     = "Europe/Berlin"
)

const webSearchInstructions = `You have access to a web search function.

IMPORTANT: When the user asks for current information (news, weather, current events, prices, etc.) or explicitly wants an internet search, you MUST use the web_search function.

Examples of when to use web_search:
- "What is in the news today?"
- "Search the internet for..."
- "How much does ... cost right now?"
- "What is the weather in ...?"
- Any question about events after your knowledge cutoff`

// PromptBuilder renders the system prompt that is injected when a
// conversation carries none.
type PromptBuilder struct {
	base string
	loc  *time.Location
	now  func() time.Time
}

func NewPromptBuilder(base, timezone string) (*PromptBuilder, error) {
	if strings.TrimSpace(base) == "" {
		base = DefaultSystemPrompt
	}
	if strings.TrimSpace(timezone) == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &PromptBuilder{base: base, loc: loc, now: time.Now}, nil
}

// Build uses override as the base prompt when it is non-empty.
func (p *PromptBuilder) Build(override string, withTools bool) string {
	base := p.base
	if strings.TrimSpace(override) != "" {
		base = override
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nCurrent date and time: ")
	b.WriteString(p.now().In(p.loc).Format("Monday, 2 January 2006, 15:04"))
	if withTools {
		b.WriteString("\n\n")
		b.WriteString(webSearchInstructions)
	}
	return b.String()
}
