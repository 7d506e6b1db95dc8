package orchestrator

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ToolChoice is how a model wants the tool_choice hint sent.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	// ToolChoiceNone sends tools without a tool_choice hint.
	ToolChoiceNone ToolChoice = "none"
)

func (c ToolChoice) valid() bool {
	switch c {
	case ToolChoiceAuto, ToolChoiceRequired, ToolChoiceNone:
		return true
	}
	return false
}

// CapabilityTable maps model ids to their tool_choice support. It is read-only
// after construction; With returns a new table.
type CapabilityTable struct {
	modes map[string]ToolChoice
}

var defaultCapabilities = map[string]ToolChoice{
	"meta-llama/Llama-3.3-70B-Instruct-fast": ToolChoiceAuto,
	"meta-llama/Llama-3.3-70B-Instruct":      ToolChoiceAuto,
	"Qwen/Qwen3-32B-fast":                    ToolChoiceAuto,
	"Qwen/Qwen3-235B-A22B-Instruct-2507":     ToolChoiceAuto,
	"deepseek-ai/DeepSeek-V3-0324-fast":      ToolChoiceAuto,
	"deepseek-ai/DeepSeek-R1-0528-fast":      ToolChoiceNone,
	"google/gemma-3-27b-it-fast":             ToolChoiceNone,
	"moonshotai/Kimi-K2-Instruct":            ToolChoiceNone,
	"moonshotai/Kimi-K2-Thinking":            ToolChoiceNone,
	"zai-org/GLM-4.5":                        ToolChoiceNone,
}

func DefaultCapabilities() CapabilityTable {
	return CapabilityTable{}.With(defaultCapabilities)
}

// Lookup returns the model's mode. Unknown models get ToolChoiceNone.
func (t CapabilityTable) Lookup(model string) ToolChoice {
	if c, ok := t.modes[model]; ok {
		return c
	}
	return ToolChoiceNone
}

func (t CapabilityTable) Len() int { return len(t.modes) }

// With returns a copy of t with overrides applied.
func (t CapabilityTable) With(overrides map[string]ToolChoice) CapabilityTable {
	modes := make(map[string]ToolChoice, len(t.modes)+len(overrides))
	for k, v := range t.modes {
		modes[k] = v
	}
	for k, v := range overrides {
		modes[k] = v
	}
	return CapabilityTable{modes: modes}
}

type capabilityFile struct {
	Models map[string]string `yaml:"models"`
}

// LoadCapabilities reads a YAML override file of the form
//
//	models:
//	  some/model: auto
//
// and layers it over base. An empty path returns base unchanged.
func LoadCapabilities(base CapabilityTable, path string) (CapabilityTable, error) {
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read capabilities file: %w", err)
	}
	var f capabilityFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return base, fmt.Errorf("parse capabilities file: %w", err)
	}
	overrides := make(map[string]ToolChoice, len(f.Models))
	for model, mode := range f.Models {
		c := ToolChoice(strings.ToLower(strings.TrimSpace(mode)))
		if !c.valid() {
			return base, fmt.Errorf("capabilities file: model %q has unknown mode %q", model, mode)
		}
		overrides[model] = c
	}
	return base.With(overrides), nil
}
