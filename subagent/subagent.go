// Package subagent wraps the engine in named, single-purpose agents. The
// analytics core ships one — the dealfinder (see presets) — but the shape is
// generic: a system prompt, a tool allow-list, and tightened limits.
package subagent

import (
	"context"

	"github.com/becomeliminal/analytics-core/core"
	"github.com/becomeliminal/analytics-core/engine"
)

// SubAgent is a specialised agent with a fixed system prompt and tool set.
// It implements core.Agent.
type SubAgent struct {
	name           string
	systemPrompt   string
	availableTools []string
	model          string
	maxTokens      int64
	maxTurns       int
	engine         *engine.Engine
}

// Config configures a sub-agent.
type Config struct {
	// Name is the unique identifier for this sub-agent.
	Name string

	// SystemPrompt is the specialised system prompt.
	SystemPrompt string

	// AvailableTools lists the tool names this sub-agent can use.
	AvailableTools []string

	// Model is the Claude model to use. Empty means the engine default.
	Model string

	// MaxTokens is the maximum response tokens per turn. Defaults to 2048.
	MaxTokens int64

	// MaxTurns is the turn limit reported in Capabilities. Defaults to 10.
	// Run does not apply it: the run's turn limit comes from its context's
	// ExecutionLimits (SubAgentLimits when the context has none).
	MaxTurns int
}

// New creates a sub-agent running on eng.
func New(eng *engine.Engine, cfg Config) *SubAgent {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	maxTurns := cfg.MaxTurns
	if maxTurns == 0 {
		maxTurns = 10
	}

	return &SubAgent{
		name:           cfg.Name,
		systemPrompt:   cfg.SystemPrompt,
		availableTools: cfg.AvailableTools,
		model:          cfg.Model,
		maxTokens:      maxTokens,
		maxTurns:       maxTurns,
		engine:         eng,
	}
}

// Name returns the sub-agent's unique identifier.
func (s *SubAgent) Name() string {
	return s.name
}

// Capabilities returns the sub-agent's configuration.
func (s *SubAgent) Capabilities() *core.Capabilities {
	return &core.Capabilities{
		AvailableTools: s.availableTools,
		Model:          s.model,
		MaxTokens:      s.maxTokens,
		MaxTurns:       s.maxTurns,
		SystemPrompt:   s.systemPrompt,
	}
}

// Run executes the sub-agent. A context without limits gets the tightened
// sub-agent defaults.
func (s *SubAgent) Run(ctx context.Context, input *core.Input) (*core.Output, error) {
	if input.Context != nil && input.Context.Limits == nil {
		input.Context.Limits = core.SubAgentLimits()
	}
	return s.engine.RunAgent(ctx, s, input)
}
