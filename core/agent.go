package core

import (
	"context"
)

// Agent is anything the engine can run: it processes one input and produces
// one output, using the tools its Capabilities name.
type Agent interface {
	// Run executes the agent with the given input and returns output.
	Run(ctx context.Context, input *Input) (*Output, error)

	// Capabilities returns the agent's configuration.
	Capabilities() *Capabilities

	// Name returns the agent's unique identifier.
	Name() string
}

// Capabilities describes an agent's configuration.
type Capabilities struct {
	// AvailableTools lists the tool names this agent can use.
	AvailableTools []string

	// Model is the Claude model to use.
	Model string

	// MaxTokens is the maximum response tokens per turn.
	MaxTokens int64

	// MaxTurns is the maximum number of agentic turns.
	MaxTurns int

	// SystemPrompt is the system prompt for the agent.
	SystemPrompt string
}

// Input represents the input to an agent run.
type Input struct {
	// UserMessage is the message to process — for the dealfinder, the
	// rendered weekly-items prompt.
	UserMessage string

	// Context contains user identity and execution limits.
	Context *Context

	// StreamCallback is an optional callback for streaming responses. It is
	// called once per text delta and a final time with done=true.
	StreamCallback func(chunk string, done bool)
}

// Output represents the output from an agent run.
type Output struct {
	// Type indicates the kind of output.
	Type OutputType

	// Text is the agent's text response.
	Text string

	// ToolsUsed records all tools invoked during this run.
	ToolsUsed []ToolExecution

	// TokensUsed tracks Claude API token consumption for this run.
	TokensUsed TokenUsage

	// Error is set when Type is OutputError.
	Error error
}

// OutputType indicates the kind of output from an agent run.
type OutputType int

const (
	// OutputComplete indicates the agent finished successfully.
	OutputComplete OutputType = iota

	// OutputError indicates an error occurred.
	OutputError
)
