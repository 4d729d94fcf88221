// Package engine runs tool-calling agent loops against the Claude API. The
// analytics core has exactly one agent — the weekly suggester's dealfinder —
// but the loop itself is agent-agnostic: it streams text deltas, executes
// registered tools, audits every tool call, and enforces the run's limits.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/becomeliminal/analytics-core/core"
)

// defaultModel is the fallback when neither the request nor the agent's
// capabilities name one. Deployments set search.model instead of relying on
// this.
const defaultModel = "claude-sonnet-4-20250514"

// Engine executes agent runs: a loop of Claude API calls and tool
// executions until the model stops asking for tools.
type Engine struct {
	client     *anthropic.Client
	registry   *ToolRegistry
	guardrails Guardrails  // optional: per-user quota / circuit breaking
	audit      AuditLogger // optional: one entry per tool execution
}

// Option configures the engine.
type Option func(*Engine)

// WithGuardrails sets the guardrails implementation.
func WithGuardrails(g Guardrails) Option {
	return func(e *Engine) {
		e.guardrails = g
	}
}

// WithAudit sets the audit logger implementation.
func WithAudit(a AuditLogger) Option {
	return func(e *Engine) {
		e.audit = a
	}
}

// NewEngine creates an engine with the given Anthropic client and registry.
func NewEngine(client *anthropic.Client, registry *ToolRegistry, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		registry: registry,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *ToolRegistry {
	return e.registry
}

// Request describes one engine run.
type Request struct {
	// UserMessage is the message to process.
	UserMessage string

	// Context carries user identity and execution limits.
	Context *core.Context

	// SystemPrompt, Model, MaxTokens configure the API call. Zero values
	// fall back to the engine defaults.
	SystemPrompt string
	Model        string
	MaxTokens    int64

	// AgentName identifies the agent for audit logging.
	AgentName string

	// AvailableTools filters which registered tools the model may call.
	// Empty means all.
	AvailableTools []string

	// StreamCallback, if set, receives text deltas as they arrive and a
	// final call with done=true.
	StreamCallback func(chunk string, done bool)
}

// Run executes the agent loop until the model produces a final text answer
// or a limit is hit. Limit and guardrail violations come back as
// Output{Type: OutputError}; a nil error with OutputError means the run
// itself concluded, just not successfully. A non-nil error is an API
// transport failure.
func (e *Engine) Run(ctx context.Context, req *Request) (*core.Output, error) {
	userID := ""
	if req.Context != nil {
		userID = req.Context.UserID
	}

	if e.guardrails != nil {
		result, err := e.guardrails.Check(ctx, userID)
		if err != nil {
			return &core.Output{
				Type:  core.OutputError,
				Error: fmt.Errorf("guardrails check failed: %w", err),
			}, nil
		}
		if !result.Allowed {
			return &core.Output{
				Type:  core.OutputError,
				Error: fmt.Errorf("request blocked by guardrails: %s", result.Warning),
			}, nil
		}
	}

	model := req.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	agentName := req.AgentName
	if agentName == "" {
		agentName = "default"
	}

	limits := core.DefaultLimits()
	if req.Context != nil && req.Context.Limits != nil {
		limits = req.Context.Limits
	}
	if limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.Timeout)
		defer cancel()
	}

	session := NewSession(userID)
	session.AddUserMessage(req.UserMessage)

	var apiTools []anthropic.ToolUnionParam
	if len(req.AvailableTools) > 0 {
		apiTools = e.registry.ToAPIToolsFiltered(FilterByNames(req.AvailableTools...))
	} else {
		apiTools = e.registry.ToAPITools()
	}

	var totalTokens core.TokenUsage
	var toolsUsed []core.ToolExecution

	for {
		if ctx.Err() != nil {
			return &core.Output{
				Type:       core.OutputError,
				Error:      fmt.Errorf("run timed out: %w", ctx.Err()),
				ToolsUsed:  toolsUsed,
				TokensUsed: totalTokens,
			}, nil
		}
		if session.TurnCount >= limits.MaxTurns {
			return &core.Output{
				Type:       core.OutputError,
				Error:      fmt.Errorf("exceeded maximum turns (%d)", limits.MaxTurns),
				ToolsUsed:  toolsUsed,
				TokensUsed: totalTokens,
			}, nil
		}
		session.IncrementTurnCount()

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: maxTokens,
			Messages:  session.Messages(),
		}
		if req.SystemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
		}
		if len(apiTools) > 0 {
			params.Tools = apiTools
		}

		var resp *anthropic.Message
		var err error
		if req.StreamCallback != nil {
			resp, err = e.createMessageStreaming(ctx, params, req.StreamCallback)
		} else {
			resp, err = e.client.Messages.New(ctx, params)
		}
		if err != nil {
			if e.guardrails != nil {
				e.guardrails.RecordFailure(ctx, userID)
			}
			return &core.Output{
				Type:       core.OutputError,
				Error:      fmt.Errorf("claude API error: %w", err),
				ToolsUsed:  toolsUsed,
				TokensUsed: totalTokens,
			}, err
		}

		totalTokens.InputTokens += int(resp.Usage.InputTokens)
		totalTokens.OutputTokens += int(resp.Usage.OutputTokens)

		var toolResults []anthropic.ContentBlockParamUnion
		var textResponse string

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textResponse += block.Text

			case "tool_use":
				if len(toolsUsed) >= limits.MaxToolCalls {
					toolResults = append(toolResults, anthropic.NewToolResultBlock(
						block.ID,
						fmt.Sprintf("error: tool call budget exhausted (%d)", limits.MaxToolCalls),
						true,
					))
					continue
				}
				result := e.executeTool(ctx, session, agentName, block)
				toolsUsed = append(toolsUsed, result.execution)
				toolResults = append(toolResults, result.apiBlock)
			}
		}

		if len(toolResults) == 0 {
			if req.StreamCallback != nil {
				req.StreamCallback("", true)
			}
			if e.guardrails != nil {
				e.guardrails.RecordSuccess(ctx, userID)
			}
			return &core.Output{
				Type:       core.OutputComplete,
				Text:       textResponse,
				ToolsUsed:  toolsUsed,
				TokensUsed: totalTokens,
			}, nil
		}

		session.AddAssistantResponse(resp)
		session.AddToolResults(toolResults)
	}
}

// toolOutcome pairs the audit-facing record of a tool call with the result
// block handed back to the model.
type toolOutcome struct {
	execution core.ToolExecution
	apiBlock  anthropic.ContentBlockParamUnion
}

func (e *Engine) executeTool(ctx context.Context, session *Session, agentName string, block anthropic.ContentBlockUnion) toolOutcome {
	toolName := block.Name
	inputBytes, _ := json.Marshal(block.Input)

	tool, ok := e.registry.Get(toolName)
	if !ok {
		msg := fmt.Sprintf("unknown tool: %s", toolName)
		return toolOutcome{
			execution: core.ToolExecution{Tool: toolName, Input: block.Input, Error: msg},
			apiBlock:  anthropic.NewToolResultBlock(block.ID, msg, true),
		}
	}

	startTime := time.Now()
	result, err := tool.Execute(ctx, &core.ToolParams{
		UserID:    session.UserID,
		Input:     inputBytes,
		RequestID: session.ID,
	})
	durationMs := time.Since(startTime).Milliseconds()

	execution := core.ToolExecution{
		Tool:       toolName,
		Input:      block.Input,
		DurationMs: durationMs,
	}

	if e.audit != nil {
		var outputBytes json.RawMessage
		var errStr *string
		if result != nil {
			outputBytes, _ = json.Marshal(result.Data)
			if result.Error != "" {
				errStr = &result.Error
			}
		}
		if err != nil {
			errMsg := err.Error()
			errStr = &errMsg
		}
		e.audit.Log(ctx, &AuditEntry{
			ID:         uuid.New().String(),
			UserID:     session.UserID,
			SessionID:  session.ID,
			AgentName:  agentName,
			ToolName:   toolName,
			ToolInput:  inputBytes,
			ToolOutput: outputBytes,
			Error:      errStr,
			DurationMs: durationMs,
			Timestamp:  startTime.Unix(),
		})
	}

	switch {
	case err != nil:
		execution.Error = err.Error()
		return toolOutcome{execution, anthropic.NewToolResultBlock(block.ID, err.Error(), true)}
	case result != nil && !result.Success:
		execution.Error = result.Error
		return toolOutcome{execution, anthropic.NewToolResultBlock(block.ID, result.Error, true)}
	default:
		var data interface{}
		if result != nil {
			data = result.Data
			execution.Result = result.Data
		}
		resultBytes, _ := json.Marshal(data)
		return toolOutcome{execution, anthropic.NewToolResultBlock(block.ID, string(resultBytes), false)}
	}
}

// RunAgent executes an Agent, configuring the run from its Capabilities.
func (e *Engine) RunAgent(ctx context.Context, agent core.Agent, input *core.Input) (*core.Output, error) {
	caps := agent.Capabilities()

	req := &Request{
		UserMessage:    input.UserMessage,
		Context:        input.Context,
		SystemPrompt:   caps.SystemPrompt,
		Model:          caps.Model,
		MaxTokens:      caps.MaxTokens,
		AgentName:      agent.Name(),
		AvailableTools: caps.AvailableTools,
		StreamCallback: input.StreamCallback,
	}

	if req.Context != nil && req.Context.Limits == nil {
		req.Context.Limits = &core.ExecutionLimits{
			MaxTurns:     caps.MaxTurns,
			MaxTokens:    caps.MaxTokens,
			MaxToolCalls: core.DefaultLimits().MaxToolCalls,
		}
	}

	return e.Run(ctx, req)
}

// createMessageStreaming handles streaming API calls, accumulating the
// final message while forwarding text deltas to the callback.
func (e *Engine) createMessageStreaming(ctx context.Context, params anthropic.MessageNewParams, callback func(string, bool)) (*anthropic.Message, error) {
	stream := e.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()

		if err := message.Accumulate(event); err != nil {
			// Accumulation errors are non-fatal; the stream error check
			// below catches anything real.
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				callback(delta.Text, false)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &message, nil
}
