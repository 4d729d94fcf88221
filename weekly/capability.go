package weekly

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/analytics-core/core"
	"github.com/becomeliminal/analytics-core/engine"
	"github.com/becomeliminal/analytics-core/subagent/presets"
	"github.com/becomeliminal/analytics-core/tools"
)

// searchDeadline is the hard deadline for one capability call.
const searchDeadline = 30 * time.Second

// Capability is the narrow "prompt in, text chunks out" contract the
// pipeline consumes. onChunk is called once per streamed text delta; the
// return value is the final accumulated text, and callsMade is the number
// of backend search calls the run made (one per web_search tool
// invocation).
type Capability interface {
	Search(ctx context.Context, userID, prompt string, onChunk func(chunk string)) (final string, callsMade int, err error)
}

// EngineCapability implements Capability by running the dealfinder
// sub-agent: a tool-calling loop over web_search (plus a think scratchpad),
// streamed through the engine's StreamCallback. A fresh Engine/registry is
// built per call so the web_search call counter is scoped to one Search.
type EngineCapability struct {
	client     *anthropic.Client
	backend    tools.SearchBackend
	model      string
	guardrails engine.Guardrails
	audit      engine.AuditLogger
}

// NewEngineCapability wraps client, running every search through backend.
func NewEngineCapability(client *anthropic.Client, backend tools.SearchBackend, model string, guardrails engine.Guardrails, audit engine.AuditLogger) *EngineCapability {
	return &EngineCapability{client: client, backend: backend, model: model, guardrails: guardrails, audit: audit}
}

func (c *EngineCapability) Search(ctx context.Context, userID, prompt string, onChunk func(chunk string)) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, searchDeadline)
	defer cancel()

	calls := 0
	registry := engine.NewToolRegistry()
	registry.RegisterAll(tools.NewWebSearchTool(c.backend, &calls), tools.NewThinkTool())

	var opts []engine.Option
	if c.guardrails != nil {
		opts = append(opts, engine.WithGuardrails(c.guardrails))
	}
	if c.audit != nil {
		opts = append(opts, engine.WithAudit(c.audit))
	}
	eng := engine.NewEngine(c.client, registry, opts...)

	agent := presets.NewDealfinder(eng, c.model)

	var sb strings.Builder
	callback := func(chunk string, done bool) {
		if chunk == "" {
			return
		}
		sb.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	reqCtx := core.NewContext(userID, "weekly-"+userID)
	reqCtx.Limits = core.SubAgentLimits()

	output, err := agent.Run(ctx, &core.Input{
		UserMessage:    prompt,
		Context:        reqCtx,
		StreamCallback: callback,
	})
	if err != nil {
		return "", calls, classifyCapabilityErr(ctx, err)
	}
	if output.Type == core.OutputError {
		return "", calls, classifyCapabilityErr(ctx, output.Error)
	}

	final := sb.String()
	if final == "" {
		final = output.Text
	}
	return final, calls, nil
}

func classifyCapabilityErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return Wrap(err, KindCapabilityUnavailable)
	}
	if ctx.Err() == context.Canceled {
		return Wrap(err, KindCancelled)
	}
	if strings.Contains(err.Error(), "blocked by guardrails") || strings.Contains(err.Error(), "quota") {
		return Wrap(err, KindCapabilityQuota)
	}
	return Wrap(err, KindCapabilityUnavailable)
}
