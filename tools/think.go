package tools

import (
	"context"
	"encoding/json"

	"github.com/becomeliminal/analytics-core/core"
)

// ThinkToolName is the name of the think tool.
const ThinkToolName = "think"

// ThinkTool gives the dealfinder a side-effect-free scratchpad between
// searches: comparing landed costs across candidates, deciding which item
// to search next. The thought is acknowledged and discarded.
type ThinkTool struct{}

// NewThinkTool creates a new think tool.
func NewThinkTool() *ThinkTool {
	return &ThinkTool{}
}

func (t *ThinkTool) Name() string { return ThinkToolName }

func (t *ThinkTool) Description() string {
	return `Use this tool to reason step by step between searches: compare
candidate alternatives, total up shipping and tax, or plan which item to
search for next. The thought is not shown to the user.`
}

func (t *ThinkTool) Schema() map[string]interface{} {
	return ObjectSchema(map[string]interface{}{
		"thought": StringProperty("Your step-by-step reasoning or analysis"),
	}, "thought")
}

func (t *ThinkTool) Execute(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	var input struct {
		Thought string `json:"thought"`
	}
	if err := json.Unmarshal(params.Input, &input); err != nil || input.Thought == "" {
		return &core.ToolResult{Success: false, Error: "invalid input: thought is required"}, nil
	}

	return &core.ToolResult{Success: true, Data: map[string]string{"status": "thought recorded"}}, nil
}
