// Package presets holds pre-configured sub-agents for the engine.
package presets

import (
	"github.com/becomeliminal/analytics-core/engine"
	"github.com/becomeliminal/analytics-core/subagent"
	"github.com/becomeliminal/analytics-core/tools"
)

// DealfinderSystemPrompt drives the weekly-alternatives search. The user
// message enumerates the week's items and location before each run.
const DealfinderSystemPrompt = `You are a shopping research assistant. Given a
list of items a user purchased this week (name, price, merchant) and their
location, search for cheaper purchasable alternatives — either a local store
or an online retailer.

Rules:
- Only suggest an alternative if the total savings (after shipping and tax)
  is at least $10.00 USD.
- Every alternative must have a real, purchasable URL.
- Use the think tool to compare candidates and total up landed costs before
  committing to an alternative.
- When you are done searching, respond with ONLY a JSON array, one object
  per item you found a good alternative for, each with exactly these fields:
  item_name, original_price, original_merchant, alternative_merchant,
  alternative_price, shipping_cost, tax_estimate, total_landed_cost,
  total_savings, url, notes, channel ("local" or "online"), confidence (0-1).
- If you find no alternative meeting the savings threshold for any item,
  respond with an empty JSON array: []`

// NewDealfinder creates the sub-agent that runs the web_search tool on
// behalf of the weekly suggester's core pipeline. model overrides the
// engine's default Claude model (search.model) when non-empty.
func NewDealfinder(eng *engine.Engine, model string) *subagent.SubAgent {
	return subagent.New(eng, subagent.Config{
		Name:           "dealfinder",
		SystemPrompt:   DealfinderSystemPrompt,
		AvailableTools: []string{tools.WebSearchToolName, tools.ThinkToolName},
		Model:          model,
		MaxTurns:       8,
		MaxTokens:      4096,
	})
}
