package weekly

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/becomeliminal/analytics-core/model"
)

var errNoArray = errors.New("no top-level JSON array found in capability response")

var requiredFindingFields = []string{
	"item_name", "original_price", "original_merchant", "alternative_merchant",
	"alternative_price", "shipping_cost", "tax_estimate", "total_landed_cost",
	"total_savings", "url", "channel", "confidence",
}

// ParseFindings turns the capability's raw text into validated findings:
// strip code fences, locate the first top-level JSON array, decode entries,
// reject incomplete ones, drop sub-threshold savings, and coerce/clamp
// numeric fields. At most maxFindings findings are kept per report
// (0 means unbounded). This is the one place untyped external JSON becomes
// a typed Finding.
func ParseFindings(text string, minSavings float64, maxFindings int) ([]model.Finding, error) {
	body := stripCodeFence(text)
	arrayText, ok := firstTopLevelArray(body)
	if !ok {
		return nil, errNoArray
	}

	result := gjson.Parse(arrayText)
	if !result.IsArray() {
		return nil, errNoArray
	}

	var out []model.Finding
	result.ForEach(func(_, entry gjson.Result) bool {
		if maxFindings > 0 && len(out) >= maxFindings {
			return false
		}
		f, ok := parseEntry(entry, minSavings)
		if ok {
			out = append(out, f)
		}
		return true
	})
	return out, nil
}

func parseEntry(entry gjson.Result, minSavings float64) (model.Finding, bool) {
	raw := entry.Raw
	for _, field := range requiredFindingFields {
		if !gjson.Get(raw, field).Exists() {
			return model.Finding{}, false
		}
	}

	// Normalise via sjson before decoding: clamp confidence, floor negative
	// monetary fields at zero, and round to 2 decimals.
	normalized := raw
	for _, field := range []string{"original_price", "alternative_price", "shipping_cost", "tax_estimate", "total_landed_cost", "total_savings"} {
		v := gjson.Get(normalized, field).Float()
		if v < 0 {
			v = 0
		}
		normalized, _ = sjson.Set(normalized, field, model.Round2(v))
	}
	conf := model.ClampUnit(gjson.Get(normalized, "confidence").Float())
	normalized, _ = sjson.Set(normalized, "confidence", conf)

	totalSavings := gjson.Get(normalized, "total_savings").Float()
	if totalSavings < minSavings {
		return model.Finding{}, false
	}

	channel := gjson.Get(normalized, "channel").String()
	if channel != string(model.ChannelLocal) && channel != string(model.ChannelOnline) {
		return model.Finding{}, false
	}

	f := model.Finding{
		ItemName:            gjson.Get(normalized, "item_name").String(),
		OriginalPrice:       gjson.Get(normalized, "original_price").Float(),
		OriginalMerchant:    gjson.Get(normalized, "original_merchant").String(),
		AlternativeMerchant: gjson.Get(normalized, "alternative_merchant").String(),
		AlternativePrice:    gjson.Get(normalized, "alternative_price").Float(),
		ShippingCost:        gjson.Get(normalized, "shipping_cost").Float(),
		TaxEstimate:         gjson.Get(normalized, "tax_estimate").Float(),
		TotalLandedCost:     gjson.Get(normalized, "total_landed_cost").Float(),
		TotalSavings:        totalSavings,
		URL:                 gjson.Get(normalized, "url").String(),
		Notes:               gjson.Get(normalized, "notes").String(),
		Channel:             model.Channel(channel),
		Confidence:          conf,
	}
	return f, true
}

func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.Index(t, "\n"); idx >= 0 {
		// Drop an optional language tag on the fence's opening line.
		t = t[idx+1:]
	}
	if idx := strings.LastIndex(t, "```"); idx >= 0 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}

// firstTopLevelArray scans for the first balanced top-level `[...]` span,
// ignoring brackets inside string literals.
func firstTopLevelArray(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '[':
			if depth == 0 {
				start = i
			}
			depth++
		case ']':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
