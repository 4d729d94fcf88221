// Package aggregate computes the logical projections the engines read:
// per-purchase rollups and per-(user, category, subcategory, week)
// summaries. Both views are pure functions of item rows, so re-evaluation
// always reproduces the same result.
package aggregate

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

// Rollups groups active items for a user by purchase_id and emits one
// TransactionRollup per group, ordered by occurred_at descending.
func Rollups(ctx context.Context, items []model.PurchaseItem) []model.TransactionRollup {
	byPurchase := make(map[string][]model.PurchaseItem)
	order := make([]string, 0)
	for _, it := range items {
		if _, ok := byPurchase[it.PurchaseID]; !ok {
			order = append(order, it.PurchaseID)
		}
		byPurchase[it.PurchaseID] = append(byPurchase[it.PurchaseID], it)
	}

	out := make([]model.TransactionRollup, 0, len(order))
	for _, pid := range order {
		out = append(out, rollupGroup(pid, byPurchase[pid]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out
}

func rollupGroup(purchaseID string, group []model.PurchaseItem) model.TransactionRollup {
	sorted := append([]model.PurchaseItem(nil), group...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ItemID < sorted[j].ItemID })

	var amount, confSum float64
	categories := make([]string, 0, len(sorted))
	labels := make([]string, 0, len(sorted))
	names := make([]string, 0, len(sorted))
	var occurredAt time.Time
	var merchant string
	var embed []float32

	for _, it := range sorted {
		amount += it.Amount()
		confSum += it.Confidence
		categories = append(categories, it.Category)
		labels = append(labels, string(it.EffectiveNeedWant()))
		names = append(names, it.ItemName)
		if occurredAt.IsZero() {
			occurredAt = it.TS
		}
		if merchant == "" {
			merchant = it.Merchant
		}
		if embed == nil && it.ItemEmbed != nil {
			embed = it.ItemEmbed
		}
	}

	return model.TransactionRollup{
		ID:         purchaseID,
		UserID:     sorted[0].UserID,
		Merchant:   merchant,
		Amount:     model.Round2(amount),
		Category:   mode(categories),
		NeedOrWant: model.NeedWant(mode(labels)),
		Confidence: confSum / float64(len(sorted)),
		OccurredAt: occurredAt,
		ItemText:   strings.Join(names, " · "),
		Embed:      embed,
	}
}

// mode returns the most frequent value; on a tie, the value that reached the
// winning count first is kept.
func mode(values []string) string {
	counts := make(map[string]int, len(values))
	best := ""
	bestCount := 0
	for _, v := range values {
		counts[v]++
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}

// CategoryWeekSummaries groups active items by (user_id, category,
// subcategory, week(ts)) and computes spend/confidence/label statistics.
func CategoryWeekSummaries(items []model.PurchaseItem) []model.CategoryWeekSummary {
	type key struct {
		category, subcategory string
		weekStart             time.Time
	}
	groups := make(map[key][]model.PurchaseItem)
	order := make([]key, 0)
	for _, it := range items {
		k := key{it.Category, it.Subcategory, model.WeekStart(it.TS)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], it)
	}

	purchaseCounts := make(map[key]map[string]struct{}, len(groups))
	for k, g := range groups {
		set := make(map[string]struct{})
		for _, it := range g {
			set[it.PurchaseID] = struct{}{}
		}
		purchaseCounts[k] = set
	}

	out := make([]model.CategoryWeekSummary, 0, len(order))
	for _, k := range order {
		g := groups[k]
		var total, need, want, confSum float64
		var labelled int
		for _, it := range g {
			amt := it.Amount()
			total += amt
			switch it.EffectiveNeedWant() {
			case model.Need:
				need += amt
			case model.Want:
				want += amt
			}
			confSum += it.Confidence
			if it.UserNeedWant != "" && it.UserNeedWant != model.Unset {
				labelled++
			}
		}
		out = append(out, model.CategoryWeekSummary{
			UserID:            g[0].UserID,
			Category:          k.category,
			Subcategory:       k.subcategory,
			WeekStart:         k.weekStart,
			PurchaseCount:     len(purchaseCounts[k]),
			ItemCount:         len(g),
			TotalSpend:        model.Round2(total),
			NeedSpend:         model.Round2(need),
			WantSpend:         model.Round2(want),
			MeanConfidence:    confSum / float64(len(g)),
			UserLabelledCount: labelled,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.After(out[j].WeekStart)
		}
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Subcategory < out[j].Subcategory
	})
	return out
}

// TransactionsAPI loads the most recent items for a user and projects them
// to the transactions response shape, one row per purchase rollup.
func TransactionsAPI(ctx context.Context, items store.PurchaseStore, userID string, limit int) ([]model.Transaction, error) {
	// Rollups group by purchase_id, so the raw item fetch must be wider than
	// the rollup limit to avoid truncating a purchase's items mid-group.
	itemLimit := limit * 8
	if itemLimit <= 0 || itemLimit > 1000 {
		itemLimit = 1000
	}
	rows, err := items.ListItems(ctx, store.ListItemsQuery{UserID: userID, Limit: itemLimit})
	if err != nil {
		return nil, err
	}

	rollups := Rollups(ctx, rows)
	if limit > 0 && len(rollups) > limit {
		rollups = rollups[:limit]
	}

	out := make([]model.Transaction, 0, len(rollups))
	for _, r := range rollups {
		out = append(out, model.Transaction{
			ID:       r.ID,
			Item:     r.ItemText,
			Amount:   r.Amount,
			Date:     r.OccurredAt,
			Category: r.Category,
		})
	}
	return out, nil
}
