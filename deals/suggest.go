package deals

import (
	"context"
	"sort"
	"time"

	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

// Suggest computes cheaper-merchant suggestions from the catalog: merchants
// with at least two purchases in 30 days, in an allowed category, ranked by
// projected monthly savings.
func Suggest(ctx context.Context, items store.PurchaseStore, userID string, limit int) ([]model.DealSuggestion, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -30)
	rows, err := items.ListItems(ctx, store.ListItemsQuery{UserID: userID, Since: &since, Until: &now, Limit: 100000})
	if err != nil {
		return nil, err
	}

	type merchantStats struct {
		spend    float64
		count    int
		category string
	}
	byMerchant := make(map[string]*merchantStats)
	for _, it := range rows {
		ms, ok := byMerchant[it.Merchant]
		if !ok {
			ms = &merchantStats{category: it.Category}
			byMerchant[it.Merchant] = ms
		}
		ms.spend += it.Amount()
		ms.count++
	}

	out := make([]model.DealSuggestion, 0, len(byMerchant))
	for merchant, ms := range byMerchant {
		if ms.count < 2 {
			continue
		}
		if !AllowedCategories[ms.category] {
			continue
		}
		alts, ok := Lookup(merchant)
		if !ok {
			continue
		}
		best, _ := BestAlternative(merchant)

		monthlySpend := model.Round2(ms.spend)
		monthlySavings := model.Round2(monthlySpend * best.SavingsPercent)

		allAlts := make([]model.CatalogAlternative, 0, len(alts))
		for _, a := range alts {
			allAlts = append(allAlts, model.CatalogAlternative{
				Alternative:    a.Alternative,
				SavingsPercent: a.SavingsPercent,
				Icon:           a.Icon,
			})
		}

		out = append(out, model.DealSuggestion{
			CurrentStore:         merchant,
			CurrentSpendingMonth: monthlySpend,
			AlternativeStore:     best.Alternative,
			SavingsPercent:       best.SavingsPercent,
			MonthlySavings:       monthlySavings,
			PurchaseCount:        ms.count,
			Category:             ms.category,
			AllAlternatives:      allAlts,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlySavings != out[j].MonthlySavings {
			return out[i].MonthlySavings > out[j].MonthlySavings
		}
		return out[i].CurrentStore < out[j].CurrentStore
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
