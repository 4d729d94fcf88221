// Package tips implements the rule-based tip engine: four independent
// detectors over a 60-day active window, merged and deduplicated by title.
package tips

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/becomeliminal/analytics-core/deals"
	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

const window = 60 * 24 * time.Hour

var highFreqCategories = map[string]bool{"Coffee": true, "Food": true}

// Generate runs D1-D4 over the user's 60-day active window and returns up to
// n tips, deduplicated by title and ordered by monthly_savings desc.
func Generate(ctx context.Context, items store.PurchaseStore, userID string, n int) ([]model.Tip, error) {
	now := time.Now().UTC()
	since := now.Add(-window)
	rows, err := items.ListItems(ctx, store.ListItemsQuery{UserID: userID, Since: &since, Until: &now, Limit: 100000})
	if err != nil {
		return nil, err
	}

	all := make([]model.Tip, 0)
	all = append(all, highFrequencyItem(rows)...)
	all = append(all, categoryOverspend(rows)...)
	all = append(all, underusedSubscription(rows)...)
	all = append(all, bundleOpportunity(rows)...)

	merged := mergeByTitle(all)
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].MonthlySavings != merged[j].MonthlySavings {
			return merged[i].MonthlySavings > merged[j].MonthlySavings
		}
		return merged[i].Title < merged[j].Title
	})
	if n > 0 && len(merged) > n {
		merged = merged[:n]
	}
	return merged, nil
}

func mergeByTitle(tips []model.Tip) []model.Tip {
	best := make(map[string]model.Tip, len(tips))
	order := make([]string, 0, len(tips))
	for _, t := range tips {
		existing, ok := best[t.Title]
		if !ok {
			order = append(order, t.Title)
			best[t.Title] = t
			continue
		}
		if t.MonthlySavings > existing.MonthlySavings {
			best[t.Title] = t
		}
	}
	out := make([]model.Tip, 0, len(order))
	for _, title := range order {
		out = append(out, best[title])
	}
	return out
}

func monthlyFactor() float64 {
	return 30.0 / 60.0
}

// highFrequencyItem is D1: item_name with >=4 purchases in 60 days and
// category in {Coffee, Food}.
func highFrequencyItem(rows []model.PurchaseItem) []model.Tip {
	type group struct {
		spend    float64
		count    int
		category string
		name     string
	}
	byName := make(map[string]*group)
	order := make([]string, 0)
	for _, it := range rows {
		if !highFreqCategories[it.Category] {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(it.ItemName))
		g, ok := byName[key]
		if !ok {
			g = &group{category: it.Category, name: it.ItemName}
			byName[key] = g
			order = append(order, key)
		}
		g.spend += it.Amount()
		g.count++
	}

	out := make([]model.Tip, 0)
	for _, key := range order {
		g := byName[key]
		if g.count < 4 {
			continue
		}
		monthlySpend := model.Round2(g.spend * monthlyFactor())
		savings := model.Round2(monthlySpend * 0.60)
		out = append(out, model.Tip{
			Icon:           "☕",
			Title:          "Cut back on " + g.name,
			Subtitle:       "Frequent purchase detected",
			Description:    "You've bought " + g.name + " " + strconv.Itoa(g.count) + " times in the last 60 days.",
			MonthlySavings: savings,
			ActionTag:      "reduce_frequency",
			Category:       g.category,
		})
	}
	return out
}

// categoryOverspend is D2: top 3 categories by 60-day spend exceeding the
// median by at least 50%.
func categoryOverspend(rows []model.PurchaseItem) []model.Tip {
	spendByCategory := make(map[string]float64)
	for _, it := range rows {
		spendByCategory[it.Category] += it.Amount()
	}
	if len(spendByCategory) == 0 {
		return nil
	}

	categories := make([]string, 0, len(spendByCategory))
	values := make([]float64, 0, len(spendByCategory))
	for c, v := range spendByCategory {
		categories = append(categories, c)
		values = append(values, v)
	}
	sort.Sort(sort.Reverse(byValue{categories, values}))

	med := median(values)
	if med <= 0 {
		return nil
	}

	out := make([]model.Tip, 0, 3)
	for i := 0; i < len(categories) && i < 3; i++ {
		v := values[i]
		if v < med*1.5 {
			continue
		}
		monthlySpend := model.Round2(v * monthlyFactor())
		savings := model.Round2(monthlySpend * 0.30)
		out = append(out, model.Tip{
			Icon:           "📊",
			Title:          categories[i] + " spending is high",
			Subtitle:       "Category overspend detected",
			Description:    "Your " + categories[i] + " spend is well above your typical category spend.",
			MonthlySavings: savings,
			ActionTag:      "review_category",
			Category:       categories[i],
		})
	}
	return out
}

type byValue struct {
	keys   []string
	values []float64
}

func (b byValue) Len() int           { return len(b.values) }
func (b byValue) Less(i, j int) bool { return b.values[i] < b.values[j] }
func (b byValue) Swap(i, j int) {
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
	b.values[i], b.values[j] = b.values[j], b.values[i]
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// underusedSubscription is D3: (merchant, price) recurring >=2 times with
// 28-32 day inter-arrival, where the merchant's 30-day overall transaction
// count is <=4.
func underusedSubscription(rows []model.PurchaseItem) []model.Tip {
	type key struct {
		merchant string
		price    float64
	}
	byKey := make(map[key][]time.Time)
	order := make([]key, 0)
	merchantCount30d := make(map[string]int)

	now := time.Now().UTC()
	cutoff30 := now.AddDate(0, 0, -30)
	for _, it := range rows {
		k := key{it.Merchant, it.Price}
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], it.TS)
		if !it.TS.Before(cutoff30) {
			merchantCount30d[it.Merchant]++
		}
	}

	out := make([]model.Tip, 0)
	for _, k := range order {
		times := byKey[k]
		if len(times) < 2 {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

		isSubscription := false
		for i := 0; i < len(times)-1; i++ {
			days := times[i+1].Sub(times[i]).Hours() / 24
			if days >= 28 && days <= 32 {
				isSubscription = true
				break
			}
		}
		if !isSubscription {
			continue
		}
		if merchantCount30d[k.merchant] > 4 {
			continue
		}

		out = append(out, model.Tip{
			Icon:           "🔁",
			Title:          "Underused subscription: " + k.merchant,
			Subtitle:       "Low recent activity",
			Description:    "You're paying for " + k.merchant + " but haven't used it much lately.",
			MonthlySavings: model.Round2(k.price),
			ActionTag:      "cancel_subscription",
			Category:       "Subscriptions",
		})
	}
	return out
}

// bundleOpportunity is D4: >=2 active Entertainment subscriptions whose
// combined monthly cost exceeds a named bundle's price.
func bundleOpportunity(rows []model.PurchaseItem) []model.Tip {
	type key struct {
		merchant string
		price    float64
	}
	byKey := make(map[key][]time.Time)
	merchantCategory := make(map[string]string)
	for _, it := range rows {
		merchantCategory[it.Merchant] = it.Category
		byKey[key{it.Merchant, it.Price}] = append(byKey[key{it.Merchant, it.Price}], it.TS)
	}

	subscriptionMerchants := make(map[string]float64)
	for k, times := range byKey {
		if len(times) < 2 || merchantCategory[k.merchant] != "Entertainment" {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		for i := 0; i < len(times)-1; i++ {
			days := times[i+1].Sub(times[i]).Hours() / 24
			if days >= 28 && days <= 32 {
				subscriptionMerchants[k.merchant] = k.price
				break
			}
		}
	}

	if len(subscriptionMerchants) < 2 {
		return nil
	}

	merchants := make([]string, 0, len(subscriptionMerchants))
	var combined float64
	for m, p := range subscriptionMerchants {
		merchants = append(merchants, m)
		combined += p
	}
	sort.Strings(merchants)

	bundle, ok := deals.BundlePriceFor(merchants)
	if !ok || combined <= bundle.Price {
		return nil
	}

	return []model.Tip{{
		Icon:           "📦",
		Title:          "Bundle opportunity: " + bundle.Name,
		Subtitle:       "Combine subscriptions to save",
		Description:    "Switching to " + bundle.Name + " would cover " + strings.Join(merchants, " + ") + " for less.",
		MonthlySavings: model.Round2(combined - bundle.Price),
		ActionTag:      "switch_bundle",
		Category:       "Entertainment",
	}}
}
