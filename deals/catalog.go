// Package deals holds the static, versioned deal catalog and the
// suggest_deals projection over it. The catalog is a pure reference table:
// editing it means shipping a new build, never a runtime mutation.
package deals

// Alternative is one cheaper-merchant option for a given merchant.
type Alternative struct {
	Alternative    string
	SavingsPercent float64
	Icon           string
}

// Bundle names a set of merchants whose combined subscription cost can be
// replaced by a single bundle price (used by tips D4).
type Bundle struct {
	Name       string
	Components []string
	Price      float64
}

// CatalogVersion identifies the deployed catalog snapshot.
const CatalogVersion = "2026.1"

// catalog maps merchant -> ordered cheaper alternatives.
var catalog = map[string][]Alternative{
	"Whole Foods": {
		{Alternative: "Aldi", SavingsPercent: 0.35, Icon: "🛒"},
		{Alternative: "Trader Joe's", SavingsPercent: 0.20, Icon: "🛍️"},
	},
	"Blue Bottle Coffee": {
		{Alternative: "Home brew", SavingsPercent: 0.70, Icon: "☕"},
		{Alternative: "Dunkin'", SavingsPercent: 0.45, Icon: "🍩"},
	},
	"Safeway": {
		{Alternative: "Aldi", SavingsPercent: 0.30, Icon: "🛒"},
		{Alternative: "Costco", SavingsPercent: 0.22, Icon: "📦"},
	},
	"Peet's Coffee": {
		{Alternative: "Home brew", SavingsPercent: 0.65, Icon: "☕"},
	},
	"Netflix": {
		{Alternative: "Netflix (ad-supported)", SavingsPercent: 0.40, Icon: "📺"},
	},
	"HBO Max": {
		{Alternative: "HBO Max (ad-supported)", SavingsPercent: 0.35, Icon: "📺"},
	},
	"Whole Paycheck Market": {
		{Alternative: "Aldi", SavingsPercent: 0.38, Icon: "🛒"},
	},
}

// bundles lists named combinations that beat buying their components separately.
var bundles = []Bundle{
	{Name: "Streaming Bundle", Components: []string{"Netflix", "HBO Max"}, Price: 16.99},
	{Name: "Disney Bundle", Components: []string{"Disney+", "Hulu", "ESPN+"}, Price: 14.99},
}

// AllowedCategories is the configured category allow-list for suggest_deals.
// Overridable via config for deployments that want it wider.
var AllowedCategories = map[string]bool{
	"Groceries": true,
}

// Lookup returns the catalog entry for a merchant, if any.
func Lookup(merchant string) ([]Alternative, bool) {
	alts, ok := catalog[merchant]
	return alts, ok
}

// Bundles returns the configured bundle list.
func Bundles() []Bundle {
	return bundles
}

// BestAlternative returns the catalog alternative with the highest savings
// percent for merchant, or ok=false if the merchant isn't catalogued.
func BestAlternative(merchant string) (Alternative, bool) {
	alts, ok := catalog[merchant]
	if !ok || len(alts) == 0 {
		return Alternative{}, false
	}
	best := alts[0]
	for _, a := range alts[1:] {
		if a.SavingsPercent > best.SavingsPercent {
			best = a
		}
	}
	return best, true
}

// BundlePriceFor returns the cheapest bundle price covering all of the given
// merchants (subset match), or ok=false if no bundle covers them.
func BundlePriceFor(merchants []string) (Bundle, bool) {
	want := make(map[string]bool, len(merchants))
	for _, m := range merchants {
		want[m] = true
	}

	var best Bundle
	found := false
	for _, b := range bundles {
		covers := true
		for _, m := range merchants {
			has := false
			for _, c := range b.Components {
				if c == m {
					has = true
					break
				}
			}
			if !has {
				covers = false
				break
			}
		}
		if covers && (!found || b.Price < best.Price) {
			best = b
			found = true
		}
	}
	return best, found
}
