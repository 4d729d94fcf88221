package deals

import (
	"context"
	"testing"
	"time"

	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

func TestBestAlternative(t *testing.T) {
	tests := []struct {
		name     string
		merchant string
		want     string
		ok       bool
	}{
		{"picks the highest savings percent", "Whole Foods", "Aldi", true},
		{"single alternative", "Peet's Coffee", "Home brew", true},
		{"unknown merchant", "Nonexistent Shop", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BestAlternative(tt.merchant)
			if ok != tt.ok {
				t.Fatalf("BestAlternative(%q) ok = %v, want %v", tt.merchant, ok, tt.ok)
			}
			if ok && got.Alternative != tt.want {
				t.Errorf("BestAlternative(%q) = %q, want %q", tt.merchant, got.Alternative, tt.want)
			}
		})
	}
}

func TestBundlePriceFor(t *testing.T) {
	tests := []struct {
		name      string
		merchants []string
		wantName  string
		ok        bool
	}{
		{"exact match", []string{"Netflix", "HBO Max"}, "Streaming Bundle", true},
		{"order independent", []string{"HBO Max", "Netflix"}, "Streaming Bundle", true},
		{"single merchant matches the bundle that contains it", []string{"Netflix"}, "Streaming Bundle", true},
		{"no bundle covers unrelated merchants", []string{"Whole Foods"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BundlePriceFor(tt.merchants)
			if ok != tt.ok {
				t.Fatalf("BundlePriceFor(%v) ok = %v, want %v", tt.merchants, ok, tt.ok)
			}
			if ok && tt.wantName != "" && got.Name != tt.wantName {
				t.Errorf("BundlePriceFor(%v) = %q, want %q", tt.merchants, got.Name, tt.wantName)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	now := time.Now().UTC()
	AllowedCategories = map[string]bool{"Groceries": true}

	for i := 0; i < 3; i++ {
		s.Put(model.PurchaseItem{
			ItemID:   "wf" + string(rune('a'+i)),
			UserID:   "u1",
			Merchant: "Whole Foods",
			Category: "Groceries",
			Price:    40,
			Qty:      1,
			TS:       now.AddDate(0, 0, -i*5),
			Status:   model.StatusActive,
		})
	}
	// Non-grocery merchant with a catalog entry but a disallowed category.
	for i := 0; i < 3; i++ {
		s.Put(model.PurchaseItem{
			ItemID:   "nf" + string(rune('a'+i)),
			UserID:   "u1",
			Merchant: "Netflix",
			Category: "Entertainment",
			Price:    15.49,
			Qty:      1,
			TS:       now.AddDate(0, 0, -i*5),
			Status:   model.StatusActive,
		})
	}

	out, err := Suggest(context.Background(), s, "u1", 10)
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Suggest() returned %d suggestions, want 1 (category allow-list excludes Netflix)", len(out))
	}
	got := out[0]
	if got.CurrentStore != "Whole Foods" {
		t.Errorf("CurrentStore = %q, want Whole Foods", got.CurrentStore)
	}
	if got.AlternativeStore != "Aldi" {
		t.Errorf("AlternativeStore = %q, want Aldi", got.AlternativeStore)
	}
	if got.PurchaseCount != 3 {
		t.Errorf("PurchaseCount = %d, want 3", got.PurchaseCount)
	}
	wantMonthlySpend := model.Round2(120)
	if got.CurrentSpendingMonth != wantMonthlySpend {
		t.Errorf("CurrentSpendingMonth = %v, want %v", got.CurrentSpendingMonth, wantMonthlySpend)
	}
}

func TestSuggest_RequiresAtLeastTwoPurchases(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	AllowedCategories = map[string]bool{"Groceries": true}
	s.Put(model.PurchaseItem{
		ItemID: "wf1", UserID: "u1", Merchant: "Whole Foods", Category: "Groceries",
		Price: 40, Qty: 1, TS: time.Now().UTC(), Status: model.StatusActive,
	})

	out, err := Suggest(context.Background(), s, "u1", 10)
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("Suggest() = %+v, want no suggestions for a single purchase", out)
	}
}
