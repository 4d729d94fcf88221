package tips

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

func put(s *store.MemoryPurchaseStore, id, userID, merchant, name, category string, price float64, ts time.Time) {
	s.Put(model.PurchaseItem{
		ItemID:   id,
		UserID:   userID,
		Merchant: merchant,
		ItemName: name,
		Category: category,
		Price:    price,
		Qty:      1,
		TS:       ts,
		Status:   model.StatusActive,
	})
}

func TestGenerate_HighFrequencyCoffee(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		put(s, "c"+strconv.Itoa(i), "u1", "Blue Bottle Coffee", "Latte", "Coffee", 5.0, now.Add(-time.Duration(i)*24*time.Hour))
	}

	out, err := Generate(context.Background(), s, "u1", 10)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var found bool
	for _, tip := range out {
		if tip.ActionTag == "reduce_frequency" {
			found = true
			if tip.Category != "Coffee" {
				t.Errorf("Category = %q, want Coffee", tip.Category)
			}
			if tip.MonthlySavings <= 0 {
				t.Errorf("MonthlySavings = %v, want > 0", tip.MonthlySavings)
			}
		}
	}
	if !found {
		t.Fatalf("Generate() = %+v, want a high-frequency-item tip", out)
	}
}

func TestGenerate_BelowFrequencyThresholdExcluded(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		put(s, "c"+strconv.Itoa(i), "u1", "Blue Bottle Coffee", "Latte", "Coffee", 5.0, now.Add(-time.Duration(i)*24*time.Hour))
	}

	out, err := Generate(context.Background(), s, "u1", 10)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, tip := range out {
		if tip.ActionTag == "reduce_frequency" {
			t.Fatalf("did not expect a high-frequency tip with only 3 purchases, got %+v", tip)
		}
	}
}

func TestGenerate_UnderusedSubscription(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	now := time.Now().UTC()
	put(s, "s1", "u1", "HBO Max", "HBO Max subscription", "Entertainment", 15.99, now.AddDate(0, 0, -59))
	put(s, "s2", "u1", "HBO Max", "HBO Max subscription", "Entertainment", 15.99, now.AddDate(0, 0, -29))

	out, err := Generate(context.Background(), s, "u1", 10)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var found bool
	for _, tip := range out {
		if tip.ActionTag == "cancel_subscription" {
			found = true
			if tip.MonthlySavings != 15.99 {
				t.Errorf("MonthlySavings = %v, want 15.99", tip.MonthlySavings)
			}
		}
	}
	if !found {
		t.Fatalf("Generate() = %+v, want an underused-subscription tip", out)
	}
}

func TestGenerate_MergeByTitleKeepsHighestSavings(t *testing.T) {
	merged := mergeByTitle([]model.Tip{
		{Title: "Cut back on Latte", MonthlySavings: 10},
		{Title: "Cut back on Latte", MonthlySavings: 25},
		{Title: "Cut back on Latte", MonthlySavings: 5},
	})
	if len(merged) != 1 {
		t.Fatalf("mergeByTitle() returned %d tips, want 1", len(merged))
	}
	if merged[0].MonthlySavings != 25 {
		t.Errorf("MonthlySavings = %v, want 25 (the highest of the duplicates)", merged[0].MonthlySavings)
	}
}

func TestGenerate_OrderingAndLimit(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	now := time.Now().UTC()
	for i := 0; i < 6; i++ {
		put(s, "c"+strconv.Itoa(i), "u1", "Blue Bottle Coffee", "Latte", "Coffee", 5.0, now.Add(-time.Duration(i)*24*time.Hour))
	}
	put(s, "s1", "u1", "HBO Max", "HBO Max subscription", "Entertainment", 15.99, now.AddDate(0, 0, -59))
	put(s, "s2", "u1", "HBO Max", "HBO Max subscription", "Entertainment", 15.99, now.AddDate(0, 0, -29))

	out, err := Generate(context.Background(), s, "u1", 1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Generate() returned %d tips, want 1 (limit)", len(out))
	}
	// The subscription tip (15.99) outranks the coffee tip (9.00).
	if out[0].ActionTag != "cancel_subscription" {
		t.Errorf("Generate()[0] = %+v, want the higher-savings cancel_subscription tip", out[0])
	}
}
