package predict

import (
	"context"
	"testing"
	"time"

	"github.com/becomeliminal/analytics-core/model"
	"github.com/becomeliminal/analytics-core/store"
)

func putItem(s *store.MemoryPurchaseStore, userID, name, category string, price float64, ts time.Time) {
	s.Put(model.PurchaseItem{
		ItemID:   name + "-" + ts.Format(time.RFC3339),
		UserID:   userID,
		ItemName: name,
		Category: category,
		Price:    price,
		Qty:      1,
		TS:       ts,
		Status:   model.StatusActive,
	})
}

func TestPredict_DailyCoffee(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		putItem(s, "u1", "Latte", "Coffee", 4.5, base.AddDate(0, 0, i))
	}

	out, err := Predict(context.Background(), s, "u1", 5)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Predict() returned %d predictions, want 1", len(out))
	}
	p := out[0]
	if p.Item != "Latte" {
		t.Errorf("Item = %q, want Latte", p.Item)
	}
	if p.Samples != 10 {
		t.Errorf("Samples = %d, want 10", p.Samples)
	}
	if p.AvgIntervalDays != 1 {
		t.Errorf("AvgIntervalDays = %v, want 1", p.AvgIntervalDays)
	}
	if p.Confidence < 0.5 {
		t.Errorf("Confidence = %v, want >= 0.5 for a perfectly regular series", p.Confidence)
	}
	wantNext := base.AddDate(0, 0, 9).AddDate(0, 0, 1)
	if !p.NextTime.Equal(wantNext) {
		t.Errorf("NextTime = %v, want %v", p.NextTime, wantNext)
	}
}

func TestPredict_LowConfidenceExcluded(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Two purchases, wildly irregular spacing relative to itself isn't
	// possible with only one interval, so use three with a very uneven gap.
	putItem(s, "u1", "Netflix", "Entertainment", 15.49, base)
	putItem(s, "u1", "Netflix", "Entertainment", 15.49, base.AddDate(0, 0, 3))
	putItem(s, "u1", "Netflix", "Entertainment", 15.49, base.AddDate(0, 0, 90))

	out, err := Predict(context.Background(), s, "u1", 5)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for _, p := range out {
		if p.Item == "Netflix" {
			t.Fatalf("expected Netflix prediction to be dropped for low confidence, got %+v", p)
		}
	}
}

func TestPredict_RequiresAtLeastTwoPurchases(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	putItem(s, "u1", "Widget", "Misc", 9.99, time.Now().UTC())

	out, err := Predict(context.Background(), s, "u1", 5)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("Predict() = %+v, want no predictions for a single purchase", out)
	}
}

func TestPredict_SubDailyIntervalsForecastDaily(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	putItem(s, "u1", "Espresso", "Coffee", 3.0, base)
	putItem(s, "u1", "Espresso", "Coffee", 3.0, base.Add(12*time.Hour))

	out, err := Predict(context.Background(), s, "u1", 5)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Predict() returned %d predictions, want 1", len(out))
	}
	p := out[0]
	if p.AvgIntervalDays != 1 {
		t.Errorf("AvgIntervalDays = %v, want clamped to 1", p.AvgIntervalDays)
	}
	wantNext := base.Add(12 * time.Hour).AddDate(0, 0, 1)
	if !p.NextTime.Equal(wantNext) {
		t.Errorf("NextTime = %v, want %v (one day after the last purchase)", p.NextTime, wantNext)
	}
}

func TestPredict_OrderingAndLimit(t *testing.T) {
	s := store.NewMemoryPurchaseStore()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		putItem(s, "u1", "Coffee", "Coffee", 4.0, base.AddDate(0, 0, i*2))
	}
	for i := 0; i < 6; i++ {
		putItem(s, "u1", "Groceries run", "Groceries", 50.0, base.AddDate(0, 0, i*7))
	}

	out, err := Predict(context.Background(), s, "u1", 1)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Predict() returned %d predictions, want 1 (limit)", len(out))
	}
	if out[0].NextTime.After(base.AddDate(0, 0, 12)) {
		t.Errorf("expected the sooner-due item first, got %+v", out[0])
	}
}
