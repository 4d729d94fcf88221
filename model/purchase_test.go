package model

import "testing"

func TestPurchaseItem_EffectiveNeedWant(t *testing.T) {
	tests := []struct {
		name     string
		user     NeedWant
		detected NeedWant
		want     NeedWant
	}{
		{"user label wins", Need, Want, Need},
		{"falls back to detected when user unset", Unset, Want, Want},
		{"falls back to detected when user empty", "", Need, Need},
		{"unset when both empty", "", "", Unset},
		{"unset when user is literal unset and detected empty", Unset, "", Unset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PurchaseItem{UserNeedWant: tt.user, DetectedNeedWant: tt.detected}
			if got := p.EffectiveNeedWant(); got != tt.want {
				t.Errorf("EffectiveNeedWant() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPurchaseItem_Amount(t *testing.T) {
	tests := []struct {
		name string
		item PurchaseItem
		want float64
	}{
		{"qty defaults to one", PurchaseItem{Price: 4.50}, 4.50},
		{"qty multiplies", PurchaseItem{Price: 2.00, Qty: 3}, 6.00},
		{"rounds the product", PurchaseItem{Price: 3.333, Qty: 1}, 3.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Amount(); got != tt.want {
				t.Errorf("Amount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestItemTextOf(t *testing.T) {
	got := ItemTextOf("Whole Foods", "Groceries", "Produce", "Bananas")
	want := "Whole Foods · Groceries · Produce · Bananas"
	if got != want {
		t.Errorf("ItemTextOf() = %q, want %q", got, want)
	}
}
