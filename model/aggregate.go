package model

import "time"

// TransactionRollup groups item-level rows by purchase_id: one row per
// receipt/order, with the amount summed and category/label taken by mode.
type TransactionRollup struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Merchant   string    `json:"merchant"`
	Amount     float64   `json:"amount"`
	Category   string    `json:"category"`
	NeedOrWant NeedWant  `json:"need_or_want"`
	Confidence float64   `json:"confidence"`
	OccurredAt time.Time `json:"occurred_at"`
	ItemText   string    `json:"item_text"`
	Embed      []float32 `json:"embed,omitempty"`
}

// CategoryWeekSummary groups item-level rows by (user_id, category,
// subcategory, week(ts)).
type CategoryWeekSummary struct {
	UserID      string    `json:"user_id"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	WeekStart   time.Time `json:"week_start"`

	PurchaseCount     int     `json:"purchase_count"`
	ItemCount         int     `json:"item_count"`
	TotalSpend        float64 `json:"total_spend"`
	NeedSpend         float64 `json:"need_spend"`
	WantSpend         float64 `json:"want_spend"`
	MeanConfidence    float64 `json:"mean_confidence"`
	UserLabelledCount int     `json:"user_labelled_count"`
}

// Transaction is a single row of the transactions API response, derived
// from a TransactionRollup.
type Transaction struct {
	ID       string    `json:"id"`
	Item     string    `json:"item"`
	Amount   float64   `json:"amount"`
	Date     time.Time `json:"date"`
	Category string    `json:"category"`
}
