// Package model defines the entities and value types of the analytics core.
package model

import "time"

// NeedWant is a classifier label for a purchase.
type NeedWant string

const (
	Need  NeedWant = "need"
	Want  NeedWant = "want"
	Unset NeedWant = "unset"
)

// Status is the lifecycle state of a PurchaseItem.
type Status string

const (
	StatusActive   Status = "active"
	StatusRefunded Status = "refunded"
	StatusReversed Status = "reversed"
)

// Location is a structured buyer location. It never carries coordinates.
type Location struct {
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code,omitempty"`
}

// PurchaseItem is a single item-level purchase record. It is append-only:
// once inserted, only Status and UserNeedWant may change.
type PurchaseItem struct {
	ItemID     string `json:"item_id"`
	PurchaseID string `json:"purchase_id"`
	UserID     string `json:"user_id"`

	Merchant    string `json:"merchant"`
	ItemName    string `json:"item_name"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`

	// ItemText is the canonical "merchant · category · subcategory · item_name" form.
	ItemText string `json:"item_text"`

	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`

	TS time.Time `json:"ts"`

	DetectedNeedWant NeedWant `json:"detected_needwant"`
	UserNeedWant     NeedWant `json:"user_needwant"`
	Confidence       float64  `json:"confidence"`

	BuyerLocation Location `json:"buyer_location"`

	// ItemEmbed is an optional fixed-length embedding vector. The core consumes
	// it passively — it is produced by an external embedding service.
	ItemEmbed []float32 `json:"item_embed,omitempty"`

	Status Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// EffectiveNeedWant returns UserNeedWant if set, else DetectedNeedWant, else Unset.
func (p PurchaseItem) EffectiveNeedWant() NeedWant {
	if p.UserNeedWant != "" && p.UserNeedWant != Unset {
		return p.UserNeedWant
	}
	if p.DetectedNeedWant != "" {
		return p.DetectedNeedWant
	}
	return Unset
}

// Amount returns the line total price*qty.
func (p PurchaseItem) Amount() float64 {
	qty := p.Qty
	if qty == 0 {
		qty = 1
	}
	return Round2(p.Price * qty)
}

// ItemTextOf builds the canonical normalised form used for embedding/matching.
func ItemTextOf(merchant, category, subcategory, itemName string) string {
	return merchant + " · " + category + " · " + subcategory + " · " + itemName
}
