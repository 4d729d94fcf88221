package model

import "time"

// Channel distinguishes where a cheaper alternative was found.
type Channel string

const (
	ChannelLocal  Channel = "local"
	ChannelOnline Channel = "online"
)

// Finding is a validated cheaper-substitute record for a single purchased item.
type Finding struct {
	ItemName            string  `json:"item_name"`
	OriginalPrice       float64 `json:"original_price"`
	OriginalMerchant    string  `json:"original_merchant"`
	AlternativeMerchant string  `json:"alternative_merchant"`
	AlternativePrice    float64 `json:"alternative_price"`
	ShippingCost        float64 `json:"shipping_cost"`
	TaxEstimate         float64 `json:"tax_estimate"`
	TotalLandedCost     float64 `json:"total_landed_cost"`
	TotalSavings        float64 `json:"total_savings"`
	URL                 string  `json:"url"`
	Notes               string  `json:"notes,omitempty"`
	Channel             Channel `json:"channel"`
	Confidence          float64 `json:"confidence"`
}

// WeeklyReport is the unique-per-(user_id, week_start) outcome of one
// Weekly Suggester run.
type WeeklyReport struct {
	ReportID  string    `json:"report_id"`
	UserID    string    `json:"user_id"`
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`

	Location Location `json:"location"`

	ItemsAnalyzed         int       `json:"items_analyzed"`
	ItemsWithAlternatives int       `json:"items_with_alternatives"`
	TotalSavings          float64   `json:"total_savings"`
	Findings              []Finding `json:"findings"`

	MCPCallsMade     int   `json:"mcp_calls_made"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`

	// Notes carries a terminal parse_error explanation when findings are
	// empty because parsing failed rather than because none were found.
	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Prediction is a forecast of the next occurrence of a recurring item.
type Prediction struct {
	Item            string    `json:"item"`
	Category        string    `json:"category"`
	NextTime        time.Time `json:"next_time"`
	LastTime        time.Time `json:"last_time"`
	AvgIntervalDays float64   `json:"avg_interval_days"`
	Samples         int       `json:"samples"`
	Confidence      float64   `json:"confidence"`
}

// Tip is a rule-based spending recommendation.
type Tip struct {
	Icon           string  `json:"icon"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	Description    string  `json:"description"`
	MonthlySavings float64 `json:"monthly_savings"`
	ActionTag      string  `json:"action_tag"`
	Category       string  `json:"category"`
}

// DealSuggestion is a cheaper-merchant recommendation from the static catalog.
type DealSuggestion struct {
	CurrentStore         string               `json:"current_store"`
	CurrentSpendingMonth float64              `json:"current_spending_month"`
	AlternativeStore     string               `json:"alternative_store"`
	SavingsPercent       float64              `json:"savings_percent"`
	MonthlySavings       float64              `json:"monthly_savings"`
	PurchaseCount        int                  `json:"purchase_count"`
	Category             string               `json:"category"`
	AllAlternatives      []CatalogAlternative `json:"all_alternatives"`
}

// CatalogAlternative is one entry of the static deal catalog for a merchant.
type CatalogAlternative struct {
	Alternative    string  `json:"alternative"`
	SavingsPercent float64 `json:"savings_percent"`
	Icon           string  `json:"icon"`
}
