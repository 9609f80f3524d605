package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Impression records one ad render. The ClickID is generated server-side at
// serve time and is the join key between impression, click and conversion.
type Impression struct {
	ClickID    string    `json:"click_id"`
	CreativeID int       `json:"creative_id"`
	PagePath   string    `json:"page_path"`
	CreatedAt  time.Time `json:"created_at"`
}

// Click records a visitor following an ad link together with the fraud
// verdict computed at click time. At most one Click row ever exists per
// ClickID; duplicates are silently dropped by the store.
type Click struct {
	ClickID   string    `json:"click_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	IsBot     bool      `json:"is_bot"`
	BotReason string    `json:"bot_reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversion records an affiliate network postback attributing a paid outcome
// to a click. Payout is clamped to the configured maximum before storage.
// Metadata captures the unrecognized postback query parameters verbatim.
// One conversion per click; replays are silently dropped by the store.
type Conversion struct {
	ClickID   string            `json:"click_id"`
	Payout    decimal.Decimal   `json:"payout"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// AdSettings is the singleton configuration row for the serving core.
// AdServerPercentage (0..100) drives the per-request decision whether a
// visitor is shown hosted ads at all.
type AdSettings struct {
	AdServerPercentage int       `json:"ad_server_percentage"`
	UpdatedAt          time.Time `json:"updated_at"`
}
