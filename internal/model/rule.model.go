package model

import "time"

type CashbackRule struct {
	ID       int64    `json:"id"`
	TenantID int64    `json:"tenant_id"`
	Category Category `json:"category"`
	RateBps  int64    `json:"rate_bps"`
	IsActive bool     `json:"is_active"`
}

type TierRule struct {
	ID            int64 `json:"id"`
	TenantID      int64 `json:"tenant_id"`
	Tier          Tier  `json:"tier"`
	MinSpendCents int64 `json:"min_spend_cents"`
	BonusBps      int64 `json:"bonus_bps"`
	IsActive      bool  `json:"is_active"`
}

type Offer struct {
	ID            int64     `json:"id"`
	TenantID      int64     `json:"tenant_id"`
	Name          string    `json:"name"`
	MultiplierBps int64     `json:"multiplier_bps"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	IsActive      bool      `json:"is_active"`
}

// ActiveAt reports whether the offer applies at now. The window is [StartAt, EndAt).
func (o Offer) ActiveAt(now time.Time) bool {
	if !o.IsActive {
		return false
	}
	return !now.Before(o.StartAt) && now.Before(o.EndAt)
}
