package model

import "time"

type Card struct {
	ID           int64      `json:"id"`
	TenantID     int64      `json:"tenant_id"`
	StoreID      int64      `json:"store_id"`
	CustomerID   *int64     `json:"customer_id,omitempty"`
	UID          string     `json:"uid"`
	BalanceCents int64      `json:"balance_cents"`
	Status       CardStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (c *Card) IsActive() bool { return c.Status == CardStatusActive }

func (c *Card) IsLinked() bool { return c.CustomerID != nil && *c.CustomerID != 0 }

type Customer struct {
	ID                 int64         `json:"id"`
	TenantID           int64         `json:"tenant_id"`
	Name               string        `json:"name"`
	Phone              string        `json:"phone"`
	NotifyChannel      NotifyChannel `json:"notify_channel"`
	LifetimeSpendCents int64         `json:"lifetime_spend_cents"`
	Tier               Tier          `json:"tier"`
	CreatedAt          time.Time     `json:"created_at"`
}
