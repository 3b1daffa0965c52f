package model

import "time"

type NotificationKind string

const (
	NotificationReceipt     NotificationKind = "RECEIPT"
	NotificationTierUpgrade NotificationKind = "TIER_UPGRADE"
)

// NotificationRequest is what the ledger enqueues after commit. Delivery happens elsewhere.
type NotificationRequest struct {
	ID            string           `json:"id"`
	Kind          NotificationKind `json:"kind"`
	Channel       NotifyChannel    `json:"channel"`
	TenantID      int64            `json:"tenant_id"`
	CustomerID    int64            `json:"customer_id"`
	CardUID       string           `json:"card_uid"`
	Phone         string           `json:"phone"`
	CustomerName  string           `json:"customer_name,omitempty"`
	TransactionID int64            `json:"transaction_id,omitempty"`
	OperationKind OperationKind    `json:"operation_kind,omitempty"`
	AmountCents   int64            `json:"amount_cents,omitempty"`
	CashbackCents int64            `json:"cashback_cents,omitempty"`
	BalanceCents  int64            `json:"balance_cents"`
	FromTier      Tier             `json:"from_tier,omitempty"`
	ToTier        Tier             `json:"to_tier,omitempty"`
	RequestedAt   time.Time        `json:"requested_at"`
}
