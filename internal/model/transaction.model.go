package model

import "time"

// Transaction is one immutable ledger row.
type Transaction struct {
	ID                 int64         `json:"id"`
	TenantID           int64         `json:"tenant_id"`
	StoreID            int64         `json:"store_id"`
	CardID             int64         `json:"card_id"`
	CustomerID         int64         `json:"customer_id"`
	OperatorID         string        `json:"operator_id"`
	Kind               OperationKind `json:"kind"`
	Category           Category      `json:"category,omitempty"`
	SourceMethod       SourceMethod  `json:"source_method,omitempty"`
	AmountCents        int64         `json:"amount_cents"`
	CashbackCents      int64         `json:"cashback_cents"`
	RateBps            int64         `json:"rate_bps"`
	BeforeBalanceCents int64         `json:"before_balance_cents"`
	AfterBalanceCents  int64         `json:"after_balance_cents"`
	Note               string        `json:"note,omitempty"`
	PaymentReference   *string       `json:"payment_reference,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Delta is the signed balance change the row records.
func (t *Transaction) Delta() int64 {
	switch t.Kind {
	case OperationEarn:
		return t.CashbackCents
	case OperationRedeem:
		return -t.AmountCents
	default:
		return t.AmountCents
	}
}

type TransactionFilter struct {
	TenantID int64
	CardID   int64
	Limit    int // default 50
	Offset   int
}

// PurchaseTransaction is a payment created ahead of an external confirmation.
type PurchaseTransaction struct {
	ID                  int64          `json:"id"`
	TenantID            int64          `json:"tenant_id"`
	StoreID             int64          `json:"store_id"`
	CardID              int64          `json:"card_id"`
	CustomerID          int64          `json:"customer_id"`
	Reference           string         `json:"reference"`
	Purpose             PaymentPurpose `json:"purpose"`
	Category            Category       `json:"category,omitempty"`
	AmountCents         int64          `json:"amount_cents"`
	PaymentStatus       PaymentStatus  `json:"payment_status"`
	UsedAt              *time.Time     `json:"used_at,omitempty"`
	PaidAt              *time.Time     `json:"paid_at,omitempty"`
	LedgerTransactionID *int64         `json:"ledger_transaction_id,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

func (p *PurchaseTransaction) IsConsumed() bool {
	return p.PaymentStatus == PaymentStatusCompleted || p.UsedAt != nil
}
