package repository

import (
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
)

type PurchaseTransactionEntity struct {
	ID                  int64      `db:"id"                    gorm:"primaryKey;autoIncrement;column:id"`
	TenantID            int64      `db:"tenant_id"             gorm:"column:tenant_id;not null;index"`
	StoreID             int64      `db:"store_id"              gorm:"column:store_id;not null"`
	CardID              int64      `db:"card_id"               gorm:"column:card_id;not null;index"`
	CustomerID          int64      `db:"customer_id"           gorm:"column:customer_id;not null"`
	Reference           string     `db:"reference"             gorm:"column:reference;not null;uniqueIndex"`
	Purpose             string     `db:"purpose"               gorm:"column:purpose;not null"`
	Category            string     `db:"category"              gorm:"column:category;not null;default:''"`
	AmountCents         int64      `db:"amount_cents"          gorm:"column:amount_cents;not null"`
	PaymentStatus       string     `db:"payment_status"        gorm:"column:payment_status;not null;default:'PENDING'"`
	UsedAt              *time.Time `db:"used_at"               gorm:"column:used_at"`
	PaidAt              *time.Time `db:"paid_at"               gorm:"column:paid_at"`
	LedgerTransactionID *int64     `db:"ledger_transaction_id" gorm:"column:ledger_transaction_id"`
	CreatedAt           time.Time  `db:"created_at"            gorm:"column:created_at;autoCreateTime"`
}

func (PurchaseTransactionEntity) TableName() string {
	return "purchase_transactions"
}

func toPurchaseTransactionEntity(m *model.PurchaseTransaction) *PurchaseTransactionEntity {
	if m == nil {
		return nil
	}
	return &PurchaseTransactionEntity{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		StoreID:             m.StoreID,
		CardID:              m.CardID,
		CustomerID:          m.CustomerID,
		Reference:           m.Reference,
		Purpose:             string(m.Purpose),
		Category:            string(m.Category),
		AmountCents:         m.AmountCents,
		PaymentStatus:       string(m.PaymentStatus),
		UsedAt:              m.UsedAt,
		PaidAt:              m.PaidAt,
		LedgerTransactionID: m.LedgerTransactionID,
		CreatedAt:           m.CreatedAt,
	}
}

func toPurchaseTransactionModel(e *PurchaseTransactionEntity) *model.PurchaseTransaction {
	if e == nil {
		return nil
	}
	return &model.PurchaseTransaction{
		ID:                  e.ID,
		TenantID:            e.TenantID,
		StoreID:             e.StoreID,
		CardID:              e.CardID,
		CustomerID:          e.CustomerID,
		Reference:           e.Reference,
		Purpose:             model.PaymentPurpose(e.Purpose),
		Category:            model.Category(e.Category),
		AmountCents:         e.AmountCents,
		PaymentStatus:       model.PaymentStatus(e.PaymentStatus),
		UsedAt:              e.UsedAt,
		PaidAt:              e.PaidAt,
		LedgerTransactionID: e.LedgerTransactionID,
		CreatedAt:           e.CreatedAt,
	}
}
