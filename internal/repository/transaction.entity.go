package repository

import (
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
)

// TransactionEntity rows are insert-only. Postgres rejects UPDATE and DELETE with a trigger.
type TransactionEntity struct {
	ID                 int64     `db:"id"                   gorm:"primaryKey;autoIncrement;column:id"`
	TenantID           int64     `db:"tenant_id"            gorm:"column:tenant_id;not null;index:idx_transactions_tenant_card,priority:1"`
	StoreID            int64     `db:"store_id"             gorm:"column:store_id;not null"`
	CardID             int64     `db:"card_id"              gorm:"column:card_id;not null;index:idx_transactions_tenant_card,priority:2"`
	CustomerID         int64     `db:"customer_id"          gorm:"column:customer_id;not null;index"`
	OperatorID         string    `db:"operator_id"          gorm:"column:operator_id;not null"`
	Kind               string    `db:"kind"                 gorm:"column:kind;not null"`
	Category           string    `db:"category"             gorm:"column:category;not null;default:''"`
	SourceMethod       string    `db:"source_method"        gorm:"column:source_method;not null;default:''"`
	AmountCents        int64     `db:"amount_cents"         gorm:"column:amount_cents;not null"`
	CashbackCents      int64     `db:"cashback_cents"       gorm:"column:cashback_cents;not null;default:0"`
	RateBps            int64     `db:"rate_bps"             gorm:"column:rate_bps;not null;default:0"`
	BeforeBalanceCents int64     `db:"before_balance_cents" gorm:"column:before_balance_cents;not null"`
	AfterBalanceCents  int64     `db:"after_balance_cents"  gorm:"column:after_balance_cents;not null"`
	Note               string    `db:"note"                 gorm:"column:note;not null;default:''"`
	PaymentReference   *string   `db:"payment_reference"    gorm:"column:payment_reference;uniqueIndex"`
	CreatedAt          time.Time `db:"created_at"           gorm:"column:created_at;autoCreateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		StoreID:            m.StoreID,
		CardID:             m.CardID,
		CustomerID:         m.CustomerID,
		OperatorID:         m.OperatorID,
		Kind:               string(m.Kind),
		Category:           string(m.Category),
		SourceMethod:       string(m.SourceMethod),
		AmountCents:        m.AmountCents,
		CashbackCents:      m.CashbackCents,
		RateBps:            m.RateBps,
		BeforeBalanceCents: m.BeforeBalanceCents,
		AfterBalanceCents:  m.AfterBalanceCents,
		Note:               m.Note,
		PaymentReference:   m.PaymentReference,
		CreatedAt:          m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:                 e.ID,
		TenantID:           e.TenantID,
		StoreID:            e.StoreID,
		CardID:             e.CardID,
		CustomerID:         e.CustomerID,
		OperatorID:         e.OperatorID,
		Kind:               model.OperationKind(e.Kind),
		Category:           model.Category(e.Category),
		SourceMethod:       model.SourceMethod(e.SourceMethod),
		AmountCents:        e.AmountCents,
		CashbackCents:      e.CashbackCents,
		RateBps:            e.RateBps,
		BeforeBalanceCents: e.BeforeBalanceCents,
		AfterBalanceCents:  e.AfterBalanceCents,
		Note:               e.Note,
		PaymentReference:   e.PaymentReference,
		CreatedAt:          e.CreatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
