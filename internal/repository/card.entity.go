package repository

import (
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
)

type CardEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	TenantID     int64     `db:"tenant_id"     gorm:"column:tenant_id;not null;uniqueIndex:idx_cards_tenant_uid,priority:1"`
	StoreID      int64     `db:"store_id"      gorm:"column:store_id;not null;index"`
	CustomerID   *int64    `db:"customer_id"   gorm:"column:customer_id;index"`
	UID          string    `db:"uid"           gorm:"column:uid;not null;uniqueIndex:idx_cards_tenant_uid,priority:2"`
	BalanceCents int64     `db:"balance_cents" gorm:"column:balance_cents;not null;default:0;check:balance_cents >= 0"`
	Status       string    `db:"status"        gorm:"column:status;not null;default:'ACTIVE'"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `db:"updated_at"    gorm:"column:updated_at;autoUpdateTime"`
}

func (CardEntity) TableName() string {
	return "cards"
}

func toCardEntity(m *model.Card) *CardEntity {
	if m == nil {
		return nil
	}
	return &CardEntity{
		ID:           m.ID,
		TenantID:     m.TenantID,
		StoreID:      m.StoreID,
		CustomerID:   m.CustomerID,
		UID:          m.UID,
		BalanceCents: m.BalanceCents,
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toCardModel(e *CardEntity) *model.Card {
	if e == nil {
		return nil
	}
	return &model.Card{
		ID:           e.ID,
		TenantID:     e.TenantID,
		StoreID:      e.StoreID,
		CustomerID:   e.CustomerID,
		UID:          e.UID,
		BalanceCents: e.BalanceCents,
		Status:       model.CardStatus(e.Status),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}
