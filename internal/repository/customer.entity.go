package repository

import (
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
)

type CustomerEntity struct {
	ID                 int64     `db:"id"                   gorm:"primaryKey;autoIncrement;column:id"`
	TenantID           int64     `db:"tenant_id"            gorm:"column:tenant_id;not null;index"`
	Name               string    `db:"name"                 gorm:"column:name;not null;default:''"`
	Phone              string    `db:"phone"                gorm:"column:phone;not null;default:''"`
	NotifyChannel      string    `db:"notify_channel"       gorm:"column:notify_channel;not null;default:'SMS'"`
	LifetimeSpendCents int64     `db:"lifetime_spend_cents" gorm:"column:lifetime_spend_cents;not null;default:0"`
	Tier               string    `db:"tier"                 gorm:"column:tier;not null;default:'SILVER'"`
	CreatedAt          time.Time `db:"created_at"           gorm:"column:created_at;autoCreateTime"`
}

func (CustomerEntity) TableName() string {
	return "customers"
}

func toCustomerEntity(m *model.Customer) *CustomerEntity {
	if m == nil {
		return nil
	}
	return &CustomerEntity{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		Name:               m.Name,
		Phone:              m.Phone,
		NotifyChannel:      string(m.NotifyChannel),
		LifetimeSpendCents: m.LifetimeSpendCents,
		Tier:               string(m.Tier),
		CreatedAt:          m.CreatedAt,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	if e == nil {
		return nil
	}
	return &model.Customer{
		ID:                 e.ID,
		TenantID:           e.TenantID,
		Name:               e.Name,
		Phone:              e.Phone,
		NotifyChannel:      model.NotifyChannel(e.NotifyChannel),
		LifetimeSpendCents: e.LifetimeSpendCents,
		Tier:               model.Tier(e.Tier),
		CreatedAt:          e.CreatedAt,
	}
}
