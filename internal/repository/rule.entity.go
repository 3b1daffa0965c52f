package repository

import (
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
)

type CashbackRuleEntity struct {
	ID       int64  `db:"id"        gorm:"primaryKey;autoIncrement;column:id"`
	TenantID int64  `db:"tenant_id" gorm:"column:tenant_id;not null;uniqueIndex:idx_cashback_rules_tenant_category,priority:1"`
	Category string `db:"category"  gorm:"column:category;not null;uniqueIndex:idx_cashback_rules_tenant_category,priority:2"`
	RateBps  int64  `db:"rate_bps"  gorm:"column:rate_bps;not null;default:0"`
	IsActive bool   `db:"is_active" gorm:"column:is_active;not null"`
}

func (CashbackRuleEntity) TableName() string {
	return "cashback_rules"
}

type TierRuleEntity struct {
	ID            int64  `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	TenantID      int64  `db:"tenant_id"       gorm:"column:tenant_id;not null;uniqueIndex:idx_tier_rules_tenant_tier,priority:1"`
	Tier          string `db:"tier"            gorm:"column:tier;not null;uniqueIndex:idx_tier_rules_tenant_tier,priority:2"`
	MinSpendCents int64  `db:"min_spend_cents" gorm:"column:min_spend_cents;not null;default:0"`
	BonusBps      int64  `db:"bonus_bps"       gorm:"column:bonus_bps;not null;default:0"`
	IsActive      bool   `db:"is_active"       gorm:"column:is_active;not null"`
}

func (TierRuleEntity) TableName() string {
	return "tier_rules"
}

type OfferEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	TenantID      int64     `db:"tenant_id"      gorm:"column:tenant_id;not null;uniqueIndex:idx_offers_tenant_name,priority:1"`
	Name          string    `db:"name"           gorm:"column:name;not null;uniqueIndex:idx_offers_tenant_name,priority:2"`
	MultiplierBps int64     `db:"multiplier_bps" gorm:"column:multiplier_bps;not null;default:0"`
	StartAt       time.Time `db:"start_at"       gorm:"column:start_at;not null"`
	EndAt         time.Time `db:"end_at"         gorm:"column:end_at;not null"`
	IsActive      bool      `db:"is_active"      gorm:"column:is_active;not null"`
}

func (OfferEntity) TableName() string {
	return "offers"
}

func toCashbackRuleModel(e *CashbackRuleEntity) *model.CashbackRule {
	if e == nil {
		return nil
	}
	return &model.CashbackRule{
		ID:       e.ID,
		TenantID: e.TenantID,
		Category: model.Category(e.Category),
		RateBps:  e.RateBps,
		IsActive: e.IsActive,
	}
}

func toTierRuleModel(e *TierRuleEntity) *model.TierRule {
	if e == nil {
		return nil
	}
	return &model.TierRule{
		ID:            e.ID,
		TenantID:      e.TenantID,
		Tier:          model.Tier(e.Tier),
		MinSpendCents: e.MinSpendCents,
		BonusBps:      e.BonusBps,
		IsActive:      e.IsActive,
	}
}

func toOfferModel(e *OfferEntity) *model.Offer {
	if e == nil {
		return nil
	}
	return &model.Offer{
		ID:            e.ID,
		TenantID:      e.TenantID,
		Name:          e.Name,
		MultiplierBps: e.MultiplierBps,
		StartAt:       e.StartAt,
		EndAt:         e.EndAt,
		IsActive:      e.IsActive,
	}
}
