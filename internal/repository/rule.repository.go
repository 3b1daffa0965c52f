package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	perrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RuleRepository struct {
	*pg.DB
}

func NewRuleRepository(db *pg.DB) *RuleRepository {
	return &RuleRepository{
		db,
	}
}

func (r *RuleRepository) CashbackRule(ctx context.Context, tenantID int64, category model.Category) (*model.CashbackRule, error) {
	var entity CashbackRuleEntity
	err := r.Read(ctx).
		Where("tenant_id = ? AND category = ?", tenantID, string(category)).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, perrors.Wrap(err, "get cashback rule")
	}
	return toCashbackRuleModel(&entity), nil
}

func (r *RuleRepository) TierRule(ctx context.Context, tenantID int64, tier model.Tier) (*model.TierRule, error) {
	var entity TierRuleEntity
	err := r.Read(ctx).
		Where("tenant_id = ? AND tier = ?", tenantID, string(tier)).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, perrors.Wrap(err, "get tier rule")
	}
	return toTierRuleModel(&entity), nil
}

// ActiveTierRules returns active rules ordered by threshold, lowest first.
func (r *RuleRepository) ActiveTierRules(ctx context.Context, tenantID int64) ([]*model.TierRule, error) {
	var entities []*TierRuleEntity
	err := r.Read(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("min_spend_cents ASC").
		Find(&entities).Error
	if err != nil {
		return nil, perrors.Wrap(err, "list tier rules")
	}
	rules := make([]*model.TierRule, len(entities))
	for i, e := range entities {
		rules[i] = toTierRuleModel(e)
	}
	return rules, nil
}

// ActiveOffers returns offers flagged active. The time window is checked by the caller.
func (r *RuleRepository) ActiveOffers(ctx context.Context, tenantID int64) ([]*model.Offer, error) {
	var entities []*OfferEntity
	err := r.Read(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, perrors.Wrap(err, "list offers")
	}
	offers := make([]*model.Offer, len(entities))
	for i, e := range entities {
		offers[i] = toOfferModel(e)
	}
	return offers, nil
}

func (r *RuleRepository) UpsertCashbackRule(ctx context.Context, rule *model.CashbackRule) error {
	entity := &CashbackRuleEntity{
		TenantID: rule.TenantID,
		Category: string(rule.Category),
		RateBps:  rule.RateBps,
		IsActive: rule.IsActive,
	}
	err := r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate_bps", "is_active"}),
	}).Create(entity).Error
	return perrors.Wrap(err, "upsert cashback rule")
}

func (r *RuleRepository) UpsertTierRule(ctx context.Context, rule *model.TierRule) error {
	entity := &TierRuleEntity{
		TenantID:      rule.TenantID,
		Tier:          string(rule.Tier),
		MinSpendCents: rule.MinSpendCents,
		BonusBps:      rule.BonusBps,
		IsActive:      rule.IsActive,
	}
	err := r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "tier"}},
		DoUpdates: clause.AssignmentColumns([]string{"min_spend_cents", "bonus_bps", "is_active"}),
	}).Create(entity).Error
	return perrors.Wrap(err, "upsert tier rule")
}

func (r *RuleRepository) UpsertOffer(ctx context.Context, offer *model.Offer) error {
	entity := &OfferEntity{
		TenantID:      offer.TenantID,
		Name:          offer.Name,
		MultiplierBps: offer.MultiplierBps,
		StartAt:       offer.StartAt,
		EndAt:         offer.EndAt,
		IsActive:      offer.IsActive,
	}
	err := r.Write(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"multiplier_bps", "start_at", "end_at", "is_active"}),
	}).Create(entity).Error
	return perrors.Wrap(err, "upsert offer")
}
