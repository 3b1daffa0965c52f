package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleRepository_CashbackRule(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)
	ctx := context.Background()
	s := seedCard(t, db, 0)

	_, err := repo.CashbackRule(ctx, s.tenantID, model.CategoryPurchase)
	assert.ErrorIs(t, err, ErrRuleNotFound)

	require.NoError(t, repo.UpsertCashbackRule(ctx, &model.CashbackRule{
		TenantID: s.tenantID, Category: model.CategoryPurchase, RateBps: 300, IsActive: true,
	}))
	require.NoError(t, repo.UpsertCashbackRule(ctx, &model.CashbackRule{
		TenantID: s.tenantID, Category: model.CategoryPurchase, RateBps: 250, IsActive: false,
	}))

	rule, err := repo.CashbackRule(ctx, s.tenantID, model.CategoryPurchase)
	require.NoError(t, err)
	assert.Equal(t, int64(250), rule.RateBps)
	assert.False(t, rule.IsActive)

	_, err = repo.CashbackRule(ctx, s.tenantID+1, model.CategoryPurchase)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestRuleRepository_ActiveTierRules(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)
	ctx := context.Background()
	s := seedCard(t, db, 0)

	for _, r := range []model.TierRule{
		{Tier: model.TierPlatinum, MinSpendCents: 500_000, BonusBps: 100, IsActive: true},
		{Tier: model.TierSilver, MinSpendCents: 0, BonusBps: 0, IsActive: true},
		{Tier: model.TierGold, MinSpendCents: 100_000, BonusBps: 50, IsActive: false},
	} {
		r.TenantID = s.tenantID
		require.NoError(t, repo.UpsertTierRule(ctx, &r))
	}

	rules, err := repo.ActiveTierRules(ctx, s.tenantID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, model.TierSilver, rules[0].Tier)
	assert.Equal(t, model.TierPlatinum, rules[1].Tier)

	gold, err := repo.TierRule(ctx, s.tenantID, model.TierGold)
	require.NoError(t, err)
	assert.False(t, gold.IsActive)
}

func TestRuleRepository_ActiveOffers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRuleRepository(db)
	ctx := context.Background()
	s := seedCard(t, db, 0)
	now := time.Now().UTC()

	require.NoError(t, repo.UpsertOffer(ctx, &model.Offer{
		TenantID: s.tenantID, Name: "weekend", MultiplierBps: 100,
		StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour), IsActive: true,
	}))
	require.NoError(t, repo.UpsertOffer(ctx, &model.Offer{
		TenantID: s.tenantID, Name: "paused", MultiplierBps: 500,
		StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour), IsActive: false,
	}))
	// same name updates in place
	require.NoError(t, repo.UpsertOffer(ctx, &model.Offer{
		TenantID: s.tenantID, Name: "weekend", MultiplierBps: 150,
		StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour), IsActive: true,
	}))

	offers, err := repo.ActiveOffers(ctx, s.tenantID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, int64(150), offers[0].MultiplierBps)
	assert.True(t, offers[0].ActiveAt(now))
}
