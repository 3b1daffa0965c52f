package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardTierRules() []*model.TierRule {
	return []*model.TierRule{
		{Tier: model.TierSilver, MinSpendCents: 0, BonusBps: 0, IsActive: true},
		{Tier: model.TierGold, MinSpendCents: 100_000, BonusBps: 50, IsActive: true},
		{Tier: model.TierPlatinum, MinSpendCents: 500_000, BonusBps: 100, IsActive: true},
	}
}

func TestSelectTier(t *testing.T) {
	rules := standardTierRules()

	tests := []struct {
		spend int64
		want  model.Tier
	}{
		{0, model.TierSilver},
		{99_999, model.TierSilver},
		{100_000, model.TierGold},
		{499_999, model.TierGold},
		{500_000, model.TierPlatinum},
		{90_000_000, model.TierPlatinum},
	}
	for _, tt := range tests {
		got, ok := SelectTier(rules, tt.spend)
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, "spend %d", tt.spend)
	}

	_, ok := SelectTier(rules[1:], 10)
	assert.False(t, ok, "no rule below the lowest threshold")
}

func TestValidateTierRules(t *testing.T) {
	assert.NoError(t, ValidateTierRules(standardTierRules()))
	assert.NoError(t, ValidateTierRules(nil))

	inverted := []*model.TierRule{
		{Tier: model.TierSilver, MinSpendCents: 0},
		{Tier: model.TierGold, MinSpendCents: 500_000},
		{Tier: model.TierPlatinum, MinSpendCents: 100_000},
	}
	assert.ErrorIs(t, ValidateTierRules(inverted), ErrTierRulesOrder)

	sameThreshold := []*model.TierRule{
		{Tier: model.TierSilver, MinSpendCents: 0},
		{Tier: model.TierGold, MinSpendCents: 0},
	}
	assert.ErrorIs(t, ValidateTierRules(sameThreshold), ErrTierRulesOrder)

	unknown := []*model.TierRule{{Tier: "BRONZE", MinSpendCents: 0}}
	assert.ErrorIs(t, ValidateTierRules(unknown), model.ErrInvalidTier)
}

func TestTierEvaluator_Evaluate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.Seed(t, db, testutil.WithTier(model.TierSilver, 600_000))
	testutil.SeedRules(t, db, f.TenantID, time.Now())
	ctx := context.Background()

	customers := repository.NewCustomerRepository(db)
	evaluator := NewTierEvaluator(repository.NewRuleRepository(db), customers)

	change, err := evaluator.Evaluate(ctx, f.TenantID, f.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, model.TierChange{From: model.TierSilver, To: model.TierPlatinum, Changed: true}, change)
	assert.True(t, change.Upgraded())

	customer, err := customers.Get(ctx, f.TenantID, f.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, model.TierPlatinum, customer.Tier)

	change, err = evaluator.Evaluate(ctx, f.TenantID, f.CustomerID)
	require.NoError(t, err)
	assert.False(t, change.Changed, "second evaluation is stable")
}

func TestTierEvaluator_KeepsTierWithoutRules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.Seed(t, db, testutil.WithTier(model.TierGold, 10))
	ctx := context.Background()

	evaluator := NewTierEvaluator(repository.NewRuleRepository(db), repository.NewCustomerRepository(db))
	change, err := evaluator.Evaluate(ctx, f.TenantID, f.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, model.TierGold, change.To)
	assert.False(t, change.Changed)
}

func TestTierEvaluator_InconsistentRules(t *testing.T) {
	rules := &fakeRules{tiers: map[model.Tier]*model.TierRule{
		model.TierGold:     {Tier: model.TierGold, MinSpendCents: 500_000, IsActive: true},
		model.TierPlatinum: {Tier: model.TierPlatinum, MinSpendCents: 100_000, IsActive: true},
	}}
	evaluator := NewTierEvaluator(rules, nil)

	_, err := evaluator.apply(context.Background(), 3, 1, model.TierSilver, 200_000)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, int64(3), cfgErr.TenantID)
}
