package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/stretchr/testify/require"
)

// Fixture is one tenant with two stores, a SILVER customer and an ACTIVE card bound to StoreID.
type Fixture struct {
	TenantID      int64
	StoreID       int64
	OtherStoreID  int64
	CustomerID    int64
	CardID        int64
	CardUID       string
	OtherTenantID int64
}

type FixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	balance int64
	status  model.CardStatus
	tier    model.Tier
	spend   int64
	linked  bool
}

func WithBalance(cents int64) FixtureOption {
	return func(c *fixtureConfig) { c.balance = cents }
}

func WithCardStatus(status model.CardStatus) FixtureOption {
	return func(c *fixtureConfig) { c.status = status }
}

func WithTier(tier model.Tier, lifetimeSpend int64) FixtureOption {
	return func(c *fixtureConfig) {
		c.tier = tier
		c.spend = lifetimeSpend
	}
}

func WithUnlinkedCard() FixtureOption {
	return func(c *fixtureConfig) { c.linked = false }
}

func Seed(t *testing.T, db *pg.DB, opts ...FixtureOption) Fixture {
	t.Helper()
	ctx := context.Background()

	cfg := fixtureConfig{balance: 1500, status: model.CardStatusActive, tier: model.TierSilver, linked: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	w := db.Write(ctx)
	tenant := &repository.TenantEntity{Name: "acme"}
	require.NoError(t, w.Create(tenant).Error)
	other := &repository.TenantEntity{Name: "globex"}
	require.NoError(t, w.Create(other).Error)

	store := &repository.StoreEntity{TenantID: tenant.ID, Name: "downtown"}
	require.NoError(t, w.Create(store).Error)
	otherStore := &repository.StoreEntity{TenantID: tenant.ID, Name: "airport"}
	require.NoError(t, w.Create(otherStore).Error)

	customer := &repository.CustomerEntity{
		TenantID:           tenant.ID,
		Name:               "Dana",
		Phone:              "+15550001111",
		NotifyChannel:      string(model.ChannelSMS),
		LifetimeSpendCents: cfg.spend,
		Tier:               string(cfg.tier),
	}
	require.NoError(t, w.Create(customer).Error)

	card := &repository.CardEntity{
		TenantID:     tenant.ID,
		StoreID:      store.ID,
		UID:          "CARD-0001",
		BalanceCents: cfg.balance,
		Status:       string(cfg.status),
	}
	if cfg.linked {
		card.CustomerID = &customer.ID
	}
	require.NoError(t, w.Create(card).Error)

	return Fixture{
		TenantID:      tenant.ID,
		StoreID:       store.ID,
		OtherStoreID:  otherStore.ID,
		CustomerID:    customer.ID,
		CardID:        card.ID,
		CardUID:       card.UID,
		OtherTenantID: other.ID,
	}
}

// SeedRules installs PURCHASE 300 bps, SILVER 0 / GOLD 50 / PLATINUM 100 bonus and one +100 bps offer.
func SeedRules(t *testing.T, db *pg.DB, tenantID int64, now time.Time) {
	t.Helper()
	ctx := context.Background()
	rules := repository.NewRuleRepository(db)

	require.NoError(t, rules.UpsertCashbackRule(ctx, &model.CashbackRule{
		TenantID: tenantID, Category: model.CategoryPurchase, RateBps: 300, IsActive: true,
	}))
	require.NoError(t, rules.UpsertCashbackRule(ctx, &model.CashbackRule{
		TenantID: tenantID, Category: model.CategoryRepair, RateBps: 150, IsActive: true,
	}))
	for _, tr := range []model.TierRule{
		{Tier: model.TierSilver, MinSpendCents: 0, BonusBps: 0},
		{Tier: model.TierGold, MinSpendCents: 100_000, BonusBps: 50},
		{Tier: model.TierPlatinum, MinSpendCents: 500_000, BonusBps: 100},
	} {
		tr.TenantID = tenantID
		tr.IsActive = true
		require.NoError(t, rules.UpsertTierRule(ctx, &tr))
	}
	require.NoError(t, rules.UpsertOffer(ctx, &model.Offer{
		TenantID:      tenantID,
		Name:          "launch-week",
		MultiplierBps: 100,
		StartAt:       now.Add(-24 * time.Hour),
		EndAt:         now.Add(24 * time.Hour),
		IsActive:      true,
	}))
}
