// Package rules loads per-tenant cashback, tier and offer configuration from YAML files.
package rules

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/ledger"
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	perrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type File struct {
	Cashback []CashbackEntry `yaml:"cashback"`
	Tiers    []TierEntry     `yaml:"tiers"`
	Offers   []OfferEntry    `yaml:"offers"`
}

type CashbackEntry struct {
	Category string `yaml:"category"`
	RateBps  int64  `yaml:"rate_bps"`
	Active   *bool  `yaml:"active"`
}

type TierEntry struct {
	Tier          string `yaml:"tier"`
	MinSpendCents int64  `yaml:"min_spend_cents"`
	BonusBps      int64  `yaml:"bonus_bps"`
	Active        *bool  `yaml:"active"`
}

type OfferEntry struct {
	Name          string    `yaml:"name"`
	MultiplierBps int64     `yaml:"multiplier_bps"`
	StartAt       time.Time `yaml:"start_at"`
	EndAt         time.Time `yaml:"end_at"`
	Active        *bool     `yaml:"active"`
}

type Store interface {
	UpsertCashbackRule(ctx context.Context, rule *model.CashbackRule) error
	UpsertTierRule(ctx context.Context, rule *model.TierRule) error
	UpsertOffer(ctx context.Context, offer *model.Offer) error
	ActiveTierRules(ctx context.Context, tenantID int64) ([]*model.TierRule, error)
}

type Summary struct {
	CashbackRules int
	TierRules     int
	Offers        int
}

// Set is a validated rule file bound to one tenant.
type Set struct {
	Cashback []*model.CashbackRule
	Tiers    []*model.TierRule
	Offers   []*model.Offer
}

// Parse decodes a rule file. Unknown keys are rejected so typos do not silently drop a rule.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, perrors.Wrap(err, "decode rule file")
	}
	return &f, nil
}

func active(v *bool) bool {
	return v == nil || *v
}

// Build validates every entry and converts the file into rule models for tenantID.
func (f *File) Build(tenantID int64) (*Set, error) {
	set := &Set{}
	seenCategory := make(map[model.Category]bool)
	for i, e := range f.Cashback {
		category, err := model.ParseCategory(e.Category)
		if err != nil {
			return nil, fmt.Errorf("cashback[%d]: %w", i, err)
		}
		if seenCategory[category] {
			return nil, fmt.Errorf("cashback[%d]: category %s is defined twice", i, category)
		}
		seenCategory[category] = true
		if e.RateBps < 0 {
			return nil, fmt.Errorf("cashback[%d]: %w", i, ledger.ErrNegativeRate)
		}
		set.Cashback = append(set.Cashback, &model.CashbackRule{
			TenantID: tenantID,
			Category: category,
			RateBps:  e.RateBps,
			IsActive: active(e.Active),
		})
	}

	var activeTiers []*model.TierRule
	for i, e := range f.Tiers {
		tier, err := model.ParseTier(e.Tier)
		if err != nil {
			return nil, fmt.Errorf("tiers[%d]: %w", i, err)
		}
		if e.BonusBps < 0 {
			return nil, fmt.Errorf("tiers[%d]: %w", i, ledger.ErrNegativeRate)
		}
		rule := &model.TierRule{
			TenantID:      tenantID,
			Tier:          tier,
			MinSpendCents: e.MinSpendCents,
			BonusBps:      e.BonusBps,
			IsActive:      active(e.Active),
		}
		set.Tiers = append(set.Tiers, rule)
		if rule.IsActive {
			activeTiers = append(activeTiers, rule)
		}
	}
	if err := ledger.ValidateTierRules(activeTiers); err != nil {
		return nil, fmt.Errorf("tiers: %w", err)
	}

	seenOffer := make(map[string]bool)
	for i, e := range f.Offers {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("offers[%d]: name is required", i)
		}
		if seenOffer[name] {
			return nil, fmt.Errorf("offers[%d]: offer %q is defined twice", i, name)
		}
		seenOffer[name] = true
		if e.MultiplierBps < 0 {
			return nil, fmt.Errorf("offers[%d]: %w", i, ledger.ErrNegativeRate)
		}
		if !e.EndAt.After(e.StartAt) {
			return nil, fmt.Errorf("offers[%d]: end_at must be after start_at", i)
		}
		set.Offers = append(set.Offers, &model.Offer{
			TenantID:      tenantID,
			Name:          name,
			MultiplierBps: e.MultiplierBps,
			StartAt:       e.StartAt.UTC(),
			EndAt:         e.EndAt.UTC(),
			IsActive:      active(e.Active),
		})
	}
	return set, nil
}

// Import upserts the set in one transaction. Tier rules already stored for the tenant
// are validated together with the new ones and the import rolls back if they conflict.
func Import(ctx context.Context, tx ledger.Transactor, store Store, set *Set) (Summary, error) {
	var summary Summary
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, rule := range set.Cashback {
			if err := store.UpsertCashbackRule(ctx, rule); err != nil {
				return err
			}
			summary.CashbackRules++
		}
		for _, rule := range set.Tiers {
			if err := store.UpsertTierRule(ctx, rule); err != nil {
				return err
			}
			summary.TierRules++
		}
		for _, offer := range set.Offers {
			if err := store.UpsertOffer(ctx, offer); err != nil {
				return err
			}
			summary.Offers++
		}

		if len(set.Tiers) == 0 {
			return nil
		}
		stored, err := store.ActiveTierRules(ctx, set.Tiers[0].TenantID)
		if err != nil {
			return err
		}
		if err := ledger.ValidateTierRules(stored); err != nil {
			return fmt.Errorf("stored tiers: %w", err)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	logger.Info("rules imported",
		"cashback_rules", summary.CashbackRules,
		"tier_rules", summary.TierRules,
		"offers", summary.Offers,
	)
	return summary, nil
}
