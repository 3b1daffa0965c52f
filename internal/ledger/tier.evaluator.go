package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/nimasrn/cashback-ledger/internal/model"
)

type TierEvaluator struct {
	rules     RuleStore
	customers CustomerStore
}

func NewTierEvaluator(rules RuleStore, customers CustomerStore) *TierEvaluator {
	return &TierEvaluator{rules: rules, customers: customers}
}

// ValidateTierRules checks that a higher threshold never maps to a lower ranked tier
// and that no tier or threshold appears twice.
func ValidateTierRules(rules []*model.TierRule) error {
	sorted := make([]*model.TierRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinSpendCents < sorted[j].MinSpendCents
	})

	seen := make(map[model.Tier]bool, len(sorted))
	for i, rule := range sorted {
		if rule.Tier.Rank() == 0 {
			return fmt.Errorf("%w: %q", model.ErrInvalidTier, rule.Tier)
		}
		if rule.MinSpendCents < 0 {
			return fmt.Errorf("%w: tier %s has a negative threshold", ErrTierRulesOrder, rule.Tier)
		}
		if seen[rule.Tier] {
			return fmt.Errorf("%w: tier %s is defined twice", ErrTierRulesOrder, rule.Tier)
		}
		seen[rule.Tier] = true
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if rule.MinSpendCents == prev.MinSpendCents || !rule.Tier.Outranks(prev.Tier) {
			return fmt.Errorf("%w: %s at %d after %s at %d", ErrTierRulesOrder,
				rule.Tier, rule.MinSpendCents, prev.Tier, prev.MinSpendCents)
		}
	}
	return nil
}

// SelectTier picks the tier with the highest threshold not above spend.
// ok is false when no rule matches.
func SelectTier(rules []*model.TierRule, spendCents int64) (tier model.Tier, ok bool) {
	var best *model.TierRule
	for _, rule := range rules {
		if rule.MinSpendCents > spendCents {
			continue
		}
		if best == nil || rule.MinSpendCents > best.MinSpendCents {
			best = rule
		}
	}
	if best == nil {
		return "", false
	}
	return best.Tier, true
}

// Evaluate recomputes the customer's tier from the persisted lifetime spend and stores any change.
func (e *TierEvaluator) Evaluate(ctx context.Context, tenantID, customerID int64) (model.TierChange, error) {
	customer, err := e.customers.Get(ctx, tenantID, customerID)
	if err != nil {
		return model.TierChange{}, err
	}
	return e.apply(ctx, tenantID, customer.ID, customer.Tier, customer.LifetimeSpendCents)
}

func (e *TierEvaluator) apply(ctx context.Context, tenantID, customerID int64, current model.Tier, spendCents int64) (model.TierChange, error) {
	change := model.TierChange{From: current, To: current}

	rules, err := e.rules.ActiveTierRules(ctx, tenantID)
	if err != nil {
		return change, err
	}
	if len(rules) == 0 {
		return change, nil
	}
	if err := ValidateTierRules(rules); err != nil {
		return change, &ConfigurationError{TenantID: tenantID, Reason: ErrTierRulesOrder, Detail: err.Error()}
	}

	next, ok := SelectTier(rules, spendCents)
	if !ok || next == current {
		return change, nil
	}
	if err := e.customers.UpdateTier(ctx, customerID, next); err != nil {
		return change, err
	}
	change.To = next
	change.Changed = true
	return change, nil
}
