package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
)

const bpsDenominator = 10_000

// Rate is a cashback rate split by where each part came from, in basis points.
type Rate struct {
	BaseBps  int64 `json:"base_bps"`
	TierBps  int64 `json:"tier_bps"`
	OfferBps int64 `json:"offer_bps"`
}

func (r Rate) Total() int64 {
	return r.BaseBps + r.TierBps + r.OfferBps
}

// Cashback is floor(amount * bps / 10000). Non-positive rates earn nothing.
func Cashback(amountCents, bps int64) int64 {
	if amountCents <= 0 || bps <= 0 {
		return 0
	}
	return amountCents * bps / bpsDenominator
}

type RateResolver struct {
	rules RuleStore
}

func NewRateResolver(rules RuleStore) *RateResolver {
	return &RateResolver{rules: rules}
}

// Resolve sums the active category rate, the tier bonus and every offer whose window contains now.
// Offers stack additively.
func (r *RateResolver) Resolve(ctx context.Context, tenantID int64, category model.Category, tier model.Tier, now time.Time) (Rate, error) {
	var rate Rate

	rule, err := r.rules.CashbackRule(ctx, tenantID, category)
	switch {
	case errors.Is(err, repository.ErrRuleNotFound):
	case err != nil:
		return Rate{}, err
	case rule.IsActive:
		if rule.RateBps < 0 {
			return Rate{}, &ConfigurationError{TenantID: tenantID, Reason: ErrNegativeRate, Detail: fmt.Sprintf("category %s", category)}
		}
		rate.BaseBps = rule.RateBps
	}

	tierRule, err := r.rules.TierRule(ctx, tenantID, tier)
	switch {
	case errors.Is(err, repository.ErrRuleNotFound):
	case err != nil:
		return Rate{}, err
	case tierRule.IsActive:
		if tierRule.BonusBps < 0 {
			return Rate{}, &ConfigurationError{TenantID: tenantID, Reason: ErrNegativeRate, Detail: fmt.Sprintf("tier %s", tier)}
		}
		rate.TierBps = tierRule.BonusBps
	}

	offers, err := r.rules.ActiveOffers(ctx, tenantID)
	if err != nil {
		return Rate{}, err
	}
	for _, offer := range offers {
		if !offer.ActiveAt(now) {
			continue
		}
		if offer.MultiplierBps < 0 {
			return Rate{}, &ConfigurationError{TenantID: tenantID, Reason: ErrNegativeRate, Detail: fmt.Sprintf("offer %q", offer.Name)}
		}
		rate.OfferBps += offer.MultiplierBps
	}

	return rate, nil
}
