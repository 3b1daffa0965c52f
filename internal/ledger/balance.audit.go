package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
)

// History pages through a card's rows, newest first. Reads are scoped by tenant only.
func (w *Writer) History(ctx context.Context, tenantID int64, cardUID string, limit, offset int) ([]*model.Transaction, int64, error) {
	card, err := w.cards.GetByUID(ctx, tenantID, cardUID)
	if errors.Is(err, repository.ErrCardNotFound) {
		return nil, 0, &AuthorizationError{Reason: ErrCardNotFound}
	}
	if err != nil {
		return nil, 0, classify("history", err)
	}

	txns, total, err := w.transactions.ListByCard(ctx, model.TransactionFilter{
		TenantID: tenantID,
		CardID:   card.ID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, 0, classify("history", err)
	}
	return txns, total, nil
}

// VerifyBalance replays every row of the card from zero and compares the result with the cached balance.
func (w *Writer) VerifyBalance(ctx context.Context, tenantID int64, cardUID string) (*model.BalanceAudit, error) {
	card, err := w.cards.GetByUID(ctx, tenantID, cardUID)
	if errors.Is(err, repository.ErrCardNotFound) {
		return nil, &AuthorizationError{Reason: ErrCardNotFound}
	}
	if err != nil {
		return nil, classify("audit", err)
	}
	audit, err := w.audit(ctx, card)
	if err != nil {
		return nil, classify("audit", err)
	}
	return audit, nil
}

// RebuildBalance overwrites the cached balance with the replayed one under the card lock.
// A broken chain is reported but never rewritten, rows are append-only.
func (w *Writer) RebuildBalance(ctx context.Context, tenantID int64, cardUID string) (*model.BalanceAudit, error) {
	var audit *model.BalanceAudit
	err := w.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		card, err := w.cards.GetByUIDForUpdate(ctx, tenantID, cardUID)
		if errors.Is(err, repository.ErrCardNotFound) {
			return &AuthorizationError{Reason: ErrCardNotFound}
		}
		if err != nil {
			return err
		}
		audit, err = w.audit(ctx, card)
		if err != nil {
			return err
		}
		if audit.CachedBalance == audit.ReplayedBalance {
			return nil
		}
		if audit.ReplayedBalance < 0 {
			return &BusinessRuleViolation{
				Reason: ErrInsufficientBalance,
				Detail: fmt.Sprintf("replayed balance %d is negative", audit.ReplayedBalance),
			}
		}
		if err := w.cards.UpdateBalance(ctx, card.ID, audit.ReplayedBalance); err != nil {
			return err
		}
		logger.Warn("card balance rebuilt",
			"tenant_id", tenantID,
			"card_uid", cardUID,
			"cached_balance_cents", audit.CachedBalance,
			"replayed_balance_cents", audit.ReplayedBalance,
		)
		audit.Rebuilt = true
		return nil
	})
	if err != nil {
		return nil, classify("rebuild", err)
	}
	return audit, nil
}

func (w *Writer) audit(ctx context.Context, card *model.Card) (*model.BalanceAudit, error) {
	txns, err := w.transactions.ListAllByCard(ctx, card.TenantID, card.ID)
	if err != nil {
		return nil, err
	}

	audit := &model.BalanceAudit{
		CardID:           card.ID,
		CardUID:          card.UID,
		CachedBalance:    card.BalanceCents,
		TransactionCount: len(txns),
	}

	var replayed, previousAfter int64
	for _, txn := range txns {
		if txn.BeforeBalanceCents != previousAfter {
			audit.Problems = append(audit.Problems, fmt.Sprintf(
				"transaction %d starts at %d, previous row ended at %d", txn.ID, txn.BeforeBalanceCents, previousAfter))
		}
		if txn.BeforeBalanceCents+txn.Delta() != txn.AfterBalanceCents {
			audit.Problems = append(audit.Problems, fmt.Sprintf(
				"transaction %d: %d %+d != %d", txn.ID, txn.BeforeBalanceCents, txn.Delta(), txn.AfterBalanceCents))
		}
		if txn.AfterBalanceCents < 0 {
			audit.Problems = append(audit.Problems, fmt.Sprintf("transaction %d leaves a negative balance", txn.ID))
		}
		replayed += txn.Delta()
		previousAfter = txn.AfterBalanceCents
	}

	audit.ReplayedBalance = replayed
	if replayed != card.BalanceCents {
		audit.Problems = append(audit.Problems, fmt.Sprintf(
			"cached balance %d differs from replayed %d", card.BalanceCents, replayed))
	}
	audit.Consistent = len(audit.Problems) == 0
	return audit, nil
}
