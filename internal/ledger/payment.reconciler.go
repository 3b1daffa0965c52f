package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/cashback-ledger/internal/idempotency"
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
)

// WebhookOperatorID is recorded as the operator on rows created by payment confirmations.
const WebhookOperatorID = "payment-webhook"

// Reconciler applies external payment confirmations exactly once.
// The pending payment row is the source of truth, the guard only saves database round trips.
type Reconciler struct {
	tx       Transactor
	payments PaymentStore
	cards    CardStore
	writer   *Writer
	guard    RedeliveryGuard
	now      func() time.Time
}

type ReconcilerOption func(*Reconciler)

func WithGuard(g RedeliveryGuard) ReconcilerOption {
	return func(r *Reconciler) { r.guard = g }
}

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(tx Transactor, payments PaymentStore, cards CardStore, writer *Writer, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		tx:       tx,
		payments: payments,
		cards:    cards,
		writer:   writer,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreatePaymentIntent records a PENDING payment the provider will later confirm by reference.
func (r *Reconciler) CreatePaymentIntent(ctx context.Context, cmd model.PaymentIntentCommand) (*model.PurchaseTransaction, error) {
	if cmd.Amount.IsZero() {
		return nil, model.ErrInvalidAmount
	}
	category := cmd.Category
	if cmd.Purpose != model.PaymentPurposePurchase {
		category = ""
	} else if category == "" {
		category = model.CategoryPurchase
	}

	card, err := r.cards.GetByUID(ctx, cmd.TenantID, cmd.CardUID)
	if errors.Is(err, repository.ErrCardNotFound) {
		return nil, &AuthorizationError{Reason: ErrCardNotFound}
	}
	if err != nil {
		return nil, classify("payment_intent", err)
	}
	if err := checkCard(card, cmd.StoreID); err != nil {
		return nil, err
	}

	payment := &model.PurchaseTransaction{
		TenantID:      cmd.TenantID,
		StoreID:       cmd.StoreID,
		CardID:        card.ID,
		CustomerID:    *card.CustomerID,
		Reference:     uuid.NewString(),
		Purpose:       cmd.Purpose,
		Category:      category,
		AmountCents:   cmd.Amount.Cents(),
		PaymentStatus: model.PaymentStatusPending,
	}
	if err := r.payments.Create(ctx, payment); err != nil {
		return nil, classify("payment_intent", err)
	}

	logger.Info("payment intent created",
		"tenant_id", cmd.TenantID,
		"store_id", cmd.StoreID,
		"reference", payment.Reference,
		"purpose", payment.Purpose,
		"amount_cents", payment.AmountCents,
	)
	return payment, nil
}

// Reconcile applies the payment behind reference. Redeliveries return Applied=false.
func (r *Reconciler) Reconcile(ctx context.Context, reference string) (*model.ReconcileResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, &ReconciliationError{Reference: reference, Reason: ErrPaymentNotFound}
	}
	result := &model.ReconcileResult{Reference: reference}

	var pc *idempotency.ProcessingContext
	if r.guard != nil {
		var err error
		pc, err = r.guard.AcquireProcessingLock(ctx, reference)
		switch {
		case err == nil:
		case errors.Is(err, idempotency.ErrAlreadyProcessed):
			prom.IncReconciliation("duplicate")
			logger.Info("payment already reconciled", "reference", reference)
			return result, nil
		case errors.Is(err, idempotency.ErrLockAcquireFailed):
			prom.IncReconciliation("in_flight")
			return nil, &TransientError{Op: "reconcile", Err: err}
		default:
			logger.Warn("redelivery guard unavailable, relying on database", "reference", reference, "error", err)
			pc = nil
		}
	}

	var out *outcome
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		payment, err := r.payments.GetByReferenceForUpdate(ctx, reference)
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return &ReconciliationError{Reference: reference, Reason: ErrPaymentNotFound}
		}
		if err != nil {
			return err
		}
		if payment.IsConsumed() {
			result.TransactionID = payment.LedgerTransactionID
			return nil
		}
		if payment.PaymentStatus != model.PaymentStatusPending {
			return &ReconciliationError{Reference: reference, Reason: ErrPaymentNotPending}
		}

		completed, err := r.payments.MarkCompleted(ctx, payment.ID, r.now())
		if err != nil {
			return err
		}
		if !completed {
			return nil
		}

		e, err := paymentEntry(payment)
		if err != nil {
			return err
		}
		out, err = r.writer.apply(ctx, e)
		if err != nil {
			return err
		}
		if err := r.payments.LinkTransaction(ctx, payment.ID, out.result.Transaction.ID); err != nil {
			return err
		}
		result.Applied = true
		result.TransactionID = &out.result.Transaction.ID
		return nil
	})

	if err != nil {
		if pc != nil {
			if rerr := r.guard.ReleaseLock(ctx, pc); rerr != nil {
				logger.Warn("failed to release reconcile lock", "reference", reference, "error", rerr)
			}
		}
		err = classify("reconcile", err)
		prom.IncReconciliation(outcomeLabel(err))
		logger.Warn("payment reconciliation failed", "reference", reference, "error", err)
		return nil, err
	}

	if pc != nil {
		if err := r.guard.MarkSuccess(ctx, pc); err != nil {
			logger.Warn("failed to mark payment reconciled", "reference", reference, "error", err)
		}
	}

	if !result.Applied {
		prom.IncReconciliation("duplicate")
		logger.Info("payment already reconciled", "reference", reference)
		return result, nil
	}

	prom.IncReconciliation("applied")
	prom.IncLedgerOperation(string(out.result.Transaction.Kind), outcomeLabel(nil))
	logger.Info("payment reconciled",
		"reference", reference,
		"tenant_id", out.result.Transaction.TenantID,
		"transaction_id", out.result.Transaction.ID,
		"new_balance_cents", out.result.NewBalanceCents,
	)
	r.writer.dispatch(ctx, out.notifications)
	return result, nil
}

// ClosePayment marks a pending payment FAILED or CANCELLED. Closing twice with the same status is a no-op.
func (r *Reconciler) ClosePayment(ctx context.Context, tenantID int64, reference string, status model.PaymentStatus) (bool, error) {
	if !status.IsClosed() {
		return false, ErrInvalidCloseStatus
	}

	var changed bool
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		payment, err := r.payments.GetByReferenceForUpdate(ctx, reference)
		if errors.Is(err, repository.ErrPaymentNotFound) || (err == nil && payment.TenantID != tenantID) {
			return &ReconciliationError{Reference: reference, Reason: ErrPaymentNotFound}
		}
		if err != nil {
			return err
		}
		if payment.PaymentStatus == status {
			return nil
		}
		if payment.PaymentStatus != model.PaymentStatusPending || payment.UsedAt != nil {
			return &ReconciliationError{Reference: reference, Reason: ErrPaymentNotPending}
		}
		changed, err = r.payments.MarkClosed(ctx, payment.ID, status)
		return err
	})
	if err != nil {
		return false, classify("close_payment", err)
	}
	if changed {
		logger.Info("payment closed", "tenant_id", tenantID, "reference", reference, "status", status)
	}
	return changed, nil
}

// paymentEntry turns a confirmed payment into the ledger entry it pays for.
func paymentEntry(payment *model.PurchaseTransaction) (entry, error) {
	amount, err := model.NewAmount(payment.AmountCents)
	if err != nil {
		return entry{}, &ReconciliationError{Reference: payment.Reference, Reason: err}
	}
	ref := payment.Reference
	e := entry{
		actor: model.Actor{
			TenantID:   payment.TenantID,
			StoreID:    payment.StoreID,
			OperatorID: WebhookOperatorID,
		},
		cardID:           payment.CardID,
		amount:           amount,
		note:             "payment " + payment.Reference,
		paymentReference: &ref,
	}
	switch payment.Purpose {
	case model.PaymentPurposePurchase:
		e.kind = model.OperationEarn
		e.category = payment.Category
		if e.category == "" {
			e.category = model.CategoryPurchase
		}
	default:
		e.kind = model.OperationAdjust
		e.source = model.SourceOnline
	}
	return e, nil
}
