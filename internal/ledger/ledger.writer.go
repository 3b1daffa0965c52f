package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/prom"
)

const defaultNotifyTimeout = 2 * time.Second

// Writer is the only code path that changes a card balance.
// Every operation locks the card row first and, for earns, the customer row second.
type Writer struct {
	tx            Transactor
	cards         CardStore
	customers     CustomerStore
	transactions  TransactionStore
	rates         *RateResolver
	tiers         *TierEvaluator
	notifier      Notifier
	notifyTimeout time.Duration
	now           func() time.Time
}

type WriterOption func(*Writer)

func WithNotifier(n Notifier) WriterOption {
	return func(w *Writer) { w.notifier = n }
}

func WithNotifyTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.notifyTimeout = d
		}
	}
}

func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

func NewWriter(tx Transactor, cards CardStore, customers CustomerStore, transactions TransactionStore, rules RuleStore, opts ...WriterOption) *Writer {
	w := &Writer{
		tx:            tx,
		cards:         cards,
		customers:     customers,
		transactions:  transactions,
		rates:         NewRateResolver(rules),
		tiers:         NewTierEvaluator(rules, customers),
		notifyTimeout: defaultNotifyTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// entry is one balance change before it is validated against the locked card.
type entry struct {
	actor            model.Actor
	kind             model.OperationKind
	cardUID          string
	cardID           int64
	amount           model.Amount
	category         model.Category
	source           model.SourceMethod
	note             string
	paymentReference *string
}

type outcome struct {
	result        *model.LedgerResult
	notifications []model.NotificationRequest
}

func (w *Writer) Earn(ctx context.Context, cmd model.EarnCommand) (*model.LedgerResult, error) {
	if cmd.Amount.IsZero() {
		return nil, model.ErrInvalidAmount
	}
	return w.run(ctx, entry{
		actor:    cmd.Actor,
		kind:     model.OperationEarn,
		cardUID:  cmd.CardUID,
		amount:   cmd.Amount,
		category: cmd.Category,
		note:     cmd.Note,
	})
}

func (w *Writer) Redeem(ctx context.Context, cmd model.RedeemCommand) (*model.LedgerResult, error) {
	if cmd.Amount.IsZero() {
		return nil, model.ErrInvalidAmount
	}
	return w.run(ctx, entry{
		actor:   cmd.Actor,
		kind:    model.OperationRedeem,
		cardUID: cmd.CardUID,
		amount:  cmd.Amount,
		note:    cmd.Note,
	})
}

// AddFunds credits a counter top-up as an ADJUST row.
func (w *Writer) AddFunds(ctx context.Context, cmd model.AddFundsCommand) (*model.LedgerResult, error) {
	if cmd.Amount.IsZero() {
		return nil, model.ErrInvalidAmount
	}
	return w.run(ctx, entry{
		actor:   cmd.Actor,
		kind:    model.OperationAdjust,
		cardUID: cmd.CardUID,
		amount:  cmd.Amount,
		source:  cmd.SourceMethod,
		note:    cmd.Note,
	})
}

func (w *Writer) run(ctx context.Context, e entry) (*model.LedgerResult, error) {
	start := time.Now()
	var out *outcome
	err := w.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		out, err = w.apply(ctx, e)
		return err
	})
	prom.ObserveLedgerOperation(string(e.kind), time.Since(start).Seconds())

	if err != nil {
		err = classify(string(e.kind), err)
		w.report(e, err)
		return nil, err
	}

	prom.IncLedgerOperation(string(e.kind), outcomeLabel(nil))
	if e.kind == model.OperationEarn {
		prom.AddCashbackCents(string(e.category), out.result.CashbackCents)
	}
	logger.Info("ledger operation committed",
		"kind", e.kind,
		"tenant_id", e.actor.TenantID,
		"store_id", e.actor.StoreID,
		"operator_id", e.actor.OperatorID,
		"transaction_id", out.result.Transaction.ID,
		"new_balance_cents", out.result.NewBalanceCents,
	)

	w.dispatch(ctx, out.notifications)
	return out.result, nil
}

func (w *Writer) report(e entry, err error) {
	label := outcomeLabel(err)
	prom.IncLedgerOperation(string(e.kind), label)

	fields := []any{
		"kind", e.kind,
		"tenant_id", e.actor.TenantID,
		"store_id", e.actor.StoreID,
		"operator_id", e.actor.OperatorID,
		"card_uid", e.cardUID,
		"outcome", label,
		"error", err,
	}
	var cfg *ConfigurationError
	switch {
	case IsRetryable(err), errors.As(err, &cfg):
		logger.Error("ledger operation failed", fields...)
	default:
		logger.Warn("ledger operation rejected", fields...)
	}
}

// apply does the locked read, validation and writes. It must run inside a transaction.
func (w *Writer) apply(ctx context.Context, e entry) (*outcome, error) {
	card, err := w.lockCard(ctx, e)
	if err != nil {
		return nil, err
	}
	if err := checkCard(card, e.actor.StoreID); err != nil {
		return nil, err
	}

	var customer *model.Customer
	if e.kind == model.OperationEarn {
		customer, err = w.customers.GetForUpdate(ctx, e.actor.TenantID, *card.CustomerID)
	} else {
		customer, err = w.customers.Get(ctx, e.actor.TenantID, *card.CustomerID)
	}
	if errors.Is(err, repository.ErrCustomerNotFound) {
		return nil, &AuthorizationError{Reason: ErrCardUnlinked}
	}
	if err != nil {
		return nil, err
	}

	now := w.now()
	before := card.BalanceCents
	txn := &model.Transaction{
		TenantID:           e.actor.TenantID,
		StoreID:            e.actor.StoreID,
		CardID:             card.ID,
		CustomerID:         customer.ID,
		OperatorID:         e.actor.OperatorID,
		Kind:               e.kind,
		AmountCents:        e.amount.Cents(),
		BeforeBalanceCents: before,
		Note:               e.note,
		PaymentReference:   e.paymentReference,
		CreatedAt:          now,
	}

	switch e.kind {
	case model.OperationEarn:
		rate, err := w.rates.Resolve(ctx, e.actor.TenantID, e.category, customer.Tier, now)
		if err != nil {
			return nil, err
		}
		txn.Category = e.category
		txn.RateBps = rate.Total()
		txn.CashbackCents = Cashback(e.amount.Cents(), txn.RateBps)
	case model.OperationRedeem:
		if e.amount.Cents() > before {
			return nil, &BusinessRuleViolation{
				Reason: ErrInsufficientBalance,
				Detail: fmt.Sprintf("balance %d, requested %d", before, e.amount.Cents()),
			}
		}
	case model.OperationAdjust:
		txn.SourceMethod = e.source
	}
	txn.AfterBalanceCents = before + txn.Delta()

	if err := w.transactions.Create(ctx, txn); err != nil {
		return nil, err
	}
	if err := w.cards.UpdateBalance(ctx, card.ID, txn.AfterBalanceCents); err != nil {
		return nil, err
	}

	result := &model.LedgerResult{
		Transaction:     txn,
		CashbackCents:   txn.CashbackCents,
		NewBalanceCents: txn.AfterBalanceCents,
	}
	out := &outcome{result: result}

	if e.kind == model.OperationEarn {
		if err := w.customers.AddLifetimeSpend(ctx, customer.ID, e.amount.Cents()); err != nil {
			return nil, err
		}
		change, err := w.tiers.apply(ctx, e.actor.TenantID, customer.ID, customer.Tier, customer.LifetimeSpendCents+e.amount.Cents())
		if err != nil {
			return nil, err
		}
		result.TierChange = &change
		if change.Upgraded() {
			out.notifications = append(out.notifications, tierUpgradeRequest(customer, card, change, txn, now))
		}
	}
	out.notifications = append([]model.NotificationRequest{receiptRequest(customer, card, txn, now)}, out.notifications...)

	return out, nil
}

func (w *Writer) lockCard(ctx context.Context, e entry) (*model.Card, error) {
	var (
		card *model.Card
		err  error
	)
	if e.cardID != 0 {
		card, err = w.cards.GetByIDForUpdate(ctx, e.actor.TenantID, e.cardID)
	} else {
		card, err = w.cards.GetByUIDForUpdate(ctx, e.actor.TenantID, e.cardUID)
	}
	if errors.Is(err, repository.ErrCardNotFound) {
		return nil, &AuthorizationError{Reason: ErrCardNotFound}
	}
	return card, err
}

// checkCard runs on the locked row so a concurrent status change cannot slip in.
func checkCard(card *model.Card, storeID int64) error {
	if !card.IsActive() {
		return &AuthorizationError{Reason: ErrCardInactive}
	}
	if !card.IsLinked() {
		return &AuthorizationError{Reason: ErrCardUnlinked}
	}
	if card.StoreID != storeID {
		return &AuthorizationError{Reason: ErrStoreMismatch, BoundStoreID: card.StoreID}
	}
	return nil
}

// dispatch hands notifications over after commit. Failures never reach the caller.
func (w *Writer) dispatch(ctx context.Context, reqs []model.NotificationRequest) {
	if w.notifier == nil || len(reqs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.notifyTimeout)
	defer cancel()

	for _, req := range reqs {
		if err := w.notifier.Notify(ctx, req); err != nil {
			prom.IncNotificationRequest(string(req.Kind), "failed")
			logger.Error("notification request dropped",
				"notification_id", req.ID,
				"kind", req.Kind,
				"tenant_id", req.TenantID,
				"transaction_id", req.TransactionID,
				"error", err,
			)
			continue
		}
		prom.IncNotificationRequest(string(req.Kind), "enqueued")
	}
}

func receiptRequest(customer *model.Customer, card *model.Card, txn *model.Transaction, now time.Time) model.NotificationRequest {
	return model.NotificationRequest{
		ID:            uuid.NewString(),
		Kind:          model.NotificationReceipt,
		Channel:       customer.NotifyChannel,
		TenantID:      txn.TenantID,
		CustomerID:    customer.ID,
		CardUID:       card.UID,
		Phone:         customer.Phone,
		CustomerName:  customer.Name,
		TransactionID: txn.ID,
		OperationKind: txn.Kind,
		AmountCents:   txn.AmountCents,
		CashbackCents: txn.CashbackCents,
		BalanceCents:  txn.AfterBalanceCents,
		RequestedAt:   now,
	}
}

func tierUpgradeRequest(customer *model.Customer, card *model.Card, change model.TierChange, txn *model.Transaction, now time.Time) model.NotificationRequest {
	return model.NotificationRequest{
		ID:            uuid.NewString(),
		Kind:          model.NotificationTierUpgrade,
		Channel:       customer.NotifyChannel,
		TenantID:      txn.TenantID,
		CustomerID:    customer.ID,
		CardUID:       card.UID,
		Phone:         customer.Phone,
		CustomerName:  customer.Name,
		TransactionID: txn.ID,
		BalanceCents:  txn.AfterBalanceCents,
		FromTier:      change.From,
		ToTier:        change.To,
		RequestedAt:   now,
	}
}
