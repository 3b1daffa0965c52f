package ledger

import (
	"context"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/idempotency"
	"github.com/nimasrn/cashback-ledger/internal/model"
)

// Transactor runs fn inside one database transaction. Nested calls join the outer one.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CardStore interface {
	GetByUIDForUpdate(ctx context.Context, tenantID int64, uid string) (*model.Card, error)
	GetByIDForUpdate(ctx context.Context, tenantID, cardID int64) (*model.Card, error)
	GetByUID(ctx context.Context, tenantID int64, uid string) (*model.Card, error)
	UpdateBalance(ctx context.Context, cardID int64, balanceCents int64) error
}

type CustomerStore interface {
	Get(ctx context.Context, tenantID, customerID int64) (*model.Customer, error)
	GetForUpdate(ctx context.Context, tenantID, customerID int64) (*model.Customer, error)
	AddLifetimeSpend(ctx context.Context, customerID int64, cents int64) error
	UpdateTier(ctx context.Context, customerID int64, tier model.Tier) error
}

type RuleStore interface {
	CashbackRule(ctx context.Context, tenantID int64, category model.Category) (*model.CashbackRule, error)
	TierRule(ctx context.Context, tenantID int64, tier model.Tier) (*model.TierRule, error)
	ActiveTierRules(ctx context.Context, tenantID int64) ([]*model.TierRule, error)
	ActiveOffers(ctx context.Context, tenantID int64) ([]*model.Offer, error)
}

type TransactionStore interface {
	Create(ctx context.Context, txn *model.Transaction) error
	ListByCard(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, int64, error)
	ListAllByCard(ctx context.Context, tenantID, cardID int64) ([]*model.Transaction, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *model.PurchaseTransaction) error
	GetByReference(ctx context.Context, tenantID int64, reference string) (*model.PurchaseTransaction, error)
	GetByReferenceForUpdate(ctx context.Context, reference string) (*model.PurchaseTransaction, error)
	MarkCompleted(ctx context.Context, paymentID int64, at time.Time) (bool, error)
	LinkTransaction(ctx context.Context, paymentID, transactionID int64) error
	MarkClosed(ctx context.Context, paymentID int64, status model.PaymentStatus) (bool, error)
}

// Notifier accepts post-commit notification requests. It must not block for long.
type Notifier interface {
	Notify(ctx context.Context, req model.NotificationRequest) error
}

// RedeliveryGuard short-circuits webhook redeliveries before the database is touched.
// *idempotency.Service satisfies it.
type RedeliveryGuard interface {
	AcquireProcessingLock(ctx context.Context, key string) (*idempotency.ProcessingContext, error)
	MarkSuccess(ctx context.Context, pc *idempotency.ProcessingContext) error
	ReleaseLock(ctx context.Context, pc *idempotency.ProcessingContext) error
}
