package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	perrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	*pg.DB
}

func NewPaymentRepository(db *pg.DB) *PaymentRepository {
	return &PaymentRepository{
		db,
	}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *model.PurchaseTransaction) error {
	entity := toPurchaseTransactionEntity(payment)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicatePayment
		}
		return perrors.Wrap(err, "create payment")
	}
	payment.ID = entity.ID
	payment.CreatedAt = entity.CreatedAt
	return nil
}

func (r *PaymentRepository) GetByReference(ctx context.Context, tenantID int64, reference string) (*model.PurchaseTransaction, error) {
	return r.first(r.Read(ctx), "tenant_id = ? AND reference = ?", tenantID, reference)
}

// GetByReferenceForUpdate locks the payment. References are globally unique so no tenant is needed.
func (r *PaymentRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*model.PurchaseTransaction, error) {
	return r.first(r.Write(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "reference = ?", reference)
}

func (r *PaymentRepository) first(db *gorm.DB, query string, args ...any) (*model.PurchaseTransaction, error) {
	var entity PurchaseTransactionEntity
	err := db.Where(query, args...).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, perrors.Wrap(err, "get payment")
	}
	return toPurchaseTransactionModel(&entity), nil
}

// MarkCompleted flips a pending, unused payment to COMPLETED.
// It returns false when another delivery got there first.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, paymentID int64, at time.Time) (bool, error) {
	result := r.Write(ctx).
		Model(&PurchaseTransactionEntity{}).
		Where("id = ? AND payment_status = ? AND used_at IS NULL", paymentID, string(model.PaymentStatusPending)).
		Updates(map[string]any{
			"payment_status": string(model.PaymentStatusCompleted),
			"used_at":        at,
			"paid_at":        at,
		})
	if result.Error != nil {
		return false, perrors.Wrap(result.Error, "complete payment")
	}
	return result.RowsAffected == 1, nil
}

func (r *PaymentRepository) LinkTransaction(ctx context.Context, paymentID, transactionID int64) error {
	result := r.Write(ctx).
		Model(&PurchaseTransactionEntity{}).
		Where("id = ? AND ledger_transaction_id IS NULL", paymentID).
		Update("ledger_transaction_id", transactionID)
	if result.Error != nil {
		return perrors.Wrap(result.Error, "link payment transaction")
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// MarkClosed moves a pending payment to FAILED or CANCELLED. False means it was not pending.
func (r *PaymentRepository) MarkClosed(ctx context.Context, paymentID int64, status model.PaymentStatus) (bool, error) {
	result := r.Write(ctx).
		Model(&PurchaseTransactionEntity{}).
		Where("id = ? AND payment_status = ? AND used_at IS NULL", paymentID, string(model.PaymentStatusPending)).
		Update("payment_status", string(status))
	if result.Error != nil {
		return false, perrors.Wrap(result.Error, "close payment")
	}
	return result.RowsAffected == 1, nil
}
