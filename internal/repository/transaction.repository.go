package repository

import (
	"context"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	perrors "github.com/pkg/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// Create appends a ledger row. There is deliberately no update or delete.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	entity := toTransactionEntity(txn)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return perrors.Wrap(err, "create transaction")
	}
	txn.ID = entity.ID
	txn.CreatedAt = entity.CreatedAt
	return nil
}

// ListByCard pages a card's history, newest first.
func (r *TransactionRepository) ListByCard(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, int64, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := r.Read(ctx).
		Model(&TransactionEntity{}).
		Where("tenant_id = ? AND card_id = ?", filter.TenantID, filter.CardID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, perrors.Wrap(err, "count transactions")
	}

	var entities []*TransactionEntity
	err := query.
		Order("id DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&entities).Error
	if err != nil {
		return nil, 0, perrors.Wrap(err, "list transactions")
	}
	return toTransactionModels(entities), total, nil
}

// ListAllByCard returns the full log in id order for replay.
func (r *TransactionRepository) ListAllByCard(ctx context.Context, tenantID, cardID int64) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).
		Where("tenant_id = ? AND card_id = ?", tenantID, cardID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, perrors.Wrap(err, "list card log")
	}
	return toTransactionModels(entities), nil
}
