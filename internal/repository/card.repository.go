package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	perrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CardRepository struct {
	*pg.DB
}

func NewCardRepository(db *pg.DB) *CardRepository {
	return &CardRepository{
		db,
	}
}

func (r *CardRepository) Create(ctx context.Context, card *model.Card) error {
	entity := toCardEntity(card)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return perrors.Wrap(err, "create card")
	}
	card.ID = entity.ID
	card.CreatedAt = entity.CreatedAt
	card.UpdatedAt = entity.UpdatedAt
	return nil
}

// GetByUIDForUpdate reads the card with SELECT ... FOR UPDATE. It must run inside a transaction.
func (r *CardRepository) GetByUIDForUpdate(ctx context.Context, tenantID int64, uid string) (*model.Card, error) {
	return r.first(r.Write(ctx).Clauses(clause.Locking{Strength: "UPDATE"}),
		"tenant_id = ? AND uid = ?", tenantID, uid)
}

func (r *CardRepository) GetByIDForUpdate(ctx context.Context, tenantID, cardID int64) (*model.Card, error) {
	return r.first(r.Write(ctx).Clauses(clause.Locking{Strength: "UPDATE"}),
		"tenant_id = ? AND id = ?", tenantID, cardID)
}

func (r *CardRepository) GetByUID(ctx context.Context, tenantID int64, uid string) (*model.Card, error) {
	return r.first(r.Read(ctx), "tenant_id = ? AND uid = ?", tenantID, uid)
}

func (r *CardRepository) first(db *gorm.DB, query string, args ...any) (*model.Card, error) {
	var entity CardEntity
	err := db.Where(query, args...).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, perrors.Wrap(err, "get card")
	}
	return toCardModel(&entity), nil
}

// UpdateBalance overwrites the cached balance. Callers hold the row lock.
func (r *CardRepository) UpdateBalance(ctx context.Context, cardID int64, balanceCents int64) error {
	result := r.Write(ctx).
		Model(&CardEntity{}).
		Where("id = ?", cardID).
		Update("balance_cents", balanceCents)

	if result.Error != nil {
		return perrors.Wrap(result.Error, "update card balance")
	}
	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}
	return nil
}
