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

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{
		db,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *model.Customer) error {
	entity := toCustomerEntity(customer)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return perrors.Wrap(err, "create customer")
	}
	customer.ID = entity.ID
	customer.CreatedAt = entity.CreatedAt
	return nil
}

func (r *CustomerRepository) Get(ctx context.Context, tenantID, customerID int64) (*model.Customer, error) {
	return r.first(r.Read(ctx), tenantID, customerID)
}

// GetForUpdate locks the customer row. Lock it after the card, never before.
func (r *CustomerRepository) GetForUpdate(ctx context.Context, tenantID, customerID int64) (*model.Customer, error) {
	return r.first(r.Write(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, customerID)
}

func (r *CustomerRepository) first(db *gorm.DB, tenantID, customerID int64) (*model.Customer, error) {
	var entity CustomerEntity
	err := db.Where("tenant_id = ? AND id = ?", tenantID, customerID).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, perrors.Wrap(err, "get customer")
	}
	return toCustomerModel(&entity), nil
}

// AddLifetimeSpend only ever grows the counter.
func (r *CustomerRepository) AddLifetimeSpend(ctx context.Context, customerID int64, cents int64) error {
	if cents <= 0 {
		return nil
	}
	result := r.Write(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", customerID).
		Update("lifetime_spend_cents", gorm.Expr("lifetime_spend_cents + ?", cents))

	if result.Error != nil {
		return perrors.Wrap(result.Error, "add lifetime spend")
	}
	if result.RowsAffected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func (r *CustomerRepository) UpdateTier(ctx context.Context, customerID int64, tier model.Tier) error {
	result := r.Write(ctx).
		Model(&CustomerEntity{}).
		Where("id = ?", customerID).
		Update("tier", string(tier))

	if result.Error != nil {
		return perrors.Wrap(result.Error, "update tier")
	}
	if result.RowsAffected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}
