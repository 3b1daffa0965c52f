package repository

import "time"

type TenantEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `db:"name"       gorm:"column:name;not null"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (TenantEntity) TableName() string {
	return "tenants"
}

type StoreEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	TenantID  int64     `db:"tenant_id"  gorm:"column:tenant_id;not null;index"`
	Name      string    `db:"name"       gorm:"column:name;not null"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (StoreEntity) TableName() string {
	return "stores"
}

// Entities lists every table, in dependency order, for AutoMigrate in tests.
func Entities() []any {
	return []any{
		&TenantEntity{},
		&StoreEntity{},
		&CustomerEntity{},
		&CardEntity{},
		&CashbackRuleEntity{},
		&TierRuleEntity{},
		&OfferEntity{},
		&TransactionEntity{},
		&PurchaseTransactionEntity{},
	}
}
