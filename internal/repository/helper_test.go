package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *pg.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	pgDB := pg.New(db, db)
	require.NoError(t, pgDB.AutoMigrate(Entities()...))
	t.Cleanup(func() { _ = pgDB.Close() })
	return pgDB
}

type seeded struct {
	tenantID   int64
	storeID    int64
	customerID int64
	cardID     int64
}

func seedCard(t *testing.T, db *pg.DB, balance int64) seeded {
	t.Helper()
	w := db.Write(context.Background())

	tenant := &TenantEntity{Name: "acme"}
	require.NoError(t, w.Create(tenant).Error)
	store := &StoreEntity{TenantID: tenant.ID, Name: "main"}
	require.NoError(t, w.Create(store).Error)
	customer := &CustomerEntity{TenantID: tenant.ID, Name: "Dana", Phone: "+15550001111", Tier: "SILVER", NotifyChannel: "SMS"}
	require.NoError(t, w.Create(customer).Error)
	card := &CardEntity{TenantID: tenant.ID, StoreID: store.ID, CustomerID: &customer.ID, UID: "C-1", BalanceCents: balance, Status: "ACTIVE"}
	require.NoError(t, w.Create(card).Error)

	return seeded{tenantID: tenant.ID, storeID: store.ID, customerID: customer.ID, cardID: card.ID}
}
