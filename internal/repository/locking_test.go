package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupDryRunDB compiles statements with the postgres dialect without a server.
// The returned func yields the SQL of the most recent query.
func setupDryRunDB(t *testing.T) (*pg.DB, func() string) {
	t.Helper()

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=ledger dbname=ledger sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	var last string
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:capture_sql", func(tx *gorm.DB) {
		last = tx.Statement.SQL.String()
	}))

	return pg.New(db, db), func() string { return last }
}

func TestRepositories_ForUpdateQueriesLockRows(t *testing.T) {
	db, lastSQL := setupDryRunDB(t)
	ctx := context.Background()

	cards := NewCardRepository(db)
	customers := NewCustomerRepository(db)
	payments := NewPaymentRepository(db)

	tests := []struct {
		name  string
		table string
		run   func() error
	}{
		{"card by uid", "cards", func() error {
			_, err := cards.GetByUIDForUpdate(ctx, 1, "C-1")
			return err
		}},
		{"card by id", "cards", func() error {
			_, err := cards.GetByIDForUpdate(ctx, 1, 7)
			return err
		}},
		{"customer", "customers", func() error {
			_, err := customers.GetForUpdate(ctx, 1, 3)
			return err
		}},
		{"payment by reference", "purchase_transactions", func() error {
			_, err := payments.GetByReferenceForUpdate(ctx, "ref-1")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.run())

			sql := lastSQL()
			assert.Contains(t, sql, tt.table)
			assert.Contains(t, sql, "FOR UPDATE")
		})
	}
}

func TestRepositories_PlainReadsDoNotLock(t *testing.T) {
	db, lastSQL := setupDryRunDB(t)
	ctx := context.Background()

	_, err := NewCardRepository(db).GetByUID(ctx, 1, "C-1")
	require.NoError(t, err)
	assert.NotContains(t, lastSQL(), "FOR UPDATE")

	_, err = NewCustomerRepository(db).Get(ctx, 1, 3)
	require.NoError(t, err)
	assert.NotContains(t, lastSQL(), "FOR UPDATE")

	_, err = NewPaymentRepository(db).GetByReference(ctx, 1, "ref-1")
	require.NoError(t, err)
	assert.NotContains(t, lastSQL(), "FOR UPDATE")
}
