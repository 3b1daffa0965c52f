// Package testutil wires sqlite and miniredis backed dependencies for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	"github.com/nimasrn/cashback-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory sqlite database with every ledger table.
// A single connection serializes transactions the way row locks do on Postgres.
func SetupTestDB(t *testing.T) *pg.DB {
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
	require.NoError(t, pgDB.AutoMigrate(repository.Entities()...))

	t.Cleanup(func() {
		_ = pgDB.Close()
	})
	return pgDB
}

// SetupTestRedis starts miniredis and returns an adapter bound to it.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// adapters are cached by name, so every test gets its own
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	require.NoError(t, adapter.Ping(context.Background()))

	return mr, adapter
}
