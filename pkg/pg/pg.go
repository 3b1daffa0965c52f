package pg

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type txContextKey string

const txKey txContextKey = "trx"

type DB struct {
	read      *gorm.DB
	write     *gorm.DB
	txTimeout time.Duration
}

func Create(config Config, withDebug bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(config.DSN()),
		&gorm.Config{
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			},
			TranslateError: true,
		})
	if err != nil {
		return nil, err
	}

	if withDebug {
		db = db.Debug()
	}
	return db, nil
}

func CreateReadWrite(readConfig Config, writeConfig Config, withDebug bool) (*DB, error) {
	read, err := Create(readConfig, withDebug)
	if err != nil {
		return nil, err
	}
	write, err := Create(writeConfig, withDebug)
	if err != nil {
		return nil, err
	}
	return New(read, write), nil
}

// New wraps already opened handles. Tests pass the same sqlite handle twice.
func New(read, write *gorm.DB) *DB {
	return &DB{read: read, write: write}
}

// SetTxTimeout bounds every outermost transaction started by WithinTransaction.
func (r *DB) SetTxTimeout(d time.Duration) {
	r.txTimeout = d
}

// WithinTransaction runs fn inside a transaction carried by the returned context.
// If ctx already holds a transaction, fn joins it and the outer scope decides commit or rollback.
func (r *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	if r.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	return r.write.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}

func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey).(*gorm.DB)
	return ok
}

func (r *DB) Write(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	if ok {
		return tx
	}

	tx = r.write.WithContext(ctx)

	return tx
}

func (r *DB) Read(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	if ok {
		return tx
	}

	tx = r.read.WithContext(ctx)

	return tx
}

func (r *DB) Ping(ctx context.Context) error {
	sqlDB, err := r.write.DB()
	if err != nil {
		return errors.Wrap(err, "get write pool")
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate is used by tests running on sqlite where goose SQL files do not apply.
func (r *DB) AutoMigrate(models ...any) error {
	return r.write.AutoMigrate(models...)
}

func (r *DB) Close() error {
	handles := []*gorm.DB{r.write}
	if r.read != r.write {
		handles = append(handles, r.read)
	}
	for _, db := range handles {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err = sqlDB.Close(); err != nil {
			return err
		}
	}
	return nil
}
