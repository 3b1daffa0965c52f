package pg

import (
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending goose migration found in dir.
func Migrate(cfg Config, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	defer db.Close()

	if err = goose.Up(db, dir); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

func MigrationStatus(cfg Config, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	defer db.Close()

	return goose.Status(db, dir)
}
