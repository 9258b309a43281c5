package postgres

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables used by the postgres stores if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

// withTx runs fn inside a transaction and commits it, rolling back on any error.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	dbTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = fn(dbTx); err != nil {
		return err
	}
	return dbTx.Commit()
}
