// Package dbx provides the DB plumbing shared by the SQL repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// transaction helpers, placeholder rebinding for the supported dialects
// and a process-scoped connection pool.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is what the repositories need from *sql.DB and *sql.Tx alike.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx runs fn inside a transaction and returns its result. The transaction
// commits only when fn returns a nil error; any error or panic rolls it back
// and a panic is re-raised after the rollback.
//
//	rec, err := dbx.InTx(ctx, db, func(ctx context.Context, tx dbx.DBTX) (*models.AttemptRecord, error) {
//	    // read FOR UPDATE, mutate, write back
//	})
func InTx[T any](ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) (T, error)) (T, error) {
	var zero T

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	out, err := fn(ctx, tx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	committed = true
	return out, nil
}
