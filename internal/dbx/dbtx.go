// Package dbx provides tiny DB abstractions shared by the credential store:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx, and a
// helper to run functions inside a transaction. The store relies on WithTx
// to swap tokens and the MFA correlator atomically, so the on-disk session
// never holds both at once.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql the credential store needs.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    if err := store.Set(ctx, tx, "access_token", token); err != nil {
//	        return err
//	    }
//	    return store.Delete(ctx, tx, "mfa_session_id")
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
