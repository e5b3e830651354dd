package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gwiit/backend/internal/routing"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactions are keyed by handle so a transaction opened on one store is never picked up by a
// repository that talks to another.
type txKey struct{ db *sql.DB }

// WithTx stores tx in ctx for downstream repositories using db.
func WithTx(ctx context.Context, db *sql.DB, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{db: db}, tx)
}

// TxFrom extracts the transaction open on db, if any.
func TxFrom(ctx context.Context, db *sql.DB) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{db: db}).(*sql.Tx)
	return tx, ok
}

// Conn returns the transaction open on db in ctx, or db itself.
func Conn(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := TxFrom(ctx, db); ok {
		return tx
	}
	return db
}

// WriteConn returns the querier writes of d go through. A record that already carries a store
// (placed is non-empty) must have come from the store d routes to; otherwise the write is
// refused with routing.ErrWrongStore before any handle is touched.
func WriteConn(ctx context.Context, loc routing.Locator, d routing.Domain, placed routing.Store) (Querier, error) {
	if placed != "" {
		if err := loc.Table().CheckWrite(d, placed); err != nil {
			return nil, err
		}
	}
	h, err := loc.DBForWrite(ctx, d)
	if err != nil {
		return nil, err
	}
	return Conn(ctx, h), nil
}

// WithinTx runs fn inside a transaction on db. If ctx already carries a transaction for db, fn
// joins it and the outer caller decides commit or rollback.
func WithinTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) (err error) {
	if _, ok := TxFrom(ctx, db); ok {
		return fn(ctx)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit tx: %w", cErr)
		}
	}()
	return fn(WithTx(ctx, db, tx))
}
