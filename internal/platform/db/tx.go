package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const (
	txKey   contextKey = "db_tx"
	connKey contextKey = "db_conn"
)

// WithTx runs fn inside a transaction. The transaction is placed on the
// context so repositories picked up through conn(ctx) share it.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// TxFromContext retrieves the active transaction from context, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// WithConn places an acquired connection on the context.
func WithConn(ctx context.Context, conn *pgxpool.Conn) context.Context {
	return context.WithValue(ctx, connKey, conn)
}

// ConnFromContext retrieves a request-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(connKey).(*pgxpool.Conn)
	return conn
}
