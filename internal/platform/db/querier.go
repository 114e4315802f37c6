package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by pools, pooled connections and
// transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type contextKey string

const (
	connKey contextKey = "db_conn"
	txKey   contextKey = "db_tx"
)

// From returns the most specific handle bound to ctx: the open transaction,
// then the request session connection, then the pool itself.
func From(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// ConnFromContext retrieves the session-scoped connection from context.
func ConnFromContext(ctx context.Context) SessionConn {
	b, _ := ctx.Value(connKey).(*binding)
	if b == nil {
		return nil
	}
	return b.current()
}

// TxFromContext retrieves the open transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}
