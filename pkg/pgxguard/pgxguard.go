// Package pgxguard scopes statements executed through pgx.
//
// Wrap a pool, connection or transaction to rewrite every statement:
//
//	db := pgxguard.Wrap(pool, rw)
//	ctx = rowguard.WithStatementID(ctx, "orders.list")
//	rows, err := db.Query(ctx, "SELECT * FROM orders WHERE total > $1", 10)
//
// Or rewrite a single call through pgx's QueryRewriter hook:
//
//	rows, err := conn.Query(ctx, "SELECT * FROM orders", pgxguard.Scope(rw, "orders.list"))
package pgxguard

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pthm/rowguard"
)

// Querier is implemented by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB rewrites statements before handing them to the wrapped Querier.
// The statement identifier is read from the context with
// rowguard.StatementIDFromContext.
type DB struct {
	q  Querier
	rw *rowguard.Rewriter
}

// Wrap returns a DB executing through q.
func Wrap(q Querier, rw *rowguard.Rewriter) *DB {
	return &DB{q: q, rw: rw}
}

func (d *DB) rewrite(ctx context.Context, sql string) (string, error) {
	return d.rw.Rewrite(ctx, sql, rowguard.StatementIDFromContext(ctx))
}

// Exec rewrites sql and executes it.
func (d *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	scoped, err := d.rewrite(ctx, sql)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return d.q.Exec(ctx, scoped, args...)
}

// Query rewrites sql and runs it.
func (d *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	scoped, err := d.rewrite(ctx, sql)
	if err != nil {
		return nil, err
	}
	return d.q.Query(ctx, scoped, args...)
}

// QueryRow rewrites sql and runs it. A rewrite error is returned by Scan.
func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	scoped, err := d.rewrite(ctx, sql)
	if err != nil {
		return errRow{err: err}
	}
	return d.q.QueryRow(ctx, scoped, args...)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error { return r.err }

// rewriter adapts a Rewriter to pgx.QueryRewriter.
type rewriter struct {
	rw          *rowguard.Rewriter
	statementID string
}

// Scope returns a pgx.QueryRewriter for a single call. An empty statementID
// falls back to the context's identifier, then to the SQL text.
func Scope(rw *rowguard.Rewriter, statementID string) pgx.QueryRewriter {
	return &rewriter{rw: rw, statementID: statementID}
}

func (r *rewriter) RewriteQuery(ctx context.Context, _ *pgx.Conn, sql string, args []any) (string, []any, error) {
	id := r.statementID
	if id == "" {
		id = rowguard.StatementIDFromContext(ctx)
	}
	scoped, err := r.rw.Rewrite(ctx, sql, id)
	if err != nil {
		return "", nil, err
	}
	return scoped, args, nil
}

var (
	_ Querier           = (*DB)(nil)
	_ pgx.QueryRewriter = (*rewriter)(nil)
	_ pgx.Row           = errRow{}
)
