// Package sqlguard scopes statements executed through database/sql.
//
// The wrapper works with *sql.DB, *sql.Tx or *sql.Conn, so scoped queries see
// uncommitted changes inside a transaction:
//
//	tx, _ := db.BeginTx(ctx, nil)
//	q := sqlguard.New(tx, rw)
//	ctx = rowguard.WithStatementID(ctx, "orders.cancel")
//	_, err := q.ExecContext(ctx, "UPDATE orders SET status = 'cancelled' WHERE id = $1", id)
package sqlguard

import (
	"context"
	"database/sql"

	"github.com/pthm/rowguard"
)

// Execer is implemented by *sql.DB, *sql.Tx and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier rewrites statements before handing them to the wrapped Execer.
// The statement identifier is read from the context with
// rowguard.StatementIDFromContext.
type Querier struct {
	q  Execer
	rw *rowguard.Rewriter
}

// New returns a Querier executing through q.
func New(q Execer, rw *rowguard.Rewriter) *Querier {
	return &Querier{q: q, rw: rw}
}

func (g *Querier) rewrite(ctx context.Context, query string) (string, error) {
	return g.rw.Rewrite(ctx, query, rowguard.StatementIDFromContext(ctx))
}

// ExecContext rewrites query and executes it.
func (g *Querier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	scoped, err := g.rewrite(ctx, query)
	if err != nil {
		return nil, err
	}
	return g.q.ExecContext(ctx, scoped, args...)
}

// QueryContext rewrites query and runs it.
func (g *Querier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	scoped, err := g.rewrite(ctx, query)
	if err != nil {
		return nil, err
	}
	return g.q.QueryContext(ctx, scoped, args...)
}

// Row is the result of QueryRowContext. *sql.Row cannot carry an error from
// outside database/sql, so a rewrite failure is held here and returned by Scan.
type Row struct {
	row *sql.Row
	err error
}

// Scan copies the row's columns into dest, or returns the rewrite error.
func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.row.Scan(dest...)
}

// Err returns the rewrite error or the row's deferred error.
func (r *Row) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.row.Err()
}

// QueryRowContext rewrites query and runs it. The statement is not executed
// when the rewrite fails.
func (g *Querier) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	scoped, err := g.rewrite(ctx, query)
	if err != nil {
		return &Row{err: err}
	}
	return &Row{row: g.q.QueryRowContext(ctx, scoped, args...)}
}
