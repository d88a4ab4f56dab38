// Package rowguard enforces row-level access control by rewriting SQL
// before it reaches PostgreSQL.
//
// Every SELECT, UPDATE and DELETE is parsed, every base table reference that
// a rule applies to receives a scoping predicate such as `tenant_id = 42` or
// `dept_id IN (1, 2)`, and the tree is serialized back to SQL. Application
// queries stay unaware of the scoping.
//
// # Rules
//
// A Rule answers, for one table, whether rows must be scoped and by which
// values. TenantRule and DeptRule cover the common cases; RuleFunc adapts any
// function.
//
//	rule := rowguard.TenantRule{TenantID: 42, IgnoreTables: []string{"plans"}}
//
// # Basic Usage
//
//	rw := rowguard.New(rowguard.WithRuleSet(rule))
//	sql, err := rw.Rewrite(ctx, "SELECT * FROM orders o WHERE o.total > 10", "orders.list")
//	// SELECT * FROM orders o WHERE o.tenant_id = 42 AND o.total > 10
//
// # Per-request Rules
//
// The default provider reads rules from the context, so middleware can bind
// the caller's scope once:
//
//	ctx = rowguard.WithRules(ctx, rowguard.TenantRule{TenantID: user.TenantID})
//	sql, err := rw.Rewrite(ctx, query, "orders.list")
//
// # Caching
//
// Statements that needed no predicate are remembered per rule type and
// statement identifier, and skip parsing on later calls. Statement
// identifiers should name query templates, not concrete queries.
//
// # Execution Hooks
//
// pkg/sqlguard wraps *sql.DB, *sql.Tx and *sql.Conn; pkg/pgxguard plugs into
// pgx as a QueryRewriter. Both rewrite every statement they execute.
package rowguard
