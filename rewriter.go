package rowguard

import (
	"context"
	"fmt"
	"log/slog"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Rewriter injects row-scoping predicates into SQL statements.
//
// For each statement it asks the RuleProvider for the active rules, consults
// the Cache, then walks the parsed tree and adds one predicate per applicable
// rule to every base table reference of a SELECT, UPDATE or DELETE:
//
//   - tables in a FROM list are scoped through the statement's WHERE,
//   - right-hand join tables are scoped through the ON of their join,
//   - set operation branches, CTE bodies and subqueries in WHERE, the select
//     list and FROM are scoped recursively,
//   - UPDATE and DELETE scope their target table only.
//
// INSERT and all other statements are returned unchanged.
//
// A Rewriter is safe for concurrent use. The cache is the only shared state;
// every call builds its own rewrite context.
type Rewriter struct {
	provider        RuleProvider
	cache           Cache
	ignore          []IgnorePolicy
	ignoreQualified []func(schema, table string) bool
	logger          *slog.Logger
	qualifyColumns  bool
	onUnsupported   func(*UnsupportedConstructError)
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithProvider sets the source of rules. The default is ContextProvider,
// which reads rules bound with WithRules.
func WithProvider(p RuleProvider) Option {
	return func(r *Rewriter) {
		r.provider = p
	}
}

// WithRuleSet makes every statement use the given rules.
func WithRuleSet(rules ...Rule) Option {
	return WithProvider(StaticProvider(rules...))
}

// WithCache replaces the default in-memory cache.
// Pass a shared cache to let several rewriters learn from each other.
func WithCache(c Cache) Option {
	return func(r *Rewriter) {
		r.cache = c
	}
}

// WithIgnorePolicy adds a table-skip policy. Policies are combined with OR.
func WithIgnorePolicy(p IgnorePolicy) Option {
	return func(r *Rewriter) {
		r.ignore = append(r.ignore, p)
	}
}

// WithIgnoreTables exempts the named tables from scoping.
func WithIgnoreTables(names ...string) Option {
	return WithIgnorePolicy(IgnoreTables(names...))
}

// WithIgnoreSchemas exempts every table of the named schemas.
func WithIgnoreSchemas(names ...string) Option {
	return func(r *Rewriter) {
		r.ignoreQualified = append(r.ignoreQualified, IgnoreSchemas(names...))
	}
}

// WithLogger sets the logger. Skips and injections are logged at debug
// level, unsupported constructs at warn level. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Rewriter) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithQualifiedColumns qualifies the filter column of unaliased tables with
// the table name, so `FROM a JOIN b` scopes `a.tenant_id` and `b.tenant_id`
// instead of an ambiguous `tenant_id`.
func WithQualifiedColumns() Option {
	return func(r *Rewriter) {
		r.qualifyColumns = true
	}
}

// WithUnsupportedHandler registers a callback for constructs that were left
// unscoped. It runs synchronously during the rewrite.
func WithUnsupportedHandler(fn func(*UnsupportedConstructError)) Option {
	return func(r *Rewriter) {
		r.onUnsupported = fn
	}
}

// New creates a Rewriter.
func New(opts ...Option) *Rewriter {
	r := &Rewriter{
		provider: ContextProvider{},
		cache:    NewCache(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite returns sql with row-scoping predicates injected.
//
// statementID identifies the query template for the cache; an empty id keys
// the cache by the SQL text itself. When no predicate is injected the input
// is returned byte for byte; otherwise the result is the deparsed tree, whose
// formatting may differ from the input.
//
// Errors are ErrRuleProvider, ErrParse, ErrDeparse or a RuleEvaluationError.
// On error nothing is recorded in the cache.
func (r *Rewriter) Rewrite(ctx context.Context, sql, statementID string) (string, error) {
	report, err := r.Explain(ctx, sql, statementID)
	if err != nil {
		return "", err
	}
	return report.SQL, nil
}

// Explain performs a rewrite and reports every injection and every
// construct left unscoped.
func (r *Rewriter) Explain(ctx context.Context, sql, statementID string) (*Report, error) {
	if statementID == "" {
		statementID = sql
	}

	rules, err := r.provider.Rules(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRuleProvider, err)
	}

	report := &Report{StatementID: statementID, SQL: sql}
	if r.cache.ShouldSkip(statementID, rules) {
		report.Skipped = true
		r.logger.Debug("rowguard: rewrite skipped", "statement_id", statementID, "rules", len(rules))
		return report, nil
	}

	tree, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	rc := newRewriteContext(r, rules, report)
	for _, raw := range tree.Stmts {
		if err := rc.processStatement(raw.Stmt); err != nil {
			return nil, err
		}
	}

	if !rc.rewritten {
		// Statements with unscoped constructs are never cached; every
		// execution reports them.
		if len(report.Unsupported) == 0 {
			r.cache.RecordNoRewrite(statementID, rules)
		}
		return report, nil
	}

	out, err := pg_query.Deparse(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeparse, err)
	}
	report.SQL = out
	report.Rewritten = true
	return report, nil
}
