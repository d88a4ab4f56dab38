package rowguard

import "context"

// Context keys are private types to avoid collisions.
type (
	rulesContextKey       struct{}
	statementIDContextKey struct{}
)

// WithRules returns a new context carrying the rules for the current task.
//
// This is the explicit replacement for ambient per-thread state: request
// middleware binds the caller's rules once, and every rewrite performed with
// that context (or a context derived from it, including one handed to another
// goroutine) sees them. Rewriters consult it through ContextProvider, which
// is the default provider.
func WithRules(ctx context.Context, rules ...Rule) context.Context {
	return context.WithValue(ctx, rulesContextKey{}, rules)
}

// RulesFromContext retrieves the rules bound with WithRules.
// Returns nil if no rules are bound.
func RulesFromContext(ctx context.Context) []Rule {
	if rules, ok := ctx.Value(rulesContextKey{}).([]Rule); ok {
		return rules
	}
	return nil
}

// WithStatementID returns a new context carrying the statement identifier
// used by the execution hooks in pkg/sqlguard and pkg/pgxguard.
func WithStatementID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, statementIDContextKey{}, id)
}

// StatementIDFromContext retrieves the identifier bound with WithStatementID.
// Returns "" if none is bound, which makes the rewriter key the cache by the
// SQL text.
func StatementIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(statementIDContextKey{}).(string); ok {
		return id
	}
	return ""
}

// rewriteContext is the state of one Rewrite call. It is created per
// statement, threaded explicitly through the traversal and discarded when the
// call returns.
type rewriteContext struct {
	rw        *Rewriter
	rules     []Rule
	rewritten bool
	report    *Report

	// ctes holds the CTE names visible at the current nesting level.
	// References to them are not base tables and are never scoped.
	ctes []map[string]struct{}
}

func newRewriteContext(rw *Rewriter, rules []Rule, report *Report) *rewriteContext {
	return &rewriteContext{
		rw:     rw,
		rules:  rules,
		report: report,
	}
}

func (rc *rewriteContext) pushCTEs() map[string]struct{} {
	scope := make(map[string]struct{})
	rc.ctes = append(rc.ctes, scope)
	return scope
}

func (rc *rewriteContext) popCTEs() {
	rc.ctes = rc.ctes[:len(rc.ctes)-1]
}

func (rc *rewriteContext) isCTE(t tableRef) bool {
	if t.schema != "" {
		return false
	}
	for i := len(rc.ctes) - 1; i >= 0; i-- {
		if _, ok := rc.ctes[i][t.name]; ok {
			return true
		}
	}
	return false
}

func (rc *rewriteContext) unsupported(construct, detail string) {
	e := &UnsupportedConstructError{Construct: construct, Detail: detail}
	rc.report.Unsupported = append(rc.report.Unsupported, e)
	rc.rw.logger.Warn("rowguard: construct left unscoped",
		"construct", construct,
		"detail", detail,
		"statement_id", rc.report.StatementID,
	)
	if rc.rw.onUnsupported != nil {
		rc.rw.onUnsupported(e)
	}
}
