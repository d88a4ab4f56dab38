package rowguard

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes of a rewrite.
// A rewrite either succeeds completely or returns one of these; there is no
// partially rewritten output. Unsupported constructs are not errors: they are
// reported through the logger and the Report, and the statement proceeds.
//
// Use the Is*Err helper functions to check for specific errors.
var (
	// ErrParse is returned when the SQL text cannot be parsed.
	// The parser error is wrapped alongside it.
	ErrParse = errors.New("rowguard: parse SQL")

	// ErrDeparse is returned when a rewritten tree cannot be serialized.
	ErrDeparse = errors.New("rowguard: deparse SQL")

	// ErrRuleEvaluation is returned when a rule fails while deciding whether
	// it applies to a table. Rewrites never fail open: the statement is not
	// executed unscoped.
	ErrRuleEvaluation = errors.New("rowguard: rule evaluation failed")

	// ErrRuleProvider is returned when the configured RuleProvider fails.
	ErrRuleProvider = errors.New("rowguard: rule provider failed")

	// ErrUnsupportedConstruct marks a construct the rewriter cannot scope.
	// It is never returned by Rewrite; UnsupportedConstructError values are
	// collected in Report.Unsupported instead.
	ErrUnsupportedConstruct = errors.New("rowguard: unsupported construct")

	// ErrMissingTenant is returned by TenantRule when no tenant is bound.
	ErrMissingTenant = errors.New("rowguard: no tenant bound")

	// ErrUnsupportedValue is returned when a condition value has no SQL
	// literal form.
	ErrUnsupportedValue = errors.New("rowguard: unsupported condition value")
)

// RuleEvaluationError reports which rule failed for which table.
type RuleEvaluationError struct {
	Rule  string
	Table string
	Err   error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rowguard: rule %q on table %q: %v", e.Rule, e.Table, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRuleEvaluation) hold for every RuleEvaluationError.
func (e *RuleEvaluationError) Is(target error) bool {
	return target == ErrRuleEvaluation
}

// UnsupportedConstructError describes a FROM item or join shape that was
// passed through without a predicate.
type UnsupportedConstructError struct {
	// Construct names the node kind, for example "table function".
	Construct string
	// Detail identifies the occurrence, usually the table or function name.
	Detail string
}

func (e *UnsupportedConstructError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rowguard: unsupported construct %s", e.Construct)
	}
	return fmt.Sprintf("rowguard: unsupported construct %s (%s)", e.Construct, e.Detail)
}

func (e *UnsupportedConstructError) Is(target error) bool {
	return target == ErrUnsupportedConstruct
}

// IsParseErr returns true if err is or wraps ErrParse.
func IsParseErr(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsDeparseErr returns true if err is or wraps ErrDeparse.
func IsDeparseErr(err error) bool {
	return errors.Is(err, ErrDeparse)
}

// IsRuleEvaluationErr returns true if err is or wraps ErrRuleEvaluation.
func IsRuleEvaluationErr(err error) bool {
	return errors.Is(err, ErrRuleEvaluation)
}

// IsRuleProviderErr returns true if err is or wraps ErrRuleProvider.
func IsRuleProviderErr(err error) bool {
	return errors.Is(err, ErrRuleProvider)
}

// IsUnsupportedConstructErr returns true if err is or wraps ErrUnsupportedConstruct.
func IsUnsupportedConstructErr(err error) bool {
	return errors.Is(err, ErrUnsupportedConstruct)
}
