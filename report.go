package rowguard

import (
	"fmt"
	"strings"
)

// Clause names where a predicate was placed.
type Clause string

const (
	ClauseWhere Clause = "WHERE"
	ClauseOn    Clause = "ON"
)

// Injection records one predicate added to the statement.
type Injection struct {
	Rule   string
	Schema string
	Table  string
	Alias  string
	Clause Clause
	// Predicate is a display rendering of the injected condition.
	Predicate string
}

// Report describes the outcome of a rewrite. It is returned by Explain.
type Report struct {
	StatementID string
	// SQL is the text to execute: the rewritten statement, or the input
	// unchanged when nothing was injected.
	SQL         string
	Rewritten   bool
	Skipped     bool
	Injections  []Injection
	Unsupported []*UnsupportedConstructError
}

// formatPredicate renders a condition for reports and logs.
// It is not used to build SQL; the tree is serialized by the deparser.
func formatPredicate(qualifier, column string, values []any) string {
	col := column
	if qualifier != "" {
		col = qualifier + "." + column
	}
	switch len(values) {
	case 0:
		return col + " IN (NULL)"
	case 1:
		return col + " = " + formatValue(values[0])
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return col + " IN (" + strings.Join(parts, ", ") + ")"
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case fmt.Stringer:
		return "'" + strings.ReplaceAll(val.String(), "'", "''") + "'"
	default:
		return fmt.Sprint(val)
	}
}
