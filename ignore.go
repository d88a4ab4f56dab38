package rowguard

import "strings"

// IgnorePolicy reports whether a table is exempt from scoping.
// It is consulted before every injection, whatever the clause.
type IgnorePolicy func(table string) bool

// IgnoreTables returns a policy exempting the named tables.
// Names are compared case-insensitively.
func IgnoreTables(names ...string) IgnorePolicy {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return func(table string) bool {
		_, ok := set[strings.ToLower(table)]
		return ok
	}
}

// IgnoreSchemas returns a policy exempting every table of the named schemas,
// such as pg_catalog or information_schema. Unqualified tables never match.
func IgnoreSchemas(names ...string) func(schema, table string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return func(schema, _ string) bool {
		_, ok := set[strings.ToLower(schema)]
		return ok
	}
}

func (r *Rewriter) ignored(t tableRef) bool {
	for _, p := range r.ignore {
		if p(t.name) {
			return true
		}
	}
	for _, p := range r.ignoreQualified {
		if p(t.schema, t.name) {
			return true
		}
	}
	return false
}
