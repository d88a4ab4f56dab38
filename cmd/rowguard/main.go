// Command rowguard rewrites SQL statements with row-scoping predicates.
//
// The CLI supports:
//   - rewrite: print the scoped form of a statement
//   - explain: show which predicates were injected and what was left unscoped
//   - exec: run a scoped statement against PostgreSQL and print the rows
//   - config show: print the effective configuration
//
// Rules come from rowguard.yaml, ROWGUARD_* environment variables and flags,
// in increasing order of precedence.
//
// Usage:
//
//	rowguard [flags] <command>
package main

func main() {
	Execute()
}
