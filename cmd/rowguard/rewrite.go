package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/rowguard/internal/cli"
)

var (
	rewriteOpts   rewriteOptions
	rewriteStrict bool
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [SQL | -]",
	Short: "Print the scoped form of a statement",
	Long: `Parse a statement, inject the configured row-scoping predicates and print
the result. Statements that need no predicate are printed unchanged.`,
	Example: `  # Scope a query to tenant 42
  rowguard rewrite --tenant 42 "SELECT * FROM orders o JOIN users u ON u.id = o.user_id"

  # Read from a file and restrict two tables to departments 1 and 2
  rowguard rewrite -f report.sql --tenant 42 --dept-table orders --dept-table users --dept 1,2

  # Fail when part of the statement could not be scoped
  echo "SELECT * FROM generate_series(1, 3)" | rowguard rewrite --tenant 42 --strict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := rewriteOpts.explain(cmd.Context(), cmd, args)
		if err != nil {
			return err
		}

		if rewriteStrict && len(report.Unsupported) > 0 {
			return cli.UnsupportedError("statement left partially unscoped", report.Unsupported[0])
		}

		out := report.SQL
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rewriteOpts.bind(rewriteCmd)
	rewriteCmd.Flags().BoolVar(&rewriteStrict, "strict", false, "fail when a construct could not be scoped")
}
