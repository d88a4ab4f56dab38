package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pthm/rowguard/internal/cli"
)

var (
	explainOpts   rewriteOptions
	explainOutput string
)

var explainCmd = &cobra.Command{
	Use:   "explain [SQL | -]",
	Short: "Show the predicates a rewrite would inject",
	Long: `Rewrite a statement and report every injected predicate with the table,
alias and clause it was attached to, followed by the constructs that were
left unscoped and the resulting SQL.`,
	Example: `  # Explain a join
  rowguard explain --tenant 42 "SELECT * FROM orders o LEFT JOIN users u ON u.id = o.user_id"

  # Machine readable report
  rowguard explain --tenant 42 -o yaml "DELETE FROM orders WHERE total = 0"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := explainOpts.explain(cmd.Context(), cmd, args)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		switch explainOutput {
		case "text":
			if err := renderReport(w, report); err != nil {
				return err
			}
		case "yaml":
			out, err := yaml.Marshal(report)
			if err != nil {
				return cli.GeneralError("encoding report", err)
			}
			fmt.Fprint(w, string(out))
		default:
			return cli.ConfigError(fmt.Sprintf("unknown output format %q (want text or yaml)", explainOutput), nil)
		}
		return nil
	},
}

func init() {
	explainOpts.bind(explainCmd)
	explainCmd.Flags().StringVarP(&explainOutput, "output", "o", "text", "output format: text or yaml")
}
