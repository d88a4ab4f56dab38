package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/pthm/rowguard"
	"github.com/pthm/rowguard/internal/cli"
	"github.com/pthm/rowguard/pkg/sqlguard"
)

var (
	execOpts rewriteOptions
	execDB   string
	execArgs []string
)

var execCmd = &cobra.Command{
	Use:   "exec [SQL | -]",
	Short: "Run a scoped statement and print the result",
	Long: `Rewrite a statement with the configured rules and run it against
PostgreSQL. Rows are printed as a table. The statement is not sent to the
database when the rewrite fails.`,
	Example: `  # List one tenant's orders
  rowguard exec --db postgres://localhost/shop --tenant 42 "SELECT id, total FROM orders"

  # Bind positional parameters
  rowguard exec --tenant 42 --arg 100 "SELECT id FROM orders WHERE total > $1"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := readSQL(args, execOpts.file, cmd.InOrStdin())
		if err != nil {
			return err
		}

		dsn, err := resolveDSN(execDB)
		if err != nil {
			return err
		}

		return runExec(cmd.Context(), cmd.OutOrStdout(), dsn, query)
	},
}

func init() {
	execOpts.bind(execCmd)
	f := execCmd.Flags()
	f.StringVar(&execDB, "db", "", "database URL")
	f.StringArrayVar(&execArgs, "arg", nil, "positional parameter value for $1, $2, ... (repeatable)")
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}

func runExec(ctx context.Context, w io.Writer, dsn, query string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return cli.DBConnectError("connecting to database", err)
	}

	params := make([]any, len(execArgs))
	for i, a := range execArgs {
		params[i] = a
	}

	q := sqlguard.New(db, execOpts.rewriter())
	ctx = rowguard.WithStatementID(ctx, execOpts.statementID)

	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		if isRewriteErr(err) {
			return cli.RewriteError(err)
		}
		return cli.GeneralError("executing statement", err)
	}
	defer func() { _ = rows.Close() }()

	return printRows(w, rows)
}

func isRewriteErr(err error) bool {
	return rowguard.IsParseErr(err) || rowguard.IsDeparseErr(err) ||
		rowguard.IsRuleEvaluationErr(err) || rowguard.IsRuleProviderErr(err)
}

func printRows(w io.Writer, rows *sql.Rows) error {
	columns, err := rows.Columns()
	if err != nil {
		return cli.GeneralError("reading columns", err)
	}
	if len(columns) == 0 {
		if err := rows.Err(); err != nil {
			return cli.GeneralError("executing statement", err)
		}
		fmt.Fprintln(w, "OK")
		return nil
	}

	table := newTable(w, len(columns))
	table.Header(columns)

	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return cli.GeneralError("reading row", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatCell(v)
		}
		if err := table.Append(row); err != nil {
			return cli.GeneralError("rendering rows", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return cli.GeneralError("reading rows", err)
	}

	if err := table.Render(); err != nil {
		return cli.GeneralError("rendering rows", err)
	}
	fmt.Fprintf(w, "\n_%d rows_\n", count)
	return nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
