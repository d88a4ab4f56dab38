package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/rowguard"
	"github.com/pthm/rowguard/internal/cli"
)

// rewriteOptions holds the flags shared by rewrite, explain and exec.
type rewriteOptions struct {
	file         string
	statementID  string
	tenant       string
	tenantColumn string
	depts        []string
	deptTables   []string
	ignore       []string
	qualify      bool
}

func (o *rewriteOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.file, "file", "f", "", "read SQL from file")
	f.StringVar(&o.statementID, "statement-id", "", "statement identifier for the rewrite cache (default: the SQL text)")
	f.StringVar(&o.tenant, "tenant", "", "tenant id to scope to")
	f.StringVar(&o.tenantColumn, "tenant-column", "", "tenant filter column")
	f.StringSliceVar(&o.depts, "dept", nil, "department ids to scope to (repeatable)")
	f.StringSliceVar(&o.deptTables, "dept-table", nil, "table scoped by department, as table or table:column (repeatable)")
	f.StringSliceVar(&o.ignore, "ignore", nil, "table exempt from scoping (repeatable)")
	f.BoolVar(&o.qualify, "qualify", false, "qualify filter columns of unaliased tables")
}

// config merges the flags over the loaded configuration.
func (o *rewriteOptions) config() cli.Config {
	c := *cfg
	c.Rules.Tenant.ID = resolveString(o.tenant, cfg.Rules.Tenant.ID)
	c.Rules.Tenant.Column = resolveString(o.tenantColumn, cfg.Rules.Tenant.Column)
	c.Rules.Dept.IDs = resolveStrings(o.depts, cfg.Rules.Dept.IDs)
	c.Rules.Dept.Tables = resolveStrings(o.deptTables, cfg.Rules.Dept.Tables)
	c.Rewrite.IgnoreTables = append(append([]string{}, cfg.Rewrite.IgnoreTables...), o.ignore...)
	c.Rewrite.QualifyColumns = resolveBool(o.qualify, cfg.Rewrite.QualifyColumns)
	return c
}

// rewriter builds a Rewriter from the merged configuration.
func (o *rewriteOptions) rewriter() *rowguard.Rewriter {
	c := o.config()

	rules := c.RuleSet()
	if len(rules) == 0 {
		logger.Warn("no rules configured, statements are returned unchanged")
	}

	opts := []rowguard.Option{
		rowguard.WithRuleSet(rules...),
		rowguard.WithLogger(logger),
		rowguard.WithIgnoreTables(c.Rewrite.IgnoreTables...),
		rowguard.WithIgnoreSchemas(c.Rewrite.IgnoreSchemas...),
	}
	if c.Rewrite.QualifyColumns {
		opts = append(opts, rowguard.WithQualifiedColumns())
	}
	return rowguard.New(opts...)
}

// explain reads the statement and returns the rewrite report.
func (o *rewriteOptions) explain(ctx context.Context, cmd *cobra.Command, args []string) (*rowguard.Report, error) {
	sql, err := readSQL(args, o.file, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	report, err := o.rewriter().Explain(ctx, sql, o.statementID)
	if err != nil {
		return nil, cli.RewriteError(err)
	}
	return report, nil
}

// readSQL returns the statement from --file, the arguments, or stdin when
// there are no arguments or the only argument is "-".
func readSQL(args []string, file string, stdin io.Reader) (string, error) {
	var sql string
	switch {
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", cli.GeneralError("reading SQL file", err)
		}
		sql = string(b)
	case len(args) > 0 && !(len(args) == 1 && args[0] == "-"):
		sql = strings.Join(args, " ")
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", cli.GeneralError("reading SQL from stdin", err)
		}
		sql = string(b)
	}

	if strings.TrimSpace(sql) == "" {
		return "", cli.GeneralError("no SQL given", fmt.Errorf("pass a statement, --file, or pipe it on stdin"))
	}
	return sql, nil
}
