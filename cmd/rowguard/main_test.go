package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/rowguard"
	"github.com/pthm/rowguard/internal/cli"
)

// run executes the root command in an empty repository directory and
// returns what it wrote to stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	oldCwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })
	require.NoError(t, os.Chdir(root))

	// Flag variables are package globals; reset them between runs.
	cfgFile, verbose, quiet, noColor = "", 0, false, true
	rewriteOpts, rewriteStrict = rewriteOptions{}, false
	explainOpts, explainOutput = rewriteOptions{}, "text"

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return stdout.String(), err
}

// normalize returns sql as the deparser prints it.
func normalize(t *testing.T, sql string) string {
	t.Helper()
	tree, err := pg_query.Parse(sql)
	require.NoError(t, err)
	out, err := pg_query.Deparse(tree)
	require.NoError(t, err)
	return out
}

func TestRewriteCommand(t *testing.T) {
	out, err := run(t, "", "rewrite", "--tenant", "42", "SELECT * FROM orders")
	require.NoError(t, err)
	assert.Equal(t, normalize(t, "SELECT * FROM orders WHERE tenant_id = 42")+"\n", out)

	out, err = run(t, "SELECT id FROM users u", "rewrite", "--tenant", "acme", "-")
	require.NoError(t, err)
	assert.Equal(t, normalize(t, "SELECT id FROM users u WHERE u.tenant_id = 'acme'")+"\n", out)
}

func TestRewriteCommand_Unchanged(t *testing.T) {
	sql := "INSERT INTO orders (id) VALUES (1)"
	out, err := run(t, "", "rewrite", "--tenant", "42", sql)
	require.NoError(t, err)
	assert.Equal(t, sql+"\n", out)
}

func TestRewriteCommand_Strict(t *testing.T) {
	_, err := run(t, "", "rewrite", "--tenant", "42", "--strict", "SELECT * FROM generate_series(1, 3)")
	require.Error(t, err)

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitUnsupported, exitErr.Code)
	assert.True(t, rowguard.IsUnsupportedConstructErr(err))
}

func TestRewriteCommand_ParseError(t *testing.T) {
	_, err := run(t, "", "rewrite", "--tenant", "42", "SELEC * FROM orders")

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cli.ExitParse, exitErr.Code)
}

func TestExplainCommand(t *testing.T) {
	out, err := run(t, "", "explain", "--tenant", "42",
		"SELECT * FROM orders o JOIN users u ON u.id = o.user_id")
	require.NoError(t, err)

	assert.Contains(t, out, "Status:    rewritten")
	assert.Contains(t, out, "Injected predicates")
	assert.Contains(t, out, "o.tenant_id = 42")
	assert.Contains(t, out, "u.tenant_id = 42")
	assert.Contains(t, out, "WHERE")
	assert.Contains(t, out, "ON")
}

func TestExplainCommand_YAML(t *testing.T) {
	out, err := run(t, "", "explain", "--tenant", "42", "-o", "yaml", "DELETE FROM orders")
	require.NoError(t, err)
	assert.Contains(t, out, "Rewritten: true")
	assert.Contains(t, out, "Predicate: tenant_id = 42")

	_, err = run(t, "", "explain", "--tenant", "42", "-o", "xml", "DELETE FROM orders")
	require.Error(t, err)
}

func TestConfigShowCommand(t *testing.T) {
	out, err := run(t, "", "config", "show", "--source")
	require.NoError(t, err)
	assert.Contains(t, out, "Config file: (none, using defaults)")
	assert.Contains(t, out, "column: tenant_id")
}

func TestReadSQL(t *testing.T) {
	sql, err := readSQL([]string{"SELECT", "1"}, "", strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)

	sql, err = readSQL([]string{"-"}, "", strings.NewReader("SELECT 2"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", sql)

	path := filepath.Join(t.TempDir(), "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 3"), 0o644))
	sql, err = readSQL(nil, path, strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3", sql)

	_, err = readSQL(nil, "", strings.NewReader("  \n"))
	require.Error(t, err)
}

func TestRewriteOptions_FlagsOverrideConfig(t *testing.T) {
	cfg = &cli.Config{
		Rewrite: cli.RewriteConfig{IgnoreTables: []string{"audit_log"}},
		Rules: cli.RulesConfig{
			Tenant: cli.TenantConfig{Column: "tenant_id", ID: "1"},
			Dept:   cli.DeptConfig{Column: "dept_id", Tables: []string{"orders"}, IDs: []string{"5"}},
		},
	}
	t.Cleanup(func() { cfg = nil })

	o := rewriteOptions{tenant: "2", depts: []string{"7", "8"}, ignore: []string{"tenants"}, qualify: true}
	c := o.config()
	assert.Equal(t, "2", c.Rules.Tenant.ID)
	assert.Equal(t, []string{"7", "8"}, c.Rules.Dept.IDs)
	assert.Equal(t, []string{"orders"}, c.Rules.Dept.Tables)
	assert.Equal(t, []string{"audit_log", "tenants"}, c.Rewrite.IgnoreTables)
	assert.True(t, c.Rewrite.QualifyColumns)
	assert.Equal(t, []string{"audit_log"}, cfg.Rewrite.IgnoreTables, "loaded config is not modified")
}

func TestRenderReport(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	err := renderReport(&buf, &rowguard.Report{
		StatementID: "orders.list",
		SQL:         "SELECT * FROM orders WHERE tenant_id = 1",
		Rewritten:   true,
		Injections: []rowguard.Injection{
			{Rule: "tenant", Schema: "shop", Table: "orders", Clause: rowguard.ClauseWhere, Predicate: "tenant_id = 1"},
		},
		Unsupported: []*rowguard.UnsupportedConstructError{
			{Construct: "table function", Detail: "generate_series"},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Statement: orders.list")
	assert.Contains(t, out, "Status:    rewritten")
	assert.Contains(t, out, "shop.orders")
	assert.Contains(t, out, "Left unscoped")
	assert.Contains(t, out, "generate_series")
	assert.True(t, strings.HasSuffix(out, "SELECT * FROM orders WHERE tenant_id = 1\n"))
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "NULL", formatCell(nil))
	assert.Equal(t, "abc", formatCell([]byte("abc")))
	assert.Equal(t, "42", formatCell(int64(42)))
}
