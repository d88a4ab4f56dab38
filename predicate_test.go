package rowguard

import (
	"errors"
	"testing"
	"time"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeLiteral(t *testing.T) {
	ival := func(n *pg_query.Node) int32 { return n.GetAConst().GetIval().GetIval() }
	fval := func(n *pg_query.Node) string { return n.GetAConst().GetFval().GetFval() }

	n, err := makeLiteral(7)
	require.NoError(t, err)
	assert.Equal(t, int32(7), ival(n))

	n, err = makeLiteral(int64(1) << 40)
	require.NoError(t, err)
	assert.Equal(t, "1099511627776", fval(n))

	n, err = makeLiteral(uint64(1) << 63)
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", fval(n))

	n, err = makeLiteral(2.5)
	require.NoError(t, err)
	assert.Equal(t, "2.5", fval(n))

	n, err = makeLiteral("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", n.GetAConst().GetSval().GetSval())

	n, err = makeLiteral(true)
	require.NoError(t, err)
	assert.True(t, n.GetAConst().GetBoolval().GetBoolval())

	n, err = makeLiteral(nil)
	require.NoError(t, err)
	assert.True(t, n.GetAConst().GetIsnull())

	n, err = makeLiteral(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "1s", n.GetAConst().GetSval().GetSval())

	_, err = makeLiteral(struct{}{})
	assert.True(t, errors.Is(err, ErrUnsupportedValue))
}

func TestMakeAndExpr(t *testing.T) {
	pred := makeStringConst("p")

	assert.Same(t, pred, makeAndExpr(pred, nil))

	or := makeBoolExpr(pg_query.BoolExprType_OR_EXPR, []*pg_query.Node{makeStringConst("a"), makeStringConst("b")})
	got := makeAndExpr(pred, or).GetBoolExpr()
	require.NotNil(t, got)
	assert.Equal(t, pg_query.BoolExprType_AND_EXPR, got.Boolop)
	require.Len(t, got.Args, 2)
	assert.Same(t, pred, got.Args[0], "new predicate comes first")
	assert.Same(t, or, got.Args[1], "existing OR stays one argument")

	and := makeBoolExpr(pg_query.BoolExprType_AND_EXPR, []*pg_query.Node{makeStringConst("a"), makeStringConst("b")})
	got = makeAndExpr(pred, and).GetBoolExpr()
	require.Len(t, got.Args, 3, "existing AND is flattened")
}

func TestFlattenJoin(t *testing.T) {
	joinOf := func(t *testing.T, sql string) *pg_query.JoinExpr {
		t.Helper()
		tree, err := pg_query.Parse(sql)
		require.NoError(t, err)
		j := tree.Stmts[0].Stmt.GetSelectStmt().FromClause[0].GetJoinExpr()
		require.NotNil(t, j)
		return j
	}
	relname := func(n *pg_query.Node) string { return n.GetRangeVar().GetRelname() }

	t.Run("left deep chain", func(t *testing.T) {
		jl := flattenJoin(joinOf(t, "SELECT * FROM a JOIN b ON true JOIN c ON true"))
		assert.Equal(t, "a", relname(jl.lead))
		require.Len(t, jl.clauses, 2)
		assert.Equal(t, "b", relname(jl.clauses[0].right))
		assert.Len(t, jl.clauses[0].ons, 1)
		assert.Equal(t, "c", relname(jl.clauses[1].right))
		assert.Len(t, jl.clauses[1].ons, 1)
	})

	t.Run("deferred ON clauses", func(t *testing.T) {
		outer := joinOf(t, "SELECT * FROM a JOIN b JOIN c ON true ON true")
		jl := flattenJoin(outer)
		assert.Equal(t, "a", relname(jl.lead))
		assert.Same(t, outer, jl.leadJoin)
		require.Len(t, jl.clauses, 2)
		assert.Empty(t, jl.clauses[0].ons)
		require.Len(t, jl.clauses[1].ons, 2)
		assert.Same(t, outer, jl.clauses[1].ons[1], "outermost join is the last slot")
	})

	t.Run("aliased group stays whole", func(t *testing.T) {
		jl := flattenJoin(joinOf(t, "SELECT * FROM a JOIN (b JOIN c ON true) AS g ON true"))
		require.Len(t, jl.clauses, 1)
		assert.NotNil(t, jl.clauses[0].right.GetJoinExpr())
	})
}

func TestFormatPredicate(t *testing.T) {
	assert.Equal(t, "u.tenant_id = 1", formatPredicate("u", "tenant_id", []any{1}))
	assert.Equal(t, "dept_id IN (1, 2)", formatPredicate("", "dept_id", []any{1, 2}))
	assert.Equal(t, "dept_id IN (NULL)", formatPredicate("", "dept_id", nil))
	assert.Equal(t, "org = 'o''brien'", formatPredicate("", "org", []any{"o'brien"}))
}

func TestProcessJoinList_LeftoverTable(t *testing.T) {
	tree, err := pg_query.Parse("SELECT * FROM a JOIN b ON true")
	require.NoError(t, err)
	jl := flattenJoin(tree.Stmts[0].Stmt.GetSelectStmt().FromClause[0].GetJoinExpr())
	require.Len(t, jl.clauses, 1)
	jl.clauses[0].ons = nil

	rule := TenantRule{TenantID: 1}
	report := &Report{}
	rc := newRewriteContext(New(WithRuleSet(rule)), []Rule{rule}, report)

	var where *pg_query.Node
	require.NoError(t, rc.processJoinList(jl, &where))
	assert.NotNil(t, where, "lead is scoped through WHERE")
	require.Len(t, report.Unsupported, 1)
	assert.Equal(t, "join without ON slot", report.Unsupported[0].Construct)
	assert.Equal(t, "b", report.Unsupported[0].Detail)
}
