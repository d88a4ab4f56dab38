package rowguard

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// joinClause is one right-hand item of a flattened join list together with
// the join nodes whose ON slot it owns, in textual order.
//
// For `a JOIN b ON x JOIN c ON y` every clause owns exactly one slot. For
// the deferred form `a JOIN b JOIN c ON x ON y` the parser nests the joins to
// the right; b owns no slot and c owns both, innermost first.
type joinClause struct {
	right *pg_query.Node
	ons   []*pg_query.JoinExpr
}

// joinList is a join tree flattened into textual order.
type joinList struct {
	lead *pg_query.Node
	// leadJoin is the join whose left input is lead.
	leadJoin *pg_query.JoinExpr
	clauses  []*joinClause
}

// flattenJoin walks unaliased joins on both sides. An aliased join is a
// group with its own scope and stays a single item.
func flattenJoin(j *pg_query.JoinExpr) joinList {
	var jl joinList
	if left := j.Larg.GetJoinExpr(); left != nil && left.Alias == nil {
		jl = flattenJoin(left)
	} else {
		jl = joinList{lead: j.Larg, leadJoin: j}
	}

	if right := j.Rarg.GetJoinExpr(); right != nil && right.Alias == nil {
		inner := flattenJoin(right)
		jl.clauses = append(jl.clauses, &joinClause{right: inner.lead})
		jl.clauses = append(jl.clauses, inner.clauses...)
	} else {
		jl.clauses = append(jl.clauses, &joinClause{right: j.Rarg})
	}

	last := jl.clauses[len(jl.clauses)-1]
	last.ons = append(last.ons, j)
	return jl
}

// processFromListItem handles one comma-separated FROM item. A base table is
// scoped through the enclosing WHERE.
func (rc *rewriteContext) processFromListItem(item *pg_query.Node, where **pg_query.Node) error {
	switch n := item.Node.(type) {
	case *pg_query.Node_RangeVar:
		return rc.injectWhere(tableRefOf(n.RangeVar), where)
	case *pg_query.Node_JoinExpr:
		if n.JoinExpr.Alias != nil {
			return rc.processJoinTree(n.JoinExpr, nil)
		}
		return rc.processJoinTree(n.JoinExpr, where)
	}
	return rc.processFromItem(item)
}

// processFromItem handles FROM items that are not base tables: derived
// tables (lateral or not), join groups and table functions.
func (rc *rewriteContext) processFromItem(item *pg_query.Node) error {
	switch n := item.Node.(type) {
	case *pg_query.Node_RangeSubselect:
		return rc.processSelect(n.RangeSubselect.Subquery.GetSelectStmt())
	case *pg_query.Node_JoinExpr:
		return rc.processJoinTree(n.JoinExpr, nil)
	case *pg_query.Node_RangeFunction:
		for _, f := range n.RangeFunction.Functions {
			if err := rc.processExpr(f); err != nil {
				return err
			}
		}
		rc.unsupported("table function", rangeFunctionName(n.RangeFunction))
	case *pg_query.Node_RangeTableFunc:
		rc.unsupported("table function", "XMLTABLE")
	}
	return nil
}

// processJoinTree scopes every table of a join tree.
//
// where is the enclosing WHERE for a top-level join. It is nil inside an
// aliased group, which has no WHERE of its own.
//
// Right-hand tables are paired with ON slots through a pending stack: each
// clause pushes its table (nil when ignored), then pops one entry per ON
// slot it owns and scopes that entry through the slot. A clause with a single
// slot therefore scopes its own table; a clause with none defers its table to
// a later clause; a clause with several hands the deferred tables out
// innermost first.
func (rc *rewriteContext) processJoinTree(j *pg_query.JoinExpr, where **pg_query.Node) error {
	return rc.processJoinList(flattenJoin(j), where)
}

// processJoinList scopes a flattened join tree. Tables left on the pending
// stack once every slot is consumed are reported.
func (rc *rewriteContext) processJoinList(jl joinList, where **pg_query.Node) error {
	// Subqueries in ON conditions are scoped before any predicate is added.
	for _, c := range jl.clauses {
		for _, on := range c.ons {
			if err := rc.processExpr(on.Quals); err != nil {
				return err
			}
		}
	}

	if err := rc.scopeLead(jl, where); err != nil {
		return err
	}

	var pending []*tableRef
	for _, c := range jl.clauses {
		var entry *tableRef
		if rv := c.right.GetRangeVar(); rv != nil {
			t := tableRefOf(rv)
			if !rc.rw.ignored(t) {
				entry = &t
			}
		} else if err := rc.processFromItem(c.right); err != nil {
			return err
		}
		pending = append(pending, entry)

		for _, on := range c.ons {
			if len(pending) == 0 {
				break
			}
			top := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			if top == nil {
				continue
			}
			if err := rc.scopeRight(on, *top, where); err != nil {
				return err
			}
		}
	}

	for _, t := range pending {
		if t != nil {
			if err := rc.reportIfApplicable("join without ON slot", *t); err != nil {
				return err
			}
		}
	}
	return nil
}

// takesOn reports whether a predicate can be added to the join's ON.
func takesOn(j *pg_query.JoinExpr) bool {
	return !j.IsNatural && len(j.UsingClause) == 0
}

// scopeLead scopes the first item of a join tree.
//
// The lead is the left input of its join. An ON predicate filters it only
// where the left side is the nullable one: always for RIGHT, and for INNER
// when there is no WHERE to use. Otherwise it goes to the enclosing WHERE.
// A FULL join, or a RIGHT join without ON, keeps unmatched left rows, so the
// WHERE predicate also drops the null-extended rows and is reported.
func (rc *rewriteContext) scopeLead(jl joinList, where **pg_query.Node) error {
	rv := jl.lead.GetRangeVar()
	if rv == nil {
		if where != nil {
			return rc.processFromListItem(jl.lead, where)
		}
		return rc.processFromItem(jl.lead)
	}

	t := tableRefOf(rv)
	lj := jl.leadJoin
	switch lj.Jointype {
	case pg_query.JoinType_JOIN_RIGHT:
		if takesOn(lj) {
			return rc.injectOn(lj, t)
		}
	case pg_query.JoinType_JOIN_INNER:
		if where == nil && takesOn(lj) {
			return rc.injectOn(lj, t)
		}
	}

	if where == nil {
		return rc.reportIfApplicable("outer join group lead", t)
	}
	if err := rc.injectWhere(t, where); err != nil {
		return err
	}
	switch lj.Jointype {
	case pg_query.JoinType_JOIN_FULL:
		return rc.reportIfApplicable("full join", t)
	case pg_query.JoinType_JOIN_RIGHT:
		return rc.reportIfApplicable("outer join nullable side", t)
	}
	return nil
}

// scopeRight scopes the right input t of join.
//
// INNER and LEFT joins filter their right side through the ON; a missing ON,
// as in CROSS JOIN, receives the predicate as its only condition. An inner
// USING or NATURAL join uses the enclosing WHERE instead. RIGHT and FULL
// joins keep every right row whatever the ON says, so the predicate goes to
// the WHERE, and FULL is reported because that also drops unmatched left
// rows. Without a WHERE, inside an aliased group, these cases are reported.
func (rc *rewriteContext) scopeRight(join *pg_query.JoinExpr, t tableRef, where **pg_query.Node) error {
	switch join.Jointype {
	case pg_query.JoinType_JOIN_RIGHT:
		if where == nil {
			return rc.reportIfApplicable("outer join preserved side", t)
		}
		return rc.injectWhere(t, where)
	case pg_query.JoinType_JOIN_FULL:
		if where == nil {
			return rc.reportIfApplicable("outer join preserved side", t)
		}
		if err := rc.injectWhere(t, where); err != nil {
			return err
		}
		return rc.reportIfApplicable("full join", t)
	}

	if takesOn(join) {
		return rc.injectOn(join, t)
	}
	if join.Jointype == pg_query.JoinType_JOIN_INNER && where != nil {
		return rc.injectWhere(t, where)
	}
	return rc.reportIfApplicable("join with USING or NATURAL", t)
}

func (rc *rewriteContext) injectOn(join *pg_query.JoinExpr, t tableRef) error {
	quals, err := rc.inject(t, join.Quals, ClauseOn)
	if err != nil {
		return err
	}
	join.Quals = quals
	return nil
}

func (rc *rewriteContext) injectWhere(t tableRef, where **pg_query.Node) error {
	w, err := rc.inject(t, *where, ClauseWhere)
	if err != nil {
		return err
	}
	*where = w
	return nil
}

// reportIfApplicable records an unsupported construct when at least one
// rule would have scoped t.
func (rc *rewriteContext) reportIfApplicable(construct string, t tableRef) error {
	if rc.rw.ignored(t) || rc.isCTE(t) {
		return nil
	}
	for _, rule := range rc.rules {
		_, ok, err := rule.AppliesTo(t.name)
		if err != nil {
			return &RuleEvaluationError{Rule: rule.Name(), Table: t.String(), Err: err}
		}
		if ok {
			rc.unsupported(construct, t.String())
			return nil
		}
	}
	return nil
}

func rangeFunctionName(rf *pg_query.RangeFunction) string {
	var names []string
	for _, f := range rf.Functions {
		l := f.GetList()
		if l == nil || len(l.Items) == 0 {
			continue
		}
		if fc := l.Items[0].GetFuncCall(); fc != nil {
			names = append(names, funcName(fc))
		}
	}
	return strings.Join(names, ", ")
}

func funcName(fc *pg_query.FuncCall) string {
	parts := make([]string, 0, len(fc.Funcname))
	for _, n := range fc.Funcname {
		if s := n.GetString_(); s != nil {
			parts = append(parts, s.Sval)
		}
	}
	return strings.Join(parts, ".")
}
