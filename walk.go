package rowguard

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// processStatement dispatches one top-level statement by node type.
// INSERT and every other statement kind pass through unchanged.
func (rc *rewriteContext) processStatement(node *pg_query.Node) error {
	if node == nil {
		return nil
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		return rc.processSelect(n.SelectStmt)
	case *pg_query.Node_UpdateStmt:
		return rc.processUpdate(n.UpdateStmt)
	case *pg_query.Node_DeleteStmt:
		return rc.processDelete(n.DeleteStmt)
	}
	return nil
}

// processSelect handles a select statement including its WITH clause.
func (rc *rewriteContext) processSelect(sel *pg_query.SelectStmt) error {
	if sel == nil {
		return nil
	}
	if sel.WithClause != nil {
		defer rc.popCTEs()
		if err := rc.processWith(sel.WithClause); err != nil {
			return err
		}
	}
	return rc.processSelectBody(sel)
}

// processWith opens a CTE scope and rewrites every CTE body. A
// data-modifying CTE body is handled like the corresponding top-level
// statement. The caller closes the scope with popCTEs.
//
// Without RECURSIVE a CTE name is visible only to later CTEs and the main
// body, so a body may still read a base table of the same name.
func (rc *rewriteContext) processWith(with *pg_query.WithClause) error {
	scope := rc.pushCTEs()
	if with.Recursive {
		for _, node := range with.Ctes {
			if cte := node.GetCommonTableExpr(); cte != nil {
				scope[cte.Ctename] = struct{}{}
			}
		}
	}
	for _, node := range with.Ctes {
		cte := node.GetCommonTableExpr()
		if cte == nil {
			continue
		}
		if err := rc.processStatement(cte.Ctequery); err != nil {
			return err
		}
		scope[cte.Ctename] = struct{}{}
	}
	return nil
}

// processSelectBody handles the three body shapes: a set operation, whose
// branches are rewritten independently, a VALUES list, and a plain select.
func (rc *rewriteContext) processSelectBody(sel *pg_query.SelectStmt) error {
	// Op carries an undefined zero value, so branches are the reliable marker.
	if sel.Larg != nil && sel.Rarg != nil {
		if err := rc.processSelect(sel.Larg); err != nil {
			return err
		}
		return rc.processSelect(sel.Rarg)
	}
	if len(sel.ValuesLists) > 0 {
		rc.rw.logger.Debug("rowguard: VALUES list left as is", "statement_id", rc.report.StatementID)
		return nil
	}
	return rc.processPlainSelect(sel)
}

func (rc *rewriteContext) processPlainSelect(sel *pg_query.SelectStmt) error {
	for _, target := range sel.TargetList {
		if rt := target.GetResTarget(); rt != nil {
			if err := rc.processExpr(rt.Val); err != nil {
				return err
			}
		}
	}

	// Subqueries in WHERE are scoped before the outer predicates are added,
	// so the injected conditions are never walked.
	if err := rc.processExpr(sel.WhereClause); err != nil {
		return err
	}

	for _, item := range sel.FromClause {
		if err := rc.processFromListItem(item, &sel.WhereClause); err != nil {
			return err
		}
	}
	return nil
}

// processExpr finds subqueries inside an expression and rewrites them.
// It covers boolean connectives, comparisons and IN lists, every sublink
// kind (EXISTS, IN, ANY, ALL, scalar) and function arguments at any depth.
func (rc *rewriteContext) processExpr(node *pg_query.Node) error {
	if node == nil {
		return nil
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_SubLink:
		if err := rc.processExpr(n.SubLink.Testexpr); err != nil {
			return err
		}
		return rc.processSelect(n.SubLink.Subselect.GetSelectStmt())
	case *pg_query.Node_BoolExpr:
		return rc.processExprs(n.BoolExpr.Args)
	case *pg_query.Node_AExpr:
		if err := rc.processExpr(n.AExpr.Lexpr); err != nil {
			return err
		}
		return rc.processExpr(n.AExpr.Rexpr)
	case *pg_query.Node_List:
		return rc.processExprs(n.List.Items)
	case *pg_query.Node_FuncCall:
		return rc.processExprs(n.FuncCall.Args)
	case *pg_query.Node_TypeCast:
		return rc.processExpr(n.TypeCast.Arg)
	case *pg_query.Node_NullTest:
		return rc.processExpr(n.NullTest.Arg)
	case *pg_query.Node_CoalesceExpr:
		return rc.processExprs(n.CoalesceExpr.Args)
	case *pg_query.Node_CaseExpr:
		if err := rc.processExpr(n.CaseExpr.Arg); err != nil {
			return err
		}
		for _, w := range n.CaseExpr.Args {
			if cw := w.GetCaseWhen(); cw != nil {
				if err := rc.processExpr(cw.Expr); err != nil {
					return err
				}
				if err := rc.processExpr(cw.Result); err != nil {
					return err
				}
			}
		}
		return rc.processExpr(n.CaseExpr.Defresult)
	}
	return nil
}

func (rc *rewriteContext) processExprs(nodes []*pg_query.Node) error {
	for _, n := range nodes {
		if err := rc.processExpr(n); err != nil {
			return err
		}
	}
	return nil
}

// processUpdate scopes the target table through WHERE.
// Subqueries in SET, FROM and WHERE are not traversed; only the target table
// is scoped. DELETE behaves the same way.
func (rc *rewriteContext) processUpdate(upd *pg_query.UpdateStmt) error {
	if upd.WithClause != nil {
		defer rc.popCTEs()
		if err := rc.processWith(upd.WithClause); err != nil {
			return err
		}
	}
	if upd.Relation == nil {
		return nil
	}
	where, err := rc.inject(tableRefOf(upd.Relation), upd.WhereClause, ClauseWhere)
	if err != nil {
		return err
	}
	upd.WhereClause = where
	return nil
}

// processDelete scopes the target table through WHERE, like processUpdate.
func (rc *rewriteContext) processDelete(del *pg_query.DeleteStmt) error {
	if del.WithClause != nil {
		defer rc.popCTEs()
		if err := rc.processWith(del.WithClause); err != nil {
			return err
		}
	}
	if del.Relation == nil {
		return nil
	}
	where, err := rc.inject(tableRefOf(del.Relation), del.WhereClause, ClauseWhere)
	if err != nil {
		return err
	}
	del.WhereClause = where
	return nil
}
