package rowguard

import (
	"fmt"
	"math"
	"strconv"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// tableRef is a base table occurrence in a FROM list, join or DML target.
type tableRef struct {
	schema string
	name   string
	alias  string
}

func tableRefOf(rv *pg_query.RangeVar) tableRef {
	t := tableRef{schema: rv.Schemaname, name: rv.Relname}
	if rv.Alias != nil {
		t.alias = rv.Alias.Aliasname
	}
	return t
}

func (t tableRef) String() string {
	if t.schema != "" {
		return t.schema + "." + t.name
	}
	return t.name
}

// qualifier is the prefix used for the filter column: the alias when present,
// the table name when qualification of unaliased tables is enabled, else none.
func (rc *rewriteContext) qualifier(t tableRef) string {
	if t.alias != "" {
		return t.alias
	}
	if rc.rw.qualifyColumns {
		return t.name
	}
	return ""
}

// inject merges the predicates of every applicable rule for t into existing
// and returns the new expression. existing is returned untouched when no
// rule applies, the table is ignored or it names a CTE.
func (rc *rewriteContext) inject(t tableRef, existing *pg_query.Node, clause Clause) (*pg_query.Node, error) {
	pred, err := rc.predicateFor(t, clause)
	if err != nil || pred == nil {
		return existing, err
	}
	return makeAndExpr(pred, existing), nil
}

// predicateFor builds the conjunction of rule conditions for t, or nil.
func (rc *rewriteContext) predicateFor(t tableRef, clause Clause) (*pg_query.Node, error) {
	if rc.rw.ignored(t) || rc.isCTE(t) {
		return nil, nil
	}

	var preds []*pg_query.Node
	qualifier := rc.qualifier(t)
	for _, rule := range rc.rules {
		cond, ok, err := rule.AppliesTo(t.name)
		if err != nil {
			return nil, &RuleEvaluationError{Rule: rule.Name(), Table: t.String(), Err: err}
		}
		if !ok {
			continue
		}
		column := cond.column(rule)
		node, err := buildCondition(qualifier, column, cond.Values)
		if err != nil {
			return nil, &RuleEvaluationError{Rule: rule.Name(), Table: t.String(), Err: err}
		}
		preds = append(preds, node)
		rc.report.Injections = append(rc.report.Injections, Injection{
			Rule:      rule.Name(),
			Schema:    t.schema,
			Table:     t.name,
			Alias:     t.alias,
			Clause:    clause,
			Predicate: formatPredicate(qualifier, column, cond.Values),
		})
	}

	if len(preds) == 0 {
		return nil, nil
	}
	rc.rewritten = true
	rc.rw.logger.Debug("rowguard: predicate injected",
		"table", t.String(),
		"clause", string(clause),
		"statement_id", rc.report.StatementID,
	)
	return combineWithAnd(preds), nil
}

// buildCondition renders `col = v` for one value and `col IN (...)` otherwise.
func buildCondition(qualifier, column string, values []any) (*pg_query.Node, error) {
	col := makeColumnRef(column, qualifier)

	if len(values) == 1 {
		lit, err := makeLiteral(values[0])
		if err != nil {
			return nil, err
		}
		return &pg_query.Node{
			Node: &pg_query.Node_AExpr{
				AExpr: &pg_query.A_Expr{
					Kind:  pg_query.A_Expr_Kind_AEXPR_OP,
					Name:  []*pg_query.Node{makeStringNode("=")},
					Lexpr: col,
					Rexpr: lit,
				},
			},
		}, nil
	}

	items := make([]*pg_query.Node, 0, len(values))
	for _, v := range values {
		lit, err := makeLiteral(v)
		if err != nil {
			return nil, err
		}
		items = append(items, lit)
	}
	if len(items) == 0 {
		items = append(items, makeNullConst())
	}
	return &pg_query.Node{
		Node: &pg_query.Node_AExpr{
			AExpr: &pg_query.A_Expr{
				Kind:  pg_query.A_Expr_Kind_AEXPR_IN,
				Name:  []*pg_query.Node{makeStringNode("=")},
				Lexpr: col,
				Rexpr: &pg_query.Node{
					Node: &pg_query.Node_List{List: &pg_query.List{Items: items}},
				},
			},
		},
	}, nil
}

// makeColumnRef creates a ColumnRef node. If qualifier is non-empty the
// reference is qualifier.column, otherwise just column.
func makeColumnRef(column, qualifier string) *pg_query.Node {
	var fields []*pg_query.Node
	if qualifier != "" {
		fields = append(fields, makeStringNode(qualifier))
	}
	fields = append(fields, makeStringNode(column))

	return &pg_query.Node{
		Node: &pg_query.Node_ColumnRef{
			ColumnRef: &pg_query.ColumnRef{Fields: fields},
		},
	}
}

// makeLiteral creates an A_Const node for the given Go value.
func makeLiteral(v any) (*pg_query.Node, error) {
	switch val := v.(type) {
	case nil:
		return makeNullConst(), nil
	case int:
		return makeIntegerConst(int64(val)), nil
	case int8:
		return makeIntegerConst(int64(val)), nil
	case int16:
		return makeIntegerConst(int64(val)), nil
	case int32:
		return makeIntegerConst(int64(val)), nil
	case int64:
		return makeIntegerConst(val), nil
	case uint:
		return makeUintConst(uint64(val)), nil
	case uint8:
		return makeIntegerConst(int64(val)), nil
	case uint16:
		return makeIntegerConst(int64(val)), nil
	case uint32:
		return makeIntegerConst(int64(val)), nil
	case uint64:
		return makeUintConst(val), nil
	case float32:
		return makeFloatConst(strconv.FormatFloat(float64(val), 'f', -1, 32)), nil
	case float64:
		return makeFloatConst(strconv.FormatFloat(val, 'f', -1, 64)), nil
	case string:
		return makeStringConst(val), nil
	case bool:
		return &pg_query.Node{
			Node: &pg_query.Node_AConst{
				AConst: &pg_query.A_Const{
					Val: &pg_query.A_Const_Boolval{Boolval: &pg_query.Boolean{Boolval: val}},
				},
			},
		}, nil
	case fmt.Stringer:
		return makeStringConst(val.String()), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// makeIntegerConst uses the parser's representation: integers that do not
// fit in 32 bits are carried as numeric literals.
func makeIntegerConst(v int64) *pg_query.Node {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return makeFloatConst(strconv.FormatInt(v, 10))
	}
	return &pg_query.Node{
		Node: &pg_query.Node_AConst{
			AConst: &pg_query.A_Const{
				Val: &pg_query.A_Const_Ival{Ival: &pg_query.Integer{Ival: int32(v)}},
			},
		},
	}
}

func makeUintConst(v uint64) *pg_query.Node {
	if v > math.MaxInt32 {
		return makeFloatConst(strconv.FormatUint(v, 10))
	}
	return makeIntegerConst(int64(v))
}

func makeFloatConst(v string) *pg_query.Node {
	return &pg_query.Node{
		Node: &pg_query.Node_AConst{
			AConst: &pg_query.A_Const{
				Val: &pg_query.A_Const_Fval{Fval: &pg_query.Float{Fval: v}},
			},
		},
	}
}

func makeStringConst(v string) *pg_query.Node {
	return &pg_query.Node{
		Node: &pg_query.Node_AConst{
			AConst: &pg_query.A_Const{
				Val: &pg_query.A_Const_Sval{Sval: &pg_query.String{Sval: v}},
			},
		},
	}
}

func makeNullConst() *pg_query.Node {
	return &pg_query.Node{
		Node: &pg_query.Node_AConst{AConst: &pg_query.A_Const{Isnull: true}},
	}
}

func makeStringNode(s string) *pg_query.Node {
	return &pg_query.Node{
		Node: &pg_query.Node_String_{String_: &pg_query.String{Sval: s}},
	}
}

// combineWithAnd joins predicates with AND; a single predicate is returned as is.
func combineWithAnd(exprs []*pg_query.Node) *pg_query.Node {
	if len(exprs) == 1 {
		return exprs[0]
	}
	var args []*pg_query.Node
	for _, e := range exprs {
		args = appendConjuncts(args, e)
	}
	return makeBoolExpr(pg_query.BoolExprType_AND_EXPR, args)
}

// makeAndExpr places pred ahead of existing in a single conjunction.
//
// An existing AND is flattened into the new conjunction, which is logically
// identical. Any other existing expression, an OR in particular, becomes a
// single argument, and the deparser parenthesizes a nested OR, so
// `a OR b` turns into `pred AND (a OR b)` and never `pred AND a OR b`.
func makeAndExpr(pred, existing *pg_query.Node) *pg_query.Node {
	if existing == nil {
		return pred
	}
	args := appendConjuncts(nil, pred)
	args = appendConjuncts(args, existing)
	return makeBoolExpr(pg_query.BoolExprType_AND_EXPR, args)
}

func appendConjuncts(args []*pg_query.Node, n *pg_query.Node) []*pg_query.Node {
	if be := n.GetBoolExpr(); be != nil && be.Boolop == pg_query.BoolExprType_AND_EXPR {
		return append(args, be.Args...)
	}
	return append(args, n)
}

func makeBoolExpr(op pg_query.BoolExprType, args []*pg_query.Node) *pg_query.Node {
	return &pg_query.Node{
		Node: &pg_query.Node_BoolExpr{
			BoolExpr: &pg_query.BoolExpr{Boolop: op, Args: args},
		},
	}
}
