package rowguard

import (
	"fmt"
	"strings"
)

// Rule decides, per table, whether rows must be scoped and by which values.
//
// Name identifies the rule type. The rewrite cache keys its "no rewrite
// needed" entries by Name, so two rules with the same Name are treated as the
// same rule type even if their bound values differ. AppliesTo must therefore
// answer the applicability question (does this table need scoping) from
// static configuration only; the values inside the Condition may vary per
// call.
//
// AppliesTo returning an error aborts the whole rewrite.
type Rule interface {
	Name() string
	FilterColumn() string
	AppliesTo(table string) (Condition, bool, error)
}

// Condition is the filter a rule produces for one table.
//
// One value renders as `column = value`, several as `column IN (...)`.
// An empty Values slice renders as `column IN (NULL)`, which matches no rows.
type Condition struct {
	// Column overrides the rule's FilterColumn for this table when set.
	Column string
	Values []any
}

// Equal returns a single-value Condition.
func Equal(v any) Condition {
	return Condition{Values: []any{v}}
}

// In returns a membership Condition.
func In(values ...any) Condition {
	return Condition{Values: values}
}

// column resolves the effective filter column for r.
func (c Condition) column(r Rule) string {
	if c.Column != "" {
		return c.Column
	}
	return r.FilterColumn()
}

// TenantRule scopes every table to a single tenant.
//
//	rule := rowguard.TenantRule{TenantID: 42, IgnoreTables: []string{"tenants"}}
//
// Tables listed in IgnoreTables are shared across tenants and are never
// scoped. A nil TenantID makes AppliesTo fail with ErrMissingTenant rather
// than silently returning unscoped rows.
type TenantRule struct {
	// Column defaults to "tenant_id".
	Column       string
	TenantID     any
	IgnoreTables []string
}

// Name implements Rule.
func (TenantRule) Name() string { return "tenant" }

// FilterColumn implements Rule.
func (r TenantRule) FilterColumn() string {
	if r.Column == "" {
		return "tenant_id"
	}
	return r.Column
}

// AppliesTo implements Rule.
func (r TenantRule) AppliesTo(table string) (Condition, bool, error) {
	for _, ignored := range r.IgnoreTables {
		if strings.EqualFold(ignored, table) {
			return Condition{}, false, nil
		}
	}
	if r.TenantID == nil {
		return Condition{}, false, ErrMissingTenant
	}
	return Equal(r.TenantID), true, nil
}

// DeptRule scopes registered tables to a set of departments.
//
// Only tables present in Tables are scoped. The map value is the table's
// department column; an empty value falls back to FilterColumn. A caller with
// unrestricted access should be given no DeptRule at all instead of one that
// declines every table, because declining is remembered by the rewrite cache.
type DeptRule struct {
	// Column defaults to "dept_id".
	Column  string
	Tables  map[string]string
	DeptIDs []any
}

// Name implements Rule.
func (DeptRule) Name() string { return "dept" }

// FilterColumn implements Rule.
func (r DeptRule) FilterColumn() string {
	if r.Column == "" {
		return "dept_id"
	}
	return r.Column
}

// AppliesTo implements Rule.
func (r DeptRule) AppliesTo(table string) (Condition, bool, error) {
	column, ok := r.Tables[strings.ToLower(table)]
	if !ok {
		return Condition{}, false, nil
	}
	return Condition{Column: column, Values: r.DeptIDs}, true, nil
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc struct {
	RuleName string
	Column   string
	Func     func(table string) (Condition, bool, error)
}

// Name implements Rule.
func (f RuleFunc) Name() string { return f.RuleName }

// FilterColumn implements Rule.
func (f RuleFunc) FilterColumn() string { return f.Column }

// AppliesTo implements Rule.
func (f RuleFunc) AppliesTo(table string) (Condition, bool, error) {
	if f.Func == nil {
		return Condition{}, false, fmt.Errorf("rule %q has no function", f.RuleName)
	}
	return f.Func(table)
}

var (
	_ Rule = TenantRule{}
	_ Rule = DeptRule{}
	_ Rule = RuleFunc{}
)
