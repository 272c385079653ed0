package tenant

import (
	"fmt"

	"github.com/erp/finkernel/internal/domain/shared"
	"gorm.io/gorm/clause"
)

type op int

const (
	opEq op = iota
	opIn
	opNotIn
	opGte
	opLte
	opIsNull
)

// Predicate is a single bound condition over a declared column.
type Predicate struct {
	column Column
	op     op
	value  any
	values []any
}

// Eq matches column = value
func Eq(c Column, value any) Predicate { return Predicate{column: c, op: opEq, value: value} }

// In matches column IN (values...)
func In[T any](c Column, values ...T) Predicate {
	return Predicate{column: c, op: opIn, values: toAny(values)}
}

// NotIn matches column NOT IN (values...). An empty list matches everything.
func NotIn[T any](c Column, values ...T) Predicate {
	return Predicate{column: c, op: opNotIn, values: toAny(values)}
}

// Gte matches column >= value
func Gte(c Column, value any) Predicate { return Predicate{column: c, op: opGte, value: value} }

// Lte matches column <= value
func Lte(c Column, value any) Predicate { return Predicate{column: c, op: opLte, value: value} }

// IsNull matches column IS NULL
func IsNull(c Column) Predicate { return Predicate{column: c, op: opIsNull} }

// Column returns the column the predicate filters
func (p Predicate) Column() Column { return p.column }

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// expr renders the predicate as a GORM clause. The second result is false
// for predicates that filter nothing.
func (p Predicate) expr() (clause.Expression, bool) {
	col := clause.Column{Name: p.column.name}
	switch p.op {
	case opEq:
		return clause.Eq{Column: col, Value: p.value}, true
	case opIn:
		if len(p.values) == 0 {
			// IN () matches no rows
			return clause.Expr{SQL: "1 = 0"}, true
		}
		return clause.IN{Column: col, Values: p.values}, true
	case opNotIn:
		if len(p.values) == 0 {
			return nil, false
		}
		return clause.Not(clause.IN{Column: col, Values: p.values}), true
	case opGte:
		return clause.Gte{Column: col, Value: p.value}, true
	case opLte:
		return clause.Lte{Column: col, Value: p.value}, true
	case opIsNull:
		return clause.Eq{Column: col, Value: nil}, true
	}
	panic(fmt.Sprintf("tenant: unknown predicate op %d", p.op))
}

// Order sorts a read by a declared column.
type Order struct {
	Column Column
	Desc   bool
}

// Asc orders ascending by c
func Asc(c Column) Order { return Order{Column: c} }

// Desc orders descending by c
func Desc(c Column) Order { return Order{Column: c, Desc: true} }

// Query describes a whitelisted read. Empty Columns selects every declared
// column.
type Query struct {
	Columns []Column
	Where   []Predicate
	OrderBy []Order
	Limit   int
	Offset  int
}

// Values is a whitelisted column to value map for writes.
type Values map[Column]any

func invalidColumn(t *Table, c Column, usage string) error {
	return shared.NewKernelError(shared.CodeInvalidColumn, shared.EntityNone,
		fmt.Sprintf("column %q is not declared for table %q", c.name, t.name)).
		WithDetail("table", t.name).
		WithDetail("column", c.name).
		WithDetail("usage", usage)
}

func invalidTable(t *Table, reason string) error {
	name := ""
	if t != nil {
		name = t.name
	}
	return shared.NewKernelError(shared.CodeInvalidTable, shared.EntityNone,
		fmt.Sprintf("table %q %s", name, reason)).
		WithDetail("table", name)
}

func (q Query) validate(t *Table) error {
	for _, c := range q.Columns {
		if !t.Has(c) {
			return invalidColumn(t, c, "select")
		}
	}
	for _, p := range q.Where {
		if !t.Has(p.column) {
			return invalidColumn(t, p.column, "filter")
		}
	}
	for _, o := range q.OrderBy {
		if !t.Has(o.Column) {
			return invalidColumn(t, o.Column, "order")
		}
	}
	return nil
}

func whereExprs(preds []Predicate) []clause.Expression {
	exprs := make([]clause.Expression, 0, len(preds))
	for _, p := range preds {
		if e, ok := p.expr(); ok {
			exprs = append(exprs, e)
		}
	}
	return exprs
}
