package tenant

import (
	"fmt"

	"github.com/erp/finkernel/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegisterStrictScope installs GORM callbacks that refuse statements which
// bypassed the Guard: queries, updates and deletes on tenant tables without a
// tenant_id condition, and any update or delete on append-only tables.
func RegisterStrictScope(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("tenant:strict_query", checkScopedStatement); err != nil {
		return fmt.Errorf("register query callback: %w", err)
	}
	if err := cb.Row().Before("gorm:row").Register("tenant:strict_row", checkScopedStatement); err != nil {
		return fmt.Errorf("register row callback: %w", err)
	}
	if err := cb.Update().Before("gorm:update").Register("tenant:strict_update", checkMutation); err != nil {
		return fmt.Errorf("register update callback: %w", err)
	}
	if err := cb.Delete().Before("gorm:delete").Register("tenant:strict_delete", checkMutation); err != nil {
		return fmt.Errorf("register delete callback: %w", err)
	}
	return nil
}

func statementTable(db *gorm.DB) (*Table, bool) {
	name := db.Statement.Table
	if name == "" && db.Statement.Schema != nil {
		name = db.Statement.Schema.Table
	}
	return Lookup(name)
}

func checkScopedStatement(db *gorm.DB) {
	t, ok := statementTable(db)
	if !ok || t.kind != Scoped {
		return
	}
	if !hasTenantCondition(db) {
		_ = db.AddError(shared.NewKernelError(shared.CodeTenantMismatch, shared.EntityNone,
			fmt.Sprintf("statement on tenant table %q has no tenant_id condition", t.name)).
			WithDetail("table", t.name))
	}
}

func checkMutation(db *gorm.DB) {
	t, ok := statementTable(db)
	if !ok {
		return
	}
	if t.appendOnly {
		_ = db.AddError(invalidTable(t, "is append-only"))
		return
	}
	checkScopedStatement(db)
}

func hasTenantCondition(db *gorm.DB) bool {
	whereClause, ok := db.Statement.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := whereClause.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if exprContainsTenant(expr) {
			return true
		}
	}
	return false
}

// exprContainsTenant only accepts equality on tenant_id at the top level or
// inside AND groups. An OR branch does not scope the statement.
func exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Eq:
		return columnName(e.Column) == ColTenantID.name && e.Value != nil
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}

func columnName(c any) string {
	switch col := c.(type) {
	case clause.Column:
		return col.Name
	case string:
		return col
	}
	return ""
}
