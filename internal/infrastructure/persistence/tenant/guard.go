// Package tenant is the only path from the kernel to tenant-owned rows.
//
// Tables and columns are closed enumerations declared in this package, so
// every identifier that reaches SQL is known at compile time. All values are
// bound through GORM clause expressions. Reads and writes against tenant
// tables always carry "tenant_id = ?" for the caller's TenantContext; a write
// that names another tenant fails with TENANT_MISMATCH.
//
// Usage:
//
//	guard := tenant.NewGuard(db)
//	var rows []models.Invoice
//	err := guard.Read(ctx, tc, tenant.Invoices, &rows, tenant.Query{
//	    Where: []tenant.Predicate{tenant.Eq(tenant.ColStatus, "posted")},
//	})
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Guard issues tenant-scoped statements against whitelisted tables.
type Guard struct {
	db *gorm.DB
}

// NewGuard creates a guard over db
func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// conn returns the transaction carried by ctx or the pool.
func (g *Guard) conn(ctx context.Context) *gorm.DB {
	if tx, ok := TxFrom(ctx); ok {
		return tx.WithContext(ctx)
	}
	return g.db.WithContext(ctx)
}

func tenantEq(tc shared.TenantContext) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: ColTenantID.name}, Value: tc.TenantID}
}

// reject logs security-critical failures before returning them.
func reject(ctx context.Context, t *Table, err error) error {
	if code := shared.CodeOf(err); code.IsSecurityCritical() {
		name := ""
		if t != nil {
			name = t.name
		}
		logger.L(ctx).Warn("tenant guard rejected statement",
			zap.String("code", string(code)),
			zap.String("table", name),
			zap.Error(err),
		)
	}
	return err
}

func (g *Guard) checkScoped(ctx context.Context, tc shared.TenantContext, t *Table) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	if !registered(t) {
		return reject(ctx, t, invalidTable(t, "is not a registered table"))
	}
	if t.kind != Scoped {
		return reject(ctx, t, invalidTable(t, "is not a tenant-scoped table"))
	}
	return nil
}

func (g *Guard) selectStmt(db *gorm.DB, t *Table, q Query) *gorm.DB {
	cols := q.Columns
	if len(cols) == 0 {
		cols = t.ordered
	}
	selected := make([]clause.Column, len(cols))
	for i, c := range cols {
		selected[i] = clause.Column{Name: c.name}
	}
	db = db.Table(t.name).Clauses(clause.Select{Columns: selected})
	if len(q.OrderBy) > 0 {
		order := clause.OrderBy{}
		for _, o := range q.OrderBy {
			order.Columns = append(order.Columns, clause.OrderByColumn{
				Column: clause.Column{Name: o.Column.name},
				Desc:   o.Desc,
			})
		}
		db = db.Clauses(order)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	return db
}

// Read loads rows of a tenant table into dest. The tenant predicate is
// always added.
func (g *Guard) Read(ctx context.Context, tc shared.TenantContext, t *Table, dest any, q Query) error {
	if err := g.checkScoped(ctx, tc, t); err != nil {
		return err
	}
	if err := q.validate(t); err != nil {
		return reject(ctx, t, err)
	}
	exprs := append([]clause.Expression{tenantEq(tc)}, whereExprs(q.Where)...)
	db := g.selectStmt(g.conn(ctx), t, q).Clauses(clause.Where{Exprs: exprs})
	if err := db.Find(dest).Error; err != nil {
		return fmt.Errorf("read %s: %w", t.name, err)
	}
	return nil
}

// ReadOne loads at most one row into dest and reports whether it existed.
func (g *Guard) ReadOne(ctx context.Context, tc shared.TenantContext, t *Table, dest any, q Query) (bool, error) {
	if err := g.checkScoped(ctx, tc, t); err != nil {
		return false, err
	}
	if err := q.validate(t); err != nil {
		return false, reject(ctx, t, err)
	}
	q.Limit = 1
	exprs := append([]clause.Expression{tenantEq(tc)}, whereExprs(q.Where)...)
	res := g.selectStmt(g.conn(ctx), t, q).Clauses(clause.Where{Exprs: exprs}).Find(dest)
	if res.Error != nil {
		return false, fmt.Errorf("read %s: %w", t.name, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ReadGlobal loads rows of a global reference table. Columns are still
// whitelisted; no tenant predicate applies.
func (g *Guard) ReadGlobal(ctx context.Context, t *Table, dest any, q Query) error {
	if !registered(t) {
		return reject(ctx, t, invalidTable(t, "is not a registered table"))
	}
	if t.kind != Global {
		return reject(ctx, t, invalidTable(t, "is tenant scoped and cannot be read globally"))
	}
	if err := q.validate(t); err != nil {
		return reject(ctx, t, err)
	}
	db := g.selectStmt(g.conn(ctx), t, q)
	if exprs := whereExprs(q.Where); len(exprs) > 0 {
		db = db.Clauses(clause.Where{Exprs: exprs})
	}
	if err := db.Find(dest).Error; err != nil {
		return fmt.Errorf("read %s: %w", t.name, err)
	}
	return nil
}

// Count counts tenant rows matching preds.
func (g *Guard) Count(ctx context.Context, tc shared.TenantContext, t *Table, preds ...Predicate) (int64, error) {
	if err := g.checkScoped(ctx, tc, t); err != nil {
		return 0, err
	}
	if err := (Query{Where: preds}).validate(t); err != nil {
		return 0, reject(ctx, t, err)
	}
	var n int64
	exprs := append([]clause.Expression{tenantEq(tc)}, whereExprs(preds)...)
	if err := g.conn(ctx).Table(t.name).Clauses(clause.Where{Exprs: exprs}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}

// Sum totals a numeric column over tenant rows matching preds.
func (g *Guard) Sum(ctx context.Context, tc shared.TenantContext, t *Table, col Column, preds ...Predicate) (decimal.Decimal, error) {
	if err := g.checkScoped(ctx, tc, t); err != nil {
		return decimal.Zero, err
	}
	if !t.Has(col) {
		return decimal.Zero, reject(ctx, t, invalidColumn(t, col, "aggregate"))
	}
	if err := (Query{Where: preds}).validate(t); err != nil {
		return decimal.Zero, reject(ctx, t, err)
	}
	exprs := append([]clause.Expression{tenantEq(tc)}, whereExprs(preds)...)
	var total decimal.NullDecimal
	row := g.conn(ctx).Table(t.name).
		Select("COALESCE(SUM(?), 0)", clause.Column{Name: col.name}).
		Clauses(clause.Where{Exprs: exprs}).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum %s.%s: %w", t.name, col.name, err)
	}
	return total.Decimal, nil
}

// rowValues validates values against the table and converts them for GORM.
func rowValues(t *Table, values Values, usage string) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for c, v := range values {
		if !t.Has(c) {
			return nil, invalidColumn(t, c, usage)
		}
		out[c.name] = v
	}
	return out, nil
}

func tenantMismatch(t *Table, tc shared.TenantContext, v any) error {
	return shared.NewKernelError(shared.CodeTenantMismatch, shared.EntityNone,
		fmt.Sprintf("values for table %q belong to another tenant", t.name)).
		WithDetail("table", t.name).
		WithDetail("context_tenant_id", tc.TenantID.String()).
		WithDetail("value_tenant_id", fmt.Sprint(v))
}

func sameTenant(v any, id uuid.UUID) bool {
	switch x := v.(type) {
	case uuid.UUID:
		return x == id
	case *uuid.UUID:
		return x != nil && *x == id
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(x))
		return err == nil && parsed == id
	}
	return false
}

// Insert adds one tenant row. The context tenant is injected when values
// omit tenant_id.
func (g *Guard) Insert(ctx context.Context, tc shared.TenantContext, t *Table, values Values) error {
	if err := g.checkScoped(ctx, tc, t); err != nil {
		return err
	}
	row, err := rowValues(t, values, "insert")
	if err != nil {
		return reject(ctx, t, err)
	}
	if v, ok := row[ColTenantID.name]; ok && !sameTenant(v, tc.TenantID) {
		return reject(ctx, t, tenantMismatch(t, tc, v))
	}
	row[ColTenantID.name] = tc.TenantID
	if err := g.conn(ctx).Table(t.name).Create(row).Error; err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return nil
}

// UpdateOptions tunes a versioned update.
type UpdateOptions struct {
	// Entity names the entity in returned errors.
	Entity shared.EntityKind
	// LockedStates makes the statement a field edit: rows in one of these
	// states are never changed.
	LockedStates []string
}

// UpdateVersioned changes one row in a single statement:
//
//	UPDATE t SET ..., version = version + 1
//	WHERE tenant_id = ? AND id = ? AND version = ? [AND status NOT IN (?)]
//
// When no row matches, the row is re-read to return NOT_FOUND,
// VERSION_CONFLICT or INVALID_STATE_TRANSITION. It returns the new version.
func (g *Guard) UpdateVersioned(ctx context.Context, tc shared.TenantContext, t *Table, id uuid.UUID, expected int, values Values, opts UpdateOptions) (int, error) {
	if err := g.checkScoped(ctx, tc, t); err != nil {
		return 0, err
	}
	if !t.versioned {
		return 0, reject(ctx, t, invalidTable(t, "is not versioned"))
	}
	row, err := rowValues(t, values, "update")
	if err != nil {
		return 0, reject(ctx, t, err)
	}
	if v, ok := row[ColTenantID.name]; ok {
		if !sameTenant(v, tc.TenantID) {
			return 0, reject(ctx, t, tenantMismatch(t, tc, v))
		}
		delete(row, ColTenantID.name)
	}
	for _, managed := range []Column{ColID, ColVersion} {
		if _, ok := row[managed.name]; ok {
			return 0, reject(ctx, t, invalidColumn(t, managed, "managed by the version guard"))
		}
	}
	row[ColVersion.name] = gorm.Expr("version + 1")

	exprs := []clause.Expression{
		tenantEq(tc),
		clause.Eq{Column: clause.Column{Name: ColID.name}, Value: id},
		clause.Eq{Column: clause.Column{Name: ColVersion.name}, Value: expected},
	}
	if e, ok := NotIn(ColStatus, opts.LockedStates...).expr(); ok {
		exprs = append(exprs, e)
	}
	res := g.conn(ctx).Table(t.name).Clauses(clause.Where{Exprs: exprs}).Updates(row)
	if res.Error != nil {
		return 0, fmt.Errorf("update %s: %w", t.name, res.Error)
	}
	if res.RowsAffected == 1 {
		return expected + 1, nil
	}
	return 0, g.explainMiss(ctx, tc, t, id, expected, opts)
}

type versionProbe struct {
	Version int
	Status  string
}

func (g *Guard) explainMiss(ctx context.Context, tc shared.TenantContext, t *Table, id uuid.UUID, expected int, opts UpdateOptions) error {
	var current versionProbe
	found, err := g.ReadOne(ctx, tc, t, &current, Query{
		Columns: []Column{ColVersion, ColStatus},
		Where:   []Predicate{Eq(ColID, id)},
	})
	if err != nil {
		return err
	}
	switch {
	case !found:
		return shared.NotFound(opts.Entity, id)
	case current.Version != expected:
		return shared.VersionConflict(opts.Entity, id, expected, current.Version)
	}
	for _, s := range opts.LockedStates {
		if s == current.Status {
			return shared.InvalidTransition(opts.Entity, current.Status, "update").
				WithDetail("reason", "immutable")
		}
	}
	return errors.New("versioned update matched no row for an unknown reason")
}
