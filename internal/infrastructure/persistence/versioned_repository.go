package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// record is implemented by the pointer type of every versioned model.
type record[T shared.Versioned, M any] interface {
	*M
	ToDomain() T
	FromDomain(T)
	Values() tenant.Values
}

// createOnlyColumns are written on insert and never touched by an update.
var createOnlyColumns = []tenant.Column{
	tenant.ColID, tenant.ColTenantID, tenant.ColVersion, tenant.ColCreatedBy, tenant.ColCreatedAt,
}

// GormVersionedRepository persists one entity kind through the tenant guard.
// M is the GORM model and PM its pointer type.
type GormVersionedRepository[T shared.Versioned, M any, PM record[T, M]] struct {
	guard  *tenant.Guard
	table  *tenant.Table
	entity shared.EntityKind
}

// NewGormVersionedRepository creates a repository over table
func NewGormVersionedRepository[T shared.Versioned, M any, PM record[T, M]](guard *tenant.Guard, table *tenant.Table, entity shared.EntityKind) *GormVersionedRepository[T, M, PM] {
	return &GormVersionedRepository[T, M, PM]{guard: guard, table: table, entity: entity}
}

// FindByID finds an entity by its ID within the tenant
func (r *GormVersionedRepository[T, M, PM]) FindByID(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (T, error) {
	var zero T
	var m M
	found, err := r.guard.ReadOne(ctx, tc, r.table, &m, tenant.Query{
		Where: []tenant.Predicate{tenant.Eq(tenant.ColID, id)},
	})
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, shared.NotFound(r.entity, id)
	}
	return PM(&m).ToDomain(), nil
}

// Create inserts a new entity
func (r *GormVersionedRepository[T, M, PM]) Create(ctx context.Context, tc shared.TenantContext, entity T) error {
	var m M
	PM(&m).FromDomain(entity)
	if err := r.guard.Insert(ctx, tc, r.table, PM(&m).Values()); err != nil {
		return r.translate(err)
	}
	return nil
}

// Update writes the entity under the version guard and advances its version
func (r *GormVersionedRepository[T, M, PM]) Update(ctx context.Context, tc shared.TenantContext, entity T, expected int, lockedStates []string) error {
	var m M
	PM(&m).FromDomain(entity)
	values := PM(&m).Values()
	for _, c := range createOnlyColumns {
		delete(values, c)
	}
	version, err := r.guard.UpdateVersioned(ctx, tc, r.table, entity.Base().ID, expected, values, tenant.UpdateOptions{
		Entity:       r.entity,
		LockedStates: lockedStates,
	})
	if err != nil {
		return r.translate(err)
	}
	entity.Base().Version = version
	return nil
}

// List returns one page of entities, newest first unless opts names a
// sortable column
func (r *GormVersionedRepository[T, M, PM]) List(ctx context.Context, tc shared.TenantContext, opts shared.ListOptions) ([]T, int64, error) {
	var where []tenant.Predicate
	if len(opts.Statuses) > 0 {
		where = append(where, tenant.In(tenant.ColStatus, opts.Statuses...))
	}
	total, err := r.guard.Count(ctx, tc, r.table, where...)
	if err != nil {
		return nil, 0, err
	}
	page := opts.Page.Normalize()
	var rows []M
	if err := r.guard.Read(ctx, tc, r.table, &rows, tenant.Query{
		Where:   where,
		OrderBy: ListOrder(r.table, opts.SortBy, opts.SortOrder),
		Limit:   page.PageSize,
		Offset:  page.Offset(),
	}); err != nil {
		return nil, 0, err
	}
	out := make([]T, len(rows))
	for i := range rows {
		out[i] = PM(&rows[i]).ToDomain()
	}
	return out, total, nil
}

// exists reports whether a tenant row matches every predicate.
func (r *GormVersionedRepository[T, M, PM]) exists(ctx context.Context, tc shared.TenantContext, preds ...tenant.Predicate) (bool, error) {
	n, err := r.guard.Count(ctx, tc, r.table, preds...)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// translate maps unique-key violations to validation errors.
func (r *GormVersionedRepository[T, M, PM]) translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.Validation(r.entity, fmt.Sprintf("%s already exists", r.entity)).
			WithDetail("table", r.table.Name())
	}
	return err
}
