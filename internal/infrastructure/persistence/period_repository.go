package persistence

import (
	"context"

	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/persistence/models"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
)

// GormPeriodRepository stores fiscal period lock rows. It implements
// period.Store for the period lock.
type GormPeriodRepository struct {
	*GormVersionedRepository[*period.Period, models.PeriodModel, *models.PeriodModel]
}

// NewGormPeriodRepository creates a new GormPeriodRepository
func NewGormPeriodRepository(guard *tenant.Guard) *GormPeriodRepository {
	return &GormPeriodRepository{
		NewGormVersionedRepository[*period.Period, models.PeriodModel](guard, tenant.Periods, shared.EntityPeriod),
	}
}

// FindByPeriodID returns the lock row of a YYYY-MM period, if stored
func (r *GormPeriodRepository) FindByPeriodID(ctx context.Context, tc shared.TenantContext, periodID string) (*period.Period, bool, error) {
	var m models.PeriodModel
	found, err := r.guard.ReadOne(ctx, tc, r.table, &m, tenant.Query{
		Where: []tenant.Predicate{tenant.Eq(tenant.ColPeriodID, periodID)},
	})
	if err != nil || !found {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

type periodStatusRow struct {
	PeriodID string
	Status   string
}

// FindStatus implements period.Store
func (r *GormPeriodRepository) FindStatus(ctx context.Context, tc shared.TenantContext, periodID string) (period.Status, bool, error) {
	var row periodStatusRow
	found, err := r.guard.ReadOne(ctx, tc, r.table, &row, tenant.Query{
		Columns: []tenant.Column{tenant.ColPeriodID, tenant.ColStatus},
		Where:   []tenant.Predicate{tenant.Eq(tenant.ColPeriodID, periodID)},
	})
	if err != nil || !found {
		return "", false, err
	}
	return period.Status(row.Status), true, nil
}

// ListRecords implements period.Store
func (r *GormPeriodRepository) ListRecords(ctx context.Context, tc shared.TenantContext) ([]period.Record, error) {
	var rows []periodStatusRow
	if err := r.guard.Read(ctx, tc, r.table, &rows, tenant.Query{
		Columns: []tenant.Column{tenant.ColPeriodID, tenant.ColStatus},
		OrderBy: []tenant.Order{tenant.Asc(tenant.ColPeriodID)},
	}); err != nil {
		return nil, err
	}
	out := make([]period.Record, len(rows))
	for i, row := range rows {
		out[i] = period.Record{PeriodID: row.PeriodID, Status: period.Status(row.Status)}
	}
	return out, nil
}

var _ period.Store = (*GormPeriodRepository)(nil)
