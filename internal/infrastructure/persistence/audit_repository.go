package persistence

import (
	"context"

	"github.com/erp/finkernel/internal/domain/audit"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/persistence/models"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
)

// GormAuditRepository appends and queries the audit trail. Events are only
// inserted; the table is append-only in the guard catalog and in the schema.
type GormAuditRepository struct {
	guard *tenant.Guard
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(guard *tenant.Guard) *GormAuditRepository {
	return &GormAuditRepository{guard: guard}
}

// Record appends an event. The event must belong to the tenant of tc and is
// written inside the transaction carried by ctx, if any.
func (r *GormAuditRepository) Record(ctx context.Context, tc shared.TenantContext, event audit.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	var m models.AuditEventModel
	m.FromDomain(event)
	return r.guard.Insert(ctx, tc, tenant.AuditEvents, m.Values())
}

func auditPredicates(f audit.Filter) []tenant.Predicate {
	var preds []tenant.Predicate
	if f.Resource != "" {
		preds = append(preds, tenant.Eq(tenant.ColResource, f.Resource))
	}
	if f.ResourceID != nil {
		preds = append(preds, tenant.Eq(tenant.ColResourceID, *f.ResourceID))
	}
	if f.ActorID != "" {
		preds = append(preds, tenant.Eq(tenant.ColActorID, f.ActorID))
	}
	if f.Action != "" {
		preds = append(preds, tenant.Eq(tenant.ColAction, f.Action))
	}
	if f.CorrelationID != "" {
		preds = append(preds, tenant.Eq(tenant.ColCorrelationID, f.CorrelationID))
	}
	if f.Result != "" {
		preds = append(preds, tenant.Eq(tenant.ColResult, string(f.Result)))
	}
	if f.From != nil {
		preds = append(preds, tenant.Gte(tenant.ColOccurredAt, *f.From))
	}
	if f.To != nil {
		preds = append(preds, tenant.Lte(tenant.ColOccurredAt, *f.To))
	}
	return preds
}

// Query returns one page of matching events, newest first, and the total
func (r *GormAuditRepository) Query(ctx context.Context, tc shared.TenantContext, filter audit.Filter, page shared.Pagination) ([]audit.Event, int64, error) {
	preds := auditPredicates(filter)
	total, err := r.guard.Count(ctx, tc, tenant.AuditEvents, preds...)
	if err != nil {
		return nil, 0, err
	}
	page = page.Normalize()
	var rows []models.AuditEventModel
	if err := r.guard.Read(ctx, tc, tenant.AuditEvents, &rows, tenant.Query{
		Where:   preds,
		OrderBy: []tenant.Order{tenant.Desc(tenant.ColOccurredAt), tenant.Asc(tenant.ColID)},
		Limit:   page.PageSize,
		Offset:  page.Offset(),
	}); err != nil {
		return nil, 0, err
	}
	events := make([]audit.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].ToDomain()
	}
	return events, total, nil
}

var (
	_ audit.Recorder = (*GormAuditRepository)(nil)
	_ audit.Reader   = (*GormAuditRepository)(nil)
)
