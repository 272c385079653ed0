package kernel

import (
	"context"
	"slices"
	"sync"

	"github.com/erp/finkernel/internal/domain/audit"
	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
)

// memoryInvoices is a versioned invoice store with the same guard
// semantics as the database repositories.
type memoryInvoices struct {
	mu   sync.Mutex
	rows map[uuid.UUID]finance.Invoice
}

func newMemoryInvoices() *memoryInvoices {
	return &memoryInvoices{rows: make(map[uuid.UUID]finance.Invoice)}
}

func cloneInvoice(inv finance.Invoice) *finance.Invoice {
	inv.Approval.ApprovedBy = slices.Clone(inv.Approval.ApprovedBy)
	return &inv
}

func (m *memoryInvoices) FindByID(_ context.Context, tc shared.TenantContext, id uuid.UUID) (*finance.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.TenantID != tc.TenantID {
		return nil, shared.NotFound(shared.EntityInvoice, id)
	}
	return cloneInvoice(row), nil
}

func (m *memoryInvoices) Create(_ context.Context, tc shared.TenantContext, inv *finance.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.TenantID != tc.TenantID {
		return shared.NewKernelError(shared.CodeTenantMismatch, shared.EntityInvoice, "tenant mismatch")
	}
	m.rows[inv.ID] = *cloneInvoice(*inv)
	return nil
}

func (m *memoryInvoices) Update(_ context.Context, tc shared.TenantContext, inv *finance.Invoice, expected int, locked []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[inv.ID]
	if !ok || row.TenantID != tc.TenantID {
		return shared.NotFound(shared.EntityInvoice, inv.ID)
	}
	if row.Version != expected {
		return shared.VersionConflict(shared.EntityInvoice, inv.ID, expected, row.Version)
	}
	if slices.Contains(locked, row.Status) {
		return shared.InvalidTransition(shared.EntityInvoice, row.Status, "update").WithDetail("reason", "immutable")
	}
	inv.Version = expected + 1
	m.rows[inv.ID] = *cloneInvoice(*inv)
	return nil
}

func (m *memoryInvoices) List(_ context.Context, tc shared.TenantContext, opts shared.ListOptions) ([]*finance.Invoice, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*finance.Invoice
	for _, row := range m.rows {
		if row.TenantID == tc.TenantID && (len(opts.Statuses) == 0 || slices.Contains(opts.Statuses, row.Status)) {
			out = append(out, cloneInvoice(row))
		}
	}
	return out, int64(len(out)), nil
}

func (m *memoryInvoices) stored(id uuid.UUID) finance.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

// inlineTx runs fn directly.
type inlineTx struct{ calls int }

func (t *inlineTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type memoryAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memoryAudit) Record(_ context.Context, tc shared.TenantContext, e audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.TenantID != tc.TenantID {
		return shared.NewKernelError(shared.CodeTenantMismatch, shared.EntityAudit, "tenant mismatch")
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memoryAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Action
	}
	return out
}

type memoryPeriods map[string]period.Status

func (m memoryPeriods) FindStatus(_ context.Context, _ shared.TenantContext, periodID string) (period.Status, bool, error) {
	st, ok := m[periodID]
	return st, ok, nil
}

func (m memoryPeriods) ListRecords(_ context.Context, _ shared.TenantContext) ([]period.Record, error) {
	out := make([]period.Record, 0, len(m))
	for id, st := range m {
		out = append(out, period.Record{PeriodID: id, Status: st})
	}
	return out, nil
}
