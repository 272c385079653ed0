// Package finance implements the finance use cases on top of the kernel
// executor: master data, documents, payments, journal entries, fiscal
// periods, the audit trail and approval queries.
package finance

import (
	"context"
	"time"

	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/audit"
	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	sm "github.com/erp/finkernel/internal/domain/statemachine"
	"github.com/google/uuid"
)

// PeriodRepository persists fiscal period lock rows.
type PeriodRepository interface {
	shared.VersionedRepository[*period.Period]
	period.Store
	FindByPeriodID(ctx context.Context, tc shared.TenantContext, periodID string) (*period.Period, bool, error)
}

// Repositories are the stores used by the finance services.
type Repositories struct {
	Vendors      finance.VendorRepository
	Customers    finance.CustomerRepository
	BankAccounts finance.BankAccountRepository
	Invoices     finance.InvoiceRepository
	CreditNotes  finance.CreditNoteRepository
	Receipts     finance.ReceiptRepository
	Payments     finance.PaymentRepository
	Journals     finance.JournalEntryRepository
	Periods      PeriodRepository
	Audit        audit.Reader

	// Archive is optional.
	Archive AuditArchiver
}

// Services bundles every finance service over one set of kernel deps.
type Services struct {
	Vendors      *VendorService
	Customers    *CustomerService
	BankAccounts *BankAccountService
	Invoices     *InvoiceService
	CreditNotes  *CreditNoteService
	Receipts     *ReceiptService
	Payments     *PaymentService
	Journals     *JournalService
	Periods      *PeriodService
	Audit        *AuditService
	Approvals    *ApprovalService
}

// NewServices wires the finance services. deps.Periods is replaced by a
// period lock over repos.Periods when nil.
func NewServices(deps kernel.Deps, repos Repositories) *Services {
	if deps.Periods == nil {
		deps.Periods = period.NewLock(repos.Periods, deps.Clock)
	}
	vendors := NewVendorService(deps, repos.Vendors)
	customers := NewCustomerService(deps, repos.Customers)
	banks := NewBankAccountService(deps, repos.BankAccounts)
	invoices := NewInvoiceService(deps, repos.Invoices, repos.Vendors, repos.Customers)
	return &Services{
		Vendors:      vendors,
		Customers:    customers,
		BankAccounts: banks,
		Invoices:     invoices,
		CreditNotes:  NewCreditNoteService(deps, repos.CreditNotes, repos.Invoices),
		Receipts:     NewReceiptService(deps, repos.Receipts, repos.Customers, repos.Invoices),
		Payments:     NewPaymentService(deps, repos.Payments, repos.Vendors, repos.Invoices, banks),
		Journals:     NewJournalService(deps, repos.Journals),
		Periods:      NewPeriodService(deps, repos.Periods),
		Audit:        NewAuditService(repos.Audit, deps.Policy, repos.Archive),
		Approvals:    NewApprovalService(deps.Policy),
	}
}

// ListFilter selects one page of an entity listing.
type ListFilter struct {
	Status    []string `form:"status" validate:"dive,max=32"`
	Page      int      `form:"page" validate:"gte=0"`
	PageSize  int      `form:"page_size" validate:"gte=0,lte=500"`
	SortBy    string   `form:"sort_by" validate:"max=64"`
	SortOrder string   `form:"sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
}

func (f ListFilter) options() shared.ListOptions {
	return shared.ListOptions{
		Statuses:  f.Status,
		Page:      shared.Pagination{Page: f.Page, PageSize: f.PageSize}.Normalize(),
		SortBy:    f.SortBy,
		SortOrder: f.SortOrder,
	}
}

// ActionRequest applies a state graph action.
type ActionRequest struct {
	Action          string `json:"action" validate:"required,max=32"`
	ExpectedVersion *int   `json:"expected_version"`
	// Reason is used by reject and fail.
	Reason string `json:"reason" validate:"max=500"`
}

// entityService holds the read and transition plumbing shared by the entity
// services. R is the response view of T.
type entityService[T shared.Versioned, R any] struct {
	exec *kernel.Executor[T]
	view func(T) *R
}

// Get returns one entity of the tenant
func (s *entityService[T, R]) Get(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*R, error) {
	entity, err := s.exec.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	return s.view(entity), nil
}

// List returns one page of the tenant's entities
func (s *entityService[T, R]) List(ctx context.Context, tc shared.TenantContext, filter ListFilter) ([]R, int64, error) {
	if err := validateCommand(s.exec.Entity(), filter); err != nil {
		return nil, 0, err
	}
	items, total, err := s.exec.List(ctx, tc, filter.options())
	if err != nil {
		return nil, 0, err
	}
	out := make([]R, len(items))
	for i, item := range items {
		out[i] = *s.view(item)
	}
	return out, total, nil
}

// AvailableActions lists the graph actions valid from the entity's status.
func (s *entityService[T, R]) AvailableActions(ctx context.Context, tc shared.TenantContext, id uuid.UUID) ([]string, error) {
	actions, err := s.exec.AvailableActions(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out, nil
}

func (s *entityService[T, R]) create(ctx context.Context, tc shared.TenantContext, cmd any, build func(ctx context.Context) (T, error)) (*R, error) {
	if err := validateCommand(s.exec.Entity(), cmd); err != nil {
		return nil, err
	}
	entity, err := s.exec.Create(ctx, tc, build)
	if err != nil {
		return nil, err
	}
	return s.view(entity), nil
}

func (s *entityService[T, R]) update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, expected *int, cmd any, apply func(ctx context.Context, entity T) error) (*R, error) {
	if err := validateCommand(s.exec.Entity(), cmd); err != nil {
		return nil, err
	}
	entity, err := s.exec.Update(ctx, tc, kernel.UpdateRequest[T]{
		ID:              id,
		ExpectedVersion: expected,
		Apply:           apply,
	})
	if err != nil {
		return nil, err
	}
	return s.view(entity), nil
}

func (s *entityService[T, R]) transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ActionRequest, hook func(ctx context.Context, entity T, to sm.State) error) (*R, error) {
	if err := validateCommand(s.exec.Entity(), req); err != nil {
		return nil, err
	}
	entity, err := s.exec.Transition(ctx, tc, kernel.TransitionRequest[T]{
		ID:              id,
		ExpectedVersion: req.ExpectedVersion,
		Action:          sm.Action(req.Action),
		Hook:            hook,
	})
	if err != nil {
		return nil, err
	}
	return s.view(entity), nil
}

// requireRole returns an Authorize func that demands min for the listed
// actions.
func requireRole[T shared.Versioned](policy kernel.Policy, entity shared.EntityKind, min sod.Role, actions ...sm.Action) func(context.Context, shared.TenantContext, T, sm.Action) error {
	return func(ctx context.Context, tc shared.TenantContext, _ T, action sm.Action) error {
		for _, a := range actions {
			if a != action {
				continue
			}
			d, err := policy.HasRoleAtLeast(ctx, tc, tc.ActorID, min)
			if err != nil {
				return err
			}
			return d.Err(entity)
		}
		return nil
	}
}

// posted stamps the posting time when a document enters the ledger.
func posted(to sm.State, now time.Time, at **time.Time) {
	if to == finance.StatePosted {
		*at = &now
	}
}
