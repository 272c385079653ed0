package finance

import (
	"context"
	"time"

	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	sm "github.com/erp/finkernel/internal/domain/statemachine"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceService manages payable and receivable invoices
type InvoiceService struct {
	entityService[*finance.Invoice, InvoiceResponse]
	repo      finance.InvoiceRepository
	vendors   finance.VendorRepository
	customers finance.CustomerRepository
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(deps kernel.Deps, repo finance.InvoiceRepository, vendors finance.VendorRepository, customers finance.CustomerRepository) *InvoiceService {
	exec := kernel.New(deps, kernel.Config[*finance.Invoice]{
		Entity: shared.EntityInvoice,
		Graph:  finance.DocumentGraph,
		Repo:   repo,
		Amount: func(inv *finance.Invoice) (decimal.Decimal, string) { return inv.Amount, inv.Currency },
		Posting: func(inv *finance.Invoice, action sm.Action) (period.Posting, bool) {
			return period.Posting{Date: inv.InvoiceDate, Class: period.PostingRegular}, action == finance.ActionPost
		},
	})
	return &InvoiceService{
		entityService: entityService[*finance.Invoice, InvoiceResponse]{exec: exec, view: toInvoiceResponse},
		repo:          repo,
		vendors:       vendors,
		customers:     customers,
	}
}

// InvoiceRequest carries the editable invoice fields
type InvoiceRequest struct {
	Direction      string          `json:"direction" validate:"required,oneof=payable receivable"`
	InvoiceNumber  string          `json:"invoice_number" validate:"required,max=50"`
	CounterpartyID uuid.UUID       `json:"counterparty_id" validate:"required"`
	InvoiceDate    time.Time       `json:"invoice_date" validate:"required"`
	DueDate        time.Time       `json:"due_date" validate:"required,gtefield=InvoiceDate"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency       string          `json:"currency" validate:"required,iso4217"`
	Description    string          `json:"description" validate:"max=1000"`
}

func (r InvoiceRequest) fields() finance.InvoiceFields {
	return finance.InvoiceFields{
		Direction:      finance.InvoiceDirection(r.Direction),
		InvoiceNumber:  r.InvoiceNumber,
		CounterpartyID: r.CounterpartyID,
		InvoiceDate:    r.InvoiceDate,
		DueDate:        r.DueDate,
		Amount:         r.Amount,
		Currency:       r.Currency,
		Description:    r.Description,
	}
}

// UpdateInvoiceRequest edits a draft invoice
type UpdateInvoiceRequest struct {
	InvoiceRequest
	ExpectedVersion *int `json:"expected_version"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID            uuid.UUID        `json:"id"`
	TenantID      uuid.UUID        `json:"tenant_id"`
	Direction     string           `json:"direction"`
	InvoiceNumber string           `json:"invoice_number"`
	VendorID      *uuid.UUID       `json:"vendor_id,omitempty"`
	CustomerID    *uuid.UUID       `json:"customer_id,omitempty"`
	InvoiceDate   time.Time        `json:"invoice_date"`
	DueDate       time.Time        `json:"due_date"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	Description   string           `json:"description,omitempty"`
	PostedAt      *time.Time       `json:"posted_at,omitempty"`
	Status        string           `json:"status"`
	Approval      ApprovalResponse `json:"approval"`
	CreatedBy     string           `json:"created_by"`
	UpdatedBy     string           `json:"updated_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Version       int              `json:"version"`
}

// Create records a draft invoice. The counterparty must be active, the
// number unique for the counterparty, and receivables must fit the
// customer's credit limit.
func (s *InvoiceService) Create(ctx context.Context, tc shared.TenantContext, req InvoiceRequest) (*InvoiceResponse, error) {
	return s.create(ctx, tc, req, func(ctx context.Context) (*finance.Invoice, error) {
		inv, err := finance.NewInvoice(req.fields())
		if err != nil {
			return nil, err
		}
		if err := s.check(ctx, tc, inv, uuid.Nil); err != nil {
			return nil, err
		}
		return inv, nil
	})
}

// Update edits an invoice in an editable state
func (s *InvoiceService) Update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	return s.update(ctx, tc, id, req.ExpectedVersion, req, func(ctx context.Context, inv *finance.Invoice) error {
		if err := inv.ApplyChanges(req.fields()); err != nil {
			return err
		}
		return s.check(ctx, tc, inv, inv.ID)
	})
}

// Transition applies a document action. Submit re-checks the counterparty
// and credit; post stamps the posting time.
func (s *InvoiceService) Transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ActionRequest) (*InvoiceResponse, error) {
	return s.transition(ctx, tc, id, req, func(ctx context.Context, inv *finance.Invoice, to sm.State) error {
		switch sm.Action(req.Action) {
		case finance.ActionSubmit:
			if err := s.check(ctx, tc, inv, inv.ID); err != nil {
				return err
			}
		case finance.ActionPost:
			posted(to, s.exec.Now(), &inv.PostedAt)
		}
		return nil
	})
}

func (s *InvoiceService) check(ctx context.Context, tc shared.TenantContext, inv *finance.Invoice, exclude uuid.UUID) error {
	counterparty := inv.CounterpartyID()
	if inv.Direction == finance.DirectionPayable {
		v, err := s.vendors.FindByID(ctx, tc, counterparty)
		if err != nil {
			return err
		}
		if !v.IsActive() {
			return inactive(shared.EntityInvoice, "vendor", counterparty, v.Status)
		}
	} else {
		c, err := s.customers.FindByID(ctx, tc, counterparty)
		if err != nil {
			return err
		}
		if !c.IsActive() {
			return inactive(shared.EntityInvoice, "customer", counterparty, c.Status)
		}
		open, err := s.repo.OpenReceivables(ctx, tc, counterparty, exclude)
		if err != nil {
			return err
		}
		if err := c.CheckCredit(open, inv.Amount); err != nil {
			return err
		}
	}
	exists, err := s.repo.ExistsByNumber(ctx, tc, inv.Direction, counterparty, inv.InvoiceNumber, exclude)
	if err != nil {
		return err
	}
	if exists {
		return shared.Validation(shared.EntityInvoice, "duplicate invoice number for this counterparty").
			WithDetail("field", "invoice_number")
	}
	return nil
}

func inactive(entity shared.EntityKind, kind string, id uuid.UUID, status string) error {
	return shared.Validation(entity, kind+" is not active").
		WithDetail(kind+"_id", id.String()).
		WithDetail("status", status)
}

func toInvoiceResponse(inv *finance.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		ID:            inv.ID,
		TenantID:      inv.TenantID,
		Direction:     string(inv.Direction),
		InvoiceNumber: inv.InvoiceNumber,
		VendorID:      inv.VendorID,
		CustomerID:    inv.CustomerID,
		InvoiceDate:   inv.InvoiceDate,
		DueDate:       inv.DueDate,
		Amount:        inv.Amount,
		Currency:      inv.Currency,
		Description:   inv.Description,
		PostedAt:      inv.PostedAt,
		Status:        inv.Status,
		Approval:      toApprovalResponse(inv.Approval),
		CreatedBy:     inv.CreatedBy,
		UpdatedBy:     inv.UpdatedBy,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
		Version:       inv.Version,
	}
}
