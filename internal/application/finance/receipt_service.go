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

// ReceiptService manages customer receipts
type ReceiptService struct {
	entityService[*finance.Receipt, ReceiptResponse]
	customers finance.CustomerRepository
	invoices  finance.InvoiceRepository
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(deps kernel.Deps, repo finance.ReceiptRepository, customers finance.CustomerRepository, invoices finance.InvoiceRepository) *ReceiptService {
	exec := kernel.New(deps, kernel.Config[*finance.Receipt]{
		Entity: shared.EntityReceipt,
		Graph:  finance.DocumentGraph,
		Repo:   repo,
		Amount: func(r *finance.Receipt) (decimal.Decimal, string) { return r.Amount, r.Currency },
		Posting: func(r *finance.Receipt, action sm.Action) (period.Posting, bool) {
			return period.Posting{Date: r.ReceiptDate, Class: period.PostingRegular}, action == finance.ActionPost
		},
	})
	return &ReceiptService{
		entityService: entityService[*finance.Receipt, ReceiptResponse]{exec: exec, view: toReceiptResponse},
		customers:     customers,
		invoices:      invoices,
	}
}

// ReceiptRequest carries the editable receipt fields
type ReceiptRequest struct {
	ReceiptNumber string          `json:"receipt_number" validate:"required,max=50"`
	CustomerID    uuid.UUID       `json:"customer_id" validate:"required"`
	InvoiceID     *uuid.UUID      `json:"invoice_id"`
	ReceiptDate   time.Time       `json:"receipt_date" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency      string          `json:"currency" validate:"required,iso4217"`
	Reference     string          `json:"reference" validate:"max=100"`
}

func (r ReceiptRequest) fields() finance.ReceiptFields {
	return finance.ReceiptFields{
		ReceiptNumber: r.ReceiptNumber,
		CustomerID:    r.CustomerID,
		InvoiceID:     r.InvoiceID,
		ReceiptDate:   r.ReceiptDate,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Reference:     r.Reference,
	}
}

// UpdateReceiptRequest edits a draft receipt
type UpdateReceiptRequest struct {
	ReceiptRequest
	ExpectedVersion *int `json:"expected_version"`
}

// ReceiptResponse represents a receipt in API responses
type ReceiptResponse struct {
	ID            uuid.UUID        `json:"id"`
	TenantID      uuid.UUID        `json:"tenant_id"`
	ReceiptNumber string           `json:"receipt_number"`
	CustomerID    uuid.UUID        `json:"customer_id"`
	InvoiceID     *uuid.UUID       `json:"invoice_id,omitempty"`
	ReceiptDate   time.Time        `json:"receipt_date"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	Reference     string           `json:"reference,omitempty"`
	PostedAt      *time.Time       `json:"posted_at,omitempty"`
	Status        string           `json:"status"`
	Approval      ApprovalResponse `json:"approval"`
	CreatedBy     string           `json:"created_by"`
	UpdatedBy     string           `json:"updated_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Version       int              `json:"version"`
}

// Create records a draft receipt for an existing customer
func (s *ReceiptService) Create(ctx context.Context, tc shared.TenantContext, req ReceiptRequest) (*ReceiptResponse, error) {
	return s.create(ctx, tc, req, func(ctx context.Context) (*finance.Receipt, error) {
		r, err := finance.NewReceipt(req.fields())
		if err != nil {
			return nil, err
		}
		if err := s.check(ctx, tc, r); err != nil {
			return nil, err
		}
		return r, nil
	})
}

// Update edits a receipt in an editable state
func (s *ReceiptService) Update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req UpdateReceiptRequest) (*ReceiptResponse, error) {
	return s.update(ctx, tc, id, req.ExpectedVersion, req, func(ctx context.Context, r *finance.Receipt) error {
		if err := r.ApplyChanges(req.fields()); err != nil {
			return err
		}
		return s.check(ctx, tc, r)
	})
}

// Transition applies a document action
func (s *ReceiptService) Transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ActionRequest) (*ReceiptResponse, error) {
	return s.transition(ctx, tc, id, req, func(ctx context.Context, r *finance.Receipt, to sm.State) error {
		if sm.Action(req.Action) == finance.ActionPost {
			if err := s.check(ctx, tc, r); err != nil {
				return err
			}
			posted(to, s.exec.Now(), &r.PostedAt)
		}
		return nil
	})
}

func (s *ReceiptService) check(ctx context.Context, tc shared.TenantContext, r *finance.Receipt) error {
	if _, err := s.customers.FindByID(ctx, tc, r.CustomerID); err != nil {
		return err
	}
	if r.InvoiceID == nil {
		return nil
	}
	inv, err := s.invoices.FindByID(ctx, tc, *r.InvoiceID)
	if err != nil {
		return err
	}
	return r.CheckInvoice(inv)
}

func toReceiptResponse(r *finance.Receipt) *ReceiptResponse {
	return &ReceiptResponse{
		ID:            r.ID,
		TenantID:      r.TenantID,
		ReceiptNumber: r.ReceiptNumber,
		CustomerID:    r.CustomerID,
		InvoiceID:     r.InvoiceID,
		ReceiptDate:   r.ReceiptDate,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Reference:     r.Reference,
		PostedAt:      r.PostedAt,
		Status:        r.Status,
		Approval:      toApprovalResponse(r.Approval),
		CreatedBy:     r.CreatedBy,
		UpdatedBy:     r.UpdatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
}
