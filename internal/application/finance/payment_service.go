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

// PaymentService manages outgoing vendor payments
type PaymentService struct {
	entityService[*finance.Payment, PaymentResponse]
	repo     finance.PaymentRepository
	vendors  finance.VendorRepository
	invoices finance.InvoiceRepository
	banks    *BankAccountService
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(deps kernel.Deps, repo finance.PaymentRepository, vendors finance.VendorRepository, invoices finance.InvoiceRepository, banks *BankAccountService) *PaymentService {
	exec := kernel.New(deps, kernel.Config[*finance.Payment]{
		Entity: shared.EntityPayment,
		Graph:  finance.PaymentGraph,
		Repo:   repo,
		Amount: func(p *finance.Payment) (decimal.Decimal, string) { return p.Amount, p.Currency },
		Posting: func(p *finance.Payment, action sm.Action) (period.Posting, bool) {
			gated := action == finance.ActionProcess || action == finance.ActionRetry
			return period.Posting{Date: p.PaymentDate, Class: period.PostingRegular}, gated
		},
	})
	return &PaymentService{
		entityService: entityService[*finance.Payment, PaymentResponse]{exec: exec, view: toPaymentResponse},
		repo:          repo,
		vendors:       vendors,
		invoices:      invoices,
		banks:         banks,
	}
}

// PaymentRequest carries the editable payment fields
type PaymentRequest struct {
	PaymentNumber string          `json:"payment_number" validate:"required,max=50"`
	VendorID      uuid.UUID       `json:"vendor_id" validate:"required"`
	BankAccountID uuid.UUID       `json:"bank_account_id" validate:"required"`
	InvoiceID     *uuid.UUID      `json:"invoice_id"`
	PaymentDate   time.Time       `json:"payment_date" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency      string          `json:"currency" validate:"required,iso4217"`
	Reference     string          `json:"reference" validate:"max=100"`
}

func (r PaymentRequest) fields() finance.PaymentFields {
	return finance.PaymentFields{
		PaymentNumber: r.PaymentNumber,
		VendorID:      r.VendorID,
		BankAccountID: r.BankAccountID,
		InvoiceID:     r.InvoiceID,
		PaymentDate:   r.PaymentDate,
		Amount:        r.Amount,
		Currency:      r.Currency,
		Reference:     r.Reference,
	}
}

// UpdatePaymentRequest edits a draft or failed payment
type UpdatePaymentRequest struct {
	PaymentRequest
	ExpectedVersion *int `json:"expected_version"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID            uuid.UUID        `json:"id"`
	TenantID      uuid.UUID        `json:"tenant_id"`
	PaymentNumber string           `json:"payment_number"`
	VendorID      uuid.UUID        `json:"vendor_id"`
	BankAccountID uuid.UUID        `json:"bank_account_id"`
	InvoiceID     *uuid.UUID       `json:"invoice_id,omitempty"`
	PaymentDate   time.Time        `json:"payment_date"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	Reference     string           `json:"reference,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
	Attempts      int              `json:"attempts"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	Status        string           `json:"status"`
	Approval      ApprovalResponse `json:"approval"`
	CreatedBy     string           `json:"created_by"`
	UpdatedBy     string           `json:"updated_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Version       int              `json:"version"`
}

// Create records a draft payment to an active vendor
func (s *PaymentService) Create(ctx context.Context, tc shared.TenantContext, req PaymentRequest) (*PaymentResponse, error) {
	return s.create(ctx, tc, req, func(ctx context.Context) (*finance.Payment, error) {
		p, err := finance.NewPayment(req.fields())
		if err != nil {
			return nil, err
		}
		if err := s.check(ctx, tc, p); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Update edits a draft payment. A failed payment only takes a new bank
// account or reference.
func (s *PaymentService) Update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req UpdatePaymentRequest) (*PaymentResponse, error) {
	return s.update(ctx, tc, id, req.ExpectedVersion, req, func(ctx context.Context, p *finance.Payment) error {
		if err := p.ApplyChanges(req.fields()); err != nil {
			return err
		}
		return s.check(ctx, tc, p)
	})
}

// Transition applies a payment action. process and retry need an active
// bank account that covers the amount; complete debits it in the same
// transaction; fail records req.Reason.
func (s *PaymentService) Transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ActionRequest) (*PaymentResponse, error) {
	return s.transition(ctx, tc, id, req, func(ctx context.Context, p *finance.Payment, _ sm.State) error {
		switch sm.Action(req.Action) {
		case finance.ActionSubmit:
			return s.check(ctx, tc, p)
		case finance.ActionProcess, finance.ActionRetry:
			if _, err := s.banks.usable(ctx, tc, p.BankAccountID, p.Amount, p.Currency); err != nil {
				return err
			}
			p.MarkProcessing(s.exec.Now())
		case finance.ActionComplete:
			if err := s.banks.debit(ctx, tc, p.BankAccountID, p.Amount, p.Currency); err != nil {
				return err
			}
			p.MarkCompleted(s.exec.Now())
		case finance.ActionFail:
			return p.MarkFailed(req.Reason)
		}
		return nil
	})
}

func (s *PaymentService) check(ctx context.Context, tc shared.TenantContext, p *finance.Payment) error {
	v, err := s.vendors.FindByID(ctx, tc, p.VendorID)
	if err != nil {
		return err
	}
	if !v.IsActive() {
		return inactive(shared.EntityPayment, "vendor", p.VendorID, v.Status)
	}
	if _, err := s.banks.Get(ctx, tc, p.BankAccountID); err != nil {
		return err
	}
	if p.InvoiceID == nil {
		return nil
	}
	inv, err := s.invoices.FindByID(ctx, tc, *p.InvoiceID)
	if err != nil {
		return err
	}
	paid, err := s.repo.PaidAmount(ctx, tc, inv.ID, p.ID)
	if err != nil {
		return err
	}
	return p.CheckInvoice(inv, paid)
}

func toPaymentResponse(p *finance.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:            p.ID,
		TenantID:      p.TenantID,
		PaymentNumber: p.PaymentNumber,
		VendorID:      p.VendorID,
		BankAccountID: p.BankAccountID,
		InvoiceID:     p.InvoiceID,
		PaymentDate:   p.PaymentDate,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Reference:     p.Reference,
		FailureReason: p.FailureReason,
		Attempts:      p.Attempts,
		ProcessedAt:   p.ProcessedAt,
		CompletedAt:   p.CompletedAt,
		Status:        p.Status,
		Approval:      toApprovalResponse(p.Approval),
		CreatedBy:     p.CreatedBy,
		UpdatedBy:     p.UpdatedBy,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Version:       p.Version,
	}
}
