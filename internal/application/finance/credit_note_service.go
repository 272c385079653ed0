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

// CreditNoteService manages credit notes against posted invoices
type CreditNoteService struct {
	entityService[*finance.CreditNote, CreditNoteResponse]
	repo     finance.CreditNoteRepository
	invoices finance.InvoiceRepository
}

// NewCreditNoteService creates a new CreditNoteService
func NewCreditNoteService(deps kernel.Deps, repo finance.CreditNoteRepository, invoices finance.InvoiceRepository) *CreditNoteService {
	exec := kernel.New(deps, kernel.Config[*finance.CreditNote]{
		Entity: shared.EntityCreditNote,
		Graph:  finance.DocumentGraph,
		Repo:   repo,
		Amount: func(cn *finance.CreditNote) (decimal.Decimal, string) { return cn.Amount, cn.Currency },
		Posting: func(cn *finance.CreditNote, action sm.Action) (period.Posting, bool) {
			return period.Posting{Date: cn.CreditDate, Class: period.PostingRegular}, action == finance.ActionPost
		},
	})
	return &CreditNoteService{
		entityService: entityService[*finance.CreditNote, CreditNoteResponse]{exec: exec, view: toCreditNoteResponse},
		repo:          repo,
		invoices:      invoices,
	}
}

// CreditNoteRequest carries the editable credit note fields
type CreditNoteRequest struct {
	CreditNoteNumber string          `json:"credit_note_number" validate:"required,max=50"`
	InvoiceID        uuid.UUID       `json:"invoice_id" validate:"required"`
	CreditDate       time.Time       `json:"credit_date" validate:"required"`
	Amount           decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency         string          `json:"currency" validate:"required,iso4217"`
	Reason           string          `json:"reason" validate:"required,max=500"`
}

func (r CreditNoteRequest) fields() finance.CreditNoteFields {
	return finance.CreditNoteFields{
		CreditNoteNumber: r.CreditNoteNumber,
		InvoiceID:        r.InvoiceID,
		CreditDate:       r.CreditDate,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Reason:           r.Reason,
	}
}

// UpdateCreditNoteRequest edits a draft credit note
type UpdateCreditNoteRequest struct {
	CreditNoteRequest
	ExpectedVersion *int `json:"expected_version"`
}

// CreditNoteResponse represents a credit note in API responses
type CreditNoteResponse struct {
	ID               uuid.UUID        `json:"id"`
	TenantID         uuid.UUID        `json:"tenant_id"`
	CreditNoteNumber string           `json:"credit_note_number"`
	InvoiceID        uuid.UUID        `json:"invoice_id"`
	CreditDate       time.Time        `json:"credit_date"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	Reason           string           `json:"reason"`
	PostedAt         *time.Time       `json:"posted_at,omitempty"`
	Status           string           `json:"status"`
	Approval         ApprovalResponse `json:"approval"`
	CreatedBy        string           `json:"created_by"`
	UpdatedBy        string           `json:"updated_by"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Version          int              `json:"version"`
}

// Create records a draft credit note. The invoice must be posted and keep
// enough creditable balance.
func (s *CreditNoteService) Create(ctx context.Context, tc shared.TenantContext, req CreditNoteRequest) (*CreditNoteResponse, error) {
	return s.create(ctx, tc, req, func(ctx context.Context) (*finance.CreditNote, error) {
		cn, err := finance.NewCreditNote(req.fields())
		if err != nil {
			return nil, err
		}
		if err := s.check(ctx, tc, cn, uuid.Nil); err != nil {
			return nil, err
		}
		return cn, nil
	})
}

// Update edits a credit note in an editable state
func (s *CreditNoteService) Update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req UpdateCreditNoteRequest) (*CreditNoteResponse, error) {
	return s.update(ctx, tc, id, req.ExpectedVersion, req, func(ctx context.Context, cn *finance.CreditNote) error {
		if err := cn.ApplyChanges(req.fields()); err != nil {
			return err
		}
		return s.check(ctx, tc, cn, cn.ID)
	})
}

// Transition applies a document action. Submit and post re-check the
// invoice balance so concurrent notes cannot over-credit it.
func (s *CreditNoteService) Transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ActionRequest) (*CreditNoteResponse, error) {
	return s.transition(ctx, tc, id, req, func(ctx context.Context, cn *finance.CreditNote, to sm.State) error {
		switch sm.Action(req.Action) {
		case finance.ActionSubmit, finance.ActionPost:
			if err := s.check(ctx, tc, cn, cn.ID); err != nil {
				return err
			}
			posted(to, s.exec.Now(), &cn.PostedAt)
		}
		return nil
	})
}

func (s *CreditNoteService) check(ctx context.Context, tc shared.TenantContext, cn *finance.CreditNote, exclude uuid.UUID) error {
	inv, err := s.invoices.FindByID(ctx, tc, cn.InvoiceID)
	if err != nil {
		return err
	}
	credited, err := s.repo.CreditedAmount(ctx, tc, cn.InvoiceID, exclude)
	if err != nil {
		return err
	}
	return cn.CheckAgainst(inv, credited)
}

func toCreditNoteResponse(cn *finance.CreditNote) *CreditNoteResponse {
	return &CreditNoteResponse{
		ID:               cn.ID,
		TenantID:         cn.TenantID,
		CreditNoteNumber: cn.CreditNoteNumber,
		InvoiceID:        cn.InvoiceID,
		CreditDate:       cn.CreditDate,
		Amount:           cn.Amount,
		Currency:         cn.Currency,
		Reason:           cn.Reason,
		PostedAt:         cn.PostedAt,
		Status:           cn.Status,
		Approval:         toApprovalResponse(cn.Approval),
		CreatedBy:        cn.CreatedBy,
		UpdatedBy:        cn.UpdatedBy,
		CreatedAt:        cn.CreatedAt,
		UpdatedAt:        cn.UpdatedAt,
		Version:          cn.Version,
	}
}
