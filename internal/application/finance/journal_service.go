package finance

import (
	"context"
	"time"

	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	sm "github.com/erp/finkernel/internal/domain/statemachine"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalReverser is the minimum role that reverses a posted entry. Entries
// above the auto-approve tier also need the tier's most senior role.
const JournalReverser = sod.RoleManager

// JournalService manages general ledger journal entries
type JournalService struct {
	entityService[*finance.JournalEntry, JournalEntryResponse]
	repo finance.JournalEntryRepository
}

// NewJournalService creates a new JournalService
func NewJournalService(deps kernel.Deps, repo finance.JournalEntryRepository) *JournalService {
	exec := kernel.New(deps, kernel.Config[*finance.JournalEntry]{
		Entity: shared.EntityJournal,
		Graph:  finance.JournalGraph,
		Repo:   repo,
		Amount: func(je *finance.JournalEntry) (decimal.Decimal, string) { return je.TotalDebit(), je.Currency },
		Posting: func(je *finance.JournalEntry, action sm.Action) (period.Posting, bool) {
			switch action {
			case finance.ActionPost:
				return period.Posting{Date: je.EntryDate, Class: je.EntryType.PostingClass()}, true
			}
			return period.Posting{}, false
		},
		Authorize: func(ctx context.Context, tc shared.TenantContext, je *finance.JournalEntry, action sm.Action) error {
			if action != finance.ActionReverse {
				return nil
			}
			return authorizeReversal(ctx, deps.Policy, tc, je)
		},
	})
	return &JournalService{
		entityService: entityService[*finance.JournalEntry, JournalEntryResponse]{exec: exec, view: toJournalEntryResponse},
		repo:          repo,
	}
}

// JournalLineRequest is one debit or credit line
type JournalLineRequest struct {
	AccountCode string          `json:"account_code" validate:"required,max=32"`
	Debit       decimal.Decimal `json:"debit" validate:"gte=0"`
	Credit      decimal.Decimal `json:"credit" validate:"gte=0"`
	Memo        string          `json:"memo" validate:"max=200"`
}

// JournalEntryRequest carries the editable entry fields
type JournalEntryRequest struct {
	EntryNumber string               `json:"entry_number" validate:"required,max=50"`
	EntryDate   time.Time            `json:"entry_date" validate:"required"`
	EntryType   string               `json:"entry_type" validate:"omitempty,oneof=regular adjustment"`
	Description string               `json:"description" validate:"max=1000"`
	Currency    string               `json:"currency" validate:"required,iso4217"`
	Lines       []JournalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (r JournalEntryRequest) fields() finance.JournalEntryFields {
	lines := make([]finance.JournalLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = finance.JournalLine{AccountCode: l.AccountCode, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo}
	}
	return finance.JournalEntryFields{
		EntryNumber: r.EntryNumber,
		EntryDate:   r.EntryDate,
		EntryType:   finance.EntryType(r.EntryType),
		Description: r.Description,
		Currency:    r.Currency,
		Lines:       lines,
	}
}

// UpdateJournalEntryRequest edits a draft entry
type UpdateJournalEntryRequest struct {
	JournalEntryRequest
	ExpectedVersion *int `json:"expected_version"`
}

// ReverseJournalEntryRequest reverses a posted entry
type ReverseJournalEntryRequest struct {
	ExpectedVersion *int      `json:"expected_version"`
	EntryNumber     string    `json:"entry_number" validate:"required,max=50"`
	ReversalDate    time.Time `json:"reversal_date" validate:"required"`
}

// JournalEntryResponse represents a journal entry in API responses
type JournalEntryResponse struct {
	ID          uuid.UUID             `json:"id"`
	TenantID    uuid.UUID             `json:"tenant_id"`
	EntryNumber string                `json:"entry_number"`
	EntryDate   time.Time             `json:"entry_date"`
	EntryType   string                `json:"entry_type"`
	Description string                `json:"description,omitempty"`
	Currency    string                `json:"currency"`
	Lines       []finance.JournalLine `json:"lines"`
	TotalDebit  decimal.Decimal       `json:"total_debit"`
	ReversalOf  *uuid.UUID            `json:"reversal_of,omitempty"`
	ReversedBy  *uuid.UUID            `json:"reversed_by,omitempty"`
	PostedAt    *time.Time            `json:"posted_at,omitempty"`
	Status      string                `json:"status"`
	Approval    ApprovalResponse      `json:"approval"`
	CreatedBy   string                `json:"created_by"`
	UpdatedBy   string                `json:"updated_by"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Version     int                   `json:"version"`
}

// ReversalResponse pairs a reversed entry with the entry that reverses it
type ReversalResponse struct {
	Original JournalEntryResponse `json:"original"`
	Reversal JournalEntryResponse `json:"reversal"`
}

// Create records a balanced draft entry with a tenant-unique number
func (s *JournalService) Create(ctx context.Context, tc shared.TenantContext, req JournalEntryRequest) (*JournalEntryResponse, error) {
	return s.create(ctx, tc, req, func(ctx context.Context) (*finance.JournalEntry, error) {
		je, err := finance.NewJournalEntry(req.fields())
		if err != nil {
			return nil, err
		}
		if err := s.checkUnique(ctx, tc, je.EntryNumber, uuid.Nil); err != nil {
			return nil, err
		}
		return je, nil
	})
}

// Update edits an entry in an editable state
func (s *JournalService) Update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req UpdateJournalEntryRequest) (*JournalEntryResponse, error) {
	return s.update(ctx, tc, id, req.ExpectedVersion, req, func(ctx context.Context, je *finance.JournalEntry) error {
		if err := je.ApplyChanges(req.fields()); err != nil {
			return err
		}
		return s.checkUnique(ctx, tc, je.EntryNumber, je.ID)
	})
}

// Transition applies a journal action other than reverse
func (s *JournalService) Transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ActionRequest) (*JournalEntryResponse, error) {
	if sm.Action(req.Action) == finance.ActionReverse {
		return nil, shared.Validation(shared.EntityJournal, "use the reverse operation to reverse a journal entry").
			WithDetail("field", "action")
	}
	return s.transition(ctx, tc, id, req, func(_ context.Context, je *finance.JournalEntry, to sm.State) error {
		posted(to, s.exec.Now(), &je.PostedAt)
		return nil
	})
}

// Reverse marks a posted entry reversed and posts a new entry with swapped
// lines dated req.ReversalDate. Both writes and their audit events commit
// together. The reversal date must fall in a period that accepts
// adjustments, and the actor needs JournalReverser or the seniority of the
// entry's approval tier, whichever is higher.
func (s *JournalService) Reverse(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ReverseJournalEntryRequest) (*ReversalResponse, error) {
	if err := validateCommand(shared.EntityJournal, req); err != nil {
		return nil, err
	}
	var reversal *finance.JournalEntry
	original, err := s.exec.Transition(ctx, tc, kernel.TransitionRequest[*finance.JournalEntry]{
		ID:              id,
		ExpectedVersion: req.ExpectedVersion,
		Action:          finance.ActionReverse,
		Hook: func(ctx context.Context, je *finance.JournalEntry, _ sm.State) error {
			rev, err := je.NewReversal(req.EntryNumber, req.ReversalDate)
			if err != nil {
				return err
			}
			if err := s.exec.CheckPosting(ctx, tc, period.Posting{Date: rev.EntryDate, Class: rev.EntryType.PostingClass()}); err != nil {
				return err
			}
			if err := s.checkUnique(ctx, tc, rev.EntryNumber, uuid.Nil); err != nil {
				return err
			}
			now := s.exec.Now()
			rev.PostedAt = &now
			if err := s.exec.Insert(ctx, tc, rev, finance.StatePosted); err != nil {
				return err
			}
			je.ReversedBy = &rev.ID
			reversal = rev
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &ReversalResponse{
		Original: *toJournalEntryResponse(original),
		Reversal: *toJournalEntryResponse(reversal),
	}, nil
}

func authorizeReversal(ctx context.Context, policy kernel.Policy, tc shared.TenantContext, je *finance.JournalEntry) error {
	req, err := policy.GetApprovalRequirements(ctx, tc, je.TotalDebit(), je.Currency)
	if err != nil {
		return err
	}
	d, err := policy.HasRoleAtLeast(ctx, tc, tc.ActorID, sod.Highest([]sod.Role{JournalReverser, req.Seniority()}))
	if err != nil {
		return err
	}
	return d.Err(shared.EntityJournal)
}

func (s *JournalService) checkUnique(ctx context.Context, tc shared.TenantContext, number string, exclude uuid.UUID) error {
	exists, err := s.repo.ExistsByNumber(ctx, tc, number, exclude)
	if err != nil {
		return err
	}
	if exists {
		return shared.Validation(shared.EntityJournal, "journal entry number already exists").WithDetail("field", "entry_number")
	}
	return nil
}

func toJournalEntryResponse(je *finance.JournalEntry) *JournalEntryResponse {
	return &JournalEntryResponse{
		ID:          je.ID,
		TenantID:    je.TenantID,
		EntryNumber: je.EntryNumber,
		EntryDate:   je.EntryDate,
		EntryType:   string(je.EntryType),
		Description: je.Description,
		Currency:    je.Currency,
		Lines:       append([]finance.JournalLine(nil), je.Lines...),
		TotalDebit:  je.TotalDebit(),
		ReversalOf:  je.ReversalOf,
		ReversedBy:  je.ReversedBy,
		PostedAt:    je.PostedAt,
		Status:      je.Status,
		Approval:    toApprovalResponse(je.Approval),
		CreatedBy:   je.CreatedBy,
		UpdatedBy:   je.UpdatedBy,
		CreatedAt:   je.CreatedAt,
		UpdatedAt:   je.UpdatedAt,
		Version:     je.Version,
	}
}
