package finance

import (
	"context"
	"time"

	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditDebit is the audit action of a bank account debit by a payment.
const AuditDebit = "debit"

// BankAccountService manages treasury bank accounts
type BankAccountService struct {
	entityService[*finance.BankAccount, BankAccountResponse]
	repo finance.BankAccountRepository
}

// NewBankAccountService creates a new BankAccountService
func NewBankAccountService(deps kernel.Deps, repo finance.BankAccountRepository) *BankAccountService {
	exec := kernel.New(deps, kernel.Config[*finance.BankAccount]{
		Entity:    shared.EntityBankAccount,
		Graph:     finance.MasterDataGraph,
		Repo:      repo,
		FixedRole: finance.MasterDataApprover,
		Authorize: requireRole[*finance.BankAccount](deps.Policy, shared.EntityBankAccount, finance.MasterDataApprover,
			finance.ActionSuspend, finance.ActionReactivate),
	})
	return &BankAccountService{
		entityService: entityService[*finance.BankAccount, BankAccountResponse]{exec: exec, view: toBankAccountResponse},
		repo:          repo,
	}
}

// CreateBankAccountRequest registers a bank account
type CreateBankAccountRequest struct {
	AccountNumber  string          `json:"account_number" validate:"required,max=50"`
	BankName       string          `json:"bank_name" validate:"required,max=200"`
	Name           string          `json:"name" validate:"required,max=200"`
	Currency       string          `json:"currency" validate:"required,iso4217"`
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"gte=0"`
}

// UpdateBankAccountRequest edits the descriptive fields of a draft account
type UpdateBankAccountRequest struct {
	AccountNumber   string `json:"account_number" validate:"required,max=50"`
	BankName        string `json:"bank_name" validate:"required,max=200"`
	Name            string `json:"name" validate:"required,max=200"`
	Currency        string `json:"currency" validate:"omitempty,iso4217"`
	ExpectedVersion *int   `json:"expected_version"`
}

// BankAccountResponse represents a bank account in API responses
type BankAccountResponse struct {
	ID            uuid.UUID        `json:"id"`
	TenantID      uuid.UUID        `json:"tenant_id"`
	AccountNumber string           `json:"account_number"`
	BankName      string           `json:"bank_name"`
	Name          string           `json:"name"`
	Currency      string           `json:"currency"`
	Balance       decimal.Decimal  `json:"balance"`
	Status        string           `json:"status"`
	Approval      ApprovalResponse `json:"approval"`
	CreatedBy     string           `json:"created_by"`
	UpdatedBy     string           `json:"updated_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Version       int              `json:"version"`
}

// Create registers a draft bank account with a tenant-unique number
func (s *BankAccountService) Create(ctx context.Context, tc shared.TenantContext, req CreateBankAccountRequest) (*BankAccountResponse, error) {
	return s.create(ctx, tc, req, func(ctx context.Context) (*finance.BankAccount, error) {
		b, err := finance.NewBankAccount(finance.BankAccountFields{
			AccountNumber:  req.AccountNumber,
			BankName:       req.BankName,
			Name:           req.Name,
			Currency:       req.Currency,
			OpeningBalance: req.OpeningBalance,
		})
		if err != nil {
			return nil, err
		}
		if err := s.checkUnique(ctx, tc, b, uuid.Nil); err != nil {
			return nil, err
		}
		return b, nil
	})
}

// Update edits a bank account in an editable state. The balance and
// currency are not editable.
func (s *BankAccountService) Update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req UpdateBankAccountRequest) (*BankAccountResponse, error) {
	return s.update(ctx, tc, id, req.ExpectedVersion, req, func(ctx context.Context, b *finance.BankAccount) error {
		if err := b.ApplyChanges(finance.BankAccountFields{
			AccountNumber: req.AccountNumber,
			BankName:      req.BankName,
			Name:          req.Name,
			Currency:      req.Currency,
		}); err != nil {
			return err
		}
		return s.checkUnique(ctx, tc, b, b.ID)
	})
}

// Transition applies a master data action
func (s *BankAccountService) Transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ActionRequest) (*BankAccountResponse, error) {
	return s.transition(ctx, tc, id, req, nil)
}

// usable loads an account and checks that it can fund amount.
func (s *BankAccountService) usable(ctx context.Context, tc shared.TenantContext, id uuid.UUID, amount decimal.Decimal, currency string) (*finance.BankAccount, error) {
	b, err := s.repo.FindByID(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	if !b.IsActive() {
		return nil, shared.Validation(shared.EntityBankAccount, "bank account is not active").
			WithDetail("bank_account_id", id.String()).
			WithDetail("status", b.Status)
	}
	if err := b.CheckFunds(amount, currency); err != nil {
		return nil, err
	}
	return b, nil
}

// debit withdraws amount under the account's own version guard and audits
// the balance change. It runs in the caller's transaction.
func (s *BankAccountService) debit(ctx context.Context, tc shared.TenantContext, id uuid.UUID, amount decimal.Decimal, currency string) error {
	b, err := s.usable(ctx, tc, id, amount, currency)
	if err != nil {
		return err
	}
	return s.exec.Save(ctx, tc, b, AuditDebit, func(b *finance.BankAccount) error {
		return b.Debit(amount, currency)
	})
}

func (s *BankAccountService) checkUnique(ctx context.Context, tc shared.TenantContext, b *finance.BankAccount, exclude uuid.UUID) error {
	exists, err := s.repo.ExistsByAccountNumber(ctx, tc, b.AccountNumber, exclude)
	if err != nil {
		return err
	}
	if exists {
		return shared.Validation(shared.EntityBankAccount, "bank account number already exists").WithDetail("field", "account_number")
	}
	return nil
}

func toBankAccountResponse(b *finance.BankAccount) *BankAccountResponse {
	return &BankAccountResponse{
		ID:            b.ID,
		TenantID:      b.TenantID,
		AccountNumber: b.AccountNumber,
		BankName:      b.BankName,
		Name:          b.Name,
		Currency:      b.Currency,
		Balance:       b.Balance,
		Status:        b.Status,
		Approval:      toApprovalResponse(b.Approval),
		CreatedBy:     b.CreatedBy,
		UpdatedBy:     b.UpdatedBy,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
		Version:       b.Version,
	}
}
