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

// CustomerService manages the customer master
type CustomerService struct {
	entityService[*finance.Customer, CustomerResponse]
	repo finance.CustomerRepository
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(deps kernel.Deps, repo finance.CustomerRepository) *CustomerService {
	exec := kernel.New(deps, kernel.Config[*finance.Customer]{
		Entity:    shared.EntityCustomer,
		Graph:     finance.MasterDataGraph,
		Repo:      repo,
		FixedRole: finance.MasterDataApprover,
		Authorize: requireRole[*finance.Customer](deps.Policy, shared.EntityCustomer, finance.MasterDataApprover,
			finance.ActionSuspend, finance.ActionReactivate),
	})
	return &CustomerService{
		entityService: entityService[*finance.Customer, CustomerResponse]{exec: exec, view: toCustomerResponse},
		repo:          repo,
	}
}

// CustomerRequest carries the editable customer fields
type CustomerRequest struct {
	Code        string          `json:"code" validate:"required,max=50"`
	Name        string          `json:"name" validate:"required,max=200"`
	Email       string          `json:"email" validate:"omitempty,email,max=200"`
	Currency    string          `json:"currency" validate:"required,iso4217"`
	CreditLimit decimal.Decimal `json:"credit_limit" validate:"gte=0"`
}

func (r CustomerRequest) fields() finance.CustomerFields {
	return finance.CustomerFields{
		Code:        r.Code,
		Name:        r.Name,
		Email:       r.Email,
		Currency:    r.Currency,
		CreditLimit: r.CreditLimit,
	}
}

// UpdateCustomerRequest edits a draft customer
type UpdateCustomerRequest struct {
	CustomerRequest
	ExpectedVersion *int `json:"expected_version"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID          uuid.UUID        `json:"id"`
	TenantID    uuid.UUID        `json:"tenant_id"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Email       string           `json:"email,omitempty"`
	Currency    string           `json:"currency"`
	CreditLimit decimal.Decimal  `json:"credit_limit"`
	Status      string           `json:"status"`
	Approval    ApprovalResponse `json:"approval"`
	CreatedBy   string           `json:"created_by"`
	UpdatedBy   string           `json:"updated_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Version     int              `json:"version"`
}

// Create registers a draft customer with a tenant-unique code
func (s *CustomerService) Create(ctx context.Context, tc shared.TenantContext, req CustomerRequest) (*CustomerResponse, error) {
	return s.create(ctx, tc, req, func(ctx context.Context) (*finance.Customer, error) {
		c, err := finance.NewCustomer(req.fields())
		if err != nil {
			return nil, err
		}
		if err := s.checkUnique(ctx, tc, c, uuid.Nil); err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Update edits a customer in an editable state
func (s *CustomerService) Update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req UpdateCustomerRequest) (*CustomerResponse, error) {
	return s.update(ctx, tc, id, req.ExpectedVersion, req, func(ctx context.Context, c *finance.Customer) error {
		if err := c.ApplyChanges(req.fields()); err != nil {
			return err
		}
		return s.checkUnique(ctx, tc, c, c.ID)
	})
}

// Transition applies a master data action
func (s *CustomerService) Transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ActionRequest) (*CustomerResponse, error) {
	return s.transition(ctx, tc, id, req, nil)
}

func (s *CustomerService) checkUnique(ctx context.Context, tc shared.TenantContext, c *finance.Customer, exclude uuid.UUID) error {
	exists, err := s.repo.ExistsByCode(ctx, tc, c.Code, exclude)
	if err != nil {
		return err
	}
	if exists {
		return shared.Validation(shared.EntityCustomer, "customer code already exists").WithDetail("field", "code")
	}
	return nil
}

func toCustomerResponse(c *finance.Customer) *CustomerResponse {
	return &CustomerResponse{
		ID:          c.ID,
		TenantID:    c.TenantID,
		Code:        c.Code,
		Name:        c.Name,
		Email:       c.Email,
		Currency:    c.Currency,
		CreditLimit: c.CreditLimit,
		Status:      c.Status,
		Approval:    toApprovalResponse(c.Approval),
		CreatedBy:   c.CreatedBy,
		UpdatedBy:   c.UpdatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Version:     c.Version,
	}
}
