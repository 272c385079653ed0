package finance

import (
	"context"
	"time"

	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
)

// VendorService manages the vendor master
type VendorService struct {
	entityService[*finance.Vendor, VendorResponse]
	repo finance.VendorRepository
}

// NewVendorService creates a new VendorService
func NewVendorService(deps kernel.Deps, repo finance.VendorRepository) *VendorService {
	exec := kernel.New(deps, kernel.Config[*finance.Vendor]{
		Entity:    shared.EntityVendor,
		Graph:     finance.MasterDataGraph,
		Repo:      repo,
		FixedRole: finance.MasterDataApprover,
		Authorize: requireRole[*finance.Vendor](deps.Policy, shared.EntityVendor, finance.MasterDataApprover,
			finance.ActionSuspend, finance.ActionReactivate),
	})
	return &VendorService{
		entityService: entityService[*finance.Vendor, VendorResponse]{exec: exec, view: toVendorResponse},
		repo:          repo,
	}
}

// VendorRequest carries the editable vendor fields
type VendorRequest struct {
	Code             string `json:"code" validate:"required,max=50"`
	Name             string `json:"name" validate:"required,max=200"`
	TaxID            string `json:"tax_id" validate:"max=50"`
	Email            string `json:"email" validate:"omitempty,email,max=200"`
	Currency         string `json:"currency" validate:"required,iso4217"`
	PaymentTermsDays int    `json:"payment_terms_days" validate:"gte=0,lte=365"`
}

func (r VendorRequest) fields() finance.VendorFields {
	return finance.VendorFields{
		Code:             r.Code,
		Name:             r.Name,
		TaxID:            r.TaxID,
		Email:            r.Email,
		Currency:         r.Currency,
		PaymentTermsDays: r.PaymentTermsDays,
	}
}

// UpdateVendorRequest edits a draft vendor
type UpdateVendorRequest struct {
	VendorRequest
	ExpectedVersion *int `json:"expected_version"`
}

// VendorResponse represents a vendor in API responses
type VendorResponse struct {
	ID               uuid.UUID        `json:"id"`
	TenantID         uuid.UUID        `json:"tenant_id"`
	Code             string           `json:"code"`
	Name             string           `json:"name"`
	TaxID            string           `json:"tax_id,omitempty"`
	Email            string           `json:"email,omitempty"`
	Currency         string           `json:"currency"`
	PaymentTermsDays int              `json:"payment_terms_days"`
	Status           string           `json:"status"`
	Approval         ApprovalResponse `json:"approval"`
	CreatedBy        string           `json:"created_by"`
	UpdatedBy        string           `json:"updated_by"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Version          int              `json:"version"`
}

// Create registers a draft vendor. Code and tax id are unique per tenant.
func (s *VendorService) Create(ctx context.Context, tc shared.TenantContext, req VendorRequest) (*VendorResponse, error) {
	return s.create(ctx, tc, req, func(ctx context.Context) (*finance.Vendor, error) {
		v, err := finance.NewVendor(req.fields())
		if err != nil {
			return nil, err
		}
		if err := s.checkUnique(ctx, tc, v, uuid.Nil); err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Update edits a vendor in an editable state
func (s *VendorService) Update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req UpdateVendorRequest) (*VendorResponse, error) {
	return s.update(ctx, tc, id, req.ExpectedVersion, req, func(ctx context.Context, v *finance.Vendor) error {
		if err := v.ApplyChanges(req.fields()); err != nil {
			return err
		}
		return s.checkUnique(ctx, tc, v, v.ID)
	})
}

// Transition applies a master data action
func (s *VendorService) Transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req ActionRequest) (*VendorResponse, error) {
	return s.transition(ctx, tc, id, req, nil)
}

func (s *VendorService) checkUnique(ctx context.Context, tc shared.TenantContext, v *finance.Vendor, exclude uuid.UUID) error {
	exists, err := s.repo.ExistsByCode(ctx, tc, v.Code, exclude)
	if err != nil {
		return err
	}
	if exists {
		return shared.Validation(shared.EntityVendor, "vendor code already exists").WithDetail("field", "code")
	}
	if v.TaxID == "" {
		return nil
	}
	exists, err = s.repo.ExistsByTaxID(ctx, tc, v.TaxID, exclude)
	if err != nil {
		return err
	}
	if exists {
		return shared.Validation(shared.EntityVendor, "vendor tax id already exists").WithDetail("field", "tax_id")
	}
	return nil
}

func toVendorResponse(v *finance.Vendor) *VendorResponse {
	return &VendorResponse{
		ID:               v.ID,
		TenantID:         v.TenantID,
		Code:             v.Code,
		Name:             v.Name,
		TaxID:            v.TaxID,
		Email:            v.Email,
		Currency:         v.Currency,
		PaymentTermsDays: v.PaymentTermsDays,
		Status:           v.Status,
		Approval:         toApprovalResponse(v.Approval),
		CreatedBy:        v.CreatedBy,
		UpdatedBy:        v.UpdatedBy,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
		Version:          v.Version,
	}
}
