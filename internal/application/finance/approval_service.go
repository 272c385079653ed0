package finance

import (
	"context"

	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	"github.com/shopspring/decimal"
)

// ApprovalService evaluates segregation-of-duties questions without changing
// any entity. Decisions are recomputed on every call.
type ApprovalService struct {
	policy kernel.Policy
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(policy kernel.Policy) *ApprovalService {
	return &ApprovalService{policy: policy}
}

// CanApproveRequest describes a hypothetical approval step. Makers and
// PreviousApprovers are optional; without makers only authority is checked.
type CanApproveRequest struct {
	CheckerID         string          `json:"checker_id" validate:"required,max=128"`
	Makers            []string        `json:"makers" validate:"dive,required,max=128"`
	PreviousApprovers []string        `json:"previous_approvers" validate:"dive,required,max=128"`
	Amount            decimal.Decimal `json:"amount" validate:"gte=0"`
	Currency          string          `json:"currency" validate:"required,iso4217"`
	Level             int             `json:"level" validate:"gte=0,lte=10"`
}

// RequirementsRequest asks who must approve an amount
type RequirementsRequest struct {
	Amount   decimal.Decimal `json:"amount" form:"amount" validate:"gte=0"`
	Currency string          `json:"currency" form:"currency" validate:"required,iso4217"`
}

// CanApproveResponse is a policy decision plus the requirement it was judged
// against
type CanApproveResponse struct {
	sod.Decision
	Requirement sod.ApprovalRequirement `json:"requirement"`
}

// CanApprove evaluates req the way an approve action would
func (s *ApprovalService) CanApprove(ctx context.Context, tc shared.TenantContext, req CanApproveRequest) (*CanApproveResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if err := validateCommand(shared.EntityNone, req); err != nil {
		return nil, err
	}
	requirement, err := s.policy.GetApprovalRequirements(ctx, tc, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	level := req.Level
	if level == 0 {
		level = len(req.PreviousApprovers) + 1
	}
	d, err := s.policy.EvaluateApproval(ctx, tc, sod.ApprovalRequest{
		Makers:            req.Makers,
		CheckerID:         req.CheckerID,
		PreviousApprovers: req.PreviousApprovers,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Level:             level,
	})
	if err != nil {
		return nil, err
	}
	return &CanApproveResponse{Decision: d, Requirement: requirement}, nil
}

// Requirements returns the approval levels for an amount
func (s *ApprovalService) Requirements(ctx context.Context, tc shared.TenantContext, req RequirementsRequest) (sod.ApprovalRequirement, error) {
	if err := tc.Validate(); err != nil {
		return sod.ApprovalRequirement{}, err
	}
	if err := validateCommand(shared.EntityNone, req); err != nil {
		return sod.ApprovalRequirement{}, err
	}
	return s.policy.GetApprovalRequirements(ctx, tc, req.Amount, req.Currency)
}
