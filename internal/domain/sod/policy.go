package sod

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ViolationType classifies a denied decision.
type ViolationType string

const (
	ViolationNone                  ViolationType = ""
	ViolationSelfApproval          ViolationType = "SELF_APPROVAL"
	ViolationInsufficientAuthority ViolationType = "INSUFFICIENT_AUTHORITY"
	ViolationDuplicateApprover     ViolationType = "DUPLICATE_APPROVER"
)

// Policy codes attached to decisions.
const (
	PolicyMakerChecker = "POLICY_SOD_MAKER_CHECKER"
	PolicyExempt       = "POLICY_SOD_EXEMPT"
	PolicyApprovalTier = "POLICY_APPROVAL_TIER"
	PolicyRoleRequired = "POLICY_ROLE_REQUIRED"
)

// Decision is the outcome of a policy evaluation. It is recomputed on every
// call and never stored.
type Decision struct {
	Allowed       bool          `json:"allowed"`
	Reason        string        `json:"reason"`
	ViolationType ViolationType `json:"violation_type,omitempty"`
	PolicyCode    string        `json:"policy_code"`
}

// Err converts a denied decision into a SOD_VIOLATION error.
func (d Decision) Err(entity shared.EntityKind) error {
	if d.Allowed {
		return nil
	}
	return shared.NewKernelError(shared.CodeSoDViolation, entity, d.Reason).
		WithDetail("violation_type", string(d.ViolationType)).
		WithDetail("policy_code", d.PolicyCode)
}

// ApprovalRequirement describes who must approve a given amount.
type ApprovalRequirement struct {
	// RequiredRoles lists, per level, the roles that satisfy that level.
	RequiredRoles     [][]Role `json:"required_roles"`
	Levels            int      `json:"levels"`
	RequiresExecutive bool     `json:"requires_executive"`
}

// AutoApprove reports whether no approval is needed.
func (r ApprovalRequirement) AutoApprove() bool { return r.Levels == 0 }

// MinimumRole returns the lowest role accepted at level (1-based).
func (r ApprovalRequirement) MinimumRole(level int) (Role, bool) {
	if level < 1 || level > len(r.RequiredRoles) || len(r.RequiredRoles[level-1]) == 0 {
		return "", false
	}
	return r.RequiredRoles[level-1][0], true
}

// Seniority returns the most senior minimum role across levels.
func (r ApprovalRequirement) Seniority() Role {
	var mins []Role
	for lvl := 1; lvl <= r.Levels; lvl++ {
		if m, ok := r.MinimumRole(lvl); ok {
			mins = append(mins, m)
		}
	}
	return Highest(mins)
}

// RoleResolver looks up an actor's roles within a tenant.
type RoleResolver interface {
	Roles(ctx context.Context, tc shared.TenantContext, actorID string) ([]Role, error)
}

// ExemptionStore reports explicitly registered maker/checker exemptions.
type ExemptionStore interface {
	IsExempt(ctx context.Context, tc shared.TenantContext, makerID, checkerID string) (bool, error)
}

// ThresholdStore returns a tenant's configured approval tiers. configured is
// false when the tenant has no overrides at all; tiers is empty when the
// tenant has overrides but none for currency.
type ThresholdStore interface {
	Thresholds(ctx context.Context, tc shared.TenantContext, currency string) (tiers []Tier, configured bool, err error)
}

// Policy evaluates SoD rules. It never mutates state.
type Policy struct {
	roles      RoleResolver
	exemptions ExemptionStore
	thresholds ThresholdStore
}

// NewPolicy creates a policy. A nil threshold store means default tiers for
// every tenant; a nil exemption store means no exemptions.
func NewPolicy(roles RoleResolver, exemptions ExemptionStore, thresholds ThresholdStore) *Policy {
	return &Policy{roles: roles, exemptions: exemptions, thresholds: thresholds}
}

// EvaluateSoD checks maker/checker separation.
func (p *Policy) EvaluateSoD(ctx context.Context, tc shared.TenantContext, makerID, checkerID string) (Decision, error) {
	if strings.TrimSpace(checkerID) == "" {
		return Decision{}, shared.NewKernelError(shared.CodeUnauthorized, shared.EntityNone, "checker identity is required")
	}
	if makerID != checkerID {
		return Decision{
			Allowed:    true,
			Reason:     "maker and checker are different actors",
			PolicyCode: PolicyMakerChecker,
		}, nil
	}
	if p.exemptions != nil {
		exempt, err := p.exemptions.IsExempt(ctx, tc, makerID, checkerID)
		if err != nil {
			return Decision{}, fmt.Errorf("lookup sod exemption: %w", err)
		}
		if exempt {
			return Decision{
				Allowed:    true,
				Reason:     fmt.Sprintf("actor %s approves own record under a registered exemption", checkerID),
				PolicyCode: PolicyExempt,
			}, nil
		}
	}
	return Decision{
		Allowed:       false,
		Reason:        fmt.Sprintf("actor %s cannot approve a record they created or submitted", checkerID),
		ViolationType: ViolationSelfApproval,
		PolicyCode:    PolicyMakerChecker,
	}, nil
}

// GetApprovalRequirements derives the approval requirement for an amount.
func (p *Policy) GetApprovalRequirements(ctx context.Context, tc shared.TenantContext, amount decimal.Decimal, currency string) (ApprovalRequirement, error) {
	table, err := p.tierTable(ctx, tc, strings.ToUpper(currency))
	if err != nil {
		return ApprovalRequirement{}, err
	}
	return requirementFor(table.Lookup(amount)), nil
}

func (p *Policy) tierTable(ctx context.Context, tc shared.TenantContext, currency string) (TierTable, error) {
	if p.thresholds == nil {
		return DefaultTiers(), nil
	}
	tiers, configured, err := p.thresholds.Thresholds(ctx, tc, currency)
	if err != nil {
		return TierTable{}, fmt.Errorf("load approval thresholds: %w", err)
	}
	if !configured {
		return DefaultTiers(), nil
	}
	if len(tiers) == 0 {
		// Overrides exist but not for this currency: require the top tier.
		return TierTable{tiers: []Tier{DefaultTiers().Highest()}}, nil
	}
	table, err := NewTierTable(tiers)
	if err != nil {
		return TierTable{}, fmt.Errorf("tenant %s approval thresholds for %s: %w", tc.TenantID, currency, err)
	}
	return table, nil
}

func requirementFor(t Tier) ApprovalRequirement {
	req := ApprovalRequirement{
		Levels:            t.Levels(),
		RequiresExecutive: t.RequiresExecutive,
		RequiredRoles:     make([][]Role, 0, t.Levels()),
	}
	for _, min := range t.LevelRoles {
		req.RequiredRoles = append(req.RequiredRoles, AtLeast(min))
	}
	return req
}

// CanApprove checks whether actor holds enough authority to approve amount at
// level (1-based).
func (p *Policy) CanApprove(ctx context.Context, tc shared.TenantContext, actorID string, amount decimal.Decimal, currency string, level int) (Decision, error) {
	req, err := p.GetApprovalRequirements(ctx, tc, amount, currency)
	if err != nil {
		return Decision{}, err
	}
	formatted := shared.FormatAmount(amount, strings.ToUpper(currency))
	if req.AutoApprove() {
		return Decision{
			Allowed:    true,
			Reason:     fmt.Sprintf("amount %s is below the approval threshold", formatted),
			PolicyCode: PolicyApprovalTier,
		}, nil
	}
	if level < 1 {
		level = 1
	}
	if level > req.Levels {
		return Decision{
			Allowed:       false,
			Reason:        fmt.Sprintf("amount %s requires approval at %d level(s), level %d does not exist", formatted, req.Levels, level),
			ViolationType: ViolationInsufficientAuthority,
			PolicyCode:    PolicyApprovalTier,
		}, nil
	}
	min, _ := req.MinimumRole(level)
	return p.hasRole(ctx, tc, actorID, min, func(best Role) string {
		if best == "" {
			return fmt.Sprintf("amount %s requires approval by %s or higher at level %d; actor %s has no approval role", formatted, min, level, actorID)
		}
		return fmt.Sprintf("amount %s requires approval by %s or higher at level %d; actor %s is %s", formatted, min, level, actorID, best)
	}, PolicyApprovalTier)
}

// HasRoleAtLeast checks actor's rank against a fixed minimum role.
func (p *Policy) HasRoleAtLeast(ctx context.Context, tc shared.TenantContext, actorID string, min Role) (Decision, error) {
	return p.hasRole(ctx, tc, actorID, min, func(best Role) string {
		if best == "" {
			return fmt.Sprintf("action requires approval by %s or higher; actor %s has no approval role", min, actorID)
		}
		return fmt.Sprintf("action requires approval by %s or higher; actor %s is %s", min, actorID, best)
	}, PolicyRoleRequired)
}

func (p *Policy) hasRole(ctx context.Context, tc shared.TenantContext, actorID string, min Role, denied func(best Role) string, code string) (Decision, error) {
	roles, err := p.roles.Roles(ctx, tc, actorID)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve roles for %s: %w", actorID, err)
	}
	best := Highest(roles)
	if best.Satisfies(min) {
		return Decision{
			Allowed:    true,
			Reason:     fmt.Sprintf("actor %s holds %s", actorID, best),
			PolicyCode: code,
		}, nil
	}
	return Decision{
		Allowed:       false,
		Reason:        denied(best),
		ViolationType: ViolationInsufficientAuthority,
		PolicyCode:    code,
	}, nil
}

// ApprovalRequest collects everything needed to judge one approval step.
type ApprovalRequest struct {
	Makers            []string
	CheckerID         string
	PreviousApprovers []string
	Amount            decimal.Decimal
	Currency          string
	Level             int
	// FixedRole replaces the amount tiers with a single minimum role.
	FixedRole Role
}

// EvaluateApproval runs maker/checker, duplicate-approver and authority
// checks in that order and returns the first denial.
func (p *Policy) EvaluateApproval(ctx context.Context, tc shared.TenantContext, req ApprovalRequest) (Decision, error) {
	var exempted *Decision
	for _, maker := range req.Makers {
		d, err := p.EvaluateSoD(ctx, tc, maker, req.CheckerID)
		if err != nil {
			return Decision{}, err
		}
		if !d.Allowed {
			return d, nil
		}
		if d.PolicyCode == PolicyExempt {
			exempted = &d
		}
	}
	for _, prev := range req.PreviousApprovers {
		if prev == req.CheckerID {
			return Decision{
				Allowed:       false,
				Reason:        fmt.Sprintf("actor %s already approved a previous level", req.CheckerID),
				ViolationType: ViolationDuplicateApprover,
				PolicyCode:    PolicyMakerChecker,
			}, nil
		}
	}
	var (
		d   Decision
		err error
	)
	if req.FixedRole != "" {
		d, err = p.HasRoleAtLeast(ctx, tc, req.CheckerID, req.FixedRole)
	} else {
		d, err = p.CanApprove(ctx, tc, req.CheckerID, req.Amount, req.Currency, req.Level)
	}
	if err != nil || !d.Allowed {
		return d, err
	}
	if exempted != nil {
		return *exempted, nil
	}
	return d, nil
}
