package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	"github.com/erp/finkernel/internal/infrastructure/persistence/models"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
)

// GormSoDDirectory reads role assignments, exemptions and approval tiers.
// It implements the sod.RoleResolver, sod.ExemptionStore and
// sod.ThresholdStore contracts over the guarded tables.
type GormSoDDirectory struct {
	guard *tenant.Guard
	ids   shared.IDGenerator
	clock shared.Clock
}

// NewGormSoDDirectory creates a new GormSoDDirectory
func NewGormSoDDirectory(guard *tenant.Guard, ids shared.IDGenerator, clock shared.Clock) *GormSoDDirectory {
	if ids == nil {
		ids = shared.UUIDGenerator{}
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &GormSoDDirectory{guard: guard, ids: ids, clock: clock}
}

// Roles implements sod.RoleResolver. Unknown role names are ignored.
func (d *GormSoDDirectory) Roles(ctx context.Context, tc shared.TenantContext, actorID string) ([]sod.Role, error) {
	var rows []models.RoleAssignmentModel
	if err := d.guard.Read(ctx, tc, tenant.RoleAssignments, &rows, tenant.Query{
		Columns: []tenant.Column{tenant.ColRole},
		Where:   []tenant.Predicate{tenant.Eq(tenant.ColActorID, actorID)},
	}); err != nil {
		return nil, err
	}
	roles := make([]sod.Role, 0, len(rows))
	for _, row := range rows {
		if r, ok := sod.ParseRole(row.Role); ok {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

// IsExempt implements sod.ExemptionStore
func (d *GormSoDDirectory) IsExempt(ctx context.Context, tc shared.TenantContext, makerID, checkerID string) (bool, error) {
	n, err := d.guard.Count(ctx, tc, tenant.Exemptions,
		tenant.Eq(tenant.ColMakerID, makerID),
		tenant.Eq(tenant.ColCheckerID, checkerID),
	)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Thresholds implements sod.ThresholdStore. Tenant overrides win; a tenant
// without overrides reads the global defaults for currency, and reports
// not configured when those are absent too.
func (d *GormSoDDirectory) Thresholds(ctx context.Context, tc shared.TenantContext, currency string) ([]sod.Tier, bool, error) {
	overrides, err := d.guard.Count(ctx, tc, tenant.ApprovalThresholds)
	if err != nil {
		return nil, false, err
	}
	if overrides > 0 {
		var rows []models.ThresholdModel
		if err := d.guard.Read(ctx, tc, tenant.ApprovalThresholds, &rows, tenant.Query{
			Where: []tenant.Predicate{tenant.Eq(tenant.ColCurrency, currency)},
		}); err != nil {
			return nil, false, err
		}
		tiers := make([]sod.Tier, len(rows))
		for i := range rows {
			tiers[i] = rows[i].ToDomain()
		}
		return tiers, true, nil
	}

	var defaults []models.DefaultThresholdModel
	if err := d.guard.ReadGlobal(ctx, tenant.DefaultApprovalThresholds, &defaults, tenant.Query{
		Where: []tenant.Predicate{tenant.Eq(tenant.ColCurrency, currency)},
	}); err != nil {
		return nil, false, err
	}
	if len(defaults) == 0 {
		return nil, false, nil
	}
	tiers := make([]sod.Tier, len(defaults))
	for i := range defaults {
		tiers[i] = defaults[i].ToDomain()
	}
	return tiers, true, nil
}

// Grant assigns a role to an actor of the tenant
func (d *GormSoDDirectory) Grant(ctx context.Context, tc shared.TenantContext, actorID string, role sod.Role) error {
	r, ok := sod.ParseRole(string(role))
	if !ok {
		return shared.Validation(shared.EntityNone, fmt.Sprintf("unknown approval role %q", role)).WithDetail("field", "role")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return shared.Validation(shared.EntityNone, "actor id is required").WithDetail("field", "actor_id")
	}
	return d.guard.Insert(ctx, tc, tenant.RoleAssignments, tenant.Values{
		tenant.ColID:        d.ids.NewID(),
		tenant.ColActorID:   actorID,
		tenant.ColRole:      string(r),
		tenant.ColCreatedBy: tc.ActorID,
		tenant.ColCreatedAt: d.clock.Now(),
	})
}

// Exempt registers a maker/checker exemption pair. The reason is mandatory.
func (d *GormSoDDirectory) Exempt(ctx context.Context, tc shared.TenantContext, makerID, checkerID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return shared.Validation(shared.EntityNone, "exemption reason is required").WithDetail("field", "reason")
	}
	return d.guard.Insert(ctx, tc, tenant.Exemptions, tenant.Values{
		tenant.ColID:        d.ids.NewID(),
		tenant.ColMakerID:   makerID,
		tenant.ColCheckerID: checkerID,
		tenant.ColReason:    reason,
		tenant.ColCreatedBy: tc.ActorID,
		tenant.ColCreatedAt: d.clock.Now(),
	})
}

// ConfigureThresholds stores the tenant's tier table for one currency. The
// table is validated first and may only be configured once per currency.
func (d *GormSoDDirectory) ConfigureThresholds(ctx context.Context, tc shared.TenantContext, currency string, tiers []sod.Tier) error {
	currency, err := shared.NormalizeCurrency(shared.EntityNone, currency)
	if err != nil {
		return err
	}
	if _, err := sod.NewTierTable(tiers); err != nil {
		return shared.Validation(shared.EntityNone, err.Error()).WithDetail("currency", currency)
	}
	n, err := d.guard.Count(ctx, tc, tenant.ApprovalThresholds, tenant.Eq(tenant.ColCurrency, currency))
	if err != nil {
		return err
	}
	if n > 0 {
		return shared.Validation(shared.EntityNone, fmt.Sprintf("approval thresholds for %s are already configured", currency)).
			WithDetail("currency", currency)
	}
	now := d.clock.Now()
	for _, t := range tiers {
		if err := d.guard.Insert(ctx, tc, tenant.ApprovalThresholds, tenant.Values{
			tenant.ColID:                d.ids.NewID(),
			tenant.ColCurrency:          currency,
			tenant.ColMaxAmount:         t.MaxAmount,
			tenant.ColBelowMax:          t.BelowMaxAmount,
			tenant.ColLevelRoles:        models.RoleNames(t.LevelRoles),
			tenant.ColRequiresExecutive: t.RequiresExecutive,
			tenant.ColCreatedAt:         now,
		}); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ sod.RoleResolver   = (*GormSoDDirectory)(nil)
	_ sod.ExemptionStore = (*GormSoDDirectory)(nil)
	_ sod.ThresholdStore = (*GormSoDDirectory)(nil)
)
