package sod

import (
	"context"
	"sync"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
)

// MemoryDirectory is an in-memory role, exemption and threshold source for
// tests and local tooling.
type MemoryDirectory struct {
	mu         sync.RWMutex
	roles      map[uuid.UUID]map[string][]Role
	exemptions map[uuid.UUID]map[[2]string]bool
	thresholds map[uuid.UUID]map[string][]Tier
}

// NewMemoryDirectory creates an empty directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		roles:      make(map[uuid.UUID]map[string][]Role),
		exemptions: make(map[uuid.UUID]map[[2]string]bool),
		thresholds: make(map[uuid.UUID]map[string][]Tier),
	}
}

// Grant assigns roles to an actor within a tenant
func (d *MemoryDirectory) Grant(tenantID uuid.UUID, actorID string, roles ...Role) *MemoryDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.roles[tenantID] == nil {
		d.roles[tenantID] = make(map[string][]Role)
	}
	d.roles[tenantID][actorID] = append(d.roles[tenantID][actorID], roles...)
	return d
}

// Exempt registers a maker/checker exemption pair
func (d *MemoryDirectory) Exempt(tenantID uuid.UUID, makerID, checkerID string) *MemoryDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.exemptions[tenantID] == nil {
		d.exemptions[tenantID] = make(map[[2]string]bool)
	}
	d.exemptions[tenantID][[2]string{makerID, checkerID}] = true
	return d
}

// SetThresholds configures tiers for one currency of a tenant
func (d *MemoryDirectory) SetThresholds(tenantID uuid.UUID, currency string, tiers []Tier) *MemoryDirectory {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.thresholds[tenantID] == nil {
		d.thresholds[tenantID] = make(map[string][]Tier)
	}
	d.thresholds[tenantID][currency] = tiers
	return d
}

// Roles implements RoleResolver
func (d *MemoryDirectory) Roles(_ context.Context, tc shared.TenantContext, actorID string) ([]Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Role(nil), d.roles[tc.TenantID][actorID]...), nil
}

// IsExempt implements ExemptionStore
func (d *MemoryDirectory) IsExempt(_ context.Context, tc shared.TenantContext, makerID, checkerID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.exemptions[tc.TenantID][[2]string{makerID, checkerID}], nil
}

// Thresholds implements ThresholdStore
func (d *MemoryDirectory) Thresholds(_ context.Context, tc shared.TenantContext, currency string) ([]Tier, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	byCurrency, configured := d.thresholds[tc.TenantID]
	if !configured {
		return nil, false, nil
	}
	return append([]Tier(nil), byCurrency[currency]...), true, nil
}

var (
	_ RoleResolver   = (*MemoryDirectory)(nil)
	_ ExemptionStore = (*MemoryDirectory)(nil)
	_ ThresholdStore = (*MemoryDirectory)(nil)
)
