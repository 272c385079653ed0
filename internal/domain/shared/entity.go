package shared

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VersionedEntity holds the columns every kernel-managed record carries.
// Status is only changed through a state graph; Version grows by exactly one
// per committed mutation; TenantID never changes after creation.
type VersionedEntity struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Status    string
	Version   int
	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Base returns the embedded versioned record
func (e *VersionedEntity) Base() *VersionedEntity {
	return e
}

// Versioned is implemented by every entity embedding VersionedEntity.
type Versioned interface {
	Base() *VersionedEntity
}

// NewVersionedEntity stamps a new record owned by the context's tenant.
func NewVersionedEntity(tc TenantContext, id uuid.UUID, status string, now time.Time) VersionedEntity {
	return VersionedEntity{
		ID:        id,
		TenantID:  tc.TenantID,
		Status:    status,
		Version:   1,
		CreatedBy: tc.ActorID,
		UpdatedBy: tc.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CheckVersion compares the caller's expected version with the stored one.
func CheckVersion(entity EntityKind, id uuid.UUID, expected *int, actual int) error {
	if expected == nil {
		return &KernelError{
			Code:    CodeVersionRequired,
			Entity:  entity,
			Message: fmt.Sprintf("expected version is required to modify %s %s", entity, id),
			Details: map[string]any{"id": id.String()},
		}
	}
	if *expected != actual {
		return VersionConflict(entity, id, *expected, actual)
	}
	return nil
}

// ApprovalProgress tracks multi-level approval on approvable entities.
type ApprovalProgress struct {
	SubmittedBy    string
	Level          int
	RequiredLevels int
	ApprovedBy     []string
	ApprovedAt     *time.Time
}

// Makers returns the actors that may not act as checker.
func (p ApprovalProgress) Makers(createdBy string) []string {
	makers := []string{createdBy}
	if p.SubmittedBy != "" && p.SubmittedBy != createdBy {
		makers = append(makers, p.SubmittedBy)
	}
	return makers
}

// Reset clears approval state, used when an entity returns to draft.
func (p *ApprovalProgress) Reset() {
	p.SubmittedBy = ""
	p.Level = 0
	p.RequiredLevels = 0
	p.ApprovedBy = nil
	p.ApprovedAt = nil
}
