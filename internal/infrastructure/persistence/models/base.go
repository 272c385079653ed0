package models

import (
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// VersionedModel holds the columns every kernel-managed table shares.
type VersionedModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Status    string    `gorm:"type:varchar(30);not null;index"`
	Version   int       `gorm:"not null;default:1"`
	CreatedBy string    `gorm:"type:varchar(100);not null"`
	UpdatedBy string    `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts the model to the domain base entity
func (m *VersionedModel) ToDomain() shared.VersionedEntity {
	return shared.VersionedEntity{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Status:    m.Status,
		Version:   m.Version,
		CreatedBy: m.CreatedBy,
		UpdatedBy: m.UpdatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the model from the domain base entity
func (m *VersionedModel) FromDomain(e shared.VersionedEntity) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.Status = e.Status
	m.Version = e.Version
	m.CreatedBy = e.CreatedBy
	m.UpdatedBy = e.UpdatedBy
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// Values returns the base write columns
func (m *VersionedModel) Values() tenant.Values {
	return tenant.Values{
		tenant.ColID:        m.ID,
		tenant.ColTenantID:  m.TenantID,
		tenant.ColStatus:    m.Status,
		tenant.ColVersion:   m.Version,
		tenant.ColCreatedBy: m.CreatedBy,
		tenant.ColUpdatedBy: m.UpdatedBy,
		tenant.ColCreatedAt: m.CreatedAt,
		tenant.ColUpdatedAt: m.UpdatedAt,
	}
}

// ApprovalModel stores multi-level approval progress.
type ApprovalModel struct {
	SubmittedBy    string `gorm:"type:varchar(100)"`
	ApprovalLevel  int    `gorm:"not null;default:0"`
	RequiredLevels int    `gorm:"not null;default:0"`
	ApprovedBy     datatypes.JSONSlice[string]
	ApprovedAt     *time.Time
}

// ToDomain converts the model to domain approval progress
func (m *ApprovalModel) ToDomain() shared.ApprovalProgress {
	var approvedBy []string
	if len(m.ApprovedBy) > 0 {
		approvedBy = append(approvedBy, m.ApprovedBy...)
	}
	return shared.ApprovalProgress{
		SubmittedBy:    m.SubmittedBy,
		Level:          m.ApprovalLevel,
		RequiredLevels: m.RequiredLevels,
		ApprovedBy:     approvedBy,
		ApprovedAt:     m.ApprovedAt,
	}
}

// FromDomain populates the model from domain approval progress
func (m *ApprovalModel) FromDomain(p shared.ApprovalProgress) {
	m.SubmittedBy = p.SubmittedBy
	m.ApprovalLevel = p.Level
	m.RequiredLevels = p.RequiredLevels
	m.ApprovedBy = datatypes.JSONSlice[string](append([]string{}, p.ApprovedBy...))
	m.ApprovedAt = p.ApprovedAt
}

// Values returns the approval write columns
func (m *ApprovalModel) Values() tenant.Values {
	return tenant.Values{
		tenant.ColSubmittedBy:    m.SubmittedBy,
		tenant.ColApprovalLevel:  m.ApprovalLevel,
		tenant.ColRequiredLevels: m.RequiredLevels,
		tenant.ColApprovedBy:     m.ApprovedBy,
		tenant.ColApprovedAt:     m.ApprovedAt,
	}
}

func merge(sets ...tenant.Values) tenant.Values {
	out := make(tenant.Values)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}
