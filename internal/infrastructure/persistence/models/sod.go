package models

import (
	"time"

	"github.com/erp/finkernel/internal/domain/sod"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RoleAssignmentModel grants an approval role to an actor within a tenant
type RoleAssignmentModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_sod_role_actor,priority:1"`
	ActorID   string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_sod_role_actor,priority:2"`
	Role      string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_sod_role_actor,priority:3"`
	CreatedBy string    `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RoleAssignmentModel) TableName() string {
	return tenant.RoleAssignments.Name()
}

// ExemptionModel is a registered maker/checker exemption pair
type ExemptionModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	MakerID   string    `gorm:"type:varchar(100);not null"`
	CheckerID string    `gorm:"type:varchar(100);not null"`
	Reason    string    `gorm:"type:varchar(500);not null"`
	CreatedBy string    `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExemptionModel) TableName() string {
	return tenant.Exemptions.Name()
}

// ThresholdModel is one tenant override row of the approval tier table
type ThresholdModel struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey"`
	TenantID          uuid.UUID        `gorm:"type:uuid;not null;index"`
	Currency          string           `gorm:"type:char(3);not null"`
	MaxAmount         *decimal.Decimal `gorm:"type:decimal(18,4)"`
	BelowMax          bool             `gorm:"not null;default:false"`
	LevelRoles        datatypes.JSONSlice[string]
	RequiresExecutive bool      `gorm:"not null;default:false"`
	CreatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ThresholdModel) TableName() string {
	return tenant.ApprovalThresholds.Name()
}

// DefaultThresholdModel is a row of the global default tier table
type DefaultThresholdModel struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Currency          string           `gorm:"type:char(3);not null"`
	MaxAmount         *decimal.Decimal `gorm:"type:decimal(18,4)"`
	BelowMax          bool             `gorm:"not null;default:false"`
	LevelRoles        datatypes.JSONSlice[string]
	RequiresExecutive bool `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (DefaultThresholdModel) TableName() string {
	return tenant.DefaultApprovalThresholds.Name()
}

// tierFrom builds a domain tier. Unknown role names are kept so the tier
// table validation reports them.
func tierFrom(max *decimal.Decimal, belowMax bool, levelRoles []string, executive bool) sod.Tier {
	roles := make([]sod.Role, 0, len(levelRoles))
	for _, name := range levelRoles {
		r, ok := sod.ParseRole(name)
		if !ok {
			r = sod.Role(name)
		}
		roles = append(roles, r)
	}
	return sod.Tier{
		MaxAmount:         max,
		BelowMaxAmount:    belowMax,
		LevelRoles:        roles,
		RequiresExecutive: executive,
	}
}

// ToDomain converts the row to a domain tier
func (m *ThresholdModel) ToDomain() sod.Tier {
	return tierFrom(m.MaxAmount, m.BelowMax, m.LevelRoles, m.RequiresExecutive)
}

// ToDomain converts the row to a domain tier
func (m *DefaultThresholdModel) ToDomain() sod.Tier {
	return tierFrom(m.MaxAmount, m.BelowMax, m.LevelRoles, m.RequiresExecutive)
}

// RoleNames converts domain roles for storage
func RoleNames(roles []sod.Role) datatypes.JSONSlice[string] {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return datatypes.JSONSlice[string](out)
}
