package models

import (
	"encoding/json"
	"time"

	"github.com/erp/finkernel/internal/domain/audit"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditEventModel is the persistence model for the append-only audit trail
type AuditEventModel struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_audit_tenant_time,priority:1"`
	CorrelationID string         `gorm:"type:varchar(100);not null;index"`
	ActorID       string         `gorm:"type:varchar(100);not null"`
	Action        string         `gorm:"type:varchar(50);not null"`
	Resource      string         `gorm:"type:varchar(50);not null"`
	ResourceID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Result        string         `gorm:"type:varchar(20);not null"`
	Before        datatypes.JSON
	After         datatypes.JSON
	OccurredAt    time.Time `gorm:"not null;index:idx_audit_tenant_time,priority:2"`
}

// TableName returns the table name for GORM
func (AuditEventModel) TableName() string {
	return tenant.AuditEvents.Name()
}

// ToDomain converts the model to a domain audit event
func (m *AuditEventModel) ToDomain() audit.Event {
	return audit.Event{
		ID:            m.ID,
		TenantID:      m.TenantID,
		CorrelationID: m.CorrelationID,
		ActorID:       m.ActorID,
		Action:        m.Action,
		Resource:      m.Resource,
		ResourceID:    m.ResourceID,
		Result:        audit.Result(m.Result),
		Before:        json.RawMessage(m.Before),
		After:         json.RawMessage(m.After),
		OccurredAt:    m.OccurredAt,
	}
}

// FromDomain populates the model from a domain audit event
func (m *AuditEventModel) FromDomain(e audit.Event) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.CorrelationID = e.CorrelationID
	m.ActorID = e.ActorID
	m.Action = e.Action
	m.Resource = e.Resource
	m.ResourceID = e.ResourceID
	m.Result = string(e.Result)
	m.Before = datatypes.JSON(e.Before)
	m.After = datatypes.JSON(e.After)
	m.OccurredAt = e.OccurredAt
}

// Values returns every write column
func (m *AuditEventModel) Values() tenant.Values {
	return tenant.Values{
		tenant.ColID:            m.ID,
		tenant.ColTenantID:      m.TenantID,
		tenant.ColCorrelationID: m.CorrelationID,
		tenant.ColActorID:       m.ActorID,
		tenant.ColAction:        m.Action,
		tenant.ColResource:      m.Resource,
		tenant.ColResourceID:    m.ResourceID,
		tenant.ColResult:        m.Result,
		tenant.ColBefore:        m.Before,
		tenant.ColAfter:         m.After,
		tenant.ColOccurredAt:    m.OccurredAt,
	}
}
