package models

import (
	"time"

	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
)

// PeriodModel is the persistence model for fiscal period lock rows
type PeriodModel struct {
	VersionedModel
	PeriodID string `gorm:"type:char(7);not null"`
	Note     string `gorm:"type:varchar(500)"`
	ClosedBy string `gorm:"type:varchar(100)"`
	ClosedAt *time.Time
}

// TableName returns the table name for GORM
func (PeriodModel) TableName() string {
	return tenant.Periods.Name()
}

// ToDomain converts the model to a domain period
func (m *PeriodModel) ToDomain() *period.Period {
	return &period.Period{
		VersionedEntity: m.VersionedModel.ToDomain(),
		PeriodID:        m.PeriodID,
		Note:            m.Note,
		ClosedBy:        m.ClosedBy,
		ClosedAt:        m.ClosedAt,
	}
}

// FromDomain populates the model from a domain period
func (m *PeriodModel) FromDomain(p *period.Period) {
	m.VersionedModel.FromDomain(p.VersionedEntity)
	m.PeriodID = p.PeriodID
	m.Note = p.Note
	m.ClosedBy = p.ClosedBy
	m.ClosedAt = p.ClosedAt
}

// Values returns every write column
func (m *PeriodModel) Values() tenant.Values {
	return merge(m.VersionedModel.Values(), tenant.Values{
		tenant.ColPeriodID: m.PeriodID,
		tenant.ColNote:     m.Note,
		tenant.ColClosedBy: m.ClosedBy,
		tenant.ColClosedAt: m.ClosedAt,
	})
}
