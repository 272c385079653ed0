package period

import (
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
)

// Period is the managed lock row of one fiscal month.
type Period struct {
	shared.VersionedEntity
	PeriodID string
	Note     string
	ClosedBy string
	ClosedAt *time.Time
}

// LockStatus returns the status as a period Status
func (p *Period) LockStatus() Status {
	return Status(p.Status)
}

// NewPeriod creates an open period row for periodID.
func NewPeriod(tc shared.TenantContext, ids shared.IDGenerator, clock shared.Clock, periodID string) (*Period, error) {
	if _, err := ParseID(periodID); err != nil {
		return nil, err
	}
	return &Period{
		VersionedEntity: shared.NewVersionedEntity(tc, ids.NewID(), string(StatusOpen), clock.Now()),
		PeriodID:        periodID,
	}, nil
}
