package finance

import (
	"context"
	"time"

	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	sm "github.com/erp/finkernel/internal/domain/statemachine"
	"github.com/google/uuid"
)

// PeriodCloser is the minimum role that changes a period's lock state.
const PeriodCloser = sod.RoleDirector

// PeriodService manages fiscal period locks
type PeriodService struct {
	exec *kernel.Executor[*period.Period]
	repo PeriodRepository
	lock *period.Lock
}

// NewPeriodService creates a new PeriodService
func NewPeriodService(deps kernel.Deps, repo PeriodRepository) *PeriodService {
	return &PeriodService{
		exec: kernel.New(deps, kernel.Config[*period.Period]{
			Entity: shared.EntityPeriod,
			Graph:  period.Graph,
			Repo:   repo,
			Authorize: requireRole[*period.Period](deps.Policy, shared.EntityPeriod, PeriodCloser,
				period.ActionSoftClose, period.ActionHardClose, period.ActionReopen),
		}),
		repo: repo,
		lock: period.NewLock(repo, deps.Clock),
	}
}

// PeriodActionRequest changes the lock state of a period. A period without a
// stored row is open at version 0.
type PeriodActionRequest struct {
	Action          string `json:"action" validate:"required,oneof=soft_close hard_close reopen"`
	ExpectedVersion *int   `json:"expected_version"`
	Note            string `json:"note" validate:"max=500"`
}

// PeriodResponse represents a fiscal period in API responses
type PeriodResponse struct {
	ID       uuid.UUID  `json:"id,omitempty"`
	PeriodID string     `json:"period_id"`
	Status   string     `json:"status"`
	CanPost  bool       `json:"can_post"`
	Note     string     `json:"note,omitempty"`
	ClosedBy string     `json:"closed_by,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
	Version  int        `json:"version"`
	Message  string     `json:"message"`
}

// Get returns the lock row of periodID, or a virtual open period at version
// 0 when none is stored.
func (s *PeriodService) Get(ctx context.Context, tc shared.TenantContext, periodID string) (*PeriodResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if _, err := period.ParseID(periodID); err != nil {
		return nil, err
	}
	p, found, err := s.repo.FindByPeriodID(ctx, tc, periodID)
	if err != nil {
		return nil, err
	}
	if !found {
		return toPeriodResponse(&period.Period{PeriodID: periodID, VersionedEntity: shared.VersionedEntity{Status: string(period.StatusOpen)}}), nil
	}
	return toPeriodResponse(p), nil
}

// StatusAt resolves the period a date falls into
func (s *PeriodService) StatusAt(ctx context.Context, tc shared.TenantContext, date time.Time) (period.PeriodStatus, error) {
	return s.lock.GetPeriodStatus(ctx, tc, date)
}

// OpenPeriods lists the periods that accept postings
func (s *PeriodService) OpenPeriods(ctx context.Context, tc shared.TenantContext) ([]period.PeriodStatus, error) {
	return s.lock.GetOpenPeriods(ctx, tc)
}

// SoftClose restricts periodID to adjustment postings
func (s *PeriodService) SoftClose(ctx context.Context, tc shared.TenantContext, periodID string, expected *int, note string) (*PeriodResponse, error) {
	return s.Transition(ctx, tc, periodID, PeriodActionRequest{Action: string(period.ActionSoftClose), ExpectedVersion: expected, Note: note})
}

// HardClose closes periodID for good
func (s *PeriodService) HardClose(ctx context.Context, tc shared.TenantContext, periodID string, expected *int, note string) (*PeriodResponse, error) {
	return s.Transition(ctx, tc, periodID, PeriodActionRequest{Action: string(period.ActionHardClose), ExpectedVersion: expected, Note: note})
}

// Reopen returns a soft-closed period to open
func (s *PeriodService) Reopen(ctx context.Context, tc shared.TenantContext, periodID string, expected *int, note string) (*PeriodResponse, error) {
	return s.Transition(ctx, tc, periodID, PeriodActionRequest{Action: string(period.ActionReopen), ExpectedVersion: expected, Note: note})
}

// Transition applies a period action. The first action on a period stores
// its open row in the same transaction.
func (s *PeriodService) Transition(ctx context.Context, tc shared.TenantContext, periodID string, req PeriodActionRequest) (*PeriodResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if err := validateCommand(shared.EntityPeriod, req); err != nil {
		return nil, err
	}
	if _, err := period.ParseID(periodID); err != nil {
		return nil, err
	}
	action := sm.Action(req.Action)

	var out *period.Period
	err := s.exec.InTx(ctx, func(ctx context.Context) error {
		p, found, err := s.repo.FindByPeriodID(ctx, tc, periodID)
		if err != nil {
			return err
		}
		expected := req.ExpectedVersion
		if !found {
			if err := shared.CheckVersion(shared.EntityPeriod, uuid.Nil, expected, 0); err != nil {
				return err
			}
			p = &period.Period{PeriodID: periodID}
			if err := s.exec.Insert(ctx, tc, p, period.Graph.Initial()); err != nil {
				return err
			}
			expected = &p.Version
		}
		out, err = s.exec.Transition(ctx, tc, kernel.TransitionRequest[*period.Period]{
			ID:              p.ID,
			ExpectedVersion: expected,
			Action:          action,
			Hook: func(_ context.Context, p *period.Period, to sm.State) error {
				p.Note = req.Note
				if period.Status(to) == period.StatusOpen {
					p.ClosedBy, p.ClosedAt = "", nil
					return nil
				}
				now := s.exec.Now()
				p.ClosedBy, p.ClosedAt = tc.ActorID, &now
				return nil
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return toPeriodResponse(out), nil
}

func toPeriodResponse(p *period.Period) *PeriodResponse {
	st := period.Resolve(p.PeriodID, p.LockStatus())
	return &PeriodResponse{
		ID:       p.ID,
		PeriodID: p.PeriodID,
		Status:   p.Status,
		CanPost:  st.CanPost,
		Note:     p.Note,
		ClosedBy: p.ClosedBy,
		ClosedAt: p.ClosedAt,
		Version:  p.Version,
		Message:  st.Message,
	}
}
