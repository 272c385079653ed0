// Package period resolves posting dates to fiscal period lock states.
package period

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/statemachine"
)

// Status is the lock state of a fiscal period.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusSoftClose Status = "SOFT_CLOSE"
	StatusHardClose Status = "HARD_CLOSE"
)

// Period management actions.
const (
	ActionSoftClose statemachine.Action = "soft_close"
	ActionHardClose statemachine.Action = "hard_close"
	ActionReopen    statemachine.Action = "reopen"
)

// Graph governs how a period's lock state may change. Hard close is final;
// corrections after it go through reversing entries in an open period.
var Graph = statemachine.MustNew(statemachine.Definition{
	Name:    "period",
	Initial: statemachine.State(StatusOpen),
	States: []statemachine.State{
		statemachine.State(StatusOpen),
		statemachine.State(StatusSoftClose),
		statemachine.State(StatusHardClose),
	},
	Transitions: []statemachine.Transition{
		{From: statemachine.State(StatusOpen), Action: ActionSoftClose, To: statemachine.State(StatusSoftClose)},
		{From: statemachine.State(StatusOpen), Action: ActionHardClose, To: statemachine.State(StatusHardClose)},
		{From: statemachine.State(StatusSoftClose), Action: ActionHardClose, To: statemachine.State(StatusHardClose)},
		{From: statemachine.State(StatusSoftClose), Action: ActionReopen, To: statemachine.State(StatusOpen)},
	},
	Immutable: []statemachine.State{statemachine.State(StatusHardClose)},
	Terminal:  []statemachine.State{statemachine.State(StatusHardClose)},
})

// PostingClass classifies a posting for soft-close evaluation.
type PostingClass int

const (
	// PostingRegular is an ordinary posting.
	PostingRegular PostingClass = iota
	// PostingAdjustment is a period-end adjustment or correction.
	PostingAdjustment
)

func (c PostingClass) String() string {
	if c == PostingAdjustment {
		return "adjustment"
	}
	return "regular"
}

// Posting describes a date-bearing posting to gate.
type Posting struct {
	Date  time.Time
	Class PostingClass
}

// PeriodStatus is the resolved lock state for one period.
type PeriodStatus struct {
	PeriodID string `json:"period_id"`
	Status   Status `json:"status"`
	CanPost  bool   `json:"can_post"`
	// AdjustmentsOnly is set in soft close. The posting service decides
	// whether its action qualifies.
	AdjustmentsOnly bool   `json:"adjustments_only"`
	Message         string `json:"message"`
}

// ID derives the YYYY-MM period id of a date.
func ID(date time.Time) string {
	return date.UTC().Format("2006-01")
}

// ParseID parses a YYYY-MM period id to the first day of the month.
func ParseID(periodID string) (time.Time, error) {
	t, err := time.Parse("2006-01", periodID)
	if err != nil {
		return time.Time{}, shared.Validation(shared.EntityPeriod, fmt.Sprintf("period id %q must be formatted as YYYY-MM", periodID))
	}
	return t, nil
}

// Resolve builds the status view for a stored lock state.
func Resolve(periodID string, status Status) PeriodStatus {
	switch status {
	case StatusHardClose:
		return PeriodStatus{
			PeriodID: periodID,
			Status:   status,
			CanPost:  false,
			Message:  fmt.Sprintf("period %s is closed; post a correcting or reversing entry in an open period", periodID),
		}
	case StatusSoftClose:
		return PeriodStatus{
			PeriodID:        periodID,
			Status:          status,
			CanPost:         true,
			AdjustmentsOnly: true,
			Message:         fmt.Sprintf("period %s is soft-closed; only adjustment postings are accepted", periodID),
		}
	default:
		return PeriodStatus{
			PeriodID: periodID,
			Status:   StatusOpen,
			CanPost:  true,
			Message:  fmt.Sprintf("period %s is open", periodID),
		}
	}
}

// Permits reports whether a posting of class may be made.
func (s PeriodStatus) Permits(class PostingClass) bool {
	if !s.CanPost {
		return false
	}
	return !s.AdjustmentsOnly || class == PostingAdjustment
}

// Check returns PERIOD_CLOSED when a posting of class is not permitted.
func (s PeriodStatus) Check(class PostingClass) error {
	if s.Permits(class) {
		return nil
	}
	msg := s.Message
	if s.CanPost && s.AdjustmentsOnly {
		msg = fmt.Sprintf("period %s is soft-closed; %s postings are not accepted, record an adjustment instead", s.PeriodID, class)
	}
	return shared.NewKernelError(shared.CodePeriodClosed, shared.EntityPeriod, msg).
		WithDetail("period_id", s.PeriodID).
		WithDetail("status", string(s.Status)).
		WithDetail("hint", "already-posted entries are corrected with a reversal or adjustment in an open period")
}

// Record is a stored period row.
type Record struct {
	PeriodID string
	Status   Status
}

// Store reads stored period rows for a tenant.
type Store interface {
	FindStatus(ctx context.Context, tc shared.TenantContext, periodID string) (Status, bool, error)
	ListRecords(ctx context.Context, tc shared.TenantContext) ([]Record, error)
}

// Lock answers period-posting questions for a tenant.
type Lock struct {
	store Store
	clock shared.Clock
}

// NewLock creates a period lock
func NewLock(store Store, clock shared.Clock) *Lock {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Lock{store: store, clock: clock}
}

// GetPeriodStatus resolves date to its period state. A period without a
// stored row is open.
func (l *Lock) GetPeriodStatus(ctx context.Context, tc shared.TenantContext, date time.Time) (PeriodStatus, error) {
	if err := tc.Validate(); err != nil {
		return PeriodStatus{}, err
	}
	id := ID(date)
	status, found, err := l.store.FindStatus(ctx, tc, id)
	if err != nil {
		return PeriodStatus{}, fmt.Errorf("lookup period %s: %w", id, err)
	}
	if !found {
		status = StatusOpen
	}
	return Resolve(id, status), nil
}

// CheckPosting resolves the posting's period and checks it.
func (l *Lock) CheckPosting(ctx context.Context, tc shared.TenantContext, p Posting) (PeriodStatus, error) {
	st, err := l.GetPeriodStatus(ctx, tc, p.Date)
	if err != nil {
		return PeriodStatus{}, err
	}
	return st, st.Check(p.Class)
}

// GetOpenPeriods lists postable periods: stored OPEN or SOFT_CLOSE rows plus
// the current month when it has no row. The result is a hint; postings are
// always re-checked against their own date.
func (l *Lock) GetOpenPeriods(ctx context.Context, tc shared.TenantContext) ([]PeriodStatus, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	records, err := l.store.ListRecords(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	current := ID(l.clock.Now())
	seen := make(map[string]bool, len(records))
	out := make([]PeriodStatus, 0, len(records)+1)
	for _, r := range records {
		seen[r.PeriodID] = true
		st := Resolve(r.PeriodID, r.Status)
		if st.CanPost {
			out = append(out, st)
		}
	}
	if !seen[current] {
		out = append(out, Resolve(current, StatusOpen))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodID < out[j].PeriodID })
	return out, nil
}
