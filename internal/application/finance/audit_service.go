package finance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/audit"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	"github.com/google/uuid"
)

// AuditArchiver exports one tenant day of audit events and returns where the
// export was written.
type AuditArchiver interface {
	ArchiveDay(ctx context.Context, tenantID uuid.UUID, day time.Time, events []audit.Event) (string, error)
}

// AuditArchiveRole is the minimum role allowed to export the audit trail.
const AuditArchiveRole = sod.RoleDirector

// AuditService answers audit trail queries and exports
type AuditService struct {
	reader   audit.Reader
	policy   kernel.Policy
	archiver AuditArchiver
}

// NewAuditService creates a new AuditService. archiver may be nil, in which
// case Archive is rejected.
func NewAuditService(reader audit.Reader, policy kernel.Policy, archiver AuditArchiver) *AuditService {
	return &AuditService{reader: reader, policy: policy, archiver: archiver}
}

// AuditQuery filters the audit trail of the caller's tenant
type AuditQuery struct {
	Resource      string     `form:"resource" validate:"omitempty,max=64"`
	ResourceID    *uuid.UUID `form:"resource_id"`
	ActorID       string     `form:"actor_id" validate:"max=128"`
	Action        string     `form:"action" validate:"max=64"`
	CorrelationID string     `form:"correlation_id" validate:"max=128"`
	Result        string     `form:"result" validate:"omitempty,oneof=success denied error"`
	From          *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To            *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page          int        `form:"page" validate:"gte=0"`
	PageSize      int        `form:"page_size" validate:"gte=0,lte=500"`
}

// AuditEventResponse represents an audit event in API responses
type AuditEventResponse struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	ActorID       string          `json:"actor_id"`
	Action        string          `json:"action"`
	Resource      string          `json:"resource"`
	ResourceID    uuid.UUID       `json:"resource_id"`
	Result        string          `json:"result"`
	Before        json.RawMessage `json:"before,omitempty"`
	After         json.RawMessage `json:"after,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Query returns one page of audit events, newest first
func (s *AuditService) Query(ctx context.Context, tc shared.TenantContext, q AuditQuery) (shared.Paginated[AuditEventResponse], error) {
	var none shared.Paginated[AuditEventResponse]
	if err := tc.Validate(); err != nil {
		return none, err
	}
	if err := validateCommand(shared.EntityAudit, q); err != nil {
		return none, err
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return none, shared.Validation(shared.EntityAudit, "to must not be before from").WithDetail("field", "to")
	}
	page := shared.Pagination{Page: q.Page, PageSize: q.PageSize}.Normalize()
	events, total, err := s.reader.Query(ctx, tc, audit.Filter{
		Resource:      q.Resource,
		ResourceID:    q.ResourceID,
		ActorID:       q.ActorID,
		Action:        q.Action,
		CorrelationID: q.CorrelationID,
		Result:        audit.Result(q.Result),
		From:          q.From,
		To:            q.To,
	}, page)
	if err != nil {
		return none, err
	}
	items := make([]AuditEventResponse, len(events))
	for i, e := range events {
		items[i] = toAuditEventResponse(e)
	}
	return shared.NewPaginated(items, total, page.Page, page.PageSize), nil
}

func toAuditEventResponse(e audit.Event) AuditEventResponse {
	return AuditEventResponse{
		ID:            e.ID,
		CorrelationID: e.CorrelationID,
		ActorID:       e.ActorID,
		Action:        e.Action,
		Resource:      e.Resource,
		ResourceID:    e.ResourceID,
		Result:        string(e.Result),
		Before:        e.Before,
		After:         e.After,
		OccurredAt:    e.OccurredAt,
	}
}

// ArchiveRequest selects the UTC day to export
type ArchiveRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// ArchiveResponse reports a finished export
type ArchiveResponse struct {
	Date     string `json:"date"`
	Events   int    `json:"events"`
	Location string `json:"location"`
}

// Archive exports every audit event of one UTC day, oldest first
func (s *AuditService) Archive(ctx context.Context, tc shared.TenantContext, req ArchiveRequest) (*ArchiveResponse, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if err := validateCommand(shared.EntityAudit, req); err != nil {
		return nil, err
	}
	if s.archiver == nil {
		return nil, shared.Validation(shared.EntityAudit, "audit archive is not configured")
	}
	d, err := s.policy.HasRoleAtLeast(ctx, tc, tc.ActorID, AuditArchiveRole)
	if err != nil {
		return nil, err
	}
	if err := d.Err(shared.EntityAudit); err != nil {
		return nil, err
	}

	day, _ := time.Parse(time.DateOnly, req.Date)
	from, to := day, day.Add(24*time.Hour-time.Nanosecond)
	filter := audit.Filter{From: &from, To: &to}

	var events []audit.Event
	for page := 1; ; page++ {
		p := shared.Pagination{Page: page, PageSize: 500}
		batch, total, err := s.reader.Query(ctx, tc, filter, p)
		if err != nil {
			return nil, err
		}
		events = append(events, batch...)
		if len(batch) == 0 || int64(len(events)) >= total {
			break
		}
	}
	// Query pages newest first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	location, err := s.archiver.ArchiveDay(ctx, tc.TenantID, day, events)
	if err != nil {
		return nil, err
	}
	return &ArchiveResponse{Date: req.Date, Events: len(events), Location: location}, nil
}
