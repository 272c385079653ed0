// Package audit defines the append-only audit trail of kernel mutations.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
)

// Result is the outcome recorded for an attempted action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultDenied  Result = "denied"
	ResultError   Result = "error"
)

// Event is one audit record. Its shape is identical for every entity type.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	CorrelationID string          `json:"correlation_id"`
	ActorID       string          `json:"actor_id"`
	Action        string          `json:"action"`
	Resource      string          `json:"resource"`
	ResourceID    uuid.UUID       `json:"resource_id"`
	Result        Result          `json:"result"`
	Before        json.RawMessage `json:"before,omitempty"`
	After         json.RawMessage `json:"after,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewEvent builds a success event for a mutation. before and after are
// snapshots marshalled to JSON; nil snapshots are omitted.
func NewEvent(tc shared.TenantContext, id uuid.UUID, action string, resource shared.EntityKind, resourceID uuid.UUID, before, after any, at time.Time) (Event, error) {
	e := Event{
		ID:            id,
		TenantID:      tc.TenantID,
		CorrelationID: tc.CorrelationID,
		ActorID:       tc.ActorID,
		Action:        action,
		Resource:      string(resource),
		ResourceID:    resourceID,
		Result:        ResultSuccess,
		OccurredAt:    at,
	}
	var err error
	if e.Before, err = snapshot(before); err != nil {
		return Event{}, fmt.Errorf("audit before snapshot: %w", err)
	}
	if e.After, err = snapshot(after); err != nil {
		return Event{}, fmt.Errorf("audit after snapshot: %w", err)
	}
	return e, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

// Validate checks the fields every stored event must have.
func (e Event) Validate() error {
	switch {
	case e.ID == uuid.Nil:
		return fmt.Errorf("audit event id is required")
	case e.TenantID == uuid.Nil:
		return shared.NewKernelError(shared.CodeMissingTenantID, shared.EntityAudit, "audit event tenant is required")
	case e.ActorID == "":
		return shared.NewKernelError(shared.CodeUnauthorized, shared.EntityAudit, "audit event actor is required")
	case e.Action == "" || e.Resource == "":
		return fmt.Errorf("audit event action and resource are required")
	case e.Result != ResultSuccess && e.Result != ResultDenied && e.Result != ResultError:
		return fmt.Errorf("audit event result %q is invalid", e.Result)
	}
	return nil
}

// Filter narrows an audit query. Zero fields do not filter.
type Filter struct {
	Resource      string
	ResourceID    *uuid.UUID
	ActorID       string
	Action        string
	CorrelationID string
	Result        Result
	From          *time.Time
	To            *time.Time
}

// Recorder appends audit events inside the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, tc shared.TenantContext, event Event) error
}

// Reader queries the audit trail of one tenant.
type Reader interface {
	Query(ctx context.Context, tc shared.TenantContext, filter Filter, page shared.Pagination) ([]Event, int64, error)
}
