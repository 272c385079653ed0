package shared

import (
	"strings"

	"github.com/google/uuid"
)

// TenantContext identifies who is acting on behalf of which tenant for one
// request. It is passed explicitly to every kernel call.
type TenantContext struct {
	TenantID      uuid.UUID
	ActorID       string
	CorrelationID string
}

// NewTenantContext validates the raw identifiers of a request.
// A missing or malformed tenant id fails with MISSING_TENANT_ID, a missing
// actor with UNAUTHORIZED. An empty correlation id is generated.
func NewTenantContext(tenantID, actorID, correlationID string) (TenantContext, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return TenantContext{}, NewKernelError(CodeMissingTenantID, EntityNone, "tenant id is required")
	}
	tid, err := uuid.Parse(tenantID)
	if err != nil || tid == uuid.Nil {
		return TenantContext{}, NewKernelError(CodeMissingTenantID, EntityNone, "tenant id must be a valid UUID").
			WithDetail("tenant_id", tenantID)
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return TenantContext{}, NewKernelError(CodeUnauthorized, EntityNone, "authenticated actor is required")
	}
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return TenantContext{
		TenantID:      tid,
		ActorID:       actorID,
		CorrelationID: correlationID,
	}, nil
}

// Validate re-checks a context that was built by hand.
func (tc TenantContext) Validate() error {
	if tc.TenantID == uuid.Nil {
		return NewKernelError(CodeMissingTenantID, EntityNone, "tenant id is required")
	}
	if strings.TrimSpace(tc.ActorID) == "" {
		return NewKernelError(CodeUnauthorized, EntityNone, "authenticated actor is required")
	}
	return nil
}
