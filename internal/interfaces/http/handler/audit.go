package handler

import (
	"strconv"
	"time"

	"github.com/erp/finkernel/internal/application/finance"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditHandler serves the audit trail
type AuditHandler struct {
	BaseHandler
	svc *finance.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(svc *finance.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// RegisterRoutes mounts the audit routes on rg
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/audit")
	g.GET("/events", h.Query)
	g.POST("/archive", h.Archive)
}

// Query handles GET /audit/events. from and to are RFC 3339 timestamps.
func (h *AuditHandler) Query(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	q, err := parseAuditQuery(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, err := h.svc.Query(c.Request.Context(), tc, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Archive handles POST /audit/archive
func (h *AuditHandler) Archive(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	var req finance.ArchiveRequest
	if !h.bindJSON(c, &req) {
		return
	}
	out, err := h.svc.Archive(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

func parseAuditQuery(c *gin.Context) (finance.AuditQuery, error) {
	q := finance.AuditQuery{
		Resource:      c.Query("resource"),
		ActorID:       c.Query("actor_id"),
		Action:        c.Query("action"),
		CorrelationID: c.Query("correlation_id"),
		Result:        c.Query("result"),
	}
	if raw := c.Query("resource_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return q, invalidParam("resource_id", raw)
		}
		q.ResourceID = &id
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &q.From}, {"to", &q.To}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, invalidParam(p.name, raw)
		}
		*p.dst = &ts
	}
	var err error
	if q.Page, err = intParam(c, "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = intParam(c, "page_size"); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name, raw)
	}
	return n, nil
}

func invalidParam(name, value string) error {
	return shared.Validation(shared.EntityNone, "invalid query parameter "+name).
		WithDetail("field", name).
		WithDetail("value", value)
}
