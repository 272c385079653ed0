package handler

import (
	"context"

	"github.com/erp/finkernel/internal/application/finance"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/interfaces/http/dto"
	"github.com/erp/finkernel/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// entityService is the surface every finance entity service offers.
// C is the create command, U the update command and R the response view.
type entityService[C, U, R any] interface {
	Create(ctx context.Context, tc shared.TenantContext, req C) (*R, error)
	Update(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req U) (*R, error)
	Transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, req finance.ActionRequest) (*R, error)
	Get(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*R, error)
	List(ctx context.Context, tc shared.TenantContext, filter finance.ListFilter) ([]R, int64, error)
	AvailableActions(ctx context.Context, tc shared.TenantContext, id uuid.UUID) ([]string, error)
}

// EntityHandler serves the CRUD and action endpoints of one entity kind
type EntityHandler[C, U, R any] struct {
	BaseHandler
	entity shared.EntityKind
	path   string
	svc    entityService[C, U, R]
	idem   *finance.Idempotency
}

// NewEntityHandler creates a handler mounted at path
func NewEntityHandler[C, U, R any](entity shared.EntityKind, path string, svc entityService[C, U, R], idem *finance.Idempotency) *EntityHandler[C, U, R] {
	return &EntityHandler[C, U, R]{entity: entity, path: path, svc: svc, idem: idem}
}

// RegisterRoutes mounts the entity routes on rg
func (h *EntityHandler[C, U, R]) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group(h.path)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.GET("/:id/actions", h.Actions)
	g.POST("/:id/actions", h.Transition)
}

// Create handles POST /{path}. Requests with an Idempotency-Key are run once
// per tenant and key; retries get the first response.
func (h *EntityHandler[C, U, R]) Create(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	var req C
	if !h.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	out, replayed, err := finance.Once(ctx, h.idem, tc, h.path, c.GetHeader(middleware.HeaderIdempotencyKey), func() (*R, error) {
		return h.svc.Create(ctx, tc, req)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	markReplay(c, replayed)
	h.Created(c, out)
}

// Get handles GET /{path}/:id
func (h *EntityHandler[C, U, R]) Get(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, h.entity)
	if !ok {
		return
	}
	out, err := h.svc.Get(c.Request.Context(), tc, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// List handles GET /{path}?status=&page=&page_size=&sort_by=&sort_order=
func (h *EntityHandler[C, U, R]) List(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	var filter finance.ListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	items, total, err := h.svc.List(c.Request.Context(), tc, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Update handles PUT /{path}/:id. The body must carry expected_version.
func (h *EntityHandler[C, U, R]) Update(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, h.entity)
	if !ok {
		return
	}
	var req U
	if !h.bindJSON(c, &req) {
		return
	}
	out, err := h.svc.Update(c.Request.Context(), tc, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// Transition handles POST /{path}/:id/actions
func (h *EntityHandler[C, U, R]) Transition(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, h.entity)
	if !ok {
		return
	}
	var req finance.ActionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	out, err := h.svc.Transition(c.Request.Context(), tc, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// Actions handles GET /{path}/:id/actions. The list is a hint; the policy is
// evaluated again when an action is applied.
func (h *EntityHandler[C, U, R]) Actions(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, h.entity)
	if !ok {
		return
	}
	actions, err := h.svc.AvailableActions(c.Request.Context(), tc, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if actions == nil {
		actions = []string{}
	}
	h.Success(c, dto.ActionsResponse{ID: id.String(), Actions: actions})
}
