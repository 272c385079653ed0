package handler

import (
	"github.com/erp/finkernel/internal/application/finance"
	"github.com/gin-gonic/gin"
)

// PeriodHandler serves fiscal period locks
type PeriodHandler struct {
	BaseHandler
	svc *finance.PeriodService
}

// NewPeriodHandler creates a new PeriodHandler
func NewPeriodHandler(svc *finance.PeriodService) *PeriodHandler {
	return &PeriodHandler{svc: svc}
}

// RegisterRoutes mounts the period routes on rg
func (h *PeriodHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/periods")
	g.GET("/open", h.Open)
	g.GET("/:period_id", h.Get)
	g.POST("/:period_id/actions", h.Transition)
}

// Open handles GET /periods/open
func (h *PeriodHandler) Open(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	out, err := h.svc.OpenPeriods(c.Request.Context(), tc)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// Get handles GET /periods/:period_id. period_id is YYYY-MM.
func (h *PeriodHandler) Get(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	out, err := h.svc.Get(c.Request.Context(), tc, c.Param("period_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// Transition handles POST /periods/:period_id/actions
func (h *PeriodHandler) Transition(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	var req finance.PeriodActionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	out, err := h.svc.Transition(c.Request.Context(), tc, c.Param("period_id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}
