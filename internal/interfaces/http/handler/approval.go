package handler

import (
	"github.com/erp/finkernel/internal/application/finance"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// SoDHandler exposes the segregation of duties policy for dry runs
type SoDHandler struct {
	BaseHandler
	svc *finance.ApprovalService
}

// NewSoDHandler creates a new SoDHandler
func NewSoDHandler(svc *finance.ApprovalService) *SoDHandler {
	return &SoDHandler{svc: svc}
}

// RegisterRoutes mounts the policy routes on rg
func (h *SoDHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/sod")
	g.POST("/can-approve", h.CanApprove)
	g.GET("/requirements", h.Requirements)
}

// CanApprove handles POST /sod/can-approve. A denial is a normal 200 answer.
func (h *SoDHandler) CanApprove(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	var req finance.CanApproveRequest
	if !h.bindJSON(c, &req) {
		return
	}
	out, err := h.svc.CanApprove(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// Requirements handles GET /sod/requirements?amount=&currency=
func (h *SoDHandler) Requirements(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	req := finance.RequirementsRequest{Currency: c.Query("currency")}
	if raw := c.Query("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			h.HandleError(c, invalidParam("amount", raw))
			return
		}
		req.Amount = amount
	}
	out, err := h.svc.Requirements(c.Request.Context(), tc, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}
