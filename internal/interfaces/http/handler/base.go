// Package handler maps the finance API onto the application services.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/interfaces/http/dto"
	"github.com/erp/finkernel/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// HandleError sends the error body matching err
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

// scope returns the tenant context of the request. Routes are always mounted
// behind RequestScope, so a missing scope is a wiring fault.
func (h *BaseHandler) scope(c *gin.Context) (shared.TenantContext, bool) {
	tc, ok := middleware.GetTenantContext(c)
	if !ok {
		h.HandleError(c, shared.NewKernelError(shared.CodeMissingTenantID, shared.EntityNone, "tenant id is required"))
	}
	return tc, ok
}

// bindJSON decodes the request body into req. Malformed bodies are
// VALIDATION_ERROR.
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		h.HandleError(c, shared.Validation(shared.EntityNone, "request body is required"))
		return false
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		h.HandleError(c, shared.Validation(shared.EntityNone, "request body is too large").
			WithDetail("max_bytes", maxErr.Limit))
		return false
	}
	h.HandleError(c, shared.Validation(shared.EntityNone, "malformed request body").
		WithDetail("reason", err.Error()))
	return false
}

// bindQuery decodes the query string into req
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.HandleError(c, shared.Validation(shared.EntityNone, "malformed query string").
			WithDetail("reason", err.Error()))
		return false
	}
	return true
}

// pathID parses the :id path parameter. An id that is not a UUID cannot name
// any entity, so it is reported as NOT_FOUND.
func (h *BaseHandler) pathID(c *gin.Context, entity shared.EntityKind) (uuid.UUID, bool) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.HandleError(c, shared.NewKernelError(shared.CodeNotFound, entity, string(entity)+" not found").
			WithDetail("id", raw))
		return uuid.Nil, false
	}
	return id, true
}

// markReplay flags a response served from the idempotency store
func markReplay(c *gin.Context, replayed bool) {
	if replayed {
		c.Header(middleware.HeaderIdempotentReplay, "true")
	}
}
