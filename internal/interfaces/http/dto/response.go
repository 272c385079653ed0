// Package dto holds the HTTP envelope types of the finance API.
package dto

import "github.com/erp/finkernel/internal/domain/shared"

// Response represents a standard API response
type Response struct {
	Success bool  `json:"success"`
	Data    any   `json:"data,omitempty"`
	Meta    *Meta `json:"meta,omitempty"`
}

// Meta represents pagination metadata
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewSuccessResponseWithMeta creates a success response with pagination meta.
// page and pageSize are normalized the way the repositories apply them.
func NewSuccessResponseWithMeta(data any, total int64, page, pageSize int) Response {
	p := shared.Pagination{Page: page, PageSize: pageSize}.Normalize()
	totalPages := int(total) / p.PageSize
	if int(total)%p.PageSize > 0 {
		totalPages++
	}
	return Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Total:      total,
			Page:       p.Page,
			PageSize:   p.PageSize,
			TotalPages: totalPages,
		},
	}
}

// ActionsResponse lists the actions currently available on an entity
type ActionsResponse struct {
	ID      string   `json:"id"`
	Actions []string `json:"actions"`
}
