package shared

import (
	"context"

	"github.com/google/uuid"
)

// VersionedRepository persists one kind of kernel-managed entity. Every
// method is scoped to the tenant of tc.
type VersionedRepository[T Versioned] interface {
	// FindByID returns NOT_FOUND for absent rows and rows of other tenants.
	FindByID(ctx context.Context, tc TenantContext, id uuid.UUID) (T, error)

	// Create inserts a new row at version 1.
	Create(ctx context.Context, tc TenantContext, entity T) error

	// Update writes entity if the stored version still equals expected and
	// the stored status is not one of lockedStates. On success the entity's
	// version is advanced.
	Update(ctx context.Context, tc TenantContext, entity T, expected int, lockedStates []string) error

	// List returns one page of the tenant's rows, newest first.
	List(ctx context.Context, tc TenantContext, opts ListOptions) ([]T, int64, error)
}

// ListOptions filters a repository listing. SortBy names a column; unknown
// columns fall back to created_at.
type ListOptions struct {
	Statuses  []string
	Page      Pagination
	SortBy    string
	SortOrder string
}

// Pagination selects one page of a result set.
type Pagination struct {
	Page     int
	PageSize int
}

// DefaultPagination returns the first page with 20 items
func DefaultPagination() Pagination {
	return Pagination{Page: 1, PageSize: 20}
}

// Normalize clamps page and size into usable bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 500 {
		p.PageSize = 500
	}
	return p
}

// Offset returns the row offset of the page
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	if pageSize <= 0 {
		pageSize = 20
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
