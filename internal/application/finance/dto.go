package finance

import (
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
)

// ApprovalResponse represents approval progress in API responses
type ApprovalResponse struct {
	SubmittedBy    string     `json:"submitted_by,omitempty"`
	Level          int        `json:"level"`
	RequiredLevels int        `json:"required_levels"`
	ApprovedBy     []string   `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
}

func toApprovalResponse(p shared.ApprovalProgress) ApprovalResponse {
	return ApprovalResponse{
		SubmittedBy:    p.SubmittedBy,
		Level:          p.Level,
		RequiredLevels: p.RequiredLevels,
		ApprovedBy:     append([]string(nil), p.ApprovedBy...),
		ApprovedAt:     p.ApprovedAt,
	}
}
