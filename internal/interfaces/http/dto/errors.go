package dto

import (
	"net/http"

	"github.com/erp/finkernel/internal/domain/shared"
)

// ErrorCodeToHTTPStatus maps kernel error codes to HTTP status codes.
// Codes missing from the table are served as 500.
var ErrorCodeToHTTPStatus = map[shared.ErrorCode]int{
	shared.CodeVersionConflict:        http.StatusConflict,
	shared.CodeVersionRequired:        http.StatusPreconditionRequired,
	shared.CodeSoDViolation:           http.StatusBadRequest,
	shared.CodeInvalidStateTransition: http.StatusBadRequest,
	shared.CodePeriodClosed:           http.StatusBadRequest,
	shared.CodeValidation:             http.StatusBadRequest,
	shared.CodeMissingTenantID:        http.StatusBadRequest,
	shared.CodeNotFound:               http.StatusNotFound,
	shared.CodeTenantMismatch:         http.StatusForbidden,
	shared.CodeUnauthorized:           http.StatusUnauthorized,
	shared.CodeInvalidTable:           http.StatusInternalServerError,
	shared.CodeInvalidColumn:          http.StatusInternalServerError,
	shared.CodeInternal:               http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code for an error code
func HTTPStatus(code shared.ErrorCode) int {
	if status, ok := ErrorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// internalMessage replaces the message of every 5xx error.
const internalMessage = "An unexpected error occurred"

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	Success       bool             `json:"success"`
	Code          shared.ErrorCode `json:"code"`
	Entity        string           `json:"entity,omitempty"`
	Message       string           `json:"message"`
	Details       map[string]any   `json:"details,omitempty"`
	CorrelationID string           `json:"correlation_id"`
}

// NewErrorResponse converts err into a status code and body. Errors that are
// not kernel errors are reported as INTERNAL; 5xx bodies never carry the
// original message or details.
func NewErrorResponse(err error, correlationID string) (int, ErrorResponse) {
	ke, ok := shared.AsKernelError(err)
	if !ok {
		ke = shared.NewKernelError(shared.CodeInternal, shared.EntityNone, internalMessage)
	}
	status := HTTPStatus(ke.Code)
	resp := ErrorResponse{
		Code:          ke.Code,
		Entity:        string(ke.Entity),
		Message:       ke.Message,
		Details:       ke.Details,
		CorrelationID: correlationID,
	}
	if status >= http.StatusInternalServerError {
		resp.Entity = ""
		resp.Message = internalMessage
		resp.Details = nil
	}
	return status, resp
}
