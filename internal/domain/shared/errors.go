package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode is the closed set of kernel failure kinds.
type ErrorCode string

const (
	CodeTenantMismatch         ErrorCode = "TENANT_MISMATCH"
	CodeInvalidTable           ErrorCode = "INVALID_TABLE"
	CodeInvalidColumn          ErrorCode = "INVALID_COLUMN"
	CodeNotFound               ErrorCode = "NOT_FOUND"
	CodeVersionConflict        ErrorCode = "VERSION_CONFLICT"
	CodeVersionRequired        ErrorCode = "VERSION_REQUIRED"
	CodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	CodeSoDViolation           ErrorCode = "SOD_VIOLATION"
	CodePeriodClosed           ErrorCode = "PERIOD_CLOSED"
	CodeValidation             ErrorCode = "VALIDATION_ERROR"
	CodeMissingTenantID        ErrorCode = "MISSING_TENANT_ID"
	CodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	CodeInternal               ErrorCode = "INTERNAL"
)

// IsSecurityCritical reports whether the code signals a guard violation.
func (c ErrorCode) IsSecurityCritical() bool {
	switch c {
	case CodeTenantMismatch, CodeInvalidTable, CodeInvalidColumn:
		return true
	}
	return false
}

// EntityKind discriminates which entity type an error is about.
type EntityKind string

const (
	EntityNone        EntityKind = ""
	EntityVendor      EntityKind = "vendor"
	EntityCustomer    EntityKind = "customer"
	EntityInvoice     EntityKind = "invoice"
	EntityReceipt     EntityKind = "receipt"
	EntityCreditNote  EntityKind = "credit_note"
	EntityPayment     EntityKind = "payment"
	EntityBankAccount EntityKind = "bank_account"
	EntityJournal     EntityKind = "journal_entry"
	EntityPeriod      EntityKind = "period"
	EntityAudit       EntityKind = "audit_event"
)

// KernelError is the single tagged error type returned by the kernel.
// Callers match on Code (and optionally Entity) with errors.Is or IsCode.
type KernelError struct {
	Code    ErrorCode      `json:"code"`
	Entity  EntityKind     `json:"entity,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *KernelError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Entity != EntityNone {
		b.WriteString("(")
		b.WriteString(string(e.Entity))
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Is matches another KernelError with the same code. A target that names an
// entity kind only matches errors about that kind.
func (e *KernelError) Is(target error) bool {
	t, ok := target.(*KernelError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Entity == EntityNone || t.Entity == e.Entity
}

// WithDetail returns a copy of the error with an extra detail entry.
func (e *KernelError) WithDetail(key string, value any) *KernelError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// DetailKeys returns the detail keys in sorted order.
func (e *KernelError) DetailKeys() []string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewKernelError creates a new kernel error
func NewKernelError(code ErrorCode, entity EntityKind, message string) *KernelError {
	return &KernelError{
		Code:    code,
		Entity:  entity,
		Message: message,
	}
}

// Sentinels for errors.Is matching.
var (
	ErrTenantMismatch         = &KernelError{Code: CodeTenantMismatch}
	ErrInvalidTable           = &KernelError{Code: CodeInvalidTable}
	ErrInvalidColumn          = &KernelError{Code: CodeInvalidColumn}
	ErrNotFound               = &KernelError{Code: CodeNotFound}
	ErrVersionConflict        = &KernelError{Code: CodeVersionConflict}
	ErrVersionRequired        = &KernelError{Code: CodeVersionRequired}
	ErrInvalidStateTransition = &KernelError{Code: CodeInvalidStateTransition}
	ErrSoDViolation           = &KernelError{Code: CodeSoDViolation}
	ErrPeriodClosed           = &KernelError{Code: CodePeriodClosed}
	ErrValidation             = &KernelError{Code: CodeValidation}
	ErrMissingTenantID        = &KernelError{Code: CodeMissingTenantID}
	ErrUnauthorized           = &KernelError{Code: CodeUnauthorized}
)

// NotFound is returned for entities that are absent or owned by another
// tenant. Both causes produce the same error.
func NotFound(entity EntityKind, id fmt.Stringer) *KernelError {
	return NewKernelError(CodeNotFound, entity, fmt.Sprintf("%s not found", entity)).
		WithDetail("id", id.String())
}

// VersionConflict reports a stale expected version.
func VersionConflict(entity EntityKind, id fmt.Stringer, expected, actual int) *KernelError {
	return &KernelError{
		Code:    CodeVersionConflict,
		Entity:  entity,
		Message: fmt.Sprintf("%s %s was modified: expected version %d, current version %d", entity, id, expected, actual),
		Details: map[string]any{
			"id":       id.String(),
			"expected": expected,
			"actual":   actual,
		},
	}
}

// InvalidTransition reports an action not permitted from the current state.
func InvalidTransition(entity EntityKind, from, action string) *KernelError {
	return &KernelError{
		Code:    CodeInvalidStateTransition,
		Entity:  entity,
		Message: fmt.Sprintf("action %q is not allowed from state %q", action, from),
		Details: map[string]any{
			"current_state":    from,
			"attempted_action": action,
		},
	}
}

// Validation reports an entity-specific business rule failure.
func Validation(entity EntityKind, message string) *KernelError {
	return NewKernelError(CodeValidation, entity, message)
}

// AsKernelError extracts a KernelError from an error chain.
func AsKernelError(err error) (*KernelError, bool) {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke, true
	}
	return nil, false
}

// CodeOf returns the error code, CodeInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if ke, ok := AsKernelError(err); ok {
		return ke.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
