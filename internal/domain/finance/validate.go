package finance

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
)

func requireText(entity shared.EntityKind, field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return shared.Validation(entity, fmt.Sprintf("%s is required", field)).WithDetail("field", field)
	}
	if utf8.RuneCountInString(value) > max {
		return shared.Validation(entity, fmt.Sprintf("%s cannot exceed %d characters", field, max)).WithDetail("field", field)
	}
	return nil
}

func limitText(entity shared.EntityKind, field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return shared.Validation(entity, fmt.Sprintf("%s cannot exceed %d characters", field, max)).WithDetail("field", field)
	}
	return nil
}

func requireID(entity shared.EntityKind, field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return shared.Validation(entity, fmt.Sprintf("%s is required", field)).WithDetail("field", field)
	}
	return nil
}

func requireDate(entity shared.EntityKind, field string, t time.Time) error {
	if t.IsZero() {
		return shared.Validation(entity, fmt.Sprintf("%s is required", field)).WithDetail("field", field)
	}
	return nil
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
