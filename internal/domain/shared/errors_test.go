package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKernelError_Is(t *testing.T) {
	id := uuid.New()

	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NotFound(EntityInvoice, id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("load invoice: %w", VersionConflict(EntityInvoice, id, 2, 3))
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.True(t, IsCode(err, CodeVersionConflict))
	})

	t.Run("entity-specific target only matches that entity", func(t *testing.T) {
		err := NotFound(EntityVendor, id)
		assert.ErrorIs(t, err, &KernelError{Code: CodeNotFound, Entity: EntityVendor})
		assert.NotErrorIs(t, err, &KernelError{Code: CodeNotFound, Entity: EntityPayment})
	})
}

func TestKernelError_Details(t *testing.T) {
	id := uuid.New()
	err := VersionConflict(EntityPayment, id, 2, 3)

	assert.Equal(t, CodeVersionConflict, err.Code)
	assert.Equal(t, 2, err.Details["expected"])
	assert.Equal(t, 3, err.Details["actual"])
	assert.Equal(t, id.String(), err.Details["id"])
	assert.Contains(t, err.Error(), "VERSION_CONFLICT(payment)")
	assert.Equal(t, []string{"actual", "expected", "id"}, err.DetailKeys())

	withHint := err.WithDetail("hint", "refetch")
	assert.NotContains(t, err.Details, "hint")
	assert.Equal(t, "refetch", withHint.Details["hint"])
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeValidation, CodeOf(Validation(EntityJournal, "unbalanced")))

	ke, ok := AsKernelError(fmt.Errorf("x: %w", InvalidTransition(EntityPayment, "completed", "retry")))
	require.True(t, ok)
	assert.Equal(t, "completed", ke.Details["current_state"])
	assert.Equal(t, "retry", ke.Details["attempted_action"])
}

func TestErrorCode_IsSecurityCritical(t *testing.T) {
	assert.True(t, CodeTenantMismatch.IsSecurityCritical())
	assert.True(t, CodeInvalidTable.IsSecurityCritical())
	assert.True(t, CodeInvalidColumn.IsSecurityCritical())
	assert.False(t, CodeNotFound.IsSecurityCritical())
}
