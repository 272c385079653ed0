package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestCheckVersion(t *testing.T) {
	id := uuid.New()

	t.Run("matching version passes", func(t *testing.T) {
		assert.NoError(t, CheckVersion(EntityInvoice, id, intPtr(3), 3))
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		err := CheckVersion(EntityInvoice, id, intPtr(2), 3)
		ke, ok := AsKernelError(err)
		require.True(t, ok)
		assert.Equal(t, CodeVersionConflict, ke.Code)
		assert.Equal(t, 2, ke.Details["expected"])
		assert.Equal(t, 3, ke.Details["actual"])
	})

	t.Run("missing version is required", func(t *testing.T) {
		err := CheckVersion(EntityInvoice, id, nil, 3)
		assert.True(t, IsCode(err, CodeVersionRequired))
	})
}

func TestNewVersionedEntity(t *testing.T) {
	tc := TenantContext{TenantID: uuid.New(), ActorID: "user-001"}
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	id := uuid.New()

	e := NewVersionedEntity(tc, id, "draft", now)
	assert.Equal(t, id, e.ID)
	assert.Equal(t, tc.TenantID, e.TenantID)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, "user-001", e.CreatedBy)
	assert.Equal(t, "user-001", e.UpdatedBy)
	assert.Same(t, &e, e.Base())
}

func TestApprovalProgress_Makers(t *testing.T) {
	p := ApprovalProgress{SubmittedBy: "user-002"}
	assert.Equal(t, []string{"user-001", "user-002"}, p.Makers("user-001"))

	p.SubmittedBy = "user-001"
	assert.Equal(t, []string{"user-001"}, p.Makers("user-001"))

	p.Level = 1
	p.ApprovedBy = []string{"user-009"}
	p.Reset()
	assert.Zero(t, p.Level)
	assert.Empty(t, p.ApprovedBy)
}

func TestMoneyHelpers(t *testing.T) {
	code, err := NormalizeCurrency(EntityPayment, " usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", code)

	_, err = NormalizeCurrency(EntityPayment, "XXQ")
	assert.True(t, IsCode(err, CodeValidation))

	assert.Error(t, RequirePositive(EntityPayment, "amount", decimal.Zero))
	assert.NoError(t, RequirePositive(EntityPayment, "amount", decimal.NewFromInt(1)))
	assert.Error(t, RequireNonNegative(EntityCustomer, "credit_limit", decimal.NewFromInt(-1)))
	assert.Equal(t, "50000.00 USD", FormatAmount(decimal.RequireFromString("50000"), "USD"))
}
