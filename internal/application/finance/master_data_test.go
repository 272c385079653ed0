package finance

import (
	"context"
	"testing"

	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Vendors
// =============================================================================

func TestVendorService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Vendors.Create(ctx, f.tc(clerk), VendorRequest{Code: "V-001", Name: "Acme", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, string(finance.StateDraft), v.Status)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, clerk, v.CreatedBy)

	t.Run("field errors carry the json name", func(t *testing.T) {
		_, err := f.svc.Vendors.Create(ctx, f.tc(clerk), VendorRequest{Name: "No code", Currency: "USD"})
		ke := requireCode(t, err, shared.CodeValidation)
		assert.Equal(t, "code", ke.Details["field"])
	})

	t.Run("duplicate code is rejected", func(t *testing.T) {
		_, err := f.svc.Vendors.Create(ctx, f.tc(clerk), VendorRequest{Code: "V-001", Name: "Acme again", Currency: "USD"})
		ke := requireCode(t, err, shared.CodeValidation)
		assert.Equal(t, "code", ke.Details["field"])
	})

	t.Run("unknown currency is rejected", func(t *testing.T) {
		_, err := f.svc.Vendors.Create(ctx, f.tc(clerk), VendorRequest{Code: "V-002", Name: "Acme", Currency: "XYZ"})
		requireCode(t, err, shared.CodeValidation)
	})
}

func TestVendorService_Approval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Vendors.Create(ctx, f.tc(clerk), VendorRequest{Code: "V-100", Name: "Globex", Currency: "USD"})
	require.NoError(t, err)

	submitted, err := f.svc.Vendors.Transition(ctx, f.tc(clerk), v.ID, ActionRequest{Action: "submit", ExpectedVersion: version(1)})
	require.NoError(t, err)
	assert.Equal(t, string(finance.StatePendingApproval), submitted.Status)

	t.Run("staff cannot approve master data", func(t *testing.T) {
		f.dir.Grant(f.tenantID, "clerk-002", sod.RoleStaff)
		_, err := f.svc.Vendors.Transition(ctx, f.tc("clerk-002"), v.ID, ActionRequest{Action: "approve", ExpectedVersion: version(2)})
		ke := requireCode(t, err, shared.CodeSoDViolation)
		assert.Equal(t, string(sod.ViolationInsufficientAuthority), ke.Details["violation_type"])
	})

	t.Run("maker cannot approve", func(t *testing.T) {
		_, err := f.svc.Vendors.Transition(ctx, f.tc(clerk), v.ID, ActionRequest{Action: "approve", ExpectedVersion: version(2)})
		ke := requireCode(t, err, shared.CodeSoDViolation)
		assert.Equal(t, string(sod.ViolationSelfApproval), ke.Details["violation_type"])
	})

	active, err := f.svc.Vendors.Transition(ctx, f.tc(manager), v.ID, ActionRequest{Action: "approve", ExpectedVersion: version(2)})
	require.NoError(t, err)
	assert.Equal(t, string(finance.StateActive), active.Status)
	assert.Equal(t, []string{manager}, active.Approval.ApprovedBy)

	t.Run("active vendors are immutable", func(t *testing.T) {
		_, err := f.svc.Vendors.Update(ctx, f.tc(clerk), v.ID, UpdateVendorRequest{
			VendorRequest:   VendorRequest{Code: "V-100", Name: "Globex Corp", Currency: "USD"},
			ExpectedVersion: version(active.Version),
		})
		requireCode(t, err, shared.CodeInvalidStateTransition)
	})

	t.Run("request_change returns the vendor to draft", func(t *testing.T) {
		draft, err := f.svc.Vendors.Transition(ctx, f.tc(clerk), v.ID, ActionRequest{Action: "request_change", ExpectedVersion: version(active.Version)})
		require.NoError(t, err)
		assert.Equal(t, string(finance.StateDraft), draft.Status)
		assert.Empty(t, draft.Approval.ApprovedBy)

		updated, err := f.svc.Vendors.Update(ctx, f.tc(clerk), v.ID, UpdateVendorRequest{
			VendorRequest:   VendorRequest{Code: "V-100", Name: "Globex Corp", Currency: "USD"},
			ExpectedVersion: version(draft.Version),
		})
		require.NoError(t, err)
		assert.Equal(t, "Globex Corp", updated.Name)
	})
}

func TestVendorService_Suspend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.activeVendor(t, "V-200")

	t.Run("staff cannot suspend", func(t *testing.T) {
		_, err := f.svc.Vendors.Transition(ctx, f.tc(clerk), v.ID, ActionRequest{Action: "suspend", ExpectedVersion: version(v.Version)})
		ke := requireCode(t, err, shared.CodeSoDViolation)
		assert.Equal(t, sod.PolicyRoleRequired, ke.Details["policy_code"])
	})

	suspended, err := f.svc.Vendors.Transition(ctx, f.tc(manager), v.ID, ActionRequest{Action: "suspend", ExpectedVersion: version(v.Version)})
	require.NoError(t, err)
	assert.Equal(t, string(finance.StateSuspended), suspended.Status)

	t.Run("suspended vendors cannot be invoiced", func(t *testing.T) {
		_, err := f.svc.Invoices.Create(ctx, f.tc(clerk), InvoiceRequest{
			Direction:      "payable",
			InvoiceNumber:  "INV-1",
			CounterpartyID: v.ID,
			InvoiceDate:    testNow,
			DueDate:        testNow.AddDate(0, 1, 0),
			Amount:         decimal.NewFromInt(100),
			Currency:       "USD",
		})
		ke := requireCode(t, err, shared.CodeValidation)
		assert.Equal(t, string(finance.StateSuspended), ke.Details["status"])
	})

	actions, err := f.svc.Vendors.AvailableActions(ctx, f.tc(clerk), v.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "reactivate"}, actions)
}

// =============================================================================
// Customers
// =============================================================================

func TestCustomerService_CreditLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.activeCustomer(t, "C-001", "1000.00")

	receivable := func(number, amount string) InvoiceRequest {
		return InvoiceRequest{
			Direction:      "receivable",
			InvoiceNumber:  number,
			CounterpartyID: c.ID,
			InvoiceDate:    testNow,
			DueDate:        testNow.AddDate(0, 0, 30),
			Amount:         decimal.RequireFromString(amount),
			Currency:       "USD",
		}
	}

	_, err := f.svc.Invoices.Create(ctx, f.tc(clerk), receivable("AR-1", "600.00"))
	require.NoError(t, err)

	_, err = f.svc.Invoices.Create(ctx, f.tc(clerk), receivable("AR-2", "400.01"))
	ke := requireCode(t, err, shared.CodeValidation)
	assert.Equal(t, "1000.00", ke.Details["credit_limit"])
	assert.Equal(t, "1000.01", ke.Details["exposure"])

	_, err = f.svc.Invoices.Create(ctx, f.tc(clerk), receivable("AR-3", "400.00"))
	require.NoError(t, err)
}

// =============================================================================
// Bank accounts
// =============================================================================

func TestBankAccountService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.activeBankAccount(t, "100-200-300", "5000.00")
	assert.True(t, decimal.RequireFromString("5000").Equal(b.Balance))

	t.Run("account numbers are unique per tenant", func(t *testing.T) {
		_, err := f.svc.BankAccounts.Create(ctx, f.tc(clerk), CreateBankAccountRequest{
			AccountNumber: "100-200-300", BankName: "Second Bank", Name: "Payroll", Currency: "USD",
		})
		requireCode(t, err, shared.CodeValidation)

		other := shared.TenantContext{TenantID: uuid.New(), ActorID: clerk}
		_, err = f.svc.BankAccounts.Create(ctx, other, CreateBankAccountRequest{
			AccountNumber: "100-200-300", BankName: "Second Bank", Name: "Payroll", Currency: "USD",
		})
		require.NoError(t, err)
	})

	t.Run("other tenants cannot read the account", func(t *testing.T) {
		other := shared.TenantContext{TenantID: uuid.New(), ActorID: clerk}
		_, err := f.svc.BankAccounts.Get(ctx, other, b.ID)
		requireCode(t, err, shared.CodeNotFound)
	})

	t.Run("listing filters by status", func(t *testing.T) {
		items, total, err := f.svc.BankAccounts.List(ctx, f.tc(clerk), ListFilter{Status: []string{"active"}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, items, 1)
		assert.Equal(t, b.ID, items[0].ID)
	})
}
