package finance

import (
	"testing"
	"time"

	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.CodeValidation), "got %v", err)
	if field != "" {
		ke, ok := shared.AsKernelError(err)
		require.True(t, ok)
		assert.Equal(t, field, ke.Details["field"])
	}
}

// =============================================================================
// Master data
// =============================================================================

func TestNewVendor(t *testing.T) {
	t.Run("normalizes code and currency", func(t *testing.T) {
		v, err := NewVendor(VendorFields{Code: " acme ", Name: "Acme Corp", Currency: "usd", PaymentTermsDays: 30})
		require.NoError(t, err)
		assert.Equal(t, "ACME", v.Code)
		assert.Equal(t, "USD", v.Currency)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		_, err := NewVendor(VendorFields{Code: "ACME", Currency: "USD"})
		assertValidation(t, err, "name")
	})

	t.Run("rejects payment terms out of range", func(t *testing.T) {
		_, err := NewVendor(VendorFields{Code: "ACME", Name: "Acme", Currency: "USD", PaymentTermsDays: 400})
		assertValidation(t, err, "payment_terms_days")
	})

	t.Run("rejects unknown currency", func(t *testing.T) {
		_, err := NewVendor(VendorFields{Code: "ACME", Name: "Acme", Currency: "XYZ1"})
		assertValidation(t, err, "")
	})
}

func TestCustomer_CheckCredit(t *testing.T) {
	c, err := NewCustomer(CustomerFields{Code: "C1", Name: "Globex", Currency: "USD", CreditLimit: dec("10000")})
	require.NoError(t, err)

	assert.NoError(t, c.CheckCredit(dec("4000"), dec("6000")))
	assertValidation(t, c.CheckCredit(dec("4000"), dec("6000.01")), "")

	_, err = NewCustomer(CustomerFields{Code: "C2", Name: "Initech", Currency: "USD", CreditLimit: dec("-1")})
	assertValidation(t, err, "credit_limit")
}

func TestBankAccount(t *testing.T) {
	acct, err := NewBankAccount(BankAccountFields{
		AccountNumber: "001-234", BankName: "First Bank", Name: "Operating",
		Currency: "USD", OpeningBalance: dec("1000"),
	})
	require.NoError(t, err)

	t.Run("checks funds and currency", func(t *testing.T) {
		assert.NoError(t, acct.CheckFunds(dec("1000"), "USD"))
		assertValidation(t, acct.CheckFunds(dec("1000.01"), "USD"), "")
		assertValidation(t, acct.CheckFunds(dec("10"), "EUR"), "")
	})

	t.Run("debit reduces balance", func(t *testing.T) {
		cp := *acct
		require.NoError(t, cp.Debit(dec("250.50"), "USD"))
		assert.True(t, cp.Balance.Equal(dec("749.50")))
	})

	t.Run("currency is fixed", func(t *testing.T) {
		cp := *acct
		err := cp.ApplyChanges(BankAccountFields{AccountNumber: "001-234", BankName: "First Bank", Name: "Operating", Currency: "EUR"})
		assertValidation(t, err, "currency")
	})
}

// =============================================================================
// Documents
// =============================================================================

func validInvoiceFields() InvoiceFields {
	return InvoiceFields{
		Direction:      DirectionPayable,
		InvoiceNumber:  "INV-1001",
		CounterpartyID: uuid.New(),
		InvoiceDate:    date(2025, 11, 3),
		DueDate:        date(2025, 12, 3),
		Amount:         dec("1200.00"),
		Currency:       "USD",
	}
}

func TestNewInvoice(t *testing.T) {
	t.Run("payable binds the vendor", func(t *testing.T) {
		f := validInvoiceFields()
		inv, err := NewInvoice(f)
		require.NoError(t, err)
		require.NotNil(t, inv.VendorID)
		assert.Nil(t, inv.CustomerID)
		assert.Equal(t, f.CounterpartyID, inv.CounterpartyID())
	})

	t.Run("due date before invoice date", func(t *testing.T) {
		f := validInvoiceFields()
		f.DueDate = date(2025, 11, 1)
		_, err := NewInvoice(f)
		assertValidation(t, err, "due_date")
	})

	t.Run("amount must be positive", func(t *testing.T) {
		f := validInvoiceFields()
		f.Amount = decimal.Zero
		_, err := NewInvoice(f)
		assertValidation(t, err, "amount")
	})

	t.Run("direction cannot change on edit", func(t *testing.T) {
		inv, err := NewInvoice(validInvoiceFields())
		require.NoError(t, err)
		f := validInvoiceFields()
		f.Direction = DirectionReceivable
		assertValidation(t, inv.ApplyChanges(f), "direction")
	})
}

func postedInvoice(t *testing.T, direction InvoiceDirection, amount string) *Invoice {
	t.Helper()
	f := validInvoiceFields()
	f.Direction = direction
	f.Amount = dec(amount)
	inv, err := NewInvoice(f)
	require.NoError(t, err)
	inv.ID = uuid.New()
	inv.Status = string(StatePosted)
	return inv
}

func TestCreditNote_CheckAgainst(t *testing.T) {
	inv := postedInvoice(t, DirectionReceivable, "1000")
	cn, err := NewCreditNote(CreditNoteFields{
		CreditNoteNumber: "CN-1", InvoiceID: inv.ID, CreditDate: date(2025, 11, 20),
		Amount: dec("400"), Currency: "USD", Reason: "damaged goods",
	})
	require.NoError(t, err)

	t.Run("within remaining balance", func(t *testing.T) {
		assert.NoError(t, cn.CheckAgainst(inv, dec("600")))
	})

	t.Run("exceeds remaining balance", func(t *testing.T) {
		assertValidation(t, cn.CheckAgainst(inv, dec("600.01")), "")
	})

	t.Run("invoice must be posted", func(t *testing.T) {
		draft := *inv
		draft.Status = string(StateApproved)
		assertValidation(t, cn.CheckAgainst(&draft, decimal.Zero), "")
	})
}

func TestReceipt_CheckInvoice(t *testing.T) {
	inv := postedInvoice(t, DirectionReceivable, "500")
	r, err := NewReceipt(ReceiptFields{
		ReceiptNumber: "R-1", CustomerID: *inv.CustomerID, ReceiptDate: date(2025, 11, 21),
		Amount: dec("500"), Currency: "USD",
	})
	require.NoError(t, err)
	assert.NoError(t, r.CheckInvoice(inv))

	other := *r
	other.CustomerID = uuid.New()
	assertValidation(t, other.CheckInvoice(inv), "")

	payable := postedInvoice(t, DirectionPayable, "500")
	assertValidation(t, r.CheckInvoice(payable), "")
}

func TestPayment(t *testing.T) {
	inv := postedInvoice(t, DirectionPayable, "800")
	p, err := NewPayment(PaymentFields{
		PaymentNumber: "PAY-1", VendorID: *inv.VendorID, BankAccountID: uuid.New(),
		InvoiceID: &inv.ID, PaymentDate: date(2025, 11, 25), Amount: dec("800"), Currency: "USD",
	})
	require.NoError(t, err)

	t.Run("invoice checks", func(t *testing.T) {
		assert.NoError(t, p.CheckInvoice(inv, decimal.Zero))
		big := *p
		big.Amount = dec("800.01")
		assertValidation(t, big.CheckInvoice(inv, decimal.Zero), "")
	})

	t.Run("earlier payments count toward the invoice", func(t *testing.T) {
		half := *p
		half.Amount = dec("400")
		assert.NoError(t, half.CheckInvoice(inv, dec("400")))
		err := half.CheckInvoice(inv, dec("400.01"))
		assertValidation(t, err, "")
		ke, _ := shared.AsKernelError(err)
		assert.Equal(t, "400.01", ke.Details["already_paid"])
	})

	t.Run("processing and failure bookkeeping", func(t *testing.T) {
		cp := *p
		now := date(2025, 11, 26)
		cp.MarkProcessing(now)
		require.NoError(t, cp.MarkFailed("bank rejected: account closed"))
		cp.MarkProcessing(now)
		assert.Equal(t, 2, cp.Attempts)
		assert.Empty(t, cp.FailureReason)
		assertValidation(t, cp.MarkFailed(""), "failure_reason")
	})

	t.Run("failed payment keeps its approved terms", func(t *testing.T) {
		fields := PaymentFields{
			PaymentNumber: p.PaymentNumber, VendorID: p.VendorID, BankAccountID: p.BankAccountID,
			InvoiceID: p.InvoiceID, PaymentDate: p.PaymentDate, Amount: p.Amount, Currency: "usd",
		}
		edit := func(mut func(*PaymentFields)) (*Payment, error) {
			cp := *p
			cp.Status = string(StateFailed)
			f := fields
			mut(&f)
			return &cp, cp.ApplyChanges(f)
		}

		tests := []struct {
			name  string
			field string
			mut   func(*PaymentFields)
		}{
			{"amount", "amount", func(f *PaymentFields) { f.Amount = dec("5000000") }},
			{"vendor", "vendor_id", func(f *PaymentFields) { f.VendorID = uuid.New() }},
			{"invoice", "invoice_id", func(f *PaymentFields) { f.InvoiceID = nil }},
			{"date", "payment_date", func(f *PaymentFields) { f.PaymentDate = date(2025, 12, 1) }},
			{"currency", "currency", func(f *PaymentFields) { f.Currency = "EUR" }},
			{"number", "payment_number", func(f *PaymentFields) { f.PaymentNumber = "PAY-2" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cp, err := edit(tt.mut)
				assertValidation(t, err, tt.field)
				assert.True(t, dec("800").Equal(cp.Amount))
			})
		}

		bank := uuid.New()
		cp, err := edit(func(f *PaymentFields) {
			f.BankAccountID = bank
			f.Reference = "resent"
		})
		require.NoError(t, err)
		assert.Equal(t, bank, cp.BankAccountID)
		assert.Equal(t, "resent", cp.Reference)
	})

	t.Run("draft payment accepts any change", func(t *testing.T) {
		cp := *p
		cp.Status = string(StateDraft)
		require.NoError(t, cp.ApplyChanges(PaymentFields{
			PaymentNumber: "PAY-9", VendorID: p.VendorID, BankAccountID: p.BankAccountID,
			PaymentDate: p.PaymentDate, Amount: dec("50"), Currency: "USD",
		}))
		assert.True(t, dec("50").Equal(cp.Amount))
		assert.Nil(t, cp.InvoiceID)
	})
}

// =============================================================================
// Journal entries
// =============================================================================

func balancedLines() []JournalLine {
	return []JournalLine{
		{AccountCode: "1000", Debit: dec("250")},
		{AccountCode: "4000", Credit: dec("250")},
	}
}

func TestCheckBalanced(t *testing.T) {
	tests := []struct {
		name  string
		lines []JournalLine
		ok    bool
	}{
		{"balanced", balancedLines(), true},
		{"single line", balancedLines()[:1], false},
		{"unbalanced", []JournalLine{{AccountCode: "1000", Debit: dec("250")}, {AccountCode: "4000", Credit: dec("200")}}, false},
		{"both sides on one line", []JournalLine{{AccountCode: "1000", Debit: dec("1"), Credit: dec("1")}, {AccountCode: "4000"}}, false},
		{"negative amount", []JournalLine{{AccountCode: "1000", Debit: dec("-5")}, {AccountCode: "4000", Credit: dec("-5")}}, false},
		{"missing account", []JournalLine{{Debit: dec("5")}, {AccountCode: "4000", Credit: dec("5")}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBalanced(tt.lines)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assertValidation(t, err, "")
		})
	}
}

func TestJournalEntry(t *testing.T) {
	je, err := NewJournalEntry(JournalEntryFields{
		EntryNumber: "JE-1", EntryDate: date(2025, 11, 10), Currency: "USD", Lines: balancedLines(),
	})
	require.NoError(t, err)

	t.Run("defaults to regular entry", func(t *testing.T) {
		assert.Equal(t, EntryRegular, je.EntryType)
		assert.Equal(t, period.PostingRegular, je.EntryType.PostingClass())
		assert.Equal(t, period.PostingAdjustment, EntryAdjustment.PostingClass())
		assert.True(t, je.TotalDebit().Equal(dec("250")))
	})

	t.Run("reversal entries cannot be created directly", func(t *testing.T) {
		_, err := NewJournalEntry(JournalEntryFields{
			EntryNumber: "JE-2", EntryDate: date(2025, 11, 10), EntryType: EntryReversal, Currency: "USD", Lines: balancedLines(),
		})
		assertValidation(t, err, "entry_type")
	})

	t.Run("reverse requires posted", func(t *testing.T) {
		_, err := je.NewReversal("JE-1R", date(2025, 12, 1))
		assert.True(t, shared.IsCode(err, shared.CodeInvalidStateTransition))
	})

	t.Run("reversal swaps lines", func(t *testing.T) {
		posted := *je
		posted.ID = uuid.New()
		posted.Status = string(StatePosted)

		rev, err := posted.NewReversal("JE-1R", date(2025, 12, 1))
		require.NoError(t, err)
		assert.Equal(t, EntryReversal, rev.EntryType)
		require.NotNil(t, rev.ReversalOf)
		assert.Equal(t, posted.ID, *rev.ReversalOf)
		assert.True(t, rev.Lines[0].Credit.Equal(dec("250")))
		assert.True(t, rev.Lines[1].Debit.Equal(dec("250")))
		assert.NoError(t, CheckBalanced(rev.Lines))
	})

	t.Run("reversal cannot predate the original", func(t *testing.T) {
		posted := *je
		posted.Status = string(StatePosted)
		_, err := posted.NewReversal("JE-1R", date(2025, 11, 1))
		assertValidation(t, err, "reversal_date")
	})
}
