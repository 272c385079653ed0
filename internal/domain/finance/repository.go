package finance

import (
	"context"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VendorRepository persists vendors
type VendorRepository interface {
	shared.VersionedRepository[*Vendor]
	// ExistsByCode reports whether another vendor of the tenant uses code.
	ExistsByCode(ctx context.Context, tc shared.TenantContext, code string, excludeID uuid.UUID) (bool, error)
	// ExistsByTaxID reports whether another vendor of the tenant uses taxID.
	ExistsByTaxID(ctx context.Context, tc shared.TenantContext, taxID string, excludeID uuid.UUID) (bool, error)
}

// CustomerRepository persists customers
type CustomerRepository interface {
	shared.VersionedRepository[*Customer]
	ExistsByCode(ctx context.Context, tc shared.TenantContext, code string, excludeID uuid.UUID) (bool, error)
}

// BankAccountRepository persists bank accounts
type BankAccountRepository interface {
	shared.VersionedRepository[*BankAccount]
	ExistsByAccountNumber(ctx context.Context, tc shared.TenantContext, accountNumber string, excludeID uuid.UUID) (bool, error)
}

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	shared.VersionedRepository[*Invoice]
	// ExistsByNumber detects a duplicate invoice number for the same
	// counterparty, ignoring cancelled and rejected invoices.
	ExistsByNumber(ctx context.Context, tc shared.TenantContext, direction InvoiceDirection, counterpartyID uuid.UUID, number string, excludeID uuid.UUID) (bool, error)
	// OpenReceivables totals receivable invoices of a customer that still
	// count toward its credit exposure.
	OpenReceivables(ctx context.Context, tc shared.TenantContext, customerID uuid.UUID, excludeID uuid.UUID) (decimal.Decimal, error)
}

// CreditNoteRepository persists credit notes
type CreditNoteRepository interface {
	shared.VersionedRepository[*CreditNote]
	// CreditedAmount totals credit notes against an invoice that count
	// toward its balance.
	CreditedAmount(ctx context.Context, tc shared.TenantContext, invoiceID uuid.UUID, excludeID uuid.UUID) (decimal.Decimal, error)
}

// ReceiptRepository persists receipts
type ReceiptRepository interface {
	shared.VersionedRepository[*Receipt]
}

// PaymentRepository persists payments
type PaymentRepository interface {
	shared.VersionedRepository[*Payment]
	// PaidAmount totals the payments against an invoice that were not
	// rejected or cancelled.
	PaidAmount(ctx context.Context, tc shared.TenantContext, invoiceID uuid.UUID, excludeID uuid.UUID) (decimal.Decimal, error)
}

// JournalEntryRepository persists journal entries
type JournalEntryRepository interface {
	shared.VersionedRepository[*JournalEntry]
	ExistsByNumber(ctx context.Context, tc shared.TenantContext, entryNumber string, excludeID uuid.UUID) (bool, error)
}

// NonExposureStates are invoice states that no longer count as open
// exposure or as duplicates.
var NonExposureStates = []string{string(StateRejected), string(StateCancelled), string(StateArchived)}

// VoidStates are states of records that were abandoned before posting.
var VoidStates = []string{string(StateRejected), string(StateCancelled)}
