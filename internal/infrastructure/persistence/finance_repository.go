package persistence

import (
	"context"

	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/persistence/models"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GormVendorRepository implements finance.VendorRepository
type GormVendorRepository struct {
	*GormVersionedRepository[*finance.Vendor, models.VendorModel, *models.VendorModel]
}

// NewGormVendorRepository creates a new GormVendorRepository
func NewGormVendorRepository(guard *tenant.Guard) *GormVendorRepository {
	return &GormVendorRepository{
		NewGormVersionedRepository[*finance.Vendor, models.VendorModel](guard, tenant.Vendors, shared.EntityVendor),
	}
}

// ExistsByCode checks if another vendor uses code
func (r *GormVendorRepository) ExistsByCode(ctx context.Context, tc shared.TenantContext, code string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, tc,
		tenant.Eq(tenant.ColCode, code),
		tenant.NotIn(tenant.ColID, excludeID),
		tenant.NotIn(tenant.ColStatus, string(finance.StateRejected)),
	)
}

// ExistsByTaxID checks if another vendor uses taxID. An empty tax id never
// collides.
func (r *GormVendorRepository) ExistsByTaxID(ctx context.Context, tc shared.TenantContext, taxID string, excludeID uuid.UUID) (bool, error) {
	if taxID == "" {
		return false, nil
	}
	return r.exists(ctx, tc,
		tenant.Eq(tenant.ColTaxID, taxID),
		tenant.NotIn(tenant.ColID, excludeID),
		tenant.NotIn(tenant.ColStatus, string(finance.StateRejected)),
	)
}

// GormCustomerRepository implements finance.CustomerRepository
type GormCustomerRepository struct {
	*GormVersionedRepository[*finance.Customer, models.CustomerModel, *models.CustomerModel]
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(guard *tenant.Guard) *GormCustomerRepository {
	return &GormCustomerRepository{
		NewGormVersionedRepository[*finance.Customer, models.CustomerModel](guard, tenant.Customers, shared.EntityCustomer),
	}
}

// ExistsByCode checks if another customer uses code
func (r *GormCustomerRepository) ExistsByCode(ctx context.Context, tc shared.TenantContext, code string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, tc,
		tenant.Eq(tenant.ColCode, code),
		tenant.NotIn(tenant.ColID, excludeID),
		tenant.NotIn(tenant.ColStatus, string(finance.StateRejected)),
	)
}

// GormBankAccountRepository implements finance.BankAccountRepository
type GormBankAccountRepository struct {
	*GormVersionedRepository[*finance.BankAccount, models.BankAccountModel, *models.BankAccountModel]
}

// NewGormBankAccountRepository creates a new GormBankAccountRepository
func NewGormBankAccountRepository(guard *tenant.Guard) *GormBankAccountRepository {
	return &GormBankAccountRepository{
		NewGormVersionedRepository[*finance.BankAccount, models.BankAccountModel](guard, tenant.BankAccounts, shared.EntityBankAccount),
	}
}

// ExistsByAccountNumber checks if another bank account uses accountNumber
func (r *GormBankAccountRepository) ExistsByAccountNumber(ctx context.Context, tc shared.TenantContext, accountNumber string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, tc,
		tenant.Eq(tenant.ColAccountNumber, accountNumber),
		tenant.NotIn(tenant.ColID, excludeID),
		tenant.NotIn(tenant.ColStatus, string(finance.StateRejected)),
	)
}

// GormInvoiceRepository implements finance.InvoiceRepository
type GormInvoiceRepository struct {
	*GormVersionedRepository[*finance.Invoice, models.InvoiceModel, *models.InvoiceModel]
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(guard *tenant.Guard) *GormInvoiceRepository {
	return &GormInvoiceRepository{
		NewGormVersionedRepository[*finance.Invoice, models.InvoiceModel](guard, tenant.Invoices, shared.EntityInvoice),
	}
}

// ExistsByNumber checks for a live invoice with the same number from the
// same counterparty
func (r *GormInvoiceRepository) ExistsByNumber(ctx context.Context, tc shared.TenantContext, direction finance.InvoiceDirection, counterpartyID uuid.UUID, number string, excludeID uuid.UUID) (bool, error) {
	party := tenant.ColVendorID
	if direction == finance.DirectionReceivable {
		party = tenant.ColCustomerID
	}
	return r.exists(ctx, tc,
		tenant.Eq(tenant.ColDirection, string(direction)),
		tenant.Eq(party, counterpartyID),
		tenant.Eq(tenant.ColInvoiceNumber, number),
		tenant.NotIn(tenant.ColID, excludeID),
		tenant.NotIn(tenant.ColStatus, finance.VoidStates...),
	)
}

// OpenReceivables sums the customer's receivable invoices that still count
// as credit exposure
func (r *GormInvoiceRepository) OpenReceivables(ctx context.Context, tc shared.TenantContext, customerID uuid.UUID, excludeID uuid.UUID) (decimal.Decimal, error) {
	return r.guard.Sum(ctx, tc, r.table, tenant.ColAmount,
		tenant.Eq(tenant.ColDirection, string(finance.DirectionReceivable)),
		tenant.Eq(tenant.ColCustomerID, customerID),
		tenant.NotIn(tenant.ColID, excludeID),
		tenant.NotIn(tenant.ColStatus, finance.NonExposureStates...),
	)
}

// GormCreditNoteRepository implements finance.CreditNoteRepository
type GormCreditNoteRepository struct {
	*GormVersionedRepository[*finance.CreditNote, models.CreditNoteModel, *models.CreditNoteModel]
}

// NewGormCreditNoteRepository creates a new GormCreditNoteRepository
func NewGormCreditNoteRepository(guard *tenant.Guard) *GormCreditNoteRepository {
	return &GormCreditNoteRepository{
		NewGormVersionedRepository[*finance.CreditNote, models.CreditNoteModel](guard, tenant.CreditNotes, shared.EntityCreditNote),
	}
}

// CreditedAmount sums the credit notes that consume the invoice balance
func (r *GormCreditNoteRepository) CreditedAmount(ctx context.Context, tc shared.TenantContext, invoiceID uuid.UUID, excludeID uuid.UUID) (decimal.Decimal, error) {
	return r.guard.Sum(ctx, tc, r.table, tenant.ColAmount,
		tenant.Eq(tenant.ColInvoiceID, invoiceID),
		tenant.NotIn(tenant.ColID, excludeID),
		tenant.NotIn(tenant.ColStatus, finance.VoidStates...),
	)
}

// GormReceiptRepository implements finance.ReceiptRepository
type GormReceiptRepository struct {
	*GormVersionedRepository[*finance.Receipt, models.ReceiptModel, *models.ReceiptModel]
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(guard *tenant.Guard) *GormReceiptRepository {
	return &GormReceiptRepository{
		NewGormVersionedRepository[*finance.Receipt, models.ReceiptModel](guard, tenant.Receipts, shared.EntityReceipt),
	}
}

// GormPaymentRepository implements finance.PaymentRepository
type GormPaymentRepository struct {
	*GormVersionedRepository[*finance.Payment, models.PaymentModel, *models.PaymentModel]
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(guard *tenant.Guard) *GormPaymentRepository {
	return &GormPaymentRepository{
		NewGormVersionedRepository[*finance.Payment, models.PaymentModel](guard, tenant.Payments, shared.EntityPayment),
	}
}

// PaidAmount sums the payments that draw down the invoice amount
func (r *GormPaymentRepository) PaidAmount(ctx context.Context, tc shared.TenantContext, invoiceID uuid.UUID, excludeID uuid.UUID) (decimal.Decimal, error) {
	return r.guard.Sum(ctx, tc, r.table, tenant.ColAmount,
		tenant.Eq(tenant.ColInvoiceID, invoiceID),
		tenant.NotIn(tenant.ColID, excludeID),
		tenant.NotIn(tenant.ColStatus, finance.VoidStates...),
	)
}

// GormJournalEntryRepository implements finance.JournalEntryRepository
type GormJournalEntryRepository struct {
	*GormVersionedRepository[*finance.JournalEntry, models.JournalEntryModel, *models.JournalEntryModel]
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository
func NewGormJournalEntryRepository(guard *tenant.Guard) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{
		NewGormVersionedRepository[*finance.JournalEntry, models.JournalEntryModel](guard, tenant.JournalEntries, shared.EntityJournal),
	}
}

// ExistsByNumber checks if another live entry uses entryNumber
func (r *GormJournalEntryRepository) ExistsByNumber(ctx context.Context, tc shared.TenantContext, entryNumber string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, tc,
		tenant.Eq(tenant.ColEntryNumber, entryNumber),
		tenant.NotIn(tenant.ColID, excludeID),
		tenant.NotIn(tenant.ColStatus, finance.VoidStates...),
	)
}

// FinanceRepositories bundles every finance repository over one guard.
type FinanceRepositories struct {
	Vendors      *GormVendorRepository
	Customers    *GormCustomerRepository
	BankAccounts *GormBankAccountRepository
	Invoices     *GormInvoiceRepository
	CreditNotes  *GormCreditNoteRepository
	Receipts     *GormReceiptRepository
	Payments     *GormPaymentRepository
	Journals     *GormJournalEntryRepository
}

// NewFinanceRepositories creates all finance repositories
func NewFinanceRepositories(guard *tenant.Guard) FinanceRepositories {
	return FinanceRepositories{
		Vendors:      NewGormVendorRepository(guard),
		Customers:    NewGormCustomerRepository(guard),
		BankAccounts: NewGormBankAccountRepository(guard),
		Invoices:     NewGormInvoiceRepository(guard),
		CreditNotes:  NewGormCreditNoteRepository(guard),
		Receipts:     NewGormReceiptRepository(guard),
		Payments:     NewGormPaymentRepository(guard),
		Journals:     NewGormJournalEntryRepository(guard),
	}
}

var (
	_ finance.VendorRepository       = (*GormVendorRepository)(nil)
	_ finance.CustomerRepository     = (*GormCustomerRepository)(nil)
	_ finance.BankAccountRepository  = (*GormBankAccountRepository)(nil)
	_ finance.InvoiceRepository      = (*GormInvoiceRepository)(nil)
	_ finance.CreditNoteRepository   = (*GormCreditNoteRepository)(nil)
	_ finance.ReceiptRepository      = (*GormReceiptRepository)(nil)
	_ finance.PaymentRepository      = (*GormPaymentRepository)(nil)
	_ finance.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
)
