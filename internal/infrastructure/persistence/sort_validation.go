package persistence

import (
	"strings"

	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns defaultColumn if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowed map[string]tenant.Column, defaultColumn tenant.Column) tenant.Column {
	if c, ok := allowed[strings.TrimSpace(sortField)]; ok {
		return c
	}
	return defaultColumn
}

func sortFields(cols ...tenant.Column) map[string]tenant.Column {
	m := make(map[string]tenant.Column, len(cols)+3)
	for _, c := range append([]tenant.Column{tenant.ColCreatedAt, tenant.ColUpdatedAt, tenant.ColStatus}, cols...) {
		m[c.Name()] = c
	}
	return m
}

// CommonSortFields contains fields every versioned table can be sorted by
var CommonSortFields = sortFields()

// sortFieldsByTable lists the extra sortable columns per table
var sortFieldsByTable = map[*tenant.Table]map[string]tenant.Column{
	tenant.Vendors:        sortFields(tenant.ColCode, tenant.ColName),
	tenant.Customers:      sortFields(tenant.ColCode, tenant.ColName, tenant.ColCreditLimit),
	tenant.BankAccounts:   sortFields(tenant.ColName, tenant.ColBankName, tenant.ColBalance),
	tenant.Invoices:       sortFields(tenant.ColInvoiceNumber, tenant.ColInvoiceDate, tenant.ColDueDate, tenant.ColAmount),
	tenant.CreditNotes:    sortFields(tenant.ColCreditNoteNumber, tenant.ColCreditDate, tenant.ColAmount),
	tenant.Receipts:       sortFields(tenant.ColReceiptNumber, tenant.ColReceiptDate, tenant.ColAmount),
	tenant.Payments:       sortFields(tenant.ColPaymentNumber, tenant.ColPaymentDate, tenant.ColAmount),
	tenant.JournalEntries: sortFields(tenant.ColEntryNumber, tenant.ColEntryDate),
	tenant.Periods:        sortFields(tenant.ColPeriodID),
}

// SortFieldsFor returns the sortable columns of t
func SortFieldsFor(t *tenant.Table) map[string]tenant.Column {
	if m, ok := sortFieldsByTable[t]; ok {
		return m
	}
	return CommonSortFields
}

// ListOrder builds the ORDER BY of a listing. The id tiebreak keeps paging
// stable when the sort column has duplicates.
func ListOrder(t *tenant.Table, sortField, sortOrder string) []tenant.Order {
	col := ValidateSortField(sortField, SortFieldsFor(t), tenant.ColCreatedAt)
	if ValidateSortOrder(sortOrder) == "ASC" {
		return []tenant.Order{tenant.Asc(col), tenant.Asc(tenant.ColID)}
	}
	return []tenant.Order{tenant.Desc(col), tenant.Asc(tenant.ColID)}
}
