package finance

import (
	"strings"
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditNote reduces the balance of a posted invoice.
type CreditNote struct {
	shared.VersionedEntity
	Approval         shared.ApprovalProgress
	CreditNoteNumber string
	InvoiceID        uuid.UUID
	CreditDate       time.Time
	Amount           decimal.Decimal
	Currency         string
	Reason           string
	PostedAt         *time.Time
}

// CreditNoteFields are the editable credit note attributes.
type CreditNoteFields struct {
	CreditNoteNumber string
	InvoiceID        uuid.UUID
	CreditDate       time.Time
	Amount           decimal.Decimal
	Currency         string
	Reason           string
}

// NewCreditNote builds an unsaved credit note
func NewCreditNote(f CreditNoteFields) (*CreditNote, error) {
	cn := &CreditNote{}
	if err := cn.apply(f); err != nil {
		return nil, err
	}
	return cn, nil
}

// ApplyChanges replaces the editable fields
func (cn *CreditNote) ApplyChanges(f CreditNoteFields) error {
	return cn.apply(f)
}

func (cn *CreditNote) apply(f CreditNoteFields) error {
	f.CreditNoteNumber = strings.TrimSpace(f.CreditNoteNumber)
	if err := firstErr(
		requireText(shared.EntityCreditNote, "credit_note_number", f.CreditNoteNumber, 50),
		requireID(shared.EntityCreditNote, "invoice_id", f.InvoiceID),
		requireDate(shared.EntityCreditNote, "credit_date", f.CreditDate),
		shared.RequirePositive(shared.EntityCreditNote, "amount", f.Amount),
		requireText(shared.EntityCreditNote, "reason", f.Reason, 500),
	); err != nil {
		return err
	}
	currency, err := shared.NormalizeCurrency(shared.EntityCreditNote, f.Currency)
	if err != nil {
		return err
	}
	cn.CreditNoteNumber = f.CreditNoteNumber
	cn.InvoiceID = f.InvoiceID
	cn.CreditDate = f.CreditDate
	cn.Amount = f.Amount
	cn.Currency = currency
	cn.Reason = f.Reason
	return nil
}

// ApprovalProgress returns the approval tracking of the credit note
func (cn *CreditNote) ApprovalProgress() *shared.ApprovalProgress { return &cn.Approval }

// CountsAgainstInvoice reports whether the note consumes invoice balance.
func (cn *CreditNote) CountsAgainstInvoice() bool {
	return cn.Status != string(StateRejected) && cn.Status != string(StateCancelled)
}

// CheckAgainst validates the note against its invoice and the amount other
// notes already credit.
func (cn *CreditNote) CheckAgainst(inv *Invoice, alreadyCredited decimal.Decimal) error {
	if !inv.IsPosted() {
		return shared.Validation(shared.EntityCreditNote, "credit notes can only reference posted invoices").
			WithDetail("invoice_status", inv.Status)
	}
	if !strings.EqualFold(inv.Currency, cn.Currency) {
		return shared.Validation(shared.EntityCreditNote, "credit note currency must match the invoice").
			WithDetail("invoice_currency", inv.Currency)
	}
	remaining := inv.CreditableBalance(alreadyCredited)
	if cn.Amount.GreaterThan(remaining) {
		return shared.Validation(shared.EntityCreditNote, "credit note exceeds the remaining invoice balance").
			WithDetail("remaining", remaining.StringFixed(2)).
			WithDetail("amount", cn.Amount.StringFixed(2))
	}
	return nil
}
