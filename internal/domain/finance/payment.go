package finance

import (
	"strings"
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is an outgoing payment to a vendor drawn from a bank account.
type Payment struct {
	shared.VersionedEntity
	Approval      shared.ApprovalProgress
	PaymentNumber string
	VendorID      uuid.UUID
	BankAccountID uuid.UUID
	InvoiceID     *uuid.UUID
	PaymentDate   time.Time
	Amount        decimal.Decimal
	Currency      string
	Reference     string
	FailureReason string
	Attempts      int
	ProcessedAt   *time.Time
	CompletedAt   *time.Time
}

// PaymentFields are the editable payment attributes.
type PaymentFields struct {
	PaymentNumber string
	VendorID      uuid.UUID
	BankAccountID uuid.UUID
	InvoiceID     *uuid.UUID
	PaymentDate   time.Time
	Amount        decimal.Decimal
	Currency      string
	Reference     string
}

// NewPayment builds an unsaved payment
func NewPayment(f PaymentFields) (*Payment, error) {
	p := &Payment{}
	if err := p.apply(f); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyChanges replaces the editable fields. A failed payment keeps the
// approval it was granted, so it only accepts a new bank account or
// reference.
func (p *Payment) ApplyChanges(f PaymentFields) error {
	if p.Status != string(StateFailed) {
		return p.apply(f)
	}
	next := *p
	if err := next.apply(f); err != nil {
		return err
	}
	if field, ok := p.approvedChange(&next); ok {
		return shared.Validation(shared.EntityPayment, "a failed payment only accepts a new bank account or reference").
			WithDetail("field", field)
	}
	p.BankAccountID = next.BankAccountID
	p.Reference = next.Reference
	return nil
}

// approvedChange returns the first approved field that differs in next.
func (p *Payment) approvedChange(next *Payment) (string, bool) {
	switch {
	case next.PaymentNumber != p.PaymentNumber:
		return "payment_number", true
	case next.VendorID != p.VendorID:
		return "vendor_id", true
	case !sameID(next.InvoiceID, p.InvoiceID):
		return "invoice_id", true
	case !next.PaymentDate.Equal(p.PaymentDate):
		return "payment_date", true
	case !next.Amount.Equal(p.Amount):
		return "amount", true
	case next.Currency != p.Currency:
		return "currency", true
	}
	return "", false
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (p *Payment) apply(f PaymentFields) error {
	f.PaymentNumber = strings.TrimSpace(f.PaymentNumber)
	if err := firstErr(
		requireText(shared.EntityPayment, "payment_number", f.PaymentNumber, 50),
		requireID(shared.EntityPayment, "vendor_id", f.VendorID),
		requireID(shared.EntityPayment, "bank_account_id", f.BankAccountID),
		requireDate(shared.EntityPayment, "payment_date", f.PaymentDate),
		shared.RequirePositive(shared.EntityPayment, "amount", f.Amount),
		limitText(shared.EntityPayment, "reference", f.Reference, 100),
	); err != nil {
		return err
	}
	currency, err := shared.NormalizeCurrency(shared.EntityPayment, f.Currency)
	if err != nil {
		return err
	}
	p.PaymentNumber = f.PaymentNumber
	p.VendorID = f.VendorID
	p.BankAccountID = f.BankAccountID
	p.InvoiceID = f.InvoiceID
	p.PaymentDate = f.PaymentDate
	p.Amount = f.Amount
	p.Currency = currency
	p.Reference = f.Reference
	return nil
}

// ApprovalProgress returns the approval tracking of the payment
func (p *Payment) ApprovalProgress() *shared.ApprovalProgress { return &p.Approval }

// MarkProcessing records a processing attempt
func (p *Payment) MarkProcessing(now time.Time) {
	p.Attempts++
	p.FailureReason = ""
	p.ProcessedAt = &now
}

// MarkFailed records why the bank rejected the payment
func (p *Payment) MarkFailed(reason string) error {
	if err := requireText(shared.EntityPayment, "failure_reason", reason, 500); err != nil {
		return err
	}
	p.FailureReason = reason
	return nil
}

// MarkCompleted records settlement
func (p *Payment) MarkCompleted(now time.Time) {
	p.CompletedAt = &now
}

// CheckInvoice validates the paid invoice. paid is the total of the
// invoice's other live payments.
func (p *Payment) CheckInvoice(inv *Invoice, paid decimal.Decimal) error {
	if inv.Direction != DirectionPayable || inv.VendorID == nil || *inv.VendorID != p.VendorID {
		return shared.Validation(shared.EntityPayment, "payment invoice must be a payable of the same vendor").
			WithDetail("invoice_id", inv.ID.String())
	}
	if !inv.IsPosted() {
		return shared.Validation(shared.EntityPayment, "payments can only settle posted invoices").
			WithDetail("invoice_status", inv.Status)
	}
	if paid.Add(p.Amount).GreaterThan(inv.Amount) {
		return shared.Validation(shared.EntityPayment, "payments exceed the invoice amount").
			WithDetail("invoice_amount", inv.Amount.StringFixed(2)).
			WithDetail("already_paid", paid.StringFixed(2))
	}
	return nil
}
