package finance

import (
	"strings"
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt records money received from a customer.
type Receipt struct {
	shared.VersionedEntity
	Approval      shared.ApprovalProgress
	ReceiptNumber string
	CustomerID    uuid.UUID
	InvoiceID     *uuid.UUID
	ReceiptDate   time.Time
	Amount        decimal.Decimal
	Currency      string
	Reference     string
	PostedAt      *time.Time
}

// ReceiptFields are the editable receipt attributes.
type ReceiptFields struct {
	ReceiptNumber string
	CustomerID    uuid.UUID
	InvoiceID     *uuid.UUID
	ReceiptDate   time.Time
	Amount        decimal.Decimal
	Currency      string
	Reference     string
}

// NewReceipt builds an unsaved receipt
func NewReceipt(f ReceiptFields) (*Receipt, error) {
	r := &Receipt{}
	if err := r.apply(f); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplyChanges replaces the editable fields
func (r *Receipt) ApplyChanges(f ReceiptFields) error {
	return r.apply(f)
}

func (r *Receipt) apply(f ReceiptFields) error {
	f.ReceiptNumber = strings.TrimSpace(f.ReceiptNumber)
	if err := firstErr(
		requireText(shared.EntityReceipt, "receipt_number", f.ReceiptNumber, 50),
		requireID(shared.EntityReceipt, "customer_id", f.CustomerID),
		requireDate(shared.EntityReceipt, "receipt_date", f.ReceiptDate),
		shared.RequirePositive(shared.EntityReceipt, "amount", f.Amount),
		limitText(shared.EntityReceipt, "reference", f.Reference, 100),
	); err != nil {
		return err
	}
	currency, err := shared.NormalizeCurrency(shared.EntityReceipt, f.Currency)
	if err != nil {
		return err
	}
	r.ReceiptNumber = f.ReceiptNumber
	r.CustomerID = f.CustomerID
	r.InvoiceID = f.InvoiceID
	r.ReceiptDate = f.ReceiptDate
	r.Amount = f.Amount
	r.Currency = currency
	r.Reference = f.Reference
	return nil
}

// ApprovalProgress returns the approval tracking of the receipt
func (r *Receipt) ApprovalProgress() *shared.ApprovalProgress { return &r.Approval }

// CheckInvoice validates an applied-to invoice.
func (r *Receipt) CheckInvoice(inv *Invoice) error {
	if inv.Direction != DirectionReceivable || inv.CustomerID == nil || *inv.CustomerID != r.CustomerID {
		return shared.Validation(shared.EntityReceipt, "receipt invoice must be a receivable of the same customer").
			WithDetail("invoice_id", inv.ID.String())
	}
	if !inv.IsPosted() {
		return shared.Validation(shared.EntityReceipt, "receipts can only be applied to posted invoices").
			WithDetail("invoice_status", inv.Status)
	}
	if !strings.EqualFold(inv.Currency, r.Currency) {
		return shared.Validation(shared.EntityReceipt, "receipt currency must match the invoice").
			WithDetail("invoice_currency", inv.Currency)
	}
	return nil
}
