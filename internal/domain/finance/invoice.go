package finance

import (
	"strings"
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceDirection separates payables from receivables.
type InvoiceDirection string

const (
	DirectionPayable    InvoiceDirection = "payable"
	DirectionReceivable InvoiceDirection = "receivable"
)

// IsValid checks if the direction is known
func (d InvoiceDirection) IsValid() bool {
	return d == DirectionPayable || d == DirectionReceivable
}

// Invoice is a vendor bill (payable) or a customer invoice (receivable).
type Invoice struct {
	shared.VersionedEntity
	Approval      shared.ApprovalProgress
	Direction     InvoiceDirection
	InvoiceNumber string
	VendorID      *uuid.UUID
	CustomerID    *uuid.UUID
	InvoiceDate   time.Time
	DueDate       time.Time
	Amount        decimal.Decimal
	Currency      string
	Description   string
	PostedAt      *time.Time
}

// InvoiceFields are the editable invoice attributes.
type InvoiceFields struct {
	Direction      InvoiceDirection
	InvoiceNumber  string
	CounterpartyID uuid.UUID
	InvoiceDate    time.Time
	DueDate        time.Time
	Amount         decimal.Decimal
	Currency       string
	Description    string
}

// NewInvoice builds an unsaved invoice
func NewInvoice(f InvoiceFields) (*Invoice, error) {
	inv := &Invoice{}
	if err := inv.apply(f); err != nil {
		return nil, err
	}
	return inv, nil
}

// ApplyChanges replaces the editable fields. The direction is fixed.
func (inv *Invoice) ApplyChanges(f InvoiceFields) error {
	if f.Direction != "" && f.Direction != inv.Direction {
		return shared.Validation(shared.EntityInvoice, "invoice direction cannot change").WithDetail("field", "direction")
	}
	f.Direction = inv.Direction
	return inv.apply(f)
}

func (inv *Invoice) apply(f InvoiceFields) error {
	if !f.Direction.IsValid() {
		return shared.Validation(shared.EntityInvoice, "direction must be payable or receivable").WithDetail("field", "direction")
	}
	f.InvoiceNumber = strings.TrimSpace(f.InvoiceNumber)
	if err := firstErr(
		requireText(shared.EntityInvoice, "invoice_number", f.InvoiceNumber, 50),
		requireID(shared.EntityInvoice, "counterparty_id", f.CounterpartyID),
		requireDate(shared.EntityInvoice, "invoice_date", f.InvoiceDate),
		requireDate(shared.EntityInvoice, "due_date", f.DueDate),
		shared.RequirePositive(shared.EntityInvoice, "amount", f.Amount),
		limitText(shared.EntityInvoice, "description", f.Description, 1000),
	); err != nil {
		return err
	}
	if f.DueDate.Before(f.InvoiceDate) {
		return shared.Validation(shared.EntityInvoice, "due date cannot be before the invoice date").WithDetail("field", "due_date")
	}
	currency, err := shared.NormalizeCurrency(shared.EntityInvoice, f.Currency)
	if err != nil {
		return err
	}
	id := f.CounterpartyID
	inv.VendorID, inv.CustomerID = nil, nil
	if f.Direction == DirectionPayable {
		inv.VendorID = &id
	} else {
		inv.CustomerID = &id
	}
	inv.Direction = f.Direction
	inv.InvoiceNumber = f.InvoiceNumber
	inv.InvoiceDate = f.InvoiceDate
	inv.DueDate = f.DueDate
	inv.Amount = f.Amount
	inv.Currency = currency
	inv.Description = f.Description
	return nil
}

// CounterpartyID returns the vendor or customer of the invoice
func (inv *Invoice) CounterpartyID() uuid.UUID {
	if inv.VendorID != nil {
		return *inv.VendorID
	}
	if inv.CustomerID != nil {
		return *inv.CustomerID
	}
	return uuid.Nil
}

// ApprovalProgress returns the approval tracking of the invoice
func (inv *Invoice) ApprovalProgress() *shared.ApprovalProgress { return &inv.Approval }

// IsPosted reports whether the invoice is in the ledger
func (inv *Invoice) IsPosted() bool {
	return inv.Status == string(StatePosted) || inv.Status == string(StateArchived)
}

// IsOpenExposure reports whether the invoice counts toward credit exposure.
func (inv *Invoice) IsOpenExposure() bool {
	switch inv.Status {
	case string(StateRejected), string(StateCancelled), string(StateArchived):
		return false
	}
	return true
}

// CreditableBalance is the amount still open for credit notes.
func (inv *Invoice) CreditableBalance(alreadyCredited decimal.Decimal) decimal.Decimal {
	return inv.Amount.Sub(alreadyCredited)
}
