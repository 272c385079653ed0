package models

import (
	"time"

	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for payable and receivable invoices
type InvoiceModel struct {
	VersionedModel
	ApprovalModel
	Direction     string          `gorm:"type:varchar(20);not null"`
	InvoiceNumber string          `gorm:"type:varchar(50);not null"`
	VendorID      *uuid.UUID      `gorm:"type:uuid;index"`
	CustomerID    *uuid.UUID      `gorm:"type:uuid;index"`
	InvoiceDate   time.Time       `gorm:"type:date;not null"`
	DueDate       time.Time       `gorm:"type:date;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency      string          `gorm:"type:char(3);not null"`
	Description   string          `gorm:"type:text"`
	PostedAt      *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return tenant.Invoices.Name()
}

// ToDomain converts the model to a domain invoice
func (m *InvoiceModel) ToDomain() *finance.Invoice {
	return &finance.Invoice{
		VersionedEntity: m.VersionedModel.ToDomain(),
		Approval:        m.ApprovalModel.ToDomain(),
		Direction:       finance.InvoiceDirection(m.Direction),
		InvoiceNumber:   m.InvoiceNumber,
		VendorID:        m.VendorID,
		CustomerID:      m.CustomerID,
		InvoiceDate:     m.InvoiceDate,
		DueDate:         m.DueDate,
		Amount:          m.Amount,
		Currency:        m.Currency,
		Description:     m.Description,
		PostedAt:        m.PostedAt,
	}
}

// FromDomain populates the model from a domain invoice
func (m *InvoiceModel) FromDomain(inv *finance.Invoice) {
	m.VersionedModel.FromDomain(inv.VersionedEntity)
	m.ApprovalModel.FromDomain(inv.Approval)
	m.Direction = string(inv.Direction)
	m.InvoiceNumber = inv.InvoiceNumber
	m.VendorID = inv.VendorID
	m.CustomerID = inv.CustomerID
	m.InvoiceDate = inv.InvoiceDate
	m.DueDate = inv.DueDate
	m.Amount = inv.Amount
	m.Currency = inv.Currency
	m.Description = inv.Description
	m.PostedAt = inv.PostedAt
}

// Values returns every write column
func (m *InvoiceModel) Values() tenant.Values {
	return merge(m.VersionedModel.Values(), m.ApprovalModel.Values(), tenant.Values{
		tenant.ColDirection:     m.Direction,
		tenant.ColInvoiceNumber: m.InvoiceNumber,
		tenant.ColVendorID:      m.VendorID,
		tenant.ColCustomerID:    m.CustomerID,
		tenant.ColInvoiceDate:   m.InvoiceDate,
		tenant.ColDueDate:       m.DueDate,
		tenant.ColAmount:        m.Amount,
		tenant.ColCurrency:      m.Currency,
		tenant.ColDescription:   m.Description,
		tenant.ColPostedAt:      m.PostedAt,
	})
}

// CreditNoteModel is the persistence model for credit notes
type CreditNoteModel struct {
	VersionedModel
	ApprovalModel
	CreditNoteNumber string          `gorm:"type:varchar(50);not null"`
	InvoiceID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	CreditDate       time.Time       `gorm:"type:date;not null"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency         string          `gorm:"type:char(3);not null"`
	Reason           string          `gorm:"type:varchar(500)"`
	PostedAt         *time.Time
}

// TableName returns the table name for GORM
func (CreditNoteModel) TableName() string {
	return tenant.CreditNotes.Name()
}

// ToDomain converts the model to a domain credit note
func (m *CreditNoteModel) ToDomain() *finance.CreditNote {
	return &finance.CreditNote{
		VersionedEntity:  m.VersionedModel.ToDomain(),
		Approval:         m.ApprovalModel.ToDomain(),
		CreditNoteNumber: m.CreditNoteNumber,
		InvoiceID:        m.InvoiceID,
		CreditDate:       m.CreditDate,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Reason:           m.Reason,
		PostedAt:         m.PostedAt,
	}
}

// FromDomain populates the model from a domain credit note
func (m *CreditNoteModel) FromDomain(cn *finance.CreditNote) {
	m.VersionedModel.FromDomain(cn.VersionedEntity)
	m.ApprovalModel.FromDomain(cn.Approval)
	m.CreditNoteNumber = cn.CreditNoteNumber
	m.InvoiceID = cn.InvoiceID
	m.CreditDate = cn.CreditDate
	m.Amount = cn.Amount
	m.Currency = cn.Currency
	m.Reason = cn.Reason
	m.PostedAt = cn.PostedAt
}

// Values returns every write column
func (m *CreditNoteModel) Values() tenant.Values {
	return merge(m.VersionedModel.Values(), m.ApprovalModel.Values(), tenant.Values{
		tenant.ColCreditNoteNumber: m.CreditNoteNumber,
		tenant.ColInvoiceID:        m.InvoiceID,
		tenant.ColCreditDate:       m.CreditDate,
		tenant.ColAmount:           m.Amount,
		tenant.ColCurrency:         m.Currency,
		tenant.ColReason:           m.Reason,
		tenant.ColPostedAt:         m.PostedAt,
	})
}

// ReceiptModel is the persistence model for customer receipts
type ReceiptModel struct {
	VersionedModel
	ApprovalModel
	ReceiptNumber string          `gorm:"type:varchar(50);not null"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID     *uuid.UUID      `gorm:"type:uuid;index"`
	ReceiptDate   time.Time       `gorm:"type:date;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency      string          `gorm:"type:char(3);not null"`
	Reference     string          `gorm:"type:varchar(200)"`
	PostedAt      *time.Time
}

// TableName returns the table name for GORM
func (ReceiptModel) TableName() string {
	return tenant.Receipts.Name()
}

// ToDomain converts the model to a domain receipt
func (m *ReceiptModel) ToDomain() *finance.Receipt {
	return &finance.Receipt{
		VersionedEntity: m.VersionedModel.ToDomain(),
		Approval:        m.ApprovalModel.ToDomain(),
		ReceiptNumber:   m.ReceiptNumber,
		CustomerID:      m.CustomerID,
		InvoiceID:       m.InvoiceID,
		ReceiptDate:     m.ReceiptDate,
		Amount:          m.Amount,
		Currency:        m.Currency,
		Reference:       m.Reference,
		PostedAt:        m.PostedAt,
	}
}

// FromDomain populates the model from a domain receipt
func (m *ReceiptModel) FromDomain(r *finance.Receipt) {
	m.VersionedModel.FromDomain(r.VersionedEntity)
	m.ApprovalModel.FromDomain(r.Approval)
	m.ReceiptNumber = r.ReceiptNumber
	m.CustomerID = r.CustomerID
	m.InvoiceID = r.InvoiceID
	m.ReceiptDate = r.ReceiptDate
	m.Amount = r.Amount
	m.Currency = r.Currency
	m.Reference = r.Reference
	m.PostedAt = r.PostedAt
}

// Values returns every write column
func (m *ReceiptModel) Values() tenant.Values {
	return merge(m.VersionedModel.Values(), m.ApprovalModel.Values(), tenant.Values{
		tenant.ColReceiptNumber: m.ReceiptNumber,
		tenant.ColCustomerID:    m.CustomerID,
		tenant.ColInvoiceID:     m.InvoiceID,
		tenant.ColReceiptDate:   m.ReceiptDate,
		tenant.ColAmount:        m.Amount,
		tenant.ColCurrency:      m.Currency,
		tenant.ColReference:     m.Reference,
		tenant.ColPostedAt:      m.PostedAt,
	})
}

// PaymentModel is the persistence model for outgoing payments
type PaymentModel struct {
	VersionedModel
	ApprovalModel
	PaymentNumber string          `gorm:"type:varchar(50);not null"`
	VendorID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	BankAccountID uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID     *uuid.UUID      `gorm:"type:uuid;index"`
	PaymentDate   time.Time       `gorm:"type:date;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency      string          `gorm:"type:char(3);not null"`
	Reference     string          `gorm:"type:varchar(200)"`
	FailureReason string          `gorm:"type:varchar(500)"`
	Attempts      int             `gorm:"not null;default:0"`
	ProcessedAt   *time.Time
	CompletedAt   *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return tenant.Payments.Name()
}

// ToDomain converts the model to a domain payment
func (m *PaymentModel) ToDomain() *finance.Payment {
	return &finance.Payment{
		VersionedEntity: m.VersionedModel.ToDomain(),
		Approval:        m.ApprovalModel.ToDomain(),
		PaymentNumber:   m.PaymentNumber,
		VendorID:        m.VendorID,
		BankAccountID:   m.BankAccountID,
		InvoiceID:       m.InvoiceID,
		PaymentDate:     m.PaymentDate,
		Amount:          m.Amount,
		Currency:        m.Currency,
		Reference:       m.Reference,
		FailureReason:   m.FailureReason,
		Attempts:        m.Attempts,
		ProcessedAt:     m.ProcessedAt,
		CompletedAt:     m.CompletedAt,
	}
}

// FromDomain populates the model from a domain payment
func (m *PaymentModel) FromDomain(p *finance.Payment) {
	m.VersionedModel.FromDomain(p.VersionedEntity)
	m.ApprovalModel.FromDomain(p.Approval)
	m.PaymentNumber = p.PaymentNumber
	m.VendorID = p.VendorID
	m.BankAccountID = p.BankAccountID
	m.InvoiceID = p.InvoiceID
	m.PaymentDate = p.PaymentDate
	m.Amount = p.Amount
	m.Currency = p.Currency
	m.Reference = p.Reference
	m.FailureReason = p.FailureReason
	m.Attempts = p.Attempts
	m.ProcessedAt = p.ProcessedAt
	m.CompletedAt = p.CompletedAt
}

// Values returns every write column
func (m *PaymentModel) Values() tenant.Values {
	return merge(m.VersionedModel.Values(), m.ApprovalModel.Values(), tenant.Values{
		tenant.ColPaymentNumber: m.PaymentNumber,
		tenant.ColVendorID:      m.VendorID,
		tenant.ColBankAccountID: m.BankAccountID,
		tenant.ColInvoiceID:     m.InvoiceID,
		tenant.ColPaymentDate:   m.PaymentDate,
		tenant.ColAmount:        m.Amount,
		tenant.ColCurrency:      m.Currency,
		tenant.ColReference:     m.Reference,
		tenant.ColFailureReason: m.FailureReason,
		tenant.ColAttempts:      m.Attempts,
		tenant.ColProcessedAt:   m.ProcessedAt,
		tenant.ColCompletedAt:   m.CompletedAt,
	})
}
