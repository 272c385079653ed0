package models

import (
	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/shopspring/decimal"
)

// VendorModel is the persistence model for vendors
type VendorModel struct {
	VersionedModel
	ApprovalModel
	Code             string `gorm:"type:varchar(50);not null"`
	Name             string `gorm:"type:varchar(200);not null"`
	TaxID            string `gorm:"type:varchar(50)"`
	Email            string `gorm:"type:varchar(200)"`
	Currency         string `gorm:"type:char(3);not null"`
	PaymentTermsDays int    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (VendorModel) TableName() string {
	return tenant.Vendors.Name()
}

// ToDomain converts the model to a domain vendor
func (m *VendorModel) ToDomain() *finance.Vendor {
	return &finance.Vendor{
		VersionedEntity:  m.VersionedModel.ToDomain(),
		Approval:         m.ApprovalModel.ToDomain(),
		Code:             m.Code,
		Name:             m.Name,
		TaxID:            m.TaxID,
		Email:            m.Email,
		Currency:         m.Currency,
		PaymentTermsDays: m.PaymentTermsDays,
	}
}

// FromDomain populates the model from a domain vendor
func (m *VendorModel) FromDomain(v *finance.Vendor) {
	m.VersionedModel.FromDomain(v.VersionedEntity)
	m.ApprovalModel.FromDomain(v.Approval)
	m.Code = v.Code
	m.Name = v.Name
	m.TaxID = v.TaxID
	m.Email = v.Email
	m.Currency = v.Currency
	m.PaymentTermsDays = v.PaymentTermsDays
}

// Values returns every write column
func (m *VendorModel) Values() tenant.Values {
	return merge(m.VersionedModel.Values(), m.ApprovalModel.Values(), tenant.Values{
		tenant.ColCode:             m.Code,
		tenant.ColName:             m.Name,
		tenant.ColTaxID:            m.TaxID,
		tenant.ColEmail:            m.Email,
		tenant.ColCurrency:         m.Currency,
		tenant.ColPaymentTermsDays: m.PaymentTermsDays,
	})
}

// CustomerModel is the persistence model for customers
type CustomerModel struct {
	VersionedModel
	ApprovalModel
	Code        string          `gorm:"type:varchar(50);not null"`
	Name        string          `gorm:"type:varchar(200);not null"`
	Email       string          `gorm:"type:varchar(200)"`
	Currency    string          `gorm:"type:char(3);not null"`
	CreditLimit decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return tenant.Customers.Name()
}

// ToDomain converts the model to a domain customer
func (m *CustomerModel) ToDomain() *finance.Customer {
	return &finance.Customer{
		VersionedEntity: m.VersionedModel.ToDomain(),
		Approval:        m.ApprovalModel.ToDomain(),
		Code:            m.Code,
		Name:            m.Name,
		Email:           m.Email,
		Currency:        m.Currency,
		CreditLimit:     m.CreditLimit,
	}
}

// FromDomain populates the model from a domain customer
func (m *CustomerModel) FromDomain(c *finance.Customer) {
	m.VersionedModel.FromDomain(c.VersionedEntity)
	m.ApprovalModel.FromDomain(c.Approval)
	m.Code = c.Code
	m.Name = c.Name
	m.Email = c.Email
	m.Currency = c.Currency
	m.CreditLimit = c.CreditLimit
}

// Values returns every write column
func (m *CustomerModel) Values() tenant.Values {
	return merge(m.VersionedModel.Values(), m.ApprovalModel.Values(), tenant.Values{
		tenant.ColCode:        m.Code,
		tenant.ColName:        m.Name,
		tenant.ColEmail:       m.Email,
		tenant.ColCurrency:    m.Currency,
		tenant.ColCreditLimit: m.CreditLimit,
	})
}

// BankAccountModel is the persistence model for bank accounts
type BankAccountModel struct {
	VersionedModel
	ApprovalModel
	AccountNumber string          `gorm:"type:varchar(50);not null"`
	BankName      string          `gorm:"type:varchar(200);not null"`
	Name          string          `gorm:"type:varchar(200);not null"`
	Currency      string          `gorm:"type:char(3);not null"`
	Balance       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (BankAccountModel) TableName() string {
	return tenant.BankAccounts.Name()
}

// ToDomain converts the model to a domain bank account
func (m *BankAccountModel) ToDomain() *finance.BankAccount {
	return &finance.BankAccount{
		VersionedEntity: m.VersionedModel.ToDomain(),
		Approval:        m.ApprovalModel.ToDomain(),
		AccountNumber:   m.AccountNumber,
		BankName:        m.BankName,
		Name:            m.Name,
		Currency:        m.Currency,
		Balance:         m.Balance,
	}
}

// FromDomain populates the model from a domain bank account
func (m *BankAccountModel) FromDomain(b *finance.BankAccount) {
	m.VersionedModel.FromDomain(b.VersionedEntity)
	m.ApprovalModel.FromDomain(b.Approval)
	m.AccountNumber = b.AccountNumber
	m.BankName = b.BankName
	m.Name = b.Name
	m.Currency = b.Currency
	m.Balance = b.Balance
}

// Values returns every write column
func (m *BankAccountModel) Values() tenant.Values {
	return merge(m.VersionedModel.Values(), m.ApprovalModel.Values(), tenant.Values{
		tenant.ColAccountNumber: m.AccountNumber,
		tenant.ColBankName:      m.BankName,
		tenant.ColName:          m.Name,
		tenant.ColCurrency:      m.Currency,
		tenant.ColBalance:       m.Balance,
	})
}
