package finance

import (
	"strings"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BankAccount is a treasury account payments are drawn from.
type BankAccount struct {
	shared.VersionedEntity
	Approval      shared.ApprovalProgress
	AccountNumber string
	BankName      string
	Name          string
	Currency      string
	Balance       decimal.Decimal
}

// BankAccountFields are the editable bank account attributes. The balance is
// only set at creation; afterwards it moves through payments.
type BankAccountFields struct {
	AccountNumber  string
	BankName       string
	Name           string
	Currency       string
	OpeningBalance decimal.Decimal
}

// NewBankAccount builds an unsaved bank account
func NewBankAccount(f BankAccountFields) (*BankAccount, error) {
	b := &BankAccount{}
	if err := shared.RequireNonNegative(shared.EntityBankAccount, "opening_balance", f.OpeningBalance); err != nil {
		return nil, err
	}
	if err := b.apply(f); err != nil {
		return nil, err
	}
	b.Balance = f.OpeningBalance
	return b, nil
}

// ApplyChanges replaces the descriptive fields. Currency is fixed after
// creation.
func (b *BankAccount) ApplyChanges(f BankAccountFields) error {
	if f.Currency != "" && !strings.EqualFold(f.Currency, b.Currency) {
		return shared.Validation(shared.EntityBankAccount, "bank account currency cannot change").
			WithDetail("field", "currency")
	}
	f.Currency = b.Currency
	return b.apply(f)
}

func (b *BankAccount) apply(f BankAccountFields) error {
	f.AccountNumber = strings.TrimSpace(f.AccountNumber)
	if err := firstErr(
		requireText(shared.EntityBankAccount, "account_number", f.AccountNumber, 50),
		requireText(shared.EntityBankAccount, "bank_name", f.BankName, 200),
		requireText(shared.EntityBankAccount, "name", f.Name, 200),
	); err != nil {
		return err
	}
	currency, err := shared.NormalizeCurrency(shared.EntityBankAccount, f.Currency)
	if err != nil {
		return err
	}
	b.AccountNumber = f.AccountNumber
	b.BankName = strings.TrimSpace(f.BankName)
	b.Name = strings.TrimSpace(f.Name)
	b.Currency = currency
	return nil
}

// ApprovalProgress returns the approval tracking of the account
func (b *BankAccount) ApprovalProgress() *shared.ApprovalProgress { return &b.Approval }

// IsActive reports whether the account can fund payments
func (b *BankAccount) IsActive() bool { return b.Status == string(StateActive) }

// CheckFunds fails when the account cannot cover amount in currency.
func (b *BankAccount) CheckFunds(amount decimal.Decimal, currency string) error {
	if !strings.EqualFold(currency, b.Currency) {
		return shared.Validation(shared.EntityBankAccount, "payment currency does not match bank account currency").
			WithDetail("account_currency", b.Currency).
			WithDetail("payment_currency", currency)
	}
	if b.Balance.LessThan(amount) {
		return shared.Validation(shared.EntityBankAccount, "insufficient balance").
			WithDetail("balance", b.Balance.StringFixed(2)).
			WithDetail("amount", amount.StringFixed(2))
	}
	return nil
}

// Debit withdraws amount after CheckFunds.
func (b *BankAccount) Debit(amount decimal.Decimal, currency string) error {
	if err := b.CheckFunds(amount, currency); err != nil {
		return err
	}
	b.Balance = b.Balance.Sub(amount)
	return nil
}
