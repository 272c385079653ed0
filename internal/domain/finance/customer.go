package finance

import (
	"strings"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Customer is a buyer in the customer master.
type Customer struct {
	shared.VersionedEntity
	Approval    shared.ApprovalProgress
	Code        string
	Name        string
	Email       string
	Currency    string
	CreditLimit decimal.Decimal
}

// CustomerFields are the editable customer attributes.
type CustomerFields struct {
	Code        string
	Name        string
	Email       string
	Currency    string
	CreditLimit decimal.Decimal
}

// NewCustomer builds an unsaved customer
func NewCustomer(f CustomerFields) (*Customer, error) {
	c := &Customer{}
	if err := c.apply(f); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyChanges replaces the editable fields
func (c *Customer) ApplyChanges(f CustomerFields) error {
	return c.apply(f)
}

func (c *Customer) apply(f CustomerFields) error {
	f.Code = strings.ToUpper(strings.TrimSpace(f.Code))
	if err := firstErr(
		requireText(shared.EntityCustomer, "code", f.Code, 50),
		requireText(shared.EntityCustomer, "name", f.Name, 200),
		limitText(shared.EntityCustomer, "email", f.Email, 200),
		shared.RequireNonNegative(shared.EntityCustomer, "credit_limit", f.CreditLimit),
	); err != nil {
		return err
	}
	currency, err := shared.NormalizeCurrency(shared.EntityCustomer, f.Currency)
	if err != nil {
		return err
	}
	c.Code = f.Code
	c.Name = strings.TrimSpace(f.Name)
	c.Email = strings.TrimSpace(f.Email)
	c.Currency = currency
	c.CreditLimit = f.CreditLimit
	return nil
}

// ApprovalProgress returns the approval tracking of the customer
func (c *Customer) ApprovalProgress() *shared.ApprovalProgress { return &c.Approval }

// IsActive reports whether the customer can be invoiced
func (c *Customer) IsActive() bool { return c.Status == string(StateActive) }

// CheckCredit fails when open receivables plus amount exceed the limit. A
// zero limit means no credit is extended beyond prepaid amounts.
func (c *Customer) CheckCredit(openReceivables, amount decimal.Decimal) error {
	exposure := openReceivables.Add(amount)
	if exposure.GreaterThan(c.CreditLimit) {
		return shared.Validation(shared.EntityCustomer, "credit limit exceeded").
			WithDetail("customer_id", c.ID.String()).
			WithDetail("credit_limit", c.CreditLimit.StringFixed(2)).
			WithDetail("exposure", exposure.StringFixed(2))
	}
	return nil
}
