package finance

import (
	"strings"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
)

// MasterDataApprover is the minimum role that activates master data.
const MasterDataApprover = sod.RoleManager

// Vendor is a supplier in the vendor master.
type Vendor struct {
	shared.VersionedEntity
	Approval         shared.ApprovalProgress
	Code             string
	Name             string
	TaxID            string
	Email            string
	Currency         string
	PaymentTermsDays int
}

// VendorFields are the editable vendor attributes.
type VendorFields struct {
	Code             string
	Name             string
	TaxID            string
	Email            string
	Currency         string
	PaymentTermsDays int
}

// NewVendor builds an unsaved vendor
func NewVendor(f VendorFields) (*Vendor, error) {
	v := &Vendor{}
	if err := v.apply(f); err != nil {
		return nil, err
	}
	return v, nil
}

// ApplyChanges replaces the editable fields
func (v *Vendor) ApplyChanges(f VendorFields) error {
	return v.apply(f)
}

func (v *Vendor) apply(f VendorFields) error {
	f.Code = strings.ToUpper(strings.TrimSpace(f.Code))
	f.TaxID = strings.TrimSpace(f.TaxID)
	if err := firstErr(
		requireText(shared.EntityVendor, "code", f.Code, 50),
		requireText(shared.EntityVendor, "name", f.Name, 200),
		limitText(shared.EntityVendor, "tax_id", f.TaxID, 50),
		limitText(shared.EntityVendor, "email", f.Email, 200),
	); err != nil {
		return err
	}
	if f.PaymentTermsDays < 0 || f.PaymentTermsDays > 365 {
		return shared.Validation(shared.EntityVendor, "payment terms must be between 0 and 365 days").
			WithDetail("field", "payment_terms_days")
	}
	currency, err := shared.NormalizeCurrency(shared.EntityVendor, f.Currency)
	if err != nil {
		return err
	}
	v.Code = f.Code
	v.Name = strings.TrimSpace(f.Name)
	v.TaxID = f.TaxID
	v.Email = strings.TrimSpace(f.Email)
	v.Currency = currency
	v.PaymentTermsDays = f.PaymentTermsDays
	return nil
}

// ApprovalProgress returns the approval tracking of the vendor
func (v *Vendor) ApprovalProgress() *shared.ApprovalProgress { return &v.Approval }

// IsActive reports whether the vendor can be used on documents
func (v *Vendor) IsActive() bool { return v.Status == string(StateActive) }
