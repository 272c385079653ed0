package tenant

import "sort"

// Kind separates tenant-owned tables from global reference tables.
type Kind int

const (
	// Scoped tables carry tenant_id and every statement filters on it.
	Scoped Kind = iota
	// Global tables hold reference data shared by all tenants.
	Global
)

// Column is a whitelisted column identifier. Values only exist as the
// package-level variables below.
type Column struct {
	name string
}

// Name returns the SQL column name
func (c Column) Name() string { return c.name }

func (c Column) String() string { return c.name }

// Table is a whitelisted table identifier with its closed column set.
type Table struct {
	name       string
	kind       Kind
	versioned  bool
	appendOnly bool
	columns    map[Column]struct{}
	ordered    []Column
}

// Name returns the SQL table name
func (t *Table) Name() string { return t.name }

// Kind returns whether the table is tenant scoped or global
func (t *Table) Kind() Kind { return t.kind }

// Versioned reports whether rows carry an optimistic version counter
func (t *Table) Versioned() bool { return t.versioned }

// AppendOnly reports whether rows may never be updated or deleted
func (t *Table) AppendOnly() bool { return t.appendOnly }

// Has reports whether c is declared for the table
func (t *Table) Has(c Column) bool {
	_, ok := t.columns[c]
	return ok
}

// Columns returns the declared columns in declaration order
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.ordered...)
}

type tableOpt int

const (
	optVersioned tableOpt = iota + 1
	optAppendOnly
)

var registry = map[string]*Table{}

func define(name string, kind Kind, opts []tableOpt, cols ...Column) *Table {
	t := &Table{name: name, kind: kind, columns: make(map[Column]struct{}, len(cols))}
	for _, o := range opts {
		switch o {
		case optVersioned:
			t.versioned = true
		case optAppendOnly:
			t.appendOnly = true
		}
	}
	for _, c := range cols {
		if _, dup := t.columns[c]; dup {
			panic("tenant: duplicate column " + c.name + " on " + name)
		}
		t.columns[c] = struct{}{}
		t.ordered = append(t.ordered, c)
	}
	if kind == Scoped && !t.Has(ColTenantID) {
		panic("tenant: scoped table " + name + " has no tenant_id column")
	}
	if t.versioned && (!t.Has(ColVersion) || !t.Has(ColStatus)) {
		panic("tenant: versioned table " + name + " needs version and status columns")
	}
	registry[name] = t
	return t
}

// Lookup resolves a registered table by name.
func Lookup(name string) (*Table, bool) {
	t, ok := registry[name]
	return t, ok
}

// Tables returns all registered tables sorted by name.
func Tables() []*Table {
	out := make([]*Table, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func registered(t *Table) bool {
	if t == nil {
		return false
	}
	r, ok := registry[t.name]
	return ok && r == t
}

// Columns shared by several tables.
var (
	ColID        = Column{"id"}
	ColTenantID  = Column{"tenant_id"}
	ColStatus    = Column{"status"}
	ColVersion   = Column{"version"}
	ColCreatedBy = Column{"created_by"}
	ColUpdatedBy = Column{"updated_by"}
	ColCreatedAt = Column{"created_at"}
	ColUpdatedAt = Column{"updated_at"}

	ColSubmittedBy    = Column{"submitted_by"}
	ColApprovalLevel  = Column{"approval_level"}
	ColRequiredLevels = Column{"required_levels"}
	ColApprovedBy     = Column{"approved_by"}
	ColApprovedAt     = Column{"approved_at"}

	ColCode        = Column{"code"}
	ColName        = Column{"name"}
	ColEmail       = Column{"email"}
	ColCurrency    = Column{"currency"}
	ColAmount      = Column{"amount"}
	ColDescription = Column{"description"}
	ColReference   = Column{"reference"}
	ColPostedAt    = Column{"posted_at"}
	ColVendorID    = Column{"vendor_id"}
	ColCustomerID  = Column{"customer_id"}
	ColInvoiceID   = Column{"invoice_id"}

	ColTaxID            = Column{"tax_id"}
	ColPaymentTermsDays = Column{"payment_terms_days"}
	ColCreditLimit      = Column{"credit_limit"}
	ColAccountNumber    = Column{"account_number"}
	ColBankName         = Column{"bank_name"}
	ColBalance          = Column{"balance"}

	ColDirection     = Column{"direction"}
	ColInvoiceNumber = Column{"invoice_number"}
	ColInvoiceDate   = Column{"invoice_date"}
	ColDueDate       = Column{"due_date"}

	ColCreditNoteNumber = Column{"credit_note_number"}
	ColCreditDate       = Column{"credit_date"}
	ColReason           = Column{"reason"}

	ColReceiptNumber = Column{"receipt_number"}
	ColReceiptDate   = Column{"receipt_date"}

	ColPaymentNumber = Column{"payment_number"}
	ColBankAccountID = Column{"bank_account_id"}
	ColPaymentDate   = Column{"payment_date"}
	ColFailureReason = Column{"failure_reason"}
	ColAttempts      = Column{"attempts"}
	ColProcessedAt   = Column{"processed_at"}
	ColCompletedAt   = Column{"completed_at"}

	ColEntryNumber = Column{"entry_number"}
	ColEntryDate   = Column{"entry_date"}
	ColEntryType   = Column{"entry_type"}
	ColLines       = Column{"lines"}
	ColTotalDebit  = Column{"total_debit"}
	ColReversalOf  = Column{"reversal_of"}
	ColReversedBy  = Column{"reversed_by"}

	ColPeriodID = Column{"period_id"}
	ColNote     = Column{"note"}
	ColClosedBy = Column{"closed_by"}
	ColClosedAt = Column{"closed_at"}

	ColCorrelationID = Column{"correlation_id"}
	ColActorID       = Column{"actor_id"}
	ColAction        = Column{"action"}
	ColResource      = Column{"resource"}
	ColResourceID    = Column{"resource_id"}
	ColResult        = Column{"result"}
	ColBefore        = Column{"before"}
	ColAfter         = Column{"after"}
	ColOccurredAt    = Column{"occurred_at"}

	ColRole              = Column{"role"}
	ColMakerID           = Column{"maker_id"}
	ColCheckerID         = Column{"checker_id"}
	ColMaxAmount         = Column{"max_amount"}
	ColBelowMax          = Column{"below_max"}
	ColLevelRoles        = Column{"level_roles"}
	ColRequiresExecutive = Column{"requires_executive"}
)

func versionedColumns(extra ...Column) []Column {
	base := []Column{
		ColID, ColTenantID, ColStatus, ColVersion,
		ColCreatedBy, ColUpdatedBy, ColCreatedAt, ColUpdatedAt,
	}
	return append(base, extra...)
}

func approvalColumns(extra ...Column) []Column {
	return append([]Column{
		ColSubmittedBy, ColApprovalLevel, ColRequiredLevels, ColApprovedBy, ColApprovedAt,
	}, extra...)
}

var versioned = []tableOpt{optVersioned}

// Tenant-scoped financial entity tables.
var (
	Vendors = define("vendors", Scoped, versioned, versionedColumns(approvalColumns(
		ColCode, ColName, ColTaxID, ColEmail, ColCurrency, ColPaymentTermsDays,
	)...)...)

	Customers = define("customers", Scoped, versioned, versionedColumns(approvalColumns(
		ColCode, ColName, ColEmail, ColCurrency, ColCreditLimit,
	)...)...)

	BankAccounts = define("bank_accounts", Scoped, versioned, versionedColumns(approvalColumns(
		ColAccountNumber, ColBankName, ColName, ColCurrency, ColBalance,
	)...)...)

	Invoices = define("invoices", Scoped, versioned, versionedColumns(approvalColumns(
		ColDirection, ColInvoiceNumber, ColVendorID, ColCustomerID, ColInvoiceDate,
		ColDueDate, ColAmount, ColCurrency, ColDescription, ColPostedAt,
	)...)...)

	CreditNotes = define("credit_notes", Scoped, versioned, versionedColumns(approvalColumns(
		ColCreditNoteNumber, ColInvoiceID, ColCreditDate, ColAmount, ColCurrency,
		ColReason, ColPostedAt,
	)...)...)

	Receipts = define("receipts", Scoped, versioned, versionedColumns(approvalColumns(
		ColReceiptNumber, ColCustomerID, ColInvoiceID, ColReceiptDate, ColAmount,
		ColCurrency, ColReference, ColPostedAt,
	)...)...)

	Payments = define("payments", Scoped, versioned, versionedColumns(approvalColumns(
		ColPaymentNumber, ColVendorID, ColBankAccountID, ColInvoiceID, ColPaymentDate,
		ColAmount, ColCurrency, ColReference, ColFailureReason, ColAttempts,
		ColProcessedAt, ColCompletedAt,
	)...)...)

	JournalEntries = define("journal_entries", Scoped, versioned, versionedColumns(approvalColumns(
		ColEntryNumber, ColEntryDate, ColEntryType, ColDescription, ColCurrency,
		ColLines, ColTotalDebit, ColReversalOf, ColReversedBy, ColPostedAt,
	)...)...)
)

// Kernel control tables.
var (
	Periods = define("periods", Scoped, versioned, versionedColumns(
		ColPeriodID, ColNote, ColClosedBy, ColClosedAt,
	)...)

	AuditEvents = define("audit_events", Scoped, []tableOpt{optAppendOnly},
		ColID, ColTenantID, ColCorrelationID, ColActorID, ColAction, ColResource,
		ColResourceID, ColResult, ColBefore, ColAfter, ColOccurredAt,
	)

	RoleAssignments = define("sod_role_assignments", Scoped, nil,
		ColID, ColTenantID, ColActorID, ColRole, ColCreatedBy, ColCreatedAt,
	)

	Exemptions = define("sod_exemptions", Scoped, nil,
		ColID, ColTenantID, ColMakerID, ColCheckerID, ColReason, ColCreatedBy, ColCreatedAt,
	)

	ApprovalThresholds = define("approval_thresholds", Scoped, nil,
		ColID, ColTenantID, ColCurrency, ColMaxAmount, ColBelowMax, ColLevelRoles,
		ColRequiresExecutive, ColCreatedAt,
	)
)

// DefaultApprovalThresholds is the global tier table used by tenants
// without overrides.
var DefaultApprovalThresholds = define("approval_threshold_defaults", Global, nil,
	ColID, ColCurrency, ColMaxAmount, ColBelowMax, ColLevelRoles, ColRequiresExecutive,
)
