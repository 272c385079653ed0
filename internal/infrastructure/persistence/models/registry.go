package models

// All returns every persistence model, in dependency order, for schema
// creation in tests and local tooling. Production schemas come from the SQL
// migrations.
func All() []any {
	return []any{
		&VendorModel{},
		&CustomerModel{},
		&BankAccountModel{},
		&InvoiceModel{},
		&CreditNoteModel{},
		&ReceiptModel{},
		&PaymentModel{},
		&JournalEntryModel{},
		&PeriodModel{},
		&AuditEventModel{},
		&RoleAssignmentModel{},
		&ExemptionModel{},
		&ThresholdModel{},
		&DefaultThresholdModel{},
	}
}
