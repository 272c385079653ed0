package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType separates regular entries from period-end adjustments.
type EntryType string

const (
	EntryRegular    EntryType = "regular"
	EntryAdjustment EntryType = "adjustment"
	EntryReversal   EntryType = "reversal"
)

// IsValid checks if the entry type is known
func (t EntryType) IsValid() bool {
	return t == EntryRegular || t == EntryAdjustment || t == EntryReversal
}

// PostingClass maps the entry type to its soft-close classification.
// Adjustments and reversals are corrections and may post in soft close.
func (t EntryType) PostingClass() period.PostingClass {
	if t == EntryAdjustment || t == EntryReversal {
		return period.PostingAdjustment
	}
	return period.PostingRegular
}

// JournalLine is one debit or credit line.
type JournalLine struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
}

// JournalEntry is a general ledger entry.
type JournalEntry struct {
	shared.VersionedEntity
	Approval    shared.ApprovalProgress
	EntryNumber string
	EntryDate   time.Time
	EntryType   EntryType
	Description string
	Currency    string
	Lines       []JournalLine
	ReversalOf  *uuid.UUID
	ReversedBy  *uuid.UUID
	PostedAt    *time.Time
}

// JournalEntryFields are the editable entry attributes.
type JournalEntryFields struct {
	EntryNumber string
	EntryDate   time.Time
	EntryType   EntryType
	Description string
	Currency    string
	Lines       []JournalLine
}

// NewJournalEntry builds an unsaved entry
func NewJournalEntry(f JournalEntryFields) (*JournalEntry, error) {
	if f.EntryType == EntryReversal {
		return nil, shared.Validation(shared.EntityJournal, "reversal entries are created by reversing a posted entry").
			WithDetail("field", "entry_type")
	}
	je := &JournalEntry{}
	if err := je.apply(f); err != nil {
		return nil, err
	}
	return je, nil
}

// ApplyChanges replaces the editable fields
func (je *JournalEntry) ApplyChanges(f JournalEntryFields) error {
	if f.EntryType == EntryReversal && je.EntryType != EntryReversal {
		return shared.Validation(shared.EntityJournal, "entry type cannot be changed to reversal").WithDetail("field", "entry_type")
	}
	return je.apply(f)
}

func (je *JournalEntry) apply(f JournalEntryFields) error {
	f.EntryNumber = strings.TrimSpace(f.EntryNumber)
	if f.EntryType == "" {
		f.EntryType = EntryRegular
	}
	if !f.EntryType.IsValid() {
		return shared.Validation(shared.EntityJournal, "entry type must be regular or adjustment").WithDetail("field", "entry_type")
	}
	if err := firstErr(
		requireText(shared.EntityJournal, "entry_number", f.EntryNumber, 50),
		requireDate(shared.EntityJournal, "entry_date", f.EntryDate),
		limitText(shared.EntityJournal, "description", f.Description, 1000),
	); err != nil {
		return err
	}
	currency, err := shared.NormalizeCurrency(shared.EntityJournal, f.Currency)
	if err != nil {
		return err
	}
	if err := CheckBalanced(f.Lines); err != nil {
		return err
	}
	je.EntryNumber = f.EntryNumber
	je.EntryDate = f.EntryDate
	je.EntryType = f.EntryType
	je.Description = f.Description
	je.Currency = currency
	je.Lines = append([]JournalLine(nil), f.Lines...)
	return nil
}

// CheckBalanced validates lines: at least two, each exactly one positive side,
// and total debits equal to total credits.
func CheckBalanced(lines []JournalLine) error {
	if len(lines) < 2 {
		return shared.Validation(shared.EntityJournal, "a journal entry needs at least two lines").WithDetail("field", "lines")
	}
	debits, credits := decimal.Zero, decimal.Zero
	for i, l := range lines {
		if strings.TrimSpace(l.AccountCode) == "" {
			return shared.Validation(shared.EntityJournal, fmt.Sprintf("line %d: account code is required", i+1)).WithDetail("line", i+1)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return shared.Validation(shared.EntityJournal, fmt.Sprintf("line %d: amounts cannot be negative", i+1)).WithDetail("line", i+1)
		}
		if l.Debit.IsPositive() == l.Credit.IsPositive() {
			return shared.Validation(shared.EntityJournal, fmt.Sprintf("line %d: exactly one of debit or credit must be set", i+1)).WithDetail("line", i+1)
		}
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)
	}
	if !debits.Equal(credits) {
		return shared.Validation(shared.EntityJournal, "journal entry is not balanced").
			WithDetail("total_debit", debits.StringFixed(2)).
			WithDetail("total_credit", credits.StringFixed(2))
	}
	return nil
}

// TotalDebit is the amount used for approval tiers
func (je *JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range je.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// ApprovalProgress returns the approval tracking of the entry
func (je *JournalEntry) ApprovalProgress() *shared.ApprovalProgress { return &je.Approval }

// NewReversal builds the entry that undoes je, dated at date. The caller
// stamps the versioned base.
func (je *JournalEntry) NewReversal(entryNumber string, date time.Time) (*JournalEntry, error) {
	if je.Status != string(StatePosted) {
		return nil, shared.InvalidTransition(shared.EntityJournal, je.Status, string(ActionReverse))
	}
	if je.ReversedBy != nil {
		return nil, shared.Validation(shared.EntityJournal, "journal entry is already reversed")
	}
	if err := firstErr(
		requireText(shared.EntityJournal, "entry_number", entryNumber, 50),
		requireDate(shared.EntityJournal, "reversal_date", date),
	); err != nil {
		return nil, err
	}
	if date.Before(je.EntryDate) {
		return nil, shared.Validation(shared.EntityJournal, "reversal date cannot be before the original entry date").
			WithDetail("field", "reversal_date")
	}
	lines := make([]JournalLine, len(je.Lines))
	for i, l := range je.Lines {
		lines[i] = JournalLine{AccountCode: l.AccountCode, Debit: l.Credit, Credit: l.Debit, Memo: l.Memo}
	}
	id := je.ID
	return &JournalEntry{
		EntryNumber: strings.TrimSpace(entryNumber),
		EntryDate:   date,
		EntryType:   EntryReversal,
		Description: fmt.Sprintf("Reversal of %s", je.EntryNumber),
		Currency:    je.Currency,
		Lines:       lines,
		ReversalOf:  &id,
	}, nil
}
