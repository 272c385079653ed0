package models

import (
	"time"

	"github.com/erp/finkernel/internal/domain/finance"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// JournalEntryModel is the persistence model for journal entries. Lines are
// stored as a JSON array; TotalDebit is denormalized for approval amounts.
type JournalEntryModel struct {
	VersionedModel
	ApprovalModel
	EntryNumber string                                   `gorm:"type:varchar(50);not null"`
	EntryDate   time.Time                                `gorm:"type:date;not null"`
	EntryType   string                                   `gorm:"type:varchar(20);not null"`
	Description string                                   `gorm:"type:text"`
	Currency    string                                   `gorm:"type:char(3);not null"`
	Lines       datatypes.JSONSlice[finance.JournalLine] `gorm:"not null"`
	TotalDebit  decimal.Decimal                          `gorm:"type:decimal(18,4);not null"`
	ReversalOf  *uuid.UUID                               `gorm:"type:uuid;index"`
	ReversedBy  *uuid.UUID                               `gorm:"type:uuid"`
	PostedAt    *time.Time
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return tenant.JournalEntries.Name()
}

// ToDomain converts the model to a domain journal entry
func (m *JournalEntryModel) ToDomain() *finance.JournalEntry {
	return &finance.JournalEntry{
		VersionedEntity: m.VersionedModel.ToDomain(),
		Approval:        m.ApprovalModel.ToDomain(),
		EntryNumber:     m.EntryNumber,
		EntryDate:       m.EntryDate,
		EntryType:       finance.EntryType(m.EntryType),
		Description:     m.Description,
		Currency:        m.Currency,
		Lines:           append([]finance.JournalLine(nil), m.Lines...),
		ReversalOf:      m.ReversalOf,
		ReversedBy:      m.ReversedBy,
		PostedAt:        m.PostedAt,
	}
}

// FromDomain populates the model from a domain journal entry
func (m *JournalEntryModel) FromDomain(je *finance.JournalEntry) {
	m.VersionedModel.FromDomain(je.VersionedEntity)
	m.ApprovalModel.FromDomain(je.Approval)
	m.EntryNumber = je.EntryNumber
	m.EntryDate = je.EntryDate
	m.EntryType = string(je.EntryType)
	m.Description = je.Description
	m.Currency = je.Currency
	m.Lines = datatypes.JSONSlice[finance.JournalLine](append([]finance.JournalLine{}, je.Lines...))
	m.TotalDebit = je.TotalDebit()
	m.ReversalOf = je.ReversalOf
	m.ReversedBy = je.ReversedBy
	m.PostedAt = je.PostedAt
}

// Values returns every write column
func (m *JournalEntryModel) Values() tenant.Values {
	return merge(m.VersionedModel.Values(), m.ApprovalModel.Values(), tenant.Values{
		tenant.ColEntryNumber: m.EntryNumber,
		tenant.ColEntryDate:   m.EntryDate,
		tenant.ColEntryType:   m.EntryType,
		tenant.ColDescription: m.Description,
		tenant.ColCurrency:    m.Currency,
		tenant.ColLines:       m.Lines,
		tenant.ColTotalDebit:  m.TotalDebit,
		tenant.ColReversalOf:  m.ReversalOf,
		tenant.ColReversedBy:  m.ReversedBy,
		tenant.ColPostedAt:    m.PostedAt,
	})
}
