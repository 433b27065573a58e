package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// JournalEntry is the header of a balanced set of postings.
type JournalEntry struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID  `gorm:"not null;index" json:"company_id"`
	Date        time.Time     `gorm:"type:date;not null;index" json:"date"`
	Description string        `gorm:"type:text;not null" json:"description"`
	Reference   *string       `gorm:"type:text" json:"reference"`
	CreatedBy   *snowflake.ID `gorm:"index" json:"created_by"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	Lines       []JournalLine `gorm:"-" json:"lines"`
}

// TableName sets the database table name.
func (JournalEntry) TableName() string { return "journal_entries" }

// JournalLine is one side of a posting. Exactly one of Debit and Credit is positive.
type JournalLine struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	EntryID     snowflake.ID    `gorm:"not null;index" json:"-"`
	LineNo      int             `gorm:"not null" json:"-"`
	AccountID   snowflake.ID    `gorm:"not null;index" json:"account_id"`
	Debit       decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"debit"`
	Credit      decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"credit"`
	Description *string         `gorm:"type:text" json:"description"`
}

// TableName sets the database table name.
func (JournalLine) TableName() string { return "journal_lines" }

// MarshalJSON writes debit and credit as numbers with two decimals, the same
// shape reports use.
func (l JournalLine) MarshalJSON() ([]byte, error) {
	type plain JournalLine
	return json.Marshal(struct {
		plain
		Debit  json.Number `json:"debit"`
		Credit json.Number `json:"credit"`
	}{
		plain:  plain(l),
		Debit:  json.Number(l.Debit.StringFixed(MoneyScale)),
		Credit: json.Number(l.Credit.StringFixed(MoneyScale)),
	})
}

// EntryDraft is an unsaved journal entry as submitted by a caller.
type EntryDraft struct {
	CompanyID   snowflake.ID
	Date        time.Time
	Description string
	Reference   *string
	CreatedBy   *snowflake.ID
	Lines       []LineDraft
}

type LineDraft struct {
	AccountID   snowflake.ID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description *string
}

// Totals holds summed debits and credits for one account.
type Totals struct {
	AccountID snowflake.ID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Balance is the debit-normal balance (debit minus credit).
func (t Totals) Balance() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

// Activity is the credit-normal movement (credit minus debit).
func (t Totals) Activity() decimal.Decimal {
	return t.Credit.Sub(t.Debit)
}

// LineRow is a posted line joined with its entry date.
type LineRow struct {
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	EntryDate time.Time
}
