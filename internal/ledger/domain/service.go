package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

type ListEntriesRequest struct {
	CompanyID *snowflake.ID
	Skip      int
	Limit     int
}

type Service interface {
	CreateEntry(ctx context.Context, draft EntryDraft) (*JournalEntry, error)
	GetEntry(ctx context.Context, id snowflake.ID) (*JournalEntry, error)
	ListEntries(ctx context.Context, req ListEntriesRequest) ([]JournalEntry, error)
	DeleteEntry(ctx context.Context, id snowflake.ID) error

	// BalanceAsOf is debit minus credit over lines dated on or before asOf.
	BalanceAsOf(ctx context.Context, accountID snowflake.ID, asOf time.Time) (decimal.Decimal, error)
	// ActivityInPeriod is credit minus debit over lines dated within [start, end].
	ActivityInPeriod(ctx context.Context, accountID snowflake.ID, start, end time.Time) (decimal.Decimal, error)

	BalancesAsOf(ctx context.Context, companyID snowflake.ID, asOf time.Time) (map[snowflake.ID]Totals, error)
	ActivityByAccount(ctx context.Context, companyID snowflake.ID, start, end time.Time) (map[snowflake.ID]Totals, error)
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
