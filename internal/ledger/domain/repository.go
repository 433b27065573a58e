package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CompanyExists(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (bool, error)
	CountAccounts(ctx context.Context, db *gorm.DB, companyID snowflake.ID, ids []snowflake.ID) (int64, error)

	InsertEntry(ctx context.Context, db *gorm.DB, entry *JournalEntry) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []JournalLine) error
	FindEntry(ctx context.Context, db *gorm.DB, id snowflake.ID) (*JournalEntry, error)
	ListEntries(ctx context.Context, db *gorm.DB, filter ListEntryFilter) ([]*JournalEntry, error)
	ListLines(ctx context.Context, db *gorm.DB, entryIDs []snowflake.ID) ([]JournalLine, error)
	DeleteEntry(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)

	SumLines(ctx context.Context, db *gorm.DB, entryID snowflake.ID) (Totals, int64, error)
	QueryLines(ctx context.Context, db *gorm.DB, accountID snowflake.ID, from *time.Time, to time.Time) ([]LineRow, error)
	SumByAccount(ctx context.Context, db *gorm.DB, companyID snowflake.ID, from *time.Time, to time.Time) ([]Totals, error)
}

type ListEntryFilter struct {
	CompanyID *snowflake.ID
	Offset    int
	Limit     int
}
