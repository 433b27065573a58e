package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CompanyExists(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM companies WHERE id = ?`,
		companyID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) CountAccounts(ctx context.Context, db *gorm.DB, companyID snowflake.ID, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM accounts WHERE company_id = ? AND id IN ?`,
		companyID,
		ids,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.JournalEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO journal_entries (id, company_id, date, description, reference, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.CompanyID,
		entry.Date,
		entry.Description,
		entry.Reference,
		entry.CreatedBy,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []domain.JournalLine) error {
	for _, line := range lines {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO journal_lines (id, entry_id, line_no, account_id, debit, credit, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			line.ID,
			line.EntryID,
			line.LineNo,
			line.AccountID,
			line.Debit,
			line.Credit,
			line.Description,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindEntry(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.JournalEntry, error) {
	var entry domain.JournalEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, date, description, reference, created_by, created_at, updated_at
		 FROM journal_entries WHERE id = ?`,
		id,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	entry.Date = domain.DateOnly(entry.Date.UTC())
	return &entry, nil
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, filter domain.ListEntryFilter) ([]*domain.JournalEntry, error) {
	var entries []*domain.JournalEntry
	stmt := db.WithContext(ctx).Model(&domain.JournalEntry{})
	if filter.CompanyID != nil {
		stmt = stmt.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Offset > 0 {
		stmt = stmt.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	err := stmt.
		Order("date desc, id desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		entry.Date = domain.DateOnly(entry.Date.UTC())
	}
	return entries, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, entryIDs []snowflake.ID) ([]domain.JournalLine, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	var lines []domain.JournalLine
	err := db.WithContext(ctx).Raw(
		`SELECT id, entry_id, line_no, account_id, debit, credit, description
		 FROM journal_lines WHERE entry_id IN ?
		 ORDER BY entry_id, line_no`,
		entryIDs,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i].Debit = lines[i].Debit.Round(domain.MoneyScale)
		lines[i].Credit = lines[i].Credit.Round(domain.MoneyScale)
	}
	return lines, nil
}

func (r *repo) DeleteEntry(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM journal_lines WHERE entry_id = ?`,
		id,
	).Error; err != nil {
		return 0, err
	}
	result := db.WithContext(ctx).Exec(
		`DELETE FROM journal_entries WHERE id = ?`,
		id,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

type lineSum struct {
	Debit  decimal.NullDecimal
	Credit decimal.NullDecimal
	Lines  int64
}

func (r *repo) SumLines(ctx context.Context, db *gorm.DB, entryID snowflake.ID) (domain.Totals, int64, error) {
	if floatAggregates(db) {
		var rows []accountSum
		err := db.WithContext(ctx).Raw(
			`SELECT account_id, debit, credit FROM journal_lines WHERE entry_id = ?`,
			entryID,
		).Scan(&rows).Error
		if err != nil {
			return domain.Totals{}, 0, err
		}
		var totals domain.Totals
		for _, row := range rows {
			totals.Debit = totals.Debit.Add(amountOf(row.Debit))
			totals.Credit = totals.Credit.Add(amountOf(row.Credit))
		}
		return totals, int64(len(rows)), nil
	}

	var row lineSum
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(debit), 0) AS debit, COALESCE(SUM(credit), 0) AS credit, COUNT(1) AS lines
		 FROM journal_lines WHERE entry_id = ?`,
		entryID,
	).Scan(&row).Error
	if err != nil {
		return domain.Totals{}, 0, err
	}
	return domain.Totals{
		Debit:  amountOf(row.Debit),
		Credit: amountOf(row.Credit),
	}, row.Lines, nil
}

type lineRow struct {
	Debit     decimal.NullDecimal
	Credit    decimal.NullDecimal
	EntryDate time.Time
}

func (r *repo) QueryLines(ctx context.Context, db *gorm.DB, accountID snowflake.ID, from *time.Time, to time.Time) ([]domain.LineRow, error) {
	var query strings.Builder
	args := []any{accountID, to}
	query.WriteString(`SELECT l.debit AS debit, l.credit AS credit, e.date AS entry_date
		 FROM journal_lines l
		 JOIN journal_entries e ON e.id = l.entry_id
		 WHERE l.account_id = ? AND e.date <= ?`)
	if from != nil {
		query.WriteString(` AND e.date >= ?`)
		args = append(args, *from)
	}
	query.WriteString(` ORDER BY e.date, l.entry_id, l.line_no`)

	var rows []lineRow
	if err := db.WithContext(ctx).Raw(query.String(), args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LineRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.LineRow{
			Debit:     amountOf(row.Debit),
			Credit:    amountOf(row.Credit),
			EntryDate: row.EntryDate,
		})
	}
	return out, nil
}

type accountSum struct {
	AccountID snowflake.ID
	Debit     decimal.NullDecimal
	Credit    decimal.NullDecimal
}

func (r *repo) SumByAccount(ctx context.Context, db *gorm.DB, companyID snowflake.ID, from *time.Time, to time.Time) ([]domain.Totals, error) {
	exact := !floatAggregates(db)
	var query strings.Builder
	args := []any{companyID, to}
	if exact {
		query.WriteString(`SELECT l.account_id AS account_id,
		 COALESCE(SUM(l.debit), 0) AS debit,
		 COALESCE(SUM(l.credit), 0) AS credit`)
	} else {
		query.WriteString(`SELECT l.account_id AS account_id, l.debit AS debit, l.credit AS credit`)
	}
	query.WriteString(`
		 FROM journal_lines l
		 JOIN journal_entries e ON e.id = l.entry_id
		 WHERE e.company_id = ? AND e.date <= ?`)
	if from != nil {
		query.WriteString(` AND e.date >= ?`)
		args = append(args, *from)
	}
	if exact {
		query.WriteString(` GROUP BY l.account_id`)
	}

	var rows []accountSum
	if err := db.WithContext(ctx).Raw(query.String(), args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.Totals, 0, len(rows))
	index := make(map[snowflake.ID]int, len(rows))
	for _, row := range rows {
		i, ok := index[row.AccountID]
		if !ok {
			i = len(out)
			index[row.AccountID] = i
			out = append(out, domain.Totals{AccountID: row.AccountID})
		}
		out[i].Debit = out[i].Debit.Add(amountOf(row.Debit))
		out[i].Credit = out[i].Credit.Add(amountOf(row.Credit))
	}
	return out, nil
}

// floatAggregates reports whether SUM over money columns would run in binary
// floating point. sqlite stores numeric(15,2) with REAL affinity, so lines are
// read one by one and added as decimals instead.
func floatAggregates(db *gorm.DB) bool {
	return db != nil && db.Dialector != nil && db.Dialector.Name() == "sqlite"
}
