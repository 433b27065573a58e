package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	accountrepo "github.com/smallbiznis/bookkeeper/internal/account/repository"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	auditrepo "github.com/smallbiznis/bookkeeper/internal/audit/repository"
	auditservice "github.com/smallbiznis/bookkeeper/internal/audit/service"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	companydomain "github.com/smallbiznis/bookkeeper/internal/company/domain"
	companyrepo "github.com/smallbiznis/bookkeeper/internal/company/repository"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	"github.com/smallbiznis/bookkeeper/internal/ledger/repository"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      ledgerdomain.Service
	auditSvc auditdomain.Service
	company  companydomain.Company
	accounts map[string]accountdomain.Account
}

var testToday = time.Date(2024, time.March, 20, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, nil)
}

func newFixtureWithRepo(t *testing.T, wrap func(ledgerdomain.Repository) ledgerdomain.Repository) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&companydomain.Company{},
		&accountdomain.Account{},
		&ledgerdomain.JournalEntry{},
		&ledgerdomain.JournalLine{},
		&auditdomain.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	repo := repository.Provide()
	if wrap != nil {
		repo = wrap(repo)
	}
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	f := &fixture{
		db:       conn,
		node:     node,
		auditSvc: auditSvc,
		accounts: map[string]accountdomain.Account{},
		svc: NewService(Params{
			DB:       conn,
			Log:      zap.NewNop(),
			GenID:    node,
			Repo:     repo,
			Clock:    clock.NewFakeClock(testToday),
			AuditSvc: auditSvc,
		}),
	}
	f.company = f.createCompany(t, "Acme Corporation", "A1")
	for _, acc := range []struct {
		code, name string
		typ        accountdomain.AccountType
	}{
		{"1010", "Cash", accountdomain.AccountTypeAsset},
		{"1200", "Accounts Receivable", accountdomain.AccountTypeAsset},
		{"4100", "Sales Revenue", accountdomain.AccountTypeRevenue},
		{"5100", "Operating Expenses", accountdomain.AccountTypeExpense},
	} {
		f.accounts[acc.code] = f.createAccount(t, f.company.ID, acc.code, acc.name, acc.typ)
	}
	return f
}

func (f *fixture) createCompany(t *testing.T, name, code string) companydomain.Company {
	t.Helper()
	company := companydomain.Company{
		ID:              f.node.Generate(),
		Name:            name,
		Code:            code,
		FiscalYearStart: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Currency:        "USD",
		CreatedAt:       testToday,
		UpdatedAt:       testToday,
	}
	if err := companyrepo.Provide().Insert(context.Background(), f.db, &company); err != nil {
		t.Fatalf("insert company: %v", err)
	}
	return company
}

func (f *fixture) createAccount(t *testing.T, companyID snowflake.ID, code, name string, typ accountdomain.AccountType) accountdomain.Account {
	t.Helper()
	account := accountdomain.Account{
		ID:        f.node.Generate(),
		CompanyID: companyID,
		Code:      code,
		Name:      name,
		Type:      typ,
		IsActive:  true,
		CreatedAt: testToday,
		UpdatedAt: testToday,
	}
	if err := accountrepo.Provide().Insert(context.Background(), f.db, &account); err != nil {
		t.Fatalf("insert account: %v", err)
	}
	return account
}

func (f *fixture) draft(date time.Time, description string, lines ...ledgerdomain.LineDraft) ledgerdomain.EntryDraft {
	return ledgerdomain.EntryDraft{
		CompanyID:   f.company.ID,
		Date:        date,
		Description: description,
		Lines:       lines,
	}
}

func debit(accountID snowflake.ID, amount string) ledgerdomain.LineDraft {
	return ledgerdomain.LineDraft{AccountID: accountID, Debit: decimal.RequireFromString(amount), Credit: decimal.Zero}
}

func credit(accountID snowflake.ID, amount string) ledgerdomain.LineDraft {
	return ledgerdomain.LineDraft{AccountID: accountID, Debit: decimal.Zero, Credit: decimal.RequireFromString(amount)}
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !decimal.RequireFromString(want).Equal(got) {
		t.Fatalf("expected %s, got %s", want, got.String())
	}
}

func requireDate(t *testing.T, want, got time.Time) {
	t.Helper()
	if !want.Equal(got) {
		t.Fatalf("expected date %s, got %s", want.Format(time.RFC3339), got.Format(time.RFC3339))
	}
}

func TestCreateEntryPostsBalancedEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.accounts["1010"].ID
	revenue := f.accounts["4100"].ID

	ref := "INV-001"
	draft := f.draft(day(5), "Sales revenue", debit(cash, "15000.00"), credit(revenue, "15000.00"))
	draft.Reference = &ref

	entry, err := f.svc.CreateEntry(ctx, draft)
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, 1, entry.Lines[0].LineNo)
	requireDate(t, day(5), entry.Date)

	stored, err := f.svc.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	debitTotal, creditTotal := ledgerdomain.SumLines(stored.Lines)
	requireAmount(t, "15000", debitTotal)
	requireAmount(t, "15000", creditTotal)
	require.NotNil(t, stored.Reference)
	require.Equal(t, "INV-001", *stored.Reference)

	cashBalance, err := f.svc.BalanceAsOf(ctx, cash, day(31))
	require.NoError(t, err)
	requireAmount(t, "15000", cashBalance)

	revenueBalance, err := f.svc.BalanceAsOf(ctx, revenue, day(31))
	require.NoError(t, err)
	requireAmount(t, "-15000", revenueBalance)

	activity, err := f.svc.ActivityInPeriod(ctx, revenue, day(1), day(31))
	require.NoError(t, err)
	requireAmount(t, "15000", activity)

	before, err := f.svc.BalanceAsOf(ctx, cash, day(4))
	require.NoError(t, err)
	requireAmount(t, "0", before)

	logs, err := f.auditSvc.List(ctx, auditdomain.ListAuditLogRequest{CompanyID: &f.company.ID, Action: "journal_entry.created"})
	require.NoError(t, err)
	require.Len(t, logs.AuditLogs, 1)
}

func TestCreateEntryValidationOrder(t *testing.T) {
	f := newFixture(t)
	cash := f.accounts["1010"].ID
	revenue := f.accounts["4100"].ID

	cases := []struct {
		name    string
		lines   []ledgerdomain.LineDraft
		code    string
		message string
	}{
		{
			name:    "negative amount",
			lines:   []ledgerdomain.LineDraft{debit(cash, "-5"), credit(revenue, "5")},
			code:    ledgerdomain.CodeNegativeAmount,
			message: "Amount must be non-negative",
		},
		{
			name: "both sides set",
			lines: []ledgerdomain.LineDraft{
				{AccountID: cash, Debit: decimal.NewFromInt(10), Credit: decimal.NewFromInt(10)},
				credit(revenue, "10"),
			},
			code:    ledgerdomain.CodeInvalidLineSide,
			message: "Either debit or credit must be non-zero, but not both",
		},
		{
			name: "neither side set",
			lines: []ledgerdomain.LineDraft{
				{AccountID: cash, Debit: decimal.Zero, Credit: decimal.Zero},
				credit(revenue, "10"),
			},
			code:    ledgerdomain.CodeInvalidLineSide,
			message: "Either debit or credit must be non-zero, but not both",
		},
		{
			name:    "single line",
			lines:   []ledgerdomain.LineDraft{debit(cash, "10")},
			code:    ledgerdomain.CodeTooFewLines,
			message: "Entry must have at least 2 lines",
		},
		{
			name:    "unbalanced",
			lines:   []ledgerdomain.LineDraft{debit(cash, "100"), credit(revenue, "90")},
			code:    ledgerdomain.CodeUnbalanced,
			message: "Entry must be balanced. Debit: 100.00, Credit: 90.00",
		},
		{
			name:  "sub-cent precision",
			lines: []ledgerdomain.LineDraft{debit(cash, "10.005"), credit(revenue, "10.005")},
			code:  ledgerdomain.CodeInvalidPrecision,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateEntry(context.Background(), f.draft(day(5), "test", tc.lines...))
			var vErr *ledgerdomain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			require.Equal(t, tc.code, vErr.Code)
			if tc.message != "" {
				require.Equal(t, tc.message, vErr.Message)
			}
		})
	}

	entries, err := f.svc.ListEntries(context.Background(), ledgerdomain.ListEntriesRequest{CompanyID: &f.company.ID})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCreateEntryRejectsMissingFields(t *testing.T) {
	f := newFixture(t)
	cash := f.accounts["1010"].ID
	revenue := f.accounts["4100"].ID

	_, err := f.svc.CreateEntry(context.Background(), f.draft(day(5), "  ", debit(cash, "1"), credit(revenue, "1")))
	require.ErrorIs(t, err, ledgerdomain.ErrInvalidDescription)

	_, err = f.svc.CreateEntry(context.Background(), f.draft(time.Time{}, "x", debit(cash, "1"), credit(revenue, "1")))
	require.ErrorIs(t, err, ledgerdomain.ErrInvalidDate)

	_, err = f.svc.CreateEntry(context.Background(), f.draft(day(5), "x", debit(0, "1"), credit(revenue, "1")))
	require.ErrorIs(t, err, ledgerdomain.ErrInvalidAccount)
}

func TestCreateEntryRejectsForeignAccount(t *testing.T) {
	f := newFixture(t)
	other := f.createCompany(t, "Tech Startup Inc", "T1")
	foreign := f.createAccount(t, other.ID, "1010", "Cash", accountdomain.AccountTypeAsset)

	_, err := f.svc.CreateEntry(context.Background(), f.draft(day(5), "cross company",
		debit(foreign.ID, "50"),
		credit(f.accounts["4100"].ID, "50"),
	))
	require.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)

	_, err = f.svc.CreateEntry(context.Background(), f.draft(day(5), "unknown account",
		debit(snowflake.ID(123456789), "50"),
		credit(f.accounts["4100"].ID, "50"),
	))
	require.ErrorIs(t, err, ledgerdomain.ErrAccountNotFound)

	var lines int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM journal_lines`).Scan(&lines).Error)
	require.Zero(t, lines)
}

func TestCreateEntryAllowsRepeatedAccount(t *testing.T) {
	f := newFixture(t)
	cash := f.accounts["1010"].ID
	revenue := f.accounts["4100"].ID

	entry, err := f.svc.CreateEntry(context.Background(), f.draft(day(6), "split sale",
		debit(cash, "40.50"),
		debit(cash, "59.50"),
		credit(revenue, "100"),
	))
	require.NoError(t, err)
	require.Len(t, entry.Lines, 3)

	balance, err := f.svc.BalanceAsOf(context.Background(), cash, day(6))
	require.NoError(t, err)
	requireAmount(t, "100", balance)
}

func TestCreateEntryUnknownCompany(t *testing.T) {
	f := newFixture(t)
	draft := f.draft(day(5), "ghost", debit(f.accounts["1010"].ID, "1"), credit(f.accounts["4100"].ID, "1"))
	draft.CompanyID = snowflake.ID(42)

	_, err := f.svc.CreateEntry(context.Background(), draft)
	require.ErrorIs(t, err, ledgerdomain.ErrCompanyNotFound)
}

type skewedRepo struct {
	ledgerdomain.Repository
}

func (r skewedRepo) SumLines(ctx context.Context, db *gorm.DB, entryID snowflake.ID) (ledgerdomain.Totals, int64, error) {
	totals, count, err := r.Repository.SumLines(ctx, db, entryID)
	totals.Credit = totals.Credit.Add(decimal.NewFromInt(1))
	return totals, count, err
}

func TestCreateEntryRollsBackOnConsistencyFailure(t *testing.T) {
	f := newFixtureWithRepo(t, func(repo ledgerdomain.Repository) ledgerdomain.Repository {
		return skewedRepo{Repository: repo}
	})

	_, err := f.svc.CreateEntry(context.Background(), f.draft(day(5), "skewed",
		debit(f.accounts["1010"].ID, "10"),
		credit(f.accounts["4100"].ID, "10"),
	))
	var cErr *ledgerdomain.ConsistencyError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected consistency error, got %v", err)
	}

	var entries int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM journal_entries`).Scan(&entries).Error)
	require.Zero(t, entries)
}

func TestBatchBalancesMatchPerAccountReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.accounts["1010"].ID
	receivable := f.accounts["1200"].ID
	revenue := f.accounts["4100"].ID
	expense := f.accounts["5100"].ID

	drafts := []ledgerdomain.EntryDraft{
		f.draft(day(5), "INV-001", debit(cash, "15000"), credit(revenue, "15000")),
		f.draft(day(10), "INV-002", debit(receivable, "25000"), credit(revenue, "25000")),
		f.draft(day(15), "EXP-001", debit(expense, "8500"), credit(cash, "8500")),
		f.draft(day(20), "EXP-002", debit(expense, "6500.25"), credit(cash, "6500.25")),
	}
	for _, d := range drafts {
		_, err := f.svc.CreateEntry(ctx, d)
		require.NoError(t, err)
	}

	for _, asOf := range []time.Time{day(4), day(10), day(17), day(31)} {
		batch, err := f.svc.BalancesAsOf(ctx, f.company.ID, asOf)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, account := range f.accounts {
			single, err := f.svc.BalanceAsOf(ctx, account.ID, asOf)
			require.NoError(t, err)
			got := batch[account.ID].Balance()
			if !single.Equal(got) {
				t.Fatalf("account %s as of %s: per-account %s, batch %s", account.Code, asOf.Format("2006-01-02"), single, got)
			}
			sum = sum.Add(single)
		}
		requireAmount(t, "0", sum)
	}

	cashBalance, err := f.svc.BalanceAsOf(ctx, cash, day(31))
	require.NoError(t, err)
	requireAmount(t, "-0.25", cashBalance)

	activity, err := f.svc.ActivityByAccount(ctx, f.company.ID, day(11), day(31))
	require.NoError(t, err)
	requireAmount(t, "-15000.25", activity[expense].Activity())
	_, ok := activity[revenue]
	require.False(t, ok)
}

func TestListEntriesOrderingAndPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.accounts["1010"].ID
	revenue := f.accounts["4100"].ID

	for _, d := range []int{3, 9, 6} {
		_, err := f.svc.CreateEntry(ctx, f.draft(day(d), "sale", debit(cash, "1"), credit(revenue, "1")))
		require.NoError(t, err)
	}

	entries, err := f.svc.ListEntries(ctx, ledgerdomain.ListEntriesRequest{CompanyID: &f.company.ID})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	requireDate(t, day(9), entries[0].Date)
	requireDate(t, day(6), entries[1].Date)
	requireDate(t, day(3), entries[2].Date)
	require.Len(t, entries[0].Lines, 2)

	page, err := f.svc.ListEntries(ctx, ledgerdomain.ListEntriesRequest{CompanyID: &f.company.ID, Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	requireDate(t, day(6), page[0].Date)
}

func TestDeleteEntryRemovesLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.CreateEntry(ctx, f.draft(day(5), "to delete",
		debit(f.accounts["1010"].ID, "10"),
		credit(f.accounts["4100"].ID, "10"),
	))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteEntry(ctx, entry.ID))

	_, err = f.svc.GetEntry(ctx, entry.ID)
	require.ErrorIs(t, err, ledgerdomain.ErrEntryNotFound)

	var lines int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM journal_lines WHERE entry_id = ?`, entry.ID).Scan(&lines).Error)
	require.Zero(t, lines)

	require.ErrorIs(t, f.svc.DeleteEntry(ctx, entry.ID), ledgerdomain.ErrEntryNotFound)
}

func TestBatchBalancesExactAtLargeMagnitudes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.accounts["1010"].ID
	revenue := f.accounts["4100"].ID

	for i := 0; i < 200; i++ {
		amount := "9999999999999.99"
		if i%2 == 1 {
			amount = "0.03"
		}
		_, err := f.svc.CreateEntry(ctx, f.draft(day(i%28+1), "bulk", debit(cash, amount), credit(revenue, amount)))
		require.NoError(t, err)
	}

	single, err := f.svc.BalanceAsOf(ctx, cash, day(31))
	require.NoError(t, err)
	requireAmount(t, "1000000000000002.00", single)

	batch, err := f.svc.BalancesAsOf(ctx, f.company.ID, day(31))
	require.NoError(t, err)
	requireAmount(t, "1000000000000002.00", batch[cash].Balance())
	requireAmount(t, "-1000000000000002.00", batch[revenue].Balance())

	activity, err := f.svc.ActivityByAccount(ctx, f.company.ID, day(1), day(31))
	require.NoError(t, err)
	requireAmount(t, "1000000000000002.00", activity[revenue].Activity())
}

func TestBalanceReplayMatchesIncrementalChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cash := f.accounts["1010"].ID
	receivable := f.accounts["1200"].ID
	revenue := f.accounts["4100"].ID
	expense := f.accounts["5100"].ID

	tracked := []snowflake.ID{cash, receivable, revenue, expense}
	running := map[snowflake.ID]decimal.Decimal{}
	for _, id := range tracked {
		running[id] = decimal.Zero
	}

	requireReplay := func(step string) {
		t.Helper()
		for _, id := range tracked {
			replayed, err := f.svc.BalanceAsOf(ctx, id, day(31))
			require.NoError(t, err)
			if !replayed.Equal(running[id]) {
				t.Fatalf("%s: account %d replayed %s, incremental %s", step, id, replayed, running[id])
			}
		}
	}
	apply := func(entry *ledgerdomain.JournalEntry, sign int64) {
		factor := decimal.NewFromInt(sign)
		for _, line := range entry.Lines {
			running[line.AccountID] = running[line.AccountID].Add(line.Debit.Sub(line.Credit).Mul(factor))
		}
	}

	drafts := []ledgerdomain.EntryDraft{
		f.draft(day(2), "cash sale", debit(cash, "1500.00"), credit(revenue, "1500.00")),
		f.draft(day(4), "invoice", debit(receivable, "820.45"), credit(revenue, "820.45")),
		f.draft(day(7), "rent", debit(expense, "600.10"), credit(cash, "600.10")),
		f.draft(day(9), "collection", debit(cash, "400.00"), credit(receivable, "400.00")),
		f.draft(day(12), "split", debit(expense, "50.05"), debit(receivable, "49.95"), credit(cash, "100.00")),
	}

	var posted []*ledgerdomain.JournalEntry
	for _, d := range drafts {
		entry, err := f.svc.CreateEntry(ctx, d)
		require.NoError(t, err)
		apply(entry, 1)
		posted = append(posted, entry)
		requireReplay("create " + d.Description)
	}

	for _, i := range []int{2, 0, 4} {
		require.NoError(t, f.svc.DeleteEntry(ctx, posted[i].ID))
		apply(posted[i], -1)
		requireReplay("delete " + posted[i].Description)
	}

	requireAmount(t, "400.00", running[cash])
	requireAmount(t, "420.45", running[receivable])
}
