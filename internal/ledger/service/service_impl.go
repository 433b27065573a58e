package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/bookkeeper/internal/observability/metrics"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/smallbiznis/bookkeeper/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       ledgerdomain.Repository
	Clock      clock.Clock         `optional:"true"`
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          ledgerdomain.Repository
	clock         clock.Clock
	auditSvc      auditdomain.Service
	obsMetrics    *obsmetrics.Metrics
	ledgerMetrics *obsmetrics.LedgerMetrics
}

func NewService(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("ledger.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		clock:         clk,
		auditSvc:      p.AuditSvc,
		obsMetrics:    p.ObsMetrics,
		ledgerMetrics: obsmetrics.Ledger(),
	}
}

// CreateEntry validates draft and persists the entry with its lines in one
// transaction. The stored lines are summed again before commit.
func (s *Service) CreateEntry(ctx context.Context, draft ledgerdomain.EntryDraft) (*ledgerdomain.JournalEntry, error) {
	started := time.Now()
	entry, err := s.createEntry(ctx, draft)
	s.ledgerMetrics.ObservePosting(err, len(draft.Lines), time.Since(started))
	if err != nil {
		var cErr *ledgerdomain.ConsistencyError
		if errors.As(err, &cErr) {
			s.log.Error("journal entry consistency failure",
				zap.String("company_id", draft.CompanyID.String()),
				zap.String("reason", cErr.Reason),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.obsMetrics.RecordJournalEntry(ctx, "api", len(entry.Lines))
	return entry, nil
}

func (s *Service) createEntry(ctx context.Context, draft ledgerdomain.EntryDraft) (*ledgerdomain.JournalEntry, error) {
	draft.Description = strings.TrimSpace(draft.Description)
	draft.Reference = normalizePointer(draft.Reference)
	if err := ledgerdomain.ValidateEntry(draft); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	entry := &ledgerdomain.JournalEntry{
		ID:          s.genID.Generate(),
		CompanyID:   draft.CompanyID,
		Date:        ledgerdomain.DateOnly(draft.Date),
		Description: draft.Description,
		Reference:   draft.Reference,
		CreatedBy:   draft.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	lines := make([]ledgerdomain.JournalLine, 0, len(draft.Lines))
	for i, line := range draft.Lines {
		lines = append(lines, ledgerdomain.JournalLine{
			ID:          s.genID.Generate(),
			EntryID:     entry.ID,
			LineNo:      i + 1,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: normalizePointer(line.Description),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.CompanyExists(ctx, tx, draft.CompanyID)
		if err != nil {
			return fmt.Errorf("lookup company: %w", err)
		}
		if !exists {
			return ledgerdomain.ErrCompanyNotFound
		}

		accountIDs := ledgerdomain.DistinctAccountIDs(draft.Lines)
		found, err := s.repo.CountAccounts(ctx, tx, draft.CompanyID, accountIDs)
		if err != nil {
			return fmt.Errorf("resolve accounts: %w", err)
		}
		if found != int64(len(accountIDs)) {
			return ledgerdomain.ErrAccountNotFound
		}

		if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
			return s.storeError(entry.ID, "insert entry", err)
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return s.storeError(entry.ID, "insert lines", err)
		}

		totals, count, err := s.repo.SumLines(ctx, tx, entry.ID)
		if err != nil {
			return fmt.Errorf("re-read lines: %w", err)
		}
		if count != int64(len(lines)) {
			return &ledgerdomain.ConsistencyError{
				EntryID: entry.ID,
				Reason:  fmt.Sprintf("stored %d lines, expected %d", count, len(lines)),
			}
		}
		if !totals.Debit.Equal(totals.Credit) {
			return &ledgerdomain.ConsistencyError{
				EntryID: entry.ID,
				Reason:  "stored lines unbalanced: " + ledgerdomain.UnbalancedMessage(totals.Debit, totals.Credit),
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	debit, _ := ledgerdomain.SumDrafts(draft.Lines)
	s.audit(ctx, entry.CompanyID, "journal_entry.created", entry.ID, map[string]any{
		"lines":     len(lines),
		"total":     debit.StringFixed(ledgerdomain.MoneyScale),
		"reference": derefString(entry.Reference),
	})

	entry.Lines = lines
	return entry, nil
}

// storeError turns constraint violations raised while writing an entry into
// consistency failures. Other store errors are wrapped unchanged.
func (s *Service) storeError(entryID snowflake.ID, op string, err error) error {
	if db.IsCheckViolationErr(err) || db.IsForeignKeyErr(err) || db.IsDuplicateKeyErr(err) {
		return &ledgerdomain.ConsistencyError{EntryID: entryID, Reason: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) GetEntry(ctx context.Context, id snowflake.ID) (*ledgerdomain.JournalEntry, error) {
	if id == 0 {
		return nil, ledgerdomain.ErrEntryNotFound
	}
	entry, err := s.repo.FindEntry(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ledgerdomain.ErrEntryNotFound
	}
	lines, err := s.repo.ListLines(ctx, s.db, []snowflake.ID{entry.ID})
	if err != nil {
		return nil, err
	}
	entry.Lines = lines
	return entry, nil
}

func (s *Service) ListEntries(ctx context.Context, req ledgerdomain.ListEntriesRequest) ([]ledgerdomain.JournalEntry, error) {
	page := pagination.Offset{Skip: req.Skip, Limit: req.Limit}.Clamp(ledgerdomain.DefaultListLimit, ledgerdomain.MaxListLimit)
	items, err := s.repo.ListEntries(ctx, s.db, ledgerdomain.ListEntryFilter{
		CompanyID: req.CompanyID,
		Offset:    page.Skip,
		Limit:     page.Limit,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []ledgerdomain.JournalEntry{}, nil
	}

	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	lines, err := s.repo.ListLines(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byEntry := make(map[snowflake.ID][]ledgerdomain.JournalLine, len(items))
	for _, line := range lines {
		byEntry[line.EntryID] = append(byEntry[line.EntryID], line)
	}

	entries := make([]ledgerdomain.JournalEntry, 0, len(items))
	for _, item := range items {
		entry := *item
		entry.Lines = byEntry[item.ID]
		if entry.Lines == nil {
			entry.Lines = []ledgerdomain.JournalLine{}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DeleteEntry removes an entry and its lines together.
func (s *Service) DeleteEntry(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return ledgerdomain.ErrEntryNotFound
	}
	var entry *ledgerdomain.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return ledgerdomain.ErrEntryNotFound
		}
		if _, err := s.repo.DeleteEntry(ctx, tx, id); err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		entry = found
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, entry.CompanyID, "journal_entry.deleted", entry.ID, map[string]any{
		"date":        entry.Date.Format("2006-01-02"),
		"description": entry.Description,
	})
	return nil
}

// audit runs after commit so a failed audit write never rolls back a posting.
func (s *Service) audit(ctx context.Context, companyID snowflake.ID, action string, entryID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, auditdomain.Event{
		CompanyID:  &companyID,
		Action:     action,
		TargetType: auditdomain.TargetJournalEntry,
		TargetID:   entryID.String(),
		Metadata:   metadata,
	}); err != nil {
		s.log.Warn("failed to write journal audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) BalanceAsOf(ctx context.Context, accountID snowflake.ID, asOf time.Time) (decimal.Decimal, error) {
	rows, err := s.repo.QueryLines(ctx, s.db, accountID, nil, ledgerdomain.DateOnly(asOf))
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, row := range rows {
		balance = balance.Add(row.Debit).Sub(row.Credit)
	}
	return balance, nil
}

func (s *Service) ActivityInPeriod(ctx context.Context, accountID snowflake.ID, start, end time.Time) (decimal.Decimal, error) {
	from := ledgerdomain.DateOnly(start)
	rows, err := s.repo.QueryLines(ctx, s.db, accountID, &from, ledgerdomain.DateOnly(end))
	if err != nil {
		return decimal.Zero, err
	}
	activity := decimal.Zero
	for _, row := range rows {
		activity = activity.Add(row.Credit).Sub(row.Debit)
	}
	return activity, nil
}

func (s *Service) BalancesAsOf(ctx context.Context, companyID snowflake.ID, asOf time.Time) (map[snowflake.ID]ledgerdomain.Totals, error) {
	rows, err := s.repo.SumByAccount(ctx, s.db, companyID, nil, ledgerdomain.DateOnly(asOf))
	if err != nil {
		return nil, err
	}
	return indexTotals(rows), nil
}

func (s *Service) ActivityByAccount(ctx context.Context, companyID snowflake.ID, start, end time.Time) (map[snowflake.ID]ledgerdomain.Totals, error) {
	from := ledgerdomain.DateOnly(start)
	rows, err := s.repo.SumByAccount(ctx, s.db, companyID, &from, ledgerdomain.DateOnly(end))
	if err != nil {
		return nil, err
	}
	return indexTotals(rows), nil
}

func indexTotals(rows []ledgerdomain.Totals) map[snowflake.ID]ledgerdomain.Totals {
	out := make(map[snowflake.ID]ledgerdomain.Totals, len(rows))
	for _, row := range rows {
		out[row.AccountID] = row
	}
	return out
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
