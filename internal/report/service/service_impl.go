package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	companydomain "github.com/smallbiznis/bookkeeper/internal/company/domain"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/bookkeeper/internal/observability/metrics"
	"github.com/smallbiznis/bookkeeper/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	CompanySvc companydomain.Service
	AccountSvc accountdomain.Service
	LedgerSvc  ledgerdomain.Service
	Clock      clock.Clock `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	companySvc companydomain.Service
	accountSvc accountdomain.Service
	ledgerSvc  ledgerdomain.Service
	clock      clock.Clock
	metrics    *obsmetrics.LedgerMetrics
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		log:        p.Log.Named("report.service"),
		companySvc: p.CompanySvc,
		accountSvc: p.AccountSvc,
		ledgerSvc:  p.LedgerSvc,
		clock:      clk,
		metrics:    obsmetrics.Ledger(),
	}
}

func (s *Service) BalanceSheet(ctx context.Context, companyID snowflake.ID, asOf *time.Time) (*domain.BalanceSheet, error) {
	defer s.observe(domain.ReportBalanceSheet, time.Now())

	company, accounts, err := s.load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	date := s.dateOrToday(asOf)
	totals, err := s.ledgerSvc.BalancesAsOf(ctx, companyID, date)
	if err != nil {
		return nil, err
	}

	assets := newSection()
	liabilities := newSection()
	equity := newSection()
	for _, account := range accounts {
		balance := totals[account.ID].Balance()
		if balance.IsZero() {
			continue
		}
		switch account.Type {
		case accountdomain.AccountTypeAsset:
			assets.add(account, balance)
		case accountdomain.AccountTypeLiability:
			liabilities.add(account, balance.Abs())
		case accountdomain.AccountTypeEquity:
			equity.add(account, balance.Abs())
		}
	}

	return &domain.BalanceSheet{
		Company:                   company.Name,
		Currency:                  company.Currency,
		AsOfDate:                  date.Format(domain.DateLayout),
		Assets:                    assets.section(),
		Liabilities:               liabilities.section(),
		Equity:                    equity.section(),
		TotalLiabilitiesAndEquity: domain.NewAmount(liabilities.total.Add(equity.total)),
	}, nil
}

func (s *Service) IncomeStatement(ctx context.Context, companyID snowflake.ID, start, end *time.Time) (*domain.IncomeStatement, error) {
	defer s.observe(domain.ReportIncomeStatement, time.Now())

	endDate := s.dateOrToday(end)
	today := clock.Today(s.clock)
	startDate := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	if start != nil && !start.IsZero() {
		startDate = ledgerdomain.DateOnly(*start)
	}
	if startDate.After(endDate) {
		return nil, domain.ErrInvalidPeriod
	}

	company, accounts, err := s.load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	totals, err := s.ledgerSvc.ActivityByAccount(ctx, companyID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	revenue := newSection()
	expenses := newSection()
	for _, account := range accounts {
		activity := totals[account.ID].Activity()
		if activity.IsZero() {
			continue
		}
		switch account.Type {
		case accountdomain.AccountTypeRevenue:
			revenue.addRow(account, activity.Abs(), activity)
		case accountdomain.AccountTypeExpense:
			expenses.add(account, activity.Abs())
		}
	}

	return &domain.IncomeStatement{
		Company:   company.Name,
		Currency:  company.Currency,
		Period:    startDate.Format(domain.DateLayout) + " to " + endDate.Format(domain.DateLayout),
		Revenue:   revenue.section(),
		Expenses:  expenses.section(),
		NetIncome: domain.NewAmount(revenue.total.Sub(expenses.total)),
	}, nil
}

func (s *Service) TrialBalance(ctx context.Context, companyID snowflake.ID, asOf *time.Time) (*domain.TrialBalance, error) {
	defer s.observe(domain.ReportTrialBalance, time.Now())

	company, accounts, err := s.load(ctx, companyID)
	if err != nil {
		return nil, err
	}
	date := s.dateOrToday(asOf)
	totals, err := s.ledgerSvc.BalancesAsOf(ctx, companyID, date)
	if err != nil {
		return nil, err
	}

	report := &domain.TrialBalance{
		Company:  company.Name,
		Currency: company.Currency,
		AsOfDate: date.Format(domain.DateLayout),
		Accounts: []domain.TrialBalanceLine{},
	}
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, account := range accounts {
		balance := totals[account.ID].Balance()
		if balance.IsZero() {
			continue
		}
		line := domain.TrialBalanceLine{
			Code:   account.Code,
			Name:   account.Name,
			Type:   string(account.Type),
			Debit:  domain.NewAmount(decimal.Zero),
			Credit: domain.NewAmount(decimal.Zero),
		}
		if balance.IsPositive() {
			line.Debit = domain.NewAmount(balance)
			totalDebit = totalDebit.Add(balance)
		} else {
			line.Credit = domain.NewAmount(balance.Abs())
			totalCredit = totalCredit.Add(balance.Abs())
		}
		report.Accounts = append(report.Accounts, line)
	}
	report.TotalDebit = domain.NewAmount(totalDebit)
	report.TotalCredit = domain.NewAmount(totalCredit)

	if !totalDebit.Equal(totalCredit) {
		s.log.Error("trial balance out of balance",
			zap.String("company_id", companyID.String()),
			zap.String("total_debit", totalDebit.StringFixed(2)),
			zap.String("total_credit", totalCredit.StringFixed(2)),
		)
	}
	return report, nil
}

// Dashboard sums every company's position as of today and its revenue and
// expenses from the first of the current month through today.
func (s *Service) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	defer s.observe(domain.ReportDashboard, time.Now())

	companies, err := s.companySvc.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	today := clock.Today(s.clock)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	totalAssets := decimal.Zero
	totalLiabilities := decimal.Zero
	netIncome := decimal.Zero
	dashboard := &domain.Dashboard{Companies: make([]domain.DashboardCompany, 0, len(companies))}

	for _, company := range companies {
		accounts, err := s.accountSvc.ListByCompany(ctx, company.ID)
		if err != nil {
			return nil, err
		}
		balances, err := s.ledgerSvc.BalancesAsOf(ctx, company.ID, today)
		if err != nil {
			return nil, err
		}
		activity, err := s.ledgerSvc.ActivityByAccount(ctx, company.ID, monthStart, today)
		if err != nil {
			return nil, err
		}

		assets := decimal.Zero
		liabilities := decimal.Zero
		equity := decimal.Zero
		revenue := decimal.Zero
		expenses := decimal.Zero
		for _, account := range accounts {
			switch account.Type {
			case accountdomain.AccountTypeAsset:
				assets = assets.Add(balances[account.ID].Balance())
			case accountdomain.AccountTypeLiability:
				liabilities = liabilities.Add(balances[account.ID].Balance().Abs())
			case accountdomain.AccountTypeEquity:
				equity = equity.Add(balances[account.ID].Balance().Abs())
			case accountdomain.AccountTypeRevenue:
				revenue = revenue.Add(activity[account.ID].Activity())
			case accountdomain.AccountTypeExpense:
				expenses = expenses.Add(activity[account.ID].Balance())
			}
		}

		companyNet := revenue.Sub(expenses)
		totalAssets = totalAssets.Add(assets)
		totalLiabilities = totalLiabilities.Add(liabilities)
		netIncome = netIncome.Add(companyNet)

		dashboard.Companies = append(dashboard.Companies, domain.DashboardCompany{
			ID:          company.ID,
			Name:        company.Name,
			Assets:      domain.NewAmount(assets),
			Liabilities: domain.NewAmount(liabilities),
			Equity:      domain.NewAmount(equity),
			Revenue:     domain.NewAmount(revenue),
			Expenses:    domain.NewAmount(expenses),
			NetIncome:   domain.NewAmount(companyNet),
		})
	}

	dashboard.TotalAssets = domain.NewAmount(totalAssets)
	dashboard.TotalLiabilities = domain.NewAmount(totalLiabilities)
	dashboard.NetIncome = domain.NewAmount(netIncome)
	return dashboard, nil
}

func (s *Service) load(ctx context.Context, companyID snowflake.ID) (*companydomain.Company, []accountdomain.Account, error) {
	company, err := s.companySvc.GetByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, companydomain.ErrNotFound) {
			return nil, nil, domain.ErrCompanyNotFound
		}
		return nil, nil, err
	}
	accounts, err := s.accountSvc.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}
	return company, accounts, nil
}

func (s *Service) dateOrToday(value *time.Time) time.Time {
	if value == nil || value.IsZero() {
		return clock.Today(s.clock)
	}
	return ledgerdomain.DateOnly(*value)
}

func (s *Service) observe(report string, started time.Time) {
	s.metrics.ObserveReport(report, time.Since(started))
}

type sectionBuilder struct {
	rows  []domain.AccountLine
	total decimal.Decimal
}

func newSection() *sectionBuilder {
	return &sectionBuilder{rows: []domain.AccountLine{}, total: decimal.Zero}
}

func (b *sectionBuilder) add(account accountdomain.Account, amount decimal.Decimal) {
	b.addRow(account, amount, amount)
}

// addRow appends a row showing shown while adding contribution to the total.
func (b *sectionBuilder) addRow(account accountdomain.Account, shown, contribution decimal.Decimal) {
	b.rows = append(b.rows, domain.AccountLine{
		Code:    account.Code,
		Name:    account.Name,
		Balance: domain.NewAmount(shown),
	})
	b.total = b.total.Add(contribution)
}

func (b *sectionBuilder) section() domain.Section {
	return domain.Section{Accounts: b.rows, Total: domain.NewAmount(b.total)}
}
