package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	ReportBalanceSheet    = "balance_sheet"
	ReportIncomeStatement = "income_statement"
	ReportTrialBalance    = "trial_balance"
	ReportDashboard       = "dashboard"
)

const DateLayout = "2006-01-02"

// Service builds financial statements. Nil dates fall back to defaults
// derived from the current day.
type Service interface {
	BalanceSheet(ctx context.Context, companyID snowflake.ID, asOf *time.Time) (*BalanceSheet, error)
	IncomeStatement(ctx context.Context, companyID snowflake.ID, start, end *time.Time) (*IncomeStatement, error)
	TrialBalance(ctx context.Context, companyID snowflake.ID, asOf *time.Time) (*TrialBalance, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
}

var (
	ErrCompanyNotFound = errors.New("company_not_found")
	ErrInvalidPeriod   = errors.New("invalid_period")
)
