package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

type CreateCompanyRequest struct {
	Name            string
	Code            string
	FiscalYearStart *time.Time
	Currency        string
	// ChartTemplate names a chart.yml template whose accounts are created
	// together with the company.
	ChartTemplate string
}

type UpdateCompanyRequest struct {
	ID              snowflake.ID
	Name            *string
	Currency        *string
	FiscalYearStart *time.Time
}

type ListCompanyRequest struct {
	Skip  int
	Limit int
}

type Service interface {
	Create(ctx context.Context, req CreateCompanyRequest) (*Company, error)
	Update(ctx context.Context, req UpdateCompanyRequest) (*Company, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Company, error)
	List(ctx context.Context, req ListCompanyRequest) ([]Company, error)
	// ListAll returns every company ordered by id.
	ListAll(ctx context.Context) ([]Company, error)
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidChartTemplate = errors.New("invalid_chart_template")
	ErrCodeExists           = errors.New("company_code_exists")
	ErrNotFound             = errors.New("company_not_found")
)
