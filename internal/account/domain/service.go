package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

type CreateAccountRequest struct {
	CompanyID snowflake.ID
	Code      string
	Name      string
	Type      string
	ParentID  *snowflake.ID
	IsActive  *bool
}

// UpdateAccountRequest replaces the editable fields of an account.
// CompanyID, when set, must match the stored company.
type UpdateAccountRequest struct {
	ID        snowflake.ID
	CompanyID snowflake.ID
	Code      string
	Name      string
	Type      string
	ParentID  *snowflake.ID
	IsActive  *bool
}

type ListAccountRequest struct {
	CompanyID snowflake.ID
	Type      string
	IsActive  *bool
	Skip      int
	Limit     int
}

type Service interface {
	Create(ctx context.Context, req CreateAccountRequest) (*Account, error)
	Update(ctx context.Context, req UpdateAccountRequest) (*Account, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
	List(ctx context.Context, req ListAccountRequest) ([]Account, error)
	// ListByCompany returns every account of a company ordered by code.
	ListByCompany(ctx context.Context, companyID snowflake.ID) ([]Account, error)
}

var (
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrInvalidCode     = errors.New("invalid_code")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidType     = errors.New("invalid_type")
	ErrCompanyMismatch = errors.New("invalid_company_change")
	ErrCompanyNotFound = errors.New("company_not_found")
	ErrCodeExists      = errors.New("account_code_exists")
	ErrParentNotFound  = errors.New("parent_account_not_found")
	ErrParentCycle     = errors.New("invalid_parent_cycle")
	ErrNotFound        = errors.New("account_not_found")
)
