package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// ParseAccountType normalizes raw and reports whether it names a known type.
func ParseAccountType(raw string) (AccountType, bool) {
	t := AccountType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return t, true
	default:
		return "", false
	}
}

// Account is a chart-of-accounts entry owned by one company.
type Account struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_accounts_company_code,priority:1" json:"company_id"`
	Code      string        `gorm:"type:varchar(50);not null;uniqueIndex:ux_accounts_company_code,priority:2" json:"code"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	Type      AccountType   `gorm:"type:text;not null" json:"type"`
	ParentID  *snowflake.ID `gorm:"index" json:"parent_id"`
	IsActive  bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }
