package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const DefaultCurrency = "USD"

// Company is a tenant. It owns its accounts and journal entries.
type Company struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"type:text;not null" json:"name"`
	Code            string       `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`
	FiscalYearStart time.Time    `gorm:"type:date;not null" json:"fiscal_year_start"`
	Currency        string       `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Company) TableName() string { return "companies" }
