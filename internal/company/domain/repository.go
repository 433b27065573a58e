package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, company *Company) error
	Update(ctx context.Context, db *gorm.DB, company *Company) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Company, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Company, error)
	List(ctx context.Context, db *gorm.DB, offset, limit int) ([]*Company, error)
}
