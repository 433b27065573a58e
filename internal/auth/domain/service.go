package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Authenticate(ctx context.Context, rawToken string) (*User, error)
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	EnsureAdmin(ctx context.Context, email, password string) (*User, bool, error)
}

// RegisterRequest creates a local user. The first registered user becomes
// admin, everyone after that starts as viewer.
type RegisterRequest struct {
	Email    string
	Password string
	FullName string
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
	User        *User     `json:"-"`
}
