package authorization

import (
	"context"
	"errors"
)

type Service interface {
	Authorize(ctx context.Context, actor string, object string, action string) error
}

var (
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidActor    = errors.New("invalid_actor")
	ErrInvalidObject   = errors.New("invalid_object")
	ErrInvalidAction   = errors.New("invalid_action")
	ErrInactiveAccount = errors.New("inactive_user")
)

// SystemActor is the subject used by bootstrap and seed jobs.
const SystemActor = "system"

// UserActor formats the casbin subject for a user id.
func UserActor(id string) string {
	return "user:" + id
}
