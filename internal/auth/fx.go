package auth

import (
	"github.com/smallbiznis/bookkeeper/internal/auth/repository"
	"github.com/smallbiznis/bookkeeper/internal/auth/service"
	"github.com/smallbiznis/bookkeeper/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.Provide),
	fx.Provide(token.NewIssuer),
	fx.Provide(service.New),
)
