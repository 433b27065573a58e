package report

import (
	"github.com/smallbiznis/bookkeeper/internal/report/render"
	"github.com/smallbiznis/bookkeeper/internal/report/service"
	"go.uber.org/fx"
)

var Module = fx.Module("report.service",
	fx.Provide(service.NewService),
	fx.Provide(render.New),
)
