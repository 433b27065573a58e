package seed

import (
	"context"

	"go.uber.org/fx"
)

// Module seeds the admin user (and sample data when configured) on start.
var Module = fx.Module("seed",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Seeder) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return s.Bootstrap(ctx, false)
			},
		})
	}),
)
