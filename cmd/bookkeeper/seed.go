package main

import (
	"context"

	"github.com/smallbiznis/bookkeeper/internal/account"
	"github.com/smallbiznis/bookkeeper/internal/audit"
	"github.com/smallbiznis/bookkeeper/internal/auth"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/company"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/ledger"
	"github.com/smallbiznis/bookkeeper/internal/migration"
	"github.com/smallbiznis/bookkeeper/internal/observability"
	"github.com/smallbiznis/bookkeeper/internal/ratelimit"
	"github.com/smallbiznis/bookkeeper/internal/seed"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newSeedCommand() *cobra.Command {
	var sample bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap admin and optional sample data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				clock.Module,
				migration.Module,
				audit.Module,
				auth.Module,
				company.Module,
				account.Module,
				ledger.Module,
				ratelimit.Module,
				fx.Provide(seed.New),
				fx.Invoke(func(lc fx.Lifecycle, s *seed.Seeder) {
					lc.Append(fx.Hook{
						OnStart: func(ctx context.Context) error {
							return s.Bootstrap(ctx, sample)
						},
					})
				}),
				fx.NopLogger,
			)
			return runOnce(cmd.Context(), app)
		},
	}

	cmd.Flags().BoolVar(&sample, "sample", false, "also create the demo companies and journal entries")
	return cmd
}
