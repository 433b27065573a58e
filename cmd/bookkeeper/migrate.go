package main

import (
	"context"

	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/migration"
	"github.com/smallbiznis/bookkeeper/internal/observability"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
				fx.NopLogger,
			)
			return runOnce(cmd.Context(), app)
		},
	}
}

// runOnce starts and stops app, surfacing errors from either phase.
func runOnce(ctx context.Context, app *fx.App) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}
