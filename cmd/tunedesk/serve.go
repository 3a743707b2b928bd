package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tunedesk/internal/clock"
	"github.com/smallbiznis/tunedesk/internal/config"
	"github.com/smallbiznis/tunedesk/internal/migration"
	"github.com/smallbiznis/tunedesk/internal/observability"
	"github.com/smallbiznis/tunedesk/internal/scheduler"
	"github.com/smallbiznis/tunedesk/internal/server"
	"github.com/smallbiznis/tunedesk/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				fx.Provide(clock.System),
				db.Module,
				migration.Module,
				server.Module,
				scheduler.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
