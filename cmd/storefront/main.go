package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	catalogrepo "github.com/smallbiznis/storefront/internal/catalog/repository"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/migration"
	"github.com/smallbiznis/storefront/internal/observability"
	"github.com/smallbiznis/storefront/internal/scheduler"
	"github.com/smallbiznis/storefront/internal/seed"
	"github.com/smallbiznis/storefront/internal/server"
	"github.com/smallbiznis/storefront/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "storefront",
		Short: "Digital product storefront",
	}
	root.AddCommand(serveCommand(), migrateCommand(), seedCommand())
	return root
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			app := fx.New(
				// Core Infrastructure
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				clock.Module,
				migration.Module,

				server.Module,
				scheduler.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			return runOnce(cmd.Context(), func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
				log.Info("applying migrations", zap.String("db_type", cfg.DBType))
				return migration.Migrate(conn, cfg.DBType)
			})
		},
	}
}

func seedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert products and assets from a catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			catalog, err := seed.LoadCatalog(file)
			if err != nil {
				return err
			}

			return runOnce(cmd.Context(), func(conn *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
				result, err := seed.Apply(cmd.Context(), conn, catalogrepo.Provide(), node, catalog, log)
				if err != nil {
					return err
				}
				log.Info("catalog seeded",
					zap.Int("products", result.Products),
					zap.Int("assets", result.Assets),
				)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "catalog.yml", "catalog file (yaml, json or toml)")
	return cmd
}

// runOnce builds the infrastructure graph, runs fn, and tears it down.
func runOnce(ctx context.Context, fn any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		fx.Invoke(fn),
		fx.NopLogger,
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
