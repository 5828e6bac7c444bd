package main

import (
	"context"

	"github.com/example/storefront/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedStatuses bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create or update every table, join tables included.

Examples:
  storefront migrate                   # Migrate the configured database
  storefront migrate --seed-statuses   # Also create one row per product status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&seedStatuses, "seed-statuses", false, "Create missing product status rows")
}

func runMigrate(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.Open(&cfg.Database, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("Schema migrated", zap.String("driver", cfg.Database.Driver))

	if seedStatuses {
		if err := st.EnsureStatuses(ctx); err != nil {
			return err
		}
		logger.Info("Product statuses seeded")
	}
	return nil
}
