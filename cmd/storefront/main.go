package main

import (
	"fmt"
	"os"

	"github.com/example/storefront/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront data service",
	Long: `Storefront persists users, organizations, products, images, sales and carts
and exposes them through an HTTP admin site.

Commands:
  serve    - Run the admin gateway and gRPC health service
  migrate  - Create or update the database schema
  health   - Query the health of registered instances`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml",
		"Path to the YAML config file (empty for defaults and environment only)")
	rootCmd.AddCommand(serveCmd, migrateCmd, healthCmd)
}

// setup loads the config and builds the process logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := cfg.Log.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
