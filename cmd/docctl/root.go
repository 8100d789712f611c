package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sme-docengine/internal/config"
	"sme-docengine/internal/database"
	"sme-docengine/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docctl",
	Short: "Operator CLI for the document engine",
	Long: `docctl runs maintenance tasks against the document database:
schema migration, user and token provisioning, numbering previews and
tenant summaries.

It reads the same environment (or .env file) as the server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Uint("tenant", 1, "Tenant (company) id")
}

// openDB loads config and connects without retrying; operators want a fast failure.
func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(database.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		LogLevel: cfg.GormLogLevel,
		Retries:  1,
		Wait:     time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return cfg, db, nil
}

func tenantFlag(cmd *cobra.Command) (uint, error) {
	tenant, err := cmd.Flags().GetUint("tenant")
	if err != nil {
		return 0, err
	}
	if tenant == 0 {
		return 0, fmt.Errorf("--tenant must be positive")
	}
	return tenant, nil
}
