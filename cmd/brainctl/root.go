package main

import (
	"fmt"

	"secondbrain-be/internal/bootstrap"
	"secondbrain-be/internal/config"
	"secondbrain-be/pkg/database"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "brainctl",
	Short: "Operate the second brain index from the terminal",
	Long: `brainctl runs maintenance and search against the same database and
providers the API uses. Configuration comes from the environment or .env.

Example usage:
  brainctl backfill --limit 500      # embed up to 500 pending segments
  brainctl search "postgres vacuum"  # hybrid search over segments
  brainctl search --documents "rrf"  # document-level search`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// buildContainer connects to the database and wires the services without
// starting any background consumer.
func buildContainer() (*bootstrap.Container, error) {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, true)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return bootstrap.NewContainer(db, cfg)
}
