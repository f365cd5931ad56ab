package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pgxadapter "github.com/lborres/bantay/adapters/pgx"
	sqliteadapter "github.com/lborres/bantay/adapters/sqlite"
	"github.com/lborres/bantay/internal/config"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the auth tables of the configured SQL store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if err := runMigrations(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Store)
			return nil
		},
	}
}

func runMigrations(cfg config.AppConfig) error {
	switch cfg.Store {
	case config.StorePostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store", cfg.Store)
		}
		return pgxadapter.Migrate(cfg.DatabaseURL)
	case config.StoreSQLite:
		db, err := sqliteadapter.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		return sqliteadapter.Migrate(db)
	default:
		return fmt.Errorf("the %s store has no schema to migrate", cfg.Store)
	}
}
