package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seiji-watch/diet-tracker/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func runMigrate() error {
	logger := initLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err = cfg.ValidateIngest(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err = db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
