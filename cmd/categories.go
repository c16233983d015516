package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seiji-watch/diet-tracker/internal/airtable"
	"github.com/seiji-watch/diet-tracker/internal/store"
	"github.com/seiji-watch/diet-tracker/internal/taxonomy"
)

func newSyncCategoriesCmd() *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "sync-categories",
		Short: "Sync the CAP policy category taxonomy from Airtable into Postgres",
		Long: `sync-categories copies the editorial category table into the
policy_categories table, L1 major topics first so L2 sub-topics can
resolve their parents. Run it before the first classify run and after
editors change the taxonomy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncCategories(table)
		},
	}
	cmd.Flags().StringVar(&table, "table", taxonomy.DefaultTable, "Airtable category table name")
	return cmd
}

func runSyncCategories(table string) error {
	logger := initLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err = cfg.ValidateIngest(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	client, err := airtable.New(cfg.AirtableAPIKey, cfg.AirtableBaseID, logger,
		airtable.WithRate(cfg.AirtableRate))
	if err != nil {
		return fmt.Errorf("creating Airtable client: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	syncer := taxonomy.New(client, store.NewCategoryStore(pool, logger), table, logger)
	report, err := syncer.Run(ctx)
	if err != nil {
		return fmt.Errorf("syncing categories: %w", err)
	}

	logger.Info("category sync finished",
		"scanned", report.Scanned,
		"l1", report.L1,
		"l2", report.L2,
		"skipped", report.Skipped,
	)
	return nil
}
