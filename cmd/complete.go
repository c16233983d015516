package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seiji-watch/diet-tracker/internal/airtable"
	"github.com/seiji-watch/diet-tracker/internal/complete"
)

func newCompleteCmd() *cobra.Command {
	var (
		table  string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Fill empty fields in an Airtable table with heuristic fixes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(table, dryRun)
		},
	}
	cmd.Flags().StringVar(&table, "table", defaultAirtableTable, "Airtable table name")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log planned fixes without writing")
	return cmd
}

func runComplete(table string, dryRun bool) error {
	logger := initLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := airtable.New(cfg.AirtableAPIKey, cfg.AirtableBaseID, logger,
		airtable.WithRate(cfg.AirtableRate))
	if err != nil {
		return fmt.Errorf("creating Airtable client: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := complete.New(client, table, dryRun, logger)
	report, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("running completeness pass: %w", err)
	}

	logger.Info("completeness pass finished",
		"scanned", report.Scanned,
		"updated", report.Updated,
		"failed", report.Failed,
		"dry_run", report.DryRun,
	)
	for field, n := range report.FieldFixes {
		logger.Info("field fixes", "field", field, "count", n)
	}
	return nil
}
