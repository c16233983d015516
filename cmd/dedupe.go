package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seiji-watch/diet-tracker/internal/airtable"
	"github.com/seiji-watch/diet-tracker/internal/complete"
	"github.com/seiji-watch/diet-tracker/internal/dedupe"
)

const defaultAirtableTable = "Bills (法案)"

func newDedupeCmd() *cobra.Command {
	var (
		table     string
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Report redundant and near-duplicate records in an Airtable table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDedupe(table, threshold)
		},
	}
	cmd.Flags().StringVar(&table, "table", defaultAirtableTable, "Airtable table name")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.8, "name similarity threshold for grouping (0..1)")
	return cmd
}

func runDedupe(table string, threshold float64) error {
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

	records, err := client.List(ctx, table)
	if err != nil {
		return fmt.Errorf("listing %q: %w", table, err)
	}

	input := make([]dedupe.Record, 0, len(records))
	for _, rec := range records {
		name, _ := rec.Fields[complete.FieldName].(string)
		if name == "" {
			continue
		}
		input = append(input, dedupe.Record{ID: rec.ID, Name: name})
	}

	matches := dedupe.Classify(input)
	groups := dedupe.GroupNearDuplicates(input, threshold)

	fmt.Printf("Scanned %d records in %q\n\n", len(input), table)

	fmt.Printf("Pattern matches: %d\n", len(matches))
	for _, m := range matches {
		fmt.Printf("  [%s] %s (%s)\n", m.Kind, m.Name, m.ID)
	}

	fmt.Printf("\nNear-duplicate groups: %d\n", len(groups))
	for i, g := range groups {
		fmt.Printf("  group %d: %s\n", i+1, strings.Join(g.Names, " / "))
	}

	logger.Info("dedupe report finished",
		"records", len(input), "matches", len(matches), "groups", len(groups))
	return nil
}
