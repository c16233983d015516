// Package cmd contains the diet-tracker CLI. Each subcommand is one
// operational entry point: the API server, the ingest pipelines, the
// classification and embedding backfills, and the Airtable maintenance
// passes.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "diet-tracker",
	Short: "diet-tracker - National Diet bill and speech tracker",
	Long: `diet-tracker collects bills and member rosters from the Diet websites,
pulls plenary and committee speeches from the NDL minutes API, classifies
bills into the policy category taxonomy, and serves everything over a
JSON REST API with semantic speech search.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(
		newServeCmd(),
		newScrapeCmd(),
		newClassifyCmd(),
		newSyncCategoriesCmd(),
		newEmbedCmd(),
		newDedupeCmd(),
		newCompleteCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
}
