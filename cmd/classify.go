package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seiji-watch/diet-tracker/internal/classify"
	"github.com/seiji-watch/diet-tracker/internal/llm"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

func newClassifyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify unclassified bills into the policy category taxonomy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum bills to classify in one run")
	return cmd
}

func runClassify(limit int) error {
	logger := initLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	provider, err := llm.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	classifier, err := classify.New(
		provider,
		store.NewBillStore(pool, logger),
		store.NewCategoryStore(pool, logger),
		cfg.ConfidenceThreshold,
		logger,
	)
	if err != nil {
		return fmt.Errorf("creating classifier: %w", err)
	}

	report, err := classifier.Run(ctx, limit)
	if err != nil {
		return fmt.Errorf("classifying bills: %w", err)
	}

	logger.Info("classification finished",
		"bills", report.Bills,
		"linked", report.Linked,
		"dropped", report.Dropped,
		"failed", report.Failed,
	)
	return nil
}
