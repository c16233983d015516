package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seiji-watch/diet-tracker/internal/llm"
	"github.com/seiji-watch/diet-tracker/internal/search"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

func newEmbedCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Backfill embeddings for speeches that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(batch)
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 100, "speeches per embedding batch")
	return cmd
}

func runEmbed(batch int) error {
	logger := initLogger()

	if batch <= 0 {
		return fmt.Errorf("--batch must be positive")
	}

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

	client, err := llm.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}

	speeches := store.NewSpeechStore(pool, logger)
	index := search.New(pool, client, cfg.EmbedModel, logger)

	total := 0
	for {
		pending, err := speeches.ListUnembedded(ctx, batch)
		if err != nil {
			return fmt.Errorf("listing unembedded speeches: %w", err)
		}
		if len(pending) == 0 {
			break
		}
		if err := index.Index(ctx, pending); err != nil {
			return fmt.Errorf("indexing speeches: %w", err)
		}
		total += len(pending)
		logger.Debug("embedded batch", "count", len(pending), "total", total)
	}

	logger.Info("embedding backfill finished", "indexed", total)
	return nil
}
