package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seiji-watch/diet-tracker/db"
	"github.com/seiji-watch/diet-tracker/internal/api"
	"github.com/seiji-watch/diet-tracker/internal/llm"
	"github.com/seiji-watch/diet-tracker/internal/observability"
	"github.com/seiji-watch/diet-tracker/internal/search"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run database migrations, then start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	logger := initLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err = cfg.ValidateAPI(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting HTTP API server", "version", AppVersion)

	if cfg.TraceEnabled {
		shutdown, traceErr := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.OTLPEndpoint,
			Environment: cfg.Environment,
			ServiceName: cfg.ServiceName,
		})
		if traceErr != nil {
			return fmt.Errorf("initializing tracing: %w", traceErr)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer flushCancel()
			if flushErr := shutdown(flushCtx); flushErr != nil {
				logger.Warn("trace flush failed", "error", flushErr)
			}
		}()
	}

	if err = db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Search is optional at startup. Without an LLM API key the server
	// still serves everything except /api/search/speeches.
	var searcher api.SpeechSearcher
	if client, llmErr := llm.New(ctx, cfg, logger); llmErr != nil {
		logger.Warn("semantic search disabled", "error", llmErr)
	} else {
		searcher = search.New(pool, client, cfg.EmbedModel, logger)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Bills:       store.NewBillStore(pool, logger),
		Members:     store.NewMemberStore(pool, logger),
		Speeches:    store.NewSpeechStore(pool, logger),
		Issues:      store.NewIssueStore(pool, logger),
		Categories:  store.NewCategoryStore(pool, logger),
		Search:      searcher,
		Pool:        pool,
		JWTSecret:   []byte(cfg.JWTSecret),
		CORSOrigins: cfg.CORSOrigins,
		IsDev:       cfg.IsDev,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.APIAddr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
