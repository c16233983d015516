package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/seiji-watch/diet-tracker/internal/config"
	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/ingest"
	"github.com/seiji-watch/diet-tracker/internal/log"
	"github.com/seiji-watch/diet-tracker/internal/ndl"
	"github.com/seiji-watch/diet-tracker/internal/scraper"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

// Default listing pages per chamber. The sangiin bill listing URL embeds
// the session number; rosters are stable pages.
const (
	sangiinBillListFormat = "https://www.sangiin.go.jp/japanese/joho1/kousei/gian/%d/gian.htm"
	shugiinRosterURL      = "https://www.shugiin.go.jp/internet/itdb_annai.nsf/html/statics/syu/1giin.htm"
	sangiinRosterURL      = "https://www.sangiin.go.jp/japanese/joho1/kousei/giin/212/giin.html"
)

func newScrapeCmd() *cobra.Command {
	scrapeCmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run the ingest pipelines against the Diet sites and the NDL minutes API",
	}

	scrapeCmd.AddCommand(newScrapeBillsCmd())
	scrapeCmd.AddCommand(newScrapeMembersCmd())
	scrapeCmd.AddCommand(newScrapeSpeechesCmd())

	return scrapeCmd
}

func newScrapeBillsCmd() *cobra.Command {
	var (
		session int
		house   string
		listURL string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "bills",
		Short: "Scrape a bill listing page and its detail pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseHouse(house)
			if err != nil {
				return err
			}
			if session <= 0 {
				return fmt.Errorf("--session must be a positive Diet session number")
			}
			url := listURL
			if url == "" {
				if h != domain.HouseCouncillors {
					return fmt.Errorf("--url is required for the house of representatives listing")
				}
				url = fmt.Sprintf(sangiinBillListFormat, session)
			}
			return withScrapeRun(func(ctx context.Context, svc *ingest.Service, logger log.Logger) error {
				report, err := svc.Bills(ctx, session, h, url)
				logger.Info("bill ingest finished",
					"fetched", report.Fetched, "stored", report.Stored, "failed", report.Failed)
				return err
			}, workers)
		},
	}
	cmd.Flags().IntVar(&session, "session", 0, "Diet session number (e.g. 217)")
	cmd.Flags().StringVar(&house, "house", string(domain.HouseCouncillors), "chamber: representatives or councillors")
	cmd.Flags().StringVar(&listURL, "url", "", "bill listing page URL (default derived from session)")
	cmd.Flags().IntVar(&workers, "workers", 0, "detail fetch concurrency (0 = default)")
	return cmd
}

func newScrapeMembersCmd() *cobra.Command {
	var (
		house     string
		rosterURL string
	)
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Scrape a member roster page",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseHouse(house)
			if err != nil {
				return err
			}
			url := rosterURL
			if url == "" {
				url = shugiinRosterURL
				if h == domain.HouseCouncillors {
					url = sangiinRosterURL
				}
			}
			return withScrapeRun(func(ctx context.Context, svc *ingest.Service, logger log.Logger) error {
				report, err := svc.Members(ctx, h, url)
				logger.Info("member ingest finished",
					"fetched", report.Fetched, "stored", report.Stored, "failed", report.Failed)
				return err
			}, 0)
		},
	}
	cmd.Flags().StringVar(&house, "house", string(domain.HouseRepresentatives), "chamber: representatives or councillors")
	cmd.Flags().StringVar(&rosterURL, "url", "", "roster page URL (default per chamber)")
	return cmd
}

func newScrapeSpeechesCmd() *cobra.Command {
	var (
		session int
		house   string
		meeting string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "speeches",
		Short: "Pull speeches from the NDL minutes API",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := ndl.Query{Session: session, Meeting: meeting}
			if house != "" {
				h, err := parseHouse(house)
				if err != nil {
					return err
				}
				q.House = h
			}
			if q.Session <= 0 {
				return fmt.Errorf("--session must be a positive Diet session number")
			}
			return withScrapeRun(func(ctx context.Context, svc *ingest.Service, logger log.Logger) error {
				report, err := svc.Speeches(ctx, q)
				logger.Info("speech ingest finished",
					"fetched", report.Fetched, "stored", report.Stored, "failed", report.Failed)
				return err
			}, workers)
		},
	}
	cmd.Flags().IntVar(&session, "session", 0, "Diet session number (e.g. 217)")
	cmd.Flags().StringVar(&house, "house", "", "limit to one chamber: representatives or councillors")
	cmd.Flags().StringVar(&meeting, "meeting", "", "meeting name filter (e.g. 予算委員会)")
	cmd.Flags().IntVar(&workers, "workers", 0, "upsert concurrency (0 = default)")
	return cmd
}

// withScrapeRun holds the run lock, connects, and hands a wired ingest
// service to fn. Only one scrape run may touch the store at a time;
// overlapping cron invocations fail fast instead of queueing.
func withScrapeRun(fn func(context.Context, *ingest.Service, log.Logger) error, workers int) error {
	logger := initLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err = cfg.ValidateIngest(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	lock := flock.New(filepath.Join(os.TempDir(), "diet-tracker-scrape.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another scrape run holds the lock at %s", lock.Path())
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("releasing run lock failed", "error", unlockErr)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, newIngestService(cfg, pool, workers, logger), logger)
}

func newIngestService(cfg *config.Config, pool *pgxpool.Pool, workers int, logger log.Logger) *ingest.Service {
	sc := scraper.New(scraper.Config{
		UserAgent: cfg.ScrapeUserAgent,
		Rate:      cfg.ScrapeRate,
		Timeout:   cfg.ScrapeTimeout,
	}, logger)
	minutes := ndl.New(logger, ndl.WithHTTPClient(&http.Client{Timeout: cfg.ScrapeTimeout}))

	return ingest.New(
		sc,
		sc,
		minutes,
		store.NewBillStore(pool, logger),
		store.NewMemberStore(pool, logger),
		store.NewSpeechStore(pool, logger),
		workers,
		logger,
	)
}

func parseHouse(s string) (domain.House, error) {
	h := domain.House(s)
	if !h.Valid() {
		return "", fmt.Errorf("unknown house %q (want %s or %s)",
			s, domain.HouseRepresentatives, domain.HouseCouncillors)
	}
	return h, nil
}
