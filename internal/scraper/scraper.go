// Package scraper collects bill listings and member rosters from the Diet
// websites (shugiin.go.jp, sangiin.go.jp).
//
// Collection is polite by construction: robots.txt is honored, every host
// is rate limited, and the user agent identifies the project.
package scraper

import (
	"log/slog"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/seiji-watch/diet-tracker/internal/domain"
)

// Allowed scrape targets. Anything outside these hosts is a bug, not a
// feature; the tracker only reads official Diet sources.
var allowedHosts = []string{
	"www.shugiin.go.jp",
	"www.sangiin.go.jp",
}

// Config configures a Scraper.
type Config struct {
	UserAgent string
	Rate      float64       // requests/sec per host
	Timeout   time.Duration // per-request timeout
}

// Scraper scrapes Diet websites into domain entities.
type Scraper struct {
	cfg     Config
	limiter *HostLimiter
	robots  *RobotsChecker
	fetcher *Fetcher
	logger  *slog.Logger
}

// New creates a Scraper.
func New(cfg Config, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 0.5
	}
	return &Scraper{
		cfg:     cfg,
		limiter: NewHostLimiter(cfg.Rate, 1),
		robots:  NewRobotsChecker(cfg.UserAgent, cfg.Timeout),
		fetcher: NewFetcher(cfg.Timeout, cfg.UserAgent, 5<<20),
		logger:  logger,
	}
}

// newCollector builds a colly collector with the shared politeness
// settings. colly enforces robots.txt itself for the pages it visits.
func (s *Scraper) newCollector() (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowedDomains(allowedHosts...),
	)
	c.SetRequestTimeout(s.cfg.Timeout)

	err := c.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      time.Duration(float64(time.Second) / s.cfg.Rate),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ScrapedBill is a bill listing row before normalization into the store.
type ScrapedBill struct {
	Bill      domain.Bill
	DetailURL string // bill summary page, fetched separately
}
