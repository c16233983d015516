package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/normalize"
)

// maxSummaryBytes caps extracted bill summaries before storage.
const maxSummaryBytes = 2000

// ScrapeBills collects the bill listing table at listURL for one session
// and house. Rows that do not parse are logged and skipped; the page
// layouts drift between sessions and one malformed row must not abort a
// run.
func (s *Scraper) ScrapeBills(ctx context.Context, session int, house domain.House, listURL string) ([]ScrapedBill, error) {
	c, err := s.newCollector()
	if err != nil {
		return nil, fmt.Errorf("create collector: %w", err)
	}

	var (
		mu    sync.Mutex
		bills []ScrapedBill
	)

	c.OnHTML("table tr", func(e *colly.HTMLElement) {
		bill, ok := parseBillRow(e.DOM, session, house)
		if !ok {
			return
		}
		if bill.DetailURL != "" {
			bill.DetailURL = e.Request.AbsoluteURL(bill.DetailURL)
			bill.Bill.DietURL = bill.DetailURL
		}
		mu.Lock()
		bills = append(bills, bill)
		mu.Unlock()
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(listURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", listURL, err)
	}
	c.Wait()
	if visitErr != nil {
		return nil, visitErr
	}

	s.logger.Info("scraped bill listing",
		"url", listURL, "session", session, "house", house, "bills", len(bills))
	return bills, nil
}

// parseBillRow extracts a bill from one listing table row. Listing tables
// have the shape: 回次 | 番号 | 議案件名 | 審議状況, with the title cell
// linking to the detail page. Header rows and short rows report ok=false.
func parseBillRow(row *goquery.Selection, session int, house domain.House) (ScrapedBill, bool) {
	cells := row.Find("td")
	if cells.Length() < 4 {
		return ScrapedBill{}, false
	}

	number := normalize.Fold(cells.Eq(1).Text())
	title := normalize.Fold(cells.Eq(2).Text())
	statusText := normalize.Fold(cells.Eq(3).Text())
	if number == "" || title == "" {
		return ScrapedBill{}, false
	}

	// The 回次 cell can override the session for carried-over bills.
	if rowSession, err := normalize.ParseNumber(cells.Eq(0).Text()); err == nil && rowSession > 0 {
		session = rowSession
	}

	detailURL, _ := cells.Eq(2).Find("a").Attr("href")

	return ScrapedBill{
		Bill: domain.Bill{
			Session:    session,
			House:      house,
			BillNumber: normalize.PadBillNumber(number),
			Title:      title,
			Status:     statusFromText(statusText),
		},
		DetailURL: detailURL,
	}, true
}

// statusFromText maps the listing page's 審議状況 text onto a BillStatus.
// Unknown phrases land in backlog rather than failing the row.
func statusFromText(s string) domain.BillStatus {
	switch {
	case strings.Contains(s, "成立"), strings.Contains(s, "可決"):
		return domain.StatusPassed
	case strings.Contains(s, "否決"):
		return domain.StatusRejected
	case strings.Contains(s, "撤回"):
		return domain.StatusWithdrawn
	case strings.Contains(s, "採決"):
		return domain.StatusPendingVote
	case strings.Contains(s, "審議中"), strings.Contains(s, "審査中"), strings.Contains(s, "付託"):
		return domain.StatusUnderReview
	default:
		return domain.StatusBacklog
	}
}

// EnrichDetail fetches a bill's detail page and fills in its summary using
// readability extraction. Respects robots.txt and the per-host rate limit.
// A missing or unreadable detail page leaves the summary empty without
// failing the bill.
func (s *Scraper) EnrichDetail(ctx context.Context, bill *ScrapedBill) error {
	if bill.DetailURL == "" {
		return nil
	}

	allowed, err := s.robots.Allowed(ctx, bill.DetailURL)
	if err != nil {
		return fmt.Errorf("robots check: %w", err)
	}
	if !allowed {
		s.logger.Warn("detail page disallowed by robots.txt", "url", bill.DetailURL)
		return nil
	}

	if err := s.limiter.Wait(ctx, bill.DetailURL); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := s.fetcher.Fetch(ctx, bill.DetailURL)
	if err != nil {
		s.logger.Warn("detail page fetch failed", "url", bill.DetailURL, "error", err)
		return nil
	}

	pageURL, err := url.Parse(bill.DetailURL)
	if err != nil {
		return fmt.Errorf("parse detail URL: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		s.logger.Warn("readability extraction failed", "url", bill.DetailURL, "error", err)
		return nil
	}

	summary := normalize.Truncate(normalize.Fold(article.TextContent), maxSummaryBytes)
	bill.Bill.Summary = summary

	// Detail pages usually carry the submission date.
	if t, err := normalize.ParseEraDate(summary); err == nil {
		bill.Bill.SubmittedAt = t
	}
	return nil
}
