package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/normalize"
)

// ScrapedMember is a roster row with the party still as free text.
type ScrapedMember struct {
	Member    domain.Member
	PartyName string
}

// ScrapeMembers collects the member roster table at rosterURL.
func (s *Scraper) ScrapeMembers(ctx context.Context, house domain.House, rosterURL string) ([]ScrapedMember, error) {
	c, err := s.newCollector()
	if err != nil {
		return nil, fmt.Errorf("create collector: %w", err)
	}

	var (
		mu      sync.Mutex
		members []ScrapedMember
	)

	c.OnHTML("table tr", func(e *colly.HTMLElement) {
		m, ok := parseMemberRow(e.DOM, house)
		if !ok {
			return
		}
		mu.Lock()
		members = append(members, m)
		mu.Unlock()
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(rosterURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", rosterURL, err)
	}
	c.Wait()
	if visitErr != nil {
		return nil, visitErr
	}

	s.logger.Info("scraped member roster",
		"url", rosterURL, "house", house, "members", len(members))
	return members, nil
}

// parseMemberRow extracts a member from one roster row. Roster tables have
// the shape: 氏名 | ふりがな | 会派 | 選挙区.
func parseMemberRow(row *goquery.Selection, house domain.House) (ScrapedMember, bool) {
	cells := row.Find("td")
	if cells.Length() < 4 {
		return ScrapedMember{}, false
	}

	name := cleanMemberName(cells.Eq(0).Text())
	if name == "" {
		return ScrapedMember{}, false
	}

	return ScrapedMember{
		Member: domain.Member{
			Name:     name,
			NameKana: normalize.Fold(cells.Eq(1).Text()),
			House:    house,
			District: normalize.Fold(cells.Eq(3).Text()),
		},
		PartyName: normalize.Fold(cells.Eq(2).Text()),
	}, true
}

// cleanMemberName folds width and collapses the interior spacing rosters
// use to align two- and three-character names ("山田　太郎" -> "山田太郎").
func cleanMemberName(s string) string {
	s = normalize.Fold(s)
	s = strings.ReplaceAll(s, "　", "")
	return strings.ReplaceAll(s, " ", "")
}
