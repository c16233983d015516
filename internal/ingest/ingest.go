// Package ingest wires the scrapers and the minutes API to storage. Each
// run pulls a batch, normalizes it, and upserts it, reporting what it did.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/log"
	"github.com/seiji-watch/diet-tracker/internal/metrics"
	"github.com/seiji-watch/diet-tracker/internal/ndl"
	"github.com/seiji-watch/diet-tracker/internal/scraper"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

const defaultWorkers = 4

// BillSource scrapes bill listings and detail pages.
type BillSource interface {
	ScrapeBills(ctx context.Context, session int, house domain.House, listURL string) ([]scraper.ScrapedBill, error)
	EnrichDetail(ctx context.Context, bill *scraper.ScrapedBill) error
}

// MemberSource scrapes member rosters.
type MemberSource interface {
	ScrapeMembers(ctx context.Context, house domain.House, rosterURL string) ([]scraper.ScrapedMember, error)
}

// SpeechSource pulls speech records from the minutes API.
type SpeechSource interface {
	Speeches(ctx context.Context, q ndl.Query) ([]domain.Speech, error)
}

// BillWriter stores bills.
type BillWriter interface {
	Upsert(ctx context.Context, b *domain.Bill) (*domain.Bill, error)
}

// MemberWriter stores members, parties, and resolves speakers.
type MemberWriter interface {
	UpsertParty(ctx context.Context, name, nameShort string) (*domain.Party, error)
	Upsert(ctx context.Context, m *domain.Member) (*domain.Member, error)
	FindByName(ctx context.Context, name string, house domain.House) (*domain.Member, error)
}

// SpeechWriter stores speeches.
type SpeechWriter interface {
	Upsert(ctx context.Context, sp *domain.Speech) (*domain.Speech, error)
}

// Report summarizes one ingest run.
type Report struct {
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	Failed  int `json:"failed"`
}

// Service runs the ingest pipelines.
type Service struct {
	bills    BillSource
	members  MemberSource
	speeches SpeechSource

	billStore   BillWriter
	memberStore MemberWriter
	speechStore SpeechWriter

	workers int
	logger  log.Logger
}

// New creates a Service.
func New(
	bills BillSource,
	members MemberSource,
	speeches SpeechSource,
	billStore BillWriter,
	memberStore MemberWriter,
	speechStore SpeechWriter,
	workers int,
	logger log.Logger,
) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{
		bills:       bills,
		members:     members,
		speeches:    speeches,
		billStore:   billStore,
		memberStore: memberStore,
		speechStore: speechStore,
		workers:     workers,
		logger:      logger,
	}
}

// Bills scrapes one listing page, enriches each bill with its detail page,
// and upserts the results. Enrichment and storage fan out over the worker
// pool; a failed bill is counted and skipped, never aborting the run.
func (s *Service) Bills(ctx context.Context, session int, house domain.House, listURL string) (Report, error) {
	scraped, err := s.bills.ScrapeBills(ctx, session, house, listURL)
	if err != nil {
		metrics.RecordIngestError("scrape")
		return Report{}, fmt.Errorf("scrape bills: %w", err)
	}
	for range scraped {
		metrics.RecordBillScraped()
	}

	report := Report{Fetched: len(scraped)}
	stored := make(chan struct{}, len(scraped))

	p := newPool(s.workers)
	p.start(ctx)
	for i := range scraped {
		bill := scraped[i]
		p.submit(ctx, func(ctx context.Context) error {
			if err := s.bills.EnrichDetail(ctx, &bill); err != nil {
				metrics.RecordIngestError("detail")
				return fmt.Errorf("enrich %s/%s: %w", bill.Bill.House, bill.Bill.BillNumber, err)
			}
			if _, err := s.billStore.Upsert(ctx, &bill.Bill); err != nil {
				metrics.RecordIngestError("store")
				return fmt.Errorf("store %s/%s: %w", bill.Bill.House, bill.Bill.BillNumber, err)
			}
			metrics.RecordUpsert("bill")
			stored <- struct{}{}
			return nil
		})
	}
	errs := p.wait()
	close(stored)

	report.Stored = len(stored)
	report.Failed = len(errs)
	for _, err := range errs {
		s.logger.Warn("bill ingest failure", "error", err)
	}

	s.logger.Info("bill ingest finished",
		"session", session, "house", house,
		"fetched", report.Fetched, "stored", report.Stored, "failed", report.Failed)
	return report, ctx.Err()
}

// Members scrapes one roster page and upserts parties and members.
// Parties are created first so member rows can reference them.
func (s *Service) Members(ctx context.Context, house domain.House, rosterURL string) (Report, error) {
	scraped, err := s.members.ScrapeMembers(ctx, house, rosterURL)
	if err != nil {
		metrics.RecordIngestError("scrape")
		return Report{}, fmt.Errorf("scrape members: %w", err)
	}

	report := Report{Fetched: len(scraped)}
	parties := make(map[string]*domain.Party)

	for _, m := range scraped {
		member := m.Member
		if m.PartyName != "" {
			party, ok := parties[m.PartyName]
			if !ok {
				party, err = s.memberStore.UpsertParty(ctx, m.PartyName, "")
				if err != nil {
					metrics.RecordIngestError("store")
					report.Failed++
					s.logger.Warn("party upsert failure", "party", m.PartyName, "error", err)
					continue
				}
				parties[m.PartyName] = party
			}
			member.PartyID = party.ID
		}

		if _, err := s.memberStore.Upsert(ctx, &member); err != nil {
			metrics.RecordIngestError("store")
			report.Failed++
			s.logger.Warn("member upsert failure", "member", member.Name, "error", err)
			continue
		}
		metrics.RecordUpsert("member")
		report.Stored++
	}

	s.logger.Info("member ingest finished",
		"house", house, "fetched", report.Fetched,
		"stored", report.Stored, "failed", report.Failed)
	return report, ctx.Err()
}

// Speeches pulls one query window from the minutes API and upserts the
// records, resolving each speaker to a stored member when one matches by
// name. Unmatched speakers (ministers, witnesses) are stored without a
// member reference.
func (s *Service) Speeches(ctx context.Context, q ndl.Query) (Report, error) {
	fetched, err := s.speeches.Speeches(ctx, q)
	if err != nil {
		metrics.RecordIngestError("fetch")
		return Report{}, fmt.Errorf("fetch speeches: %w", err)
	}
	for range fetched {
		metrics.RecordSpeechFetched()
	}

	report := Report{Fetched: len(fetched)}
	stored := make(chan struct{}, len(fetched))

	p := newPool(s.workers)
	p.start(ctx)
	for i := range fetched {
		speech := fetched[i]
		p.submit(ctx, func(ctx context.Context) error {
			member, err := s.memberStore.FindByName(ctx, speech.SpeakerName, speech.House)
			switch {
			case err == nil:
				speech.MemberID = member.ID
			case errors.Is(err, store.ErrNotFound):
			default:
				metrics.RecordIngestError("store")
				return fmt.Errorf("resolve speaker %q: %w", speech.SpeakerName, err)
			}

			if _, err := s.speechStore.Upsert(ctx, &speech); err != nil {
				metrics.RecordIngestError("store")
				return fmt.Errorf("store speech %s: %w", speech.NDLID, err)
			}
			metrics.RecordUpsert("speech")
			stored <- struct{}{}
			return nil
		})
	}
	errs := p.wait()
	close(stored)

	report.Stored = len(stored)
	report.Failed = len(errs)
	for _, err := range errs {
		s.logger.Warn("speech ingest failure", "error", err)
	}

	s.logger.Info("speech ingest finished",
		"session", q.Session, "fetched", report.Fetched,
		"stored", report.Stored, "failed", report.Failed)
	return report, ctx.Err()
}
