package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/log"
	"github.com/seiji-watch/diet-tracker/internal/ndl"
	"github.com/seiji-watch/diet-tracker/internal/scraper"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

type fakeBillSource struct {
	bills     []scraper.ScrapedBill
	scrapeErr error
	enrichErr map[string]error
}

func (f *fakeBillSource) ScrapeBills(_ context.Context, _ int, _ domain.House, _ string) ([]scraper.ScrapedBill, error) {
	return f.bills, f.scrapeErr
}

func (f *fakeBillSource) EnrichDetail(_ context.Context, bill *scraper.ScrapedBill) error {
	if err, ok := f.enrichErr[bill.Bill.BillNumber]; ok {
		return err
	}
	bill.Bill.Summary = "summary for " + bill.Bill.BillNumber
	return nil
}

type fakeMemberSource struct {
	members []scraper.ScrapedMember
	err     error
}

func (f *fakeMemberSource) ScrapeMembers(_ context.Context, _ domain.House, _ string) ([]scraper.ScrapedMember, error) {
	return f.members, f.err
}

type fakeSpeechSource struct {
	speeches []domain.Speech
	err      error
}

func (f *fakeSpeechSource) Speeches(_ context.Context, _ ndl.Query) ([]domain.Speech, error) {
	return f.speeches, f.err
}

type recordingStores struct {
	mu       sync.Mutex
	bills    []domain.Bill
	parties  []string
	members  []domain.Member
	speeches []domain.Speech

	billErr   map[string]error
	known     map[string]uuid.UUID // member name -> ID for FindByName
	findError error
}

func (r *recordingStores) Upsert(_ context.Context, b *domain.Bill) (*domain.Bill, error) {
	if err, ok := r.billErr[b.BillNumber]; ok {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bills = append(r.bills, *b)
	return b, nil
}

func (r *recordingStores) UpsertParty(_ context.Context, name, _ string) (*domain.Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parties = append(r.parties, name)
	return &domain.Party{ID: uuid.New(), Name: name}, nil
}

func (r *recordingStores) UpsertMember(_ context.Context, m *domain.Member) (*domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, *m)
	return m, nil
}

func (r *recordingStores) FindByName(_ context.Context, name string, _ domain.House) (*domain.Member, error) {
	if r.findError != nil {
		return nil, r.findError
	}
	if id, ok := r.known[name]; ok {
		return &domain.Member{ID: id, Name: name}, nil
	}
	return nil, store.ErrNotFound
}

func (r *recordingStores) UpsertSpeech(_ context.Context, sp *domain.Speech) (*domain.Speech, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speeches = append(r.speeches, *sp)
	return sp, nil
}

// memberWriter adapts recordingStores to the MemberWriter interface, whose
// Upsert name collides with the bill writer's.
type memberWriter struct{ *recordingStores }

func (w memberWriter) Upsert(ctx context.Context, m *domain.Member) (*domain.Member, error) {
	return w.UpsertMember(ctx, m)
}

type speechWriter struct{ *recordingStores }

func (w speechWriter) Upsert(ctx context.Context, sp *domain.Speech) (*domain.Speech, error) {
	return w.UpsertSpeech(ctx, sp)
}

func scrapedBill(number string) scraper.ScrapedBill {
	return scraper.ScrapedBill{
		Bill: domain.Bill{
			Session:    208,
			House:      domain.HouseRepresentatives,
			BillNumber: number,
			Title:      "法案" + number,
			Status:     domain.StatusUnderReview,
		},
		DetailURL: "https://www.shugiin.go.jp/bill/" + number,
	}
}

func newTestService(bills BillSource, members MemberSource, speeches SpeechSource, st *recordingStores) *Service {
	return New(bills, members, speeches, st, memberWriter{st}, speechWriter{st}, 2, log.NewNop())
}

func TestBills(t *testing.T) {
	src := &fakeBillSource{
		bills: []scraper.ScrapedBill{scrapedBill("001"), scrapedBill("002"), scrapedBill("003")},
	}
	st := &recordingStores{}
	svc := newTestService(src, nil, nil, st)

	report, err := svc.Bills(context.Background(), 208, domain.HouseRepresentatives, "https://example.test/bills")
	if err != nil {
		t.Fatalf("Bills: %v", err)
	}

	if report.Fetched != 3 || report.Stored != 3 || report.Failed != 0 {
		t.Errorf("report = %+v, want 3 fetched and stored", report)
	}
	if len(st.bills) != 3 {
		t.Fatalf("stored %d bills, want 3", len(st.bills))
	}
	for _, b := range st.bills {
		if b.Summary == "" {
			t.Errorf("bill %s stored without enriched summary", b.BillNumber)
		}
	}
}

func TestBills_PartialFailureContinues(t *testing.T) {
	src := &fakeBillSource{
		bills:     []scraper.ScrapedBill{scrapedBill("001"), scrapedBill("002"), scrapedBill("003")},
		enrichErr: map[string]error{"002": errors.New("detail fetch failed")},
	}
	st := &recordingStores{billErr: map[string]error{"003": errors.New("db down")}}
	svc := newTestService(src, nil, nil, st)

	report, err := svc.Bills(context.Background(), 208, domain.HouseRepresentatives, "https://example.test/bills")
	if err != nil {
		t.Fatalf("Bills: %v", err)
	}

	if report.Stored != 1 {
		t.Errorf("stored = %d, want 1", report.Stored)
	}
	if report.Failed != 2 {
		t.Errorf("failed = %d, want 2", report.Failed)
	}
}

func TestBills_ScrapeErrorAborts(t *testing.T) {
	src := &fakeBillSource{scrapeErr: errors.New("listing unreachable")}
	svc := newTestService(src, nil, nil, &recordingStores{})

	if _, err := svc.Bills(context.Background(), 208, domain.HouseRepresentatives, "u"); err == nil {
		t.Fatal("expected error when the listing scrape fails")
	}
}

func TestMembers_SharesPartyUpserts(t *testing.T) {
	src := &fakeMemberSource{members: []scraper.ScrapedMember{
		{Member: domain.Member{Name: "山田太郎", House: domain.HouseRepresentatives}, PartyName: "自由民主党"},
		{Member: domain.Member{Name: "佐藤花子", House: domain.HouseRepresentatives}, PartyName: "自由民主党"},
		{Member: domain.Member{Name: "鈴木一郎", House: domain.HouseRepresentatives}, PartyName: "立憲民主党"},
	}}
	st := &recordingStores{}
	svc := newTestService(nil, src, nil, st)

	report, err := svc.Members(context.Background(), domain.HouseRepresentatives, "https://example.test/members")
	if err != nil {
		t.Fatalf("Members: %v", err)
	}

	if report.Stored != 3 {
		t.Errorf("stored = %d, want 3", report.Stored)
	}
	if len(st.parties) != 2 {
		t.Errorf("upserted %d parties, want 2 (one per distinct party)", len(st.parties))
	}
	for _, m := range st.members {
		if m.PartyID == uuid.Nil {
			t.Errorf("member %s stored without party reference", m.Name)
		}
	}
}

func TestSpeeches_ResolvesSpeakers(t *testing.T) {
	memberID := uuid.New()
	src := &fakeSpeechSource{speeches: []domain.Speech{
		{NDLID: "s1", SpeakerName: "山田太郎", House: domain.HouseRepresentatives, SpokenAt: time.Now()},
		{NDLID: "s2", SpeakerName: "財務大臣", House: domain.HouseRepresentatives, SpokenAt: time.Now()},
	}}
	st := &recordingStores{known: map[string]uuid.UUID{"山田太郎": memberID}}
	svc := newTestService(nil, nil, src, st)

	report, err := svc.Speeches(context.Background(), ndl.Query{Session: 208})
	if err != nil {
		t.Fatalf("Speeches: %v", err)
	}

	if report.Stored != 2 {
		t.Fatalf("stored = %d, want 2", report.Stored)
	}
	byID := make(map[string]domain.Speech, len(st.speeches))
	for _, sp := range st.speeches {
		byID[sp.NDLID] = sp
	}
	if byID["s1"].MemberID != memberID {
		t.Error("matched speaker should carry the member ID")
	}
	if byID["s2"].MemberID != uuid.Nil {
		t.Error("unmatched speaker should store without a member ID")
	}
}

func TestSpeeches_ResolveErrorCountsAsFailure(t *testing.T) {
	src := &fakeSpeechSource{speeches: []domain.Speech{
		{NDLID: "s1", SpeakerName: "山田太郎", House: domain.HouseRepresentatives},
	}}
	st := &recordingStores{findError: fmt.Errorf("connection reset")}
	svc := newTestService(nil, nil, src, st)

	report, err := svc.Speeches(context.Background(), ndl.Query{})
	if err != nil {
		t.Fatalf("Speeches: %v", err)
	}
	if report.Failed != 1 || report.Stored != 0 {
		t.Errorf("report = %+v, want 1 failure", report)
	}
}

func TestPool_CollectsErrors(t *testing.T) {
	p := newPool(3)
	p.start(context.Background())
	for i := range 10 {
		n := i
		p.submit(context.Background(), func(context.Context) error {
			if n%2 == 0 {
				return fmt.Errorf("task %d failed", n)
			}
			return nil
		})
	}
	errs := p.wait()
	if len(errs) != 5 {
		t.Errorf("got %d errors, want 5", len(errs))
	}
}

func TestPool_ManyFailuresDoNotBlock(t *testing.T) {
	// Failures far beyond the error channel's buffer must drain while
	// tasks are still being submitted, not wedge workers and producer.
	p := newPool(2)
	p.start(context.Background())

	done := make(chan []error, 1)
	go func() {
		for i := range 200 {
			n := i
			p.submit(context.Background(), func(context.Context) error {
				return fmt.Errorf("task %d failed", n)
			})
		}
		done <- p.wait()
	}()

	select {
	case errs := <-done:
		if len(errs) != 200 {
			t.Errorf("got %d errors, want 200", len(errs))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool blocked with more failures than the error buffer")
	}
}

func TestBills_AllEnrichmentsFailing(t *testing.T) {
	enrichErr := make(map[string]error, 100)
	bills := make([]scraper.ScrapedBill, 0, 100)
	for i := range 100 {
		number := fmt.Sprintf("%03d", i)
		bills = append(bills, scrapedBill(number))
		enrichErr[number] = errors.New("detail fetch failed")
	}
	src := &fakeBillSource{bills: bills, enrichErr: enrichErr}
	svc := newTestService(src, nil, nil, &recordingStores{})

	type outcome struct {
		report Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := svc.Bills(context.Background(), 208, domain.HouseRepresentatives, "https://example.test/bills")
		done <- outcome{report, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("Bills: %v", out.err)
		}
		if out.report.Failed != 100 || out.report.Stored != 0 {
			t.Errorf("report = %+v, want 100 failed", out.report)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Bills run blocked when every enrichment failed")
	}
}

func TestPool_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newPool(1)
	p.start(ctx)

	started := make(chan struct{})
	p.submit(ctx, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	cancel()

	done := make(chan struct{})
	go func() {
		p.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not shut down after cancellation")
	}
}
