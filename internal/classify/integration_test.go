package classify_test

import (
	"context"
	"testing"

	"github.com/seiji-watch/diet-tracker/internal/classify"
	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/log"
	"github.com/seiji-watch/diet-tracker/internal/metrics"
	"github.com/seiji-watch/diet-tracker/internal/store"
	"github.com/seiji-watch/diet-tracker/internal/testutil"
)

// counterValue reads one counter from the process-wide metrics registry.
func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestRun_LinksAndCounts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()

	bills := store.NewBillStore(db.Pool, log.NewNop())
	categories := store.NewCategoryStore(db.Pool, log.NewNop())

	l1, err := categories.Upsert(ctx, &domain.PolicyCategory{
		CAPCode: "1", Layer: domain.LayerL1, TitleJA: "マクロ経済",
	})
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}

	bill, err := bills.Upsert(ctx, &domain.Bill{
		Session:    217,
		House:      domain.HouseRepresentatives,
		BillNumber: "001",
		Title:      "所得税法等の一部を改正する法律案",
		Status:     domain.StatusUnderReview,
	})
	if err != nil {
		t.Fatalf("seed bill: %v", err)
	}

	provider := &testutil.MockProvider{Responses: []string{
		`{"assignments":[{"cap_code":"1","layer":"L1","confidence":0.9},{"cap_code":"999","layer":"L2","confidence":0.8}]}`,
	}}
	classifier, err := classify.New(provider, bills, categories, 0.5, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	before := counterValue(t, "diet_tracker_classifications_total")

	report, err := classifier.Run(ctx, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Bills != 1 || report.Linked != 1 || report.Dropped != 1 {
		t.Errorf("report = %+v, want 1 bill, 1 linked, 1 dropped (unknown CAP code)", report)
	}

	links, err := categories.BillLinks(ctx, bill.ID)
	if err != nil {
		t.Fatalf("BillLinks: %v", err)
	}
	if len(links) != 1 || links[0].CategoryID != l1.ID || links[0].IsManual {
		t.Errorf("links = %+v, want one automatic link to %s", links, l1.ID)
	}

	if got := counterValue(t, "diet_tracker_classifications_total"); got != before+1 {
		t.Errorf("classifications counter = %v, want %v", got, before+1)
	}
}

func TestRun_EmptyTaxonomyRefuses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	bills := store.NewBillStore(db.Pool, log.NewNop())
	categories := store.NewCategoryStore(db.Pool, log.NewNop())

	classifier, err := classify.New(&testutil.MockProvider{}, bills, categories, 0.5, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := classifier.Run(context.Background(), 10); err == nil {
		t.Fatal("expected Run to refuse an empty taxonomy")
	}
}
