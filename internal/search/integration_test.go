package search_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/log"
	"github.com/seiji-watch/diet-tracker/internal/search"
	"github.com/seiji-watch/diet-tracker/internal/store"
	"github.com/seiji-watch/diet-tracker/internal/testutil"
)

func TestSearch_IndexAndQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	logger := log.NewNop()
	speeches := store.NewSpeechStore(db.Pool, logger)
	embedder := &testutil.MockProvider{}
	idx := search.New(db.Pool, embedder, "mock-embed", logger)

	seed := []*domain.Speech{
		{NDLID: "ndl-001", Session: 216, House: domain.HouseRepresentatives, Meeting: "本会議", SpeakerName: "一人目", Body: "防衛費の増額について"},
		{NDLID: "ndl-002", Session: 217, House: domain.HouseRepresentatives, Meeting: "本会議", SpeakerName: "二人目", Body: "子育て支援の拡充を求める"},
		{NDLID: "ndl-003", Session: 217, House: domain.HouseCouncillors, Meeting: "予算委員会", SpeakerName: "三人目", Body: "エネルギー政策の転換"},
	}
	stored := make([]*domain.Speech, 0, len(seed))
	for _, sp := range seed {
		got, err := speeches.Upsert(ctx, sp)
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		stored = append(stored, got)
	}

	pending, err := speeches.ListUnembedded(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnembedded: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("ListUnembedded = %d, want 3", len(pending))
	}

	if err := idx.Index(ctx, stored); err != nil {
		t.Fatalf("Index: %v", err)
	}

	count, err := idx.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}

	pending, err = speeches.ListUnembedded(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnembedded after index: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("ListUnembedded after index = %d, want 0", len(pending))
	}

	results, err := idx.Query(ctx, "防衛の議論")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Query = %d results, want all 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not ordered by score: %v then %v", results[i-1].Score, results[i].Score)
		}
	}

	results, err = idx.Query(ctx, "防衛の議論", search.WithSession(217))
	if err != nil {
		t.Fatalf("Query with session: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Query(session=217) = %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Speech.Session != 217 {
			t.Errorf("session filter leaked session %d", r.Speech.Session)
		}
	}

	results, err = idx.Query(ctx, "防衛の議論", search.WithTopK(1))
	if err != nil {
		t.Fatalf("Query with top k: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Query(topK=1) = %d results, want 1", len(results))
	}

	results, err = idx.Query(ctx, "防衛の議論", search.WithMember(uuid.New()))
	if err != nil {
		t.Fatalf("Query with member: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Query(unknown member) = %d results, want 0", len(results))
	}
}
