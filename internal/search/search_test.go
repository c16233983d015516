package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/log"
)

// recordingDB captures Exec calls and fails Query/QueryRow; enough for
// testing Index without a database.
type recordingDB struct {
	execSQL  []string
	execArgs [][]any
	execErr  error
}

func (r *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.execSQL = append(r.execSQL, sql)
	r.execArgs = append(r.execArgs, args)
	return pgconn.CommandTag{}, r.execErr
}

func (r *recordingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("query not supported")
}

func (r *recordingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("queryRow not supported")
}

// recordingEmbedder returns fixed-size vectors and records its inputs.
type recordingEmbedder struct {
	texts []string
	err   error
}

func (e *recordingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.texts = append(e.texts, texts...)
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func TestIndex_Empty(t *testing.T) {
	db := &recordingDB{}
	emb := &recordingEmbedder{}
	s := New(db, emb, "test-model", log.NewNop())

	if err := s.Index(context.Background(), nil); err != nil {
		t.Fatalf("Index(nil) = %v, want nil", err)
	}
	if len(emb.texts) != 0 || len(db.execSQL) != 0 {
		t.Error("Index(nil) should not touch the embedder or the database")
	}
}

func TestIndex_StoresVectors(t *testing.T) {
	db := &recordingDB{}
	emb := &recordingEmbedder{}
	s := New(db, emb, "text-embedding-3-small", log.NewNop())

	speeches := []*domain.Speech{
		{ID: uuid.New(), Body: "第一の発言"},
		{ID: uuid.New(), Body: "第二の発言"},
	}
	if err := s.Index(context.Background(), speeches); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if len(db.execSQL) != 2 {
		t.Fatalf("got %d inserts, want 2", len(db.execSQL))
	}
	for i, args := range db.execArgs {
		if args[0] != speeches[i].ID {
			t.Errorf("insert %d speech_id = %v, want %v", i, args[0], speeches[i].ID)
		}
		if args[2] != "text-embedding-3-small" {
			t.Errorf("insert %d model = %v", i, args[2])
		}
	}
	if !strings.Contains(db.execSQL[0], "ON CONFLICT (speech_id)") {
		t.Error("insert must upsert on speech_id")
	}
}

func TestIndex_TruncatesLongBodies(t *testing.T) {
	db := &recordingDB{}
	emb := &recordingEmbedder{}
	s := New(db, emb, "m", log.NewNop())

	long := strings.Repeat("あ", maxEmbedChars)
	sp := &domain.Speech{ID: uuid.New(), Body: long}
	if err := s.Index(context.Background(), []*domain.Speech{sp}); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if len(emb.texts) != 1 {
		t.Fatalf("got %d embedded texts, want 1", len(emb.texts))
	}
	got := emb.texts[0]
	if len(got) > maxEmbedChars {
		t.Errorf("embedded %d bytes, want at most %d", len(got), maxEmbedChars)
	}
	if !utf8.ValidString(got) {
		t.Error("truncated body is not valid UTF-8")
	}
}

func TestIndex_VectorCountMismatch(t *testing.T) {
	db := &recordingDB{}
	emb := &mismatchEmbedder{}
	s := New(db, emb, "m", log.NewNop())

	err := s.Index(context.Background(), []*domain.Speech{
		{ID: uuid.New(), Body: "a"},
		{ID: uuid.New(), Body: "b"},
	})
	if err == nil || !strings.Contains(err.Error(), "vectors") {
		t.Errorf("Index with short vector batch = %v, want mismatch error", err)
	}
	if len(db.execSQL) != 0 {
		t.Error("no rows should be written on mismatch")
	}
}

type mismatchEmbedder struct{}

func (mismatchEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1, 0}}, nil
}

func TestIndex_EmbedError(t *testing.T) {
	db := &recordingDB{}
	emb := &recordingEmbedder{err: errors.New("quota exceeded")}
	s := New(db, emb, "m", log.NewNop())

	err := s.Index(context.Background(), []*domain.Speech{{ID: uuid.New(), Body: "x"}})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Index = %v, want wrapped embed error", err)
	}
}

func TestQuery_EmbedError(t *testing.T) {
	db := &recordingDB{}
	emb := &recordingEmbedder{err: errors.New("bad key")}
	s := New(db, emb, "m", log.NewNop())

	if _, err := s.Query(context.Background(), "防衛費"); err == nil {
		t.Error("Query should fail when the embedder fails")
	}
}

func TestQueryOptions(t *testing.T) {
	memberID := uuid.New()
	tests := []struct {
		name string
		opts []Option
		want searchConfig
	}{
		{"defaults", nil, searchConfig{topK: 10, timeout: 10 * time.Second}},
		{"top k", []Option{WithTopK(25)}, searchConfig{topK: 25, timeout: 10 * time.Second}},
		{"top k capped", []Option{WithTopK(500)}, searchConfig{topK: 50, timeout: 10 * time.Second}},
		{"top k non-positive ignored", []Option{WithTopK(0)}, searchConfig{topK: 10, timeout: 10 * time.Second}},
		{"session", []Option{WithSession(217)}, searchConfig{topK: 10, session: 217, timeout: 10 * time.Second}},
		{"member", []Option{WithMember(memberID)}, searchConfig{topK: 10, member: memberID, timeout: 10 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := searchConfig{topK: 10, timeout: 10 * time.Second}
			for _, opt := range tt.opts {
				opt(&cfg)
			}
			if cfg != tt.want {
				t.Errorf("config = %+v, want %+v", cfg, tt.want)
			}
		})
	}
}
