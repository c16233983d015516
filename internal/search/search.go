// Package search provides semantic search over Diet speeches using
// pgvector-backed embeddings.
//
// Embeddings are generated through the configured llm.Embedder and stored
// alongside speeches; queries embed the search text and rank rows by cosine
// distance.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/llm"
	"github.com/seiji-watch/diet-tracker/internal/metrics"
	"github.com/seiji-watch/diet-tracker/internal/normalize"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

// Result is a speech with its similarity score (1 = identical direction).
type Result struct {
	Speech domain.Speech `json:"speech"`
	Score  float64       `json:"score"`
}

// Store manages speech embeddings and vector search. Safe for concurrent
// use by multiple goroutines.
type Store struct {
	db       store.DBTX
	embedder llm.Embedder
	model    string
	logger   *slog.Logger
}

// New creates a search Store.
func New(db store.DBTX, embedder llm.Embedder, model string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, model: model, logger: logger}
}

// Index embeds a batch of speeches and upserts their vectors. Speech bodies
// are truncated to maxEmbedChars before embedding to stay inside model
// context limits.
const maxEmbedChars = 8000

func (s *Store) Index(ctx context.Context, speeches []*domain.Speech) error {
	if len(speeches) == 0 {
		return nil
	}

	texts := make([]string, len(speeches))
	for i, sp := range speeches {
		texts[i] = normalize.Truncate(sp.Body, maxEmbedChars)
	}

	start := time.Now()
	vectors, err := s.embedder.Embed(ctx, texts)
	metrics.RecordEmbeddingDuration(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(speeches) {
		return fmt.Errorf("embedder returned %d vectors for %d speeches", len(vectors), len(speeches))
	}

	for i, sp := range speeches {
		vec := pgvector.NewVector(vectors[i])
		_, err := s.db.Exec(ctx, `
			INSERT INTO speech_embeddings (speech_id, embedding, model)
			VALUES ($1, $2, $3)
			ON CONFLICT (speech_id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				model     = EXCLUDED.model`,
			sp.ID, vec, s.model)
		if err != nil {
			return fmt.Errorf("store embedding for speech %s: %w", sp.ID, err)
		}
		metrics.RecordEmbeddingIndexed()
	}

	s.logger.Debug("indexed speeches", "count", len(speeches), "model", s.model)
	return nil
}

// searchConfig holds resolved search options.
type searchConfig struct {
	topK    int
	session int
	member  uuid.UUID
	timeout time.Duration
}

// Option configures Query.
type Option func(*searchConfig)

// WithTopK sets the maximum number of results (default 10, cap 50).
func WithTopK(k int) Option {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = min(k, 50)
		}
	}
}

// WithSession restricts results to one Diet session.
func WithSession(session int) Option {
	return func(c *searchConfig) { c.session = session }
}

// WithMember restricts results to speeches by one member.
func WithMember(id uuid.UUID) Option {
	return func(c *searchConfig) { c.member = id }
}

// Query performs semantic search over indexed speeches. Results are ordered
// by similarity. An empty index yields an empty slice, not an error.
//
// A query timeout bounds the vector scan so a cold ivfflat index cannot
// block the API.
func (s *Store) Query(ctx context.Context, query string, opts ...Option) ([]Result, error) {
	cfg := searchConfig{topK: 10, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vectors, err := s.embedder.Embed(queryCtx, []string{query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return []Result{}, nil
	}
	queryVec := pgvector.NewVector(vectors[0])

	var (
		cond = ""
		args = []any{queryVec}
	)
	if cfg.session != 0 {
		args = append(args, cfg.session)
		cond += fmt.Sprintf(" AND sp.session = $%d", len(args))
	}
	if cfg.member != uuid.Nil {
		args = append(args, cfg.member)
		cond += fmt.Sprintf(" AND sp.member_id = $%d", len(args))
	}
	args = append(args, cfg.topK)

	rows, err := s.db.Query(queryCtx, fmt.Sprintf(`
		SELECT sp.id, sp.ndl_id, sp.session, sp.house, sp.meeting, sp.speaker_name,
			coalesce(sp.member_id, '00000000-0000-0000-0000-000000000000'::uuid),
			sp.body, coalesce(sp.spoken_at, 'epoch'::timestamptz), coalesce(sp.minutes_url, ''),
			sp.created_at,
			1 - (se.embedding <=> $1) AS score
		FROM speech_embeddings se
		JOIN speeches sp ON sp.id = se.speech_id
		WHERE TRUE%s
		ORDER BY se.embedding <=> $1
		LIMIT $%d`, cond, len(args)), args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, cfg.topK)
	for rows.Next() {
		var r Result
		sp := &r.Speech
		err := rows.Scan(&sp.ID, &sp.NDLID, &sp.Session, &sp.House, &sp.Meeting,
			&sp.SpeakerName, &sp.MemberID, &sp.Body, &sp.SpokenAt, &sp.MinutesURL,
			&sp.CreatedAt, &r.Score)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Count returns the number of indexed speeches.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM speech_embeddings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}
