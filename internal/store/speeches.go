package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/domain"
)

// SpeechStore persists NDL minutes speeches.
type SpeechStore struct {
	db     DBTX
	logger *slog.Logger
}

// NewSpeechStore creates a SpeechStore.
func NewSpeechStore(db DBTX, logger *slog.Logger) *SpeechStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeechStore{db: db, logger: logger}
}

const speechColumns = `id, ndl_id, session, house, meeting, speaker_name,
	coalesce(member_id, '00000000-0000-0000-0000-000000000000'::uuid),
	body, coalesce(spoken_at, 'epoch'::timestamptz), coalesce(minutes_url, ''), created_at`

// Upsert inserts a speech keyed on its NDL speech ID. Re-ingesting a
// minutes window is idempotent; an existing row only gains a member link
// if one was matched since.
func (s *SpeechStore) Upsert(ctx context.Context, sp *domain.Speech) (*domain.Speech, error) {
	var memberID any
	if sp.MemberID != uuid.Nil {
		memberID = sp.MemberID
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO speeches (ndl_id, session, house, meeting, speaker_name, member_id, body, spoken_at, minutes_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, nullif($8, 'epoch'::timestamptz), nullif($9, ''))
		ON CONFLICT (ndl_id) DO UPDATE SET
			member_id = coalesce(speeches.member_id, EXCLUDED.member_id)
		RETURNING `+speechColumns,
		sp.NDLID, sp.Session, sp.House, sp.Meeting, sp.SpeakerName, memberID,
		sp.Body, sp.SpokenAt, sp.MinutesURL)

	stored, err := scanSpeech(row)
	if err != nil {
		return nil, fmt.Errorf("upsert speech %q: %w", sp.NDLID, err)
	}
	return stored, nil
}

// Get retrieves a speech by ID.
func (s *SpeechStore) Get(ctx context.Context, id uuid.UUID) (*domain.Speech, error) {
	row := s.db.QueryRow(ctx, `SELECT `+speechColumns+` FROM speeches WHERE id = $1`, id)
	sp, err := scanSpeech(row)
	if err != nil {
		return nil, fmt.Errorf("get speech %s: %w", id, notFound(err))
	}
	return sp, nil
}

// SpeechFilter narrows List results.
type SpeechFilter struct {
	Session  int
	MemberID uuid.UUID
	Meeting  string
}

// List returns speeches matching the filter, most recent first.
func (s *SpeechStore) List(ctx context.Context, filter SpeechFilter, page Page) ([]*domain.Speech, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Session != 0 {
		where = append(where, "session = "+arg(filter.Session))
	}
	if filter.MemberID != uuid.Nil {
		where = append(where, "member_id = "+arg(filter.MemberID))
	}
	if filter.Meeting != "" {
		where = append(where, "meeting = "+arg(filter.Meeting))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM speeches"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count speeches: %w", err)
	}

	limit, offset := page.limitOffset()
	rows, err := s.db.Query(ctx,
		`SELECT `+speechColumns+` FROM speeches`+cond+
			` ORDER BY spoken_at DESC NULLS LAST LIMIT `+arg(limit)+` OFFSET `+arg(offset),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list speeches: %w", err)
	}
	defer rows.Close()

	var speeches []*domain.Speech
	for rows.Next() {
		sp, err := scanSpeech(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan speech: %w", err)
		}
		speeches = append(speeches, sp)
	}
	return speeches, total, rows.Err()
}

// ListUnembedded returns speeches without a stored embedding, oldest first.
// The embed backfill command drains this.
func (s *SpeechStore) ListUnembedded(ctx context.Context, limit int) ([]*domain.Speech, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+speechColumns+` FROM speeches
		WHERE NOT EXISTS (SELECT 1 FROM speech_embeddings se WHERE se.speech_id = speeches.id)
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unembedded speeches: %w", err)
	}
	defer rows.Close()

	var speeches []*domain.Speech
	for rows.Next() {
		sp, err := scanSpeech(rows)
		if err != nil {
			return nil, fmt.Errorf("scan speech: %w", err)
		}
		speeches = append(speeches, sp)
	}
	return speeches, rows.Err()
}

func scanSpeech(row rowScanner) (*domain.Speech, error) {
	var sp domain.Speech
	err := row.Scan(&sp.ID, &sp.NDLID, &sp.Session, &sp.House, &sp.Meeting,
		&sp.SpeakerName, &sp.MemberID, &sp.Body, &sp.SpokenAt, &sp.MinutesURL, &sp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}
