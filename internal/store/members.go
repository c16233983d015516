package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/domain"
)

// MemberStore persists Diet members and their parties.
type MemberStore struct {
	db     DBTX
	logger *slog.Logger
}

// NewMemberStore creates a MemberStore.
func NewMemberStore(db DBTX, logger *slog.Logger) *MemberStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemberStore{db: db, logger: logger}
}

// UpsertParty inserts a party by name or returns the existing row.
func (s *MemberStore) UpsertParty(ctx context.Context, name, nameShort string) (*domain.Party, error) {
	var p domain.Party
	err := s.db.QueryRow(ctx, `
		INSERT INTO parties (name, name_short)
		VALUES ($1, nullif($2, ''))
		ON CONFLICT (name) DO UPDATE SET
			name_short = coalesce(EXCLUDED.name_short, parties.name_short)
		RETURNING id, name, coalesce(name_short, ''), created_at`,
		name, nameShort).Scan(&p.ID, &p.Name, &p.NameShort, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert party %q: %w", name, err)
	}
	return &p, nil
}

// Upsert inserts a member or refreshes an existing one, keyed on
// (name, house). Roster scrapes run repeatedly; the key mirrors how the
// source pages identify members.
func (s *MemberStore) Upsert(ctx context.Context, m *domain.Member) (*domain.Member, error) {
	var partyID any
	if m.PartyID != uuid.Nil {
		partyID = m.PartyID
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO members (name, name_kana, house, district, party_id)
		VALUES ($1, nullif($2, ''), $3, nullif($4, ''), $5)
		ON CONFLICT (name, house) DO UPDATE SET
			name_kana  = coalesce(EXCLUDED.name_kana, members.name_kana),
			district   = coalesce(EXCLUDED.district, members.district),
			party_id   = coalesce(EXCLUDED.party_id, members.party_id),
			updated_at = now()
		RETURNING id, name, coalesce(name_kana, ''), house, coalesce(district, ''),
			coalesce(party_id, '00000000-0000-0000-0000-000000000000'::uuid),
			coalesce(airtable_id, ''), created_at, updated_at`,
		m.Name, m.NameKana, m.House, m.District, partyID)

	stored, err := scanMember(row)
	if err != nil {
		return nil, fmt.Errorf("upsert member %q: %w", m.Name, err)
	}
	s.logger.Debug("upserted member", "id", stored.ID, "name", stored.Name)
	return stored, nil
}

// Get retrieves a member with the party name joined in.
func (s *MemberStore) Get(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	row := s.db.QueryRow(ctx, `
		SELECT m.id, m.name, coalesce(m.name_kana, ''), m.house, coalesce(m.district, ''),
			coalesce(m.party_id, '00000000-0000-0000-0000-000000000000'::uuid),
			coalesce(m.airtable_id, ''), m.created_at, m.updated_at,
			coalesce(p.name, '')
		FROM members m
		LEFT JOIN parties p ON p.id = m.party_id
		WHERE m.id = $1`, id)

	var m domain.Member
	err := row.Scan(&m.ID, &m.Name, &m.NameKana, &m.House, &m.District, &m.PartyID,
		&m.AirtableID, &m.CreatedAt, &m.UpdatedAt, &m.PartyName)
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", id, notFound(err))
	}
	return &m, nil
}

// FindByName looks a member up by exact name within a house, used to link
// NDL speakers to roster members. Returns ErrNotFound for unknown speakers.
func (s *MemberStore) FindByName(ctx context.Context, name string, house domain.House) (*domain.Member, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, coalesce(name_kana, ''), house, coalesce(district, ''),
			coalesce(party_id, '00000000-0000-0000-0000-000000000000'::uuid),
			coalesce(airtable_id, ''), created_at, updated_at
		FROM members WHERE name = $1 AND house = $2`, name, house)
	m, err := scanMember(row)
	if err != nil {
		return nil, fmt.Errorf("find member %q: %w", name, notFound(err))
	}
	return m, nil
}

// List returns members, optionally filtered by house, with party names.
func (s *MemberStore) List(ctx context.Context, house domain.House, page Page) ([]*domain.Member, int, error) {
	cond := ""
	args := []any{}
	if house != "" {
		cond = " WHERE m.house = $1"
		args = append(args, house)
	}

	var total int
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM members m"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}

	limit, offset := page.limitOffset()
	args = append(args, limit, offset)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT m.id, m.name, coalesce(m.name_kana, ''), m.house, coalesce(m.district, ''),
			coalesce(m.party_id, '00000000-0000-0000-0000-000000000000'::uuid),
			coalesce(m.airtable_id, ''), m.created_at, m.updated_at,
			coalesce(p.name, '')
		FROM members m
		LEFT JOIN parties p ON p.id = m.party_id
		%s
		ORDER BY m.name_kana NULLS LAST, m.name
		LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		var m domain.Member
		err := rows.Scan(&m.ID, &m.Name, &m.NameKana, &m.House, &m.District, &m.PartyID,
			&m.AirtableID, &m.CreatedAt, &m.UpdatedAt, &m.PartyName)
		if err != nil {
			return nil, 0, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}
	return members, total, rows.Err()
}

func scanMember(row rowScanner) (*domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.ID, &m.Name, &m.NameKana, &m.House, &m.District, &m.PartyID,
		&m.AirtableID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
