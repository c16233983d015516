package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/domain"
)

// BillStore persists bills. Safe for concurrent use.
type BillStore struct {
	db     DBTX
	logger *slog.Logger
}

// NewBillStore creates a BillStore. A nil logger falls back to slog.Default.
func NewBillStore(db DBTX, logger *slog.Logger) *BillStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillStore{db: db, logger: logger}
}

const billColumns = `id, session, house, bill_number, title, coalesce(summary, ''), status,
	coalesce(category, ''), coalesce(diet_url, ''), coalesce(airtable_id, ''),
	submitted_at, created_at, updated_at`

// Upsert inserts a bill or updates the scraped fields of an existing one,
// keyed on (session, house, bill_number). Editorial fields (category,
// airtable_id) are preserved on conflict.
func (s *BillStore) Upsert(ctx context.Context, b *domain.Bill) (*domain.Bill, error) {
	var submittedAt any
	if !b.SubmittedAt.IsZero() {
		submittedAt = b.SubmittedAt
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO bills (session, house, bill_number, title, summary, status, diet_url, submitted_at)
		VALUES ($1, $2, $3, $4, nullif($5, ''), $6, nullif($7, ''), $8)
		ON CONFLICT (session, house, bill_number) DO UPDATE SET
			title        = EXCLUDED.title,
			summary      = coalesce(EXCLUDED.summary, bills.summary),
			status       = EXCLUDED.status,
			diet_url     = coalesce(EXCLUDED.diet_url, bills.diet_url),
			submitted_at = coalesce(EXCLUDED.submitted_at, bills.submitted_at),
			updated_at   = now()
		RETURNING `+billColumns,
		b.Session, b.House, b.BillNumber, b.Title, b.Summary, b.Status, b.DietURL, submittedAt)

	stored, err := scanBill(row)
	if err != nil {
		return nil, fmt.Errorf("upsert bill %d/%s/%s: %w", b.Session, b.House, b.BillNumber, err)
	}
	s.logger.Debug("upserted bill", "id", stored.ID, "session", stored.Session, "number", stored.BillNumber)
	return stored, nil
}

// Get retrieves a bill by ID. Returns ErrNotFound when absent.
func (s *BillStore) Get(ctx context.Context, id uuid.UUID) (*domain.Bill, error) {
	row := s.db.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id)
	b, err := scanBill(row)
	if err != nil {
		return nil, fmt.Errorf("get bill %s: %w", id, notFound(err))
	}
	return b, nil
}

// BillFilter narrows List results. Zero values mean "no filter".
type BillFilter struct {
	Session    int
	Status     domain.BillStatus
	House      domain.House
	CategoryID uuid.UUID // bills linked to this policy category
}

// List returns bills matching the filter, newest session first, plus the
// total count for pagination.
func (s *BillStore) List(ctx context.Context, filter BillFilter, page Page) ([]*domain.Bill, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Session != 0 {
		where = append(where, "b.session = "+arg(filter.Session))
	}
	if filter.Status != "" {
		where = append(where, "b.status = "+arg(filter.Status))
	}
	if filter.House != "" {
		where = append(where, "b.house = "+arg(filter.House))
	}
	if filter.CategoryID != uuid.Nil {
		where = append(where, "EXISTS (SELECT 1 FROM bills_issue_categories bic WHERE bic.bill_id = b.id AND bic.category_id = "+arg(filter.CategoryID)+")")
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM bills b"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}

	limit, offset := page.limitOffset()
	query := `SELECT ` + billColumns +
		` FROM bills b` + cond +
		` ORDER BY b.session DESC, b.bill_number ASC` +
		` LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var bills []*domain.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bills: %w", err)
	}
	return bills, total, nil
}

// ListUnclassified returns bills with no automatic category link yet,
// oldest first, capped at limit. The classify command works through this
// backlog.
func (s *BillStore) ListUnclassified(ctx context.Context, limit int) ([]*domain.Bill, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE NOT EXISTS (
			SELECT 1 FROM bills_issue_categories bic
			WHERE bic.bill_id = bills.id AND NOT bic.is_manual
		)
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unclassified bills: %w", err)
	}
	defer rows.Close()

	var bills []*domain.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// UpdateEditorial sets the editorial fields written back by the
// completeness pass.
func (s *BillStore) UpdateEditorial(ctx context.Context, id uuid.UUID, category, summary string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE bills SET
			category   = coalesce(nullif($2, ''), category),
			summary    = coalesce(nullif($3, ''), summary),
			updated_at = now()
		WHERE id = $1`, id, category, summary)
	if err != nil {
		return fmt.Errorf("update bill %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update bill %s: %w", id, ErrNotFound)
	}
	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*domain.Bill, error) {
	var (
		b           domain.Bill
		submittedAt *time.Time
	)
	err := row.Scan(&b.ID, &b.Session, &b.House, &b.BillNumber, &b.Title, &b.Summary,
		&b.Status, &b.Category, &b.DietURL, &b.AirtableID, &submittedAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if submittedAt != nil {
		b.SubmittedAt = *submittedAt
	}
	return &b, nil
}
