package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/domain"
)

// CategoryStore persists the CAP policy category taxonomy and the
// bill ↔ category link table.
type CategoryStore struct {
	db     DBTX
	logger *slog.Logger
}

// NewCategoryStore creates a CategoryStore.
func NewCategoryStore(db DBTX, logger *slog.Logger) *CategoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryStore{db: db, logger: logger}
}

const categoryColumns = `id, cap_code, layer, title_ja, coalesce(title_en, ''),
	parent_id, coalesce(airtable_id, ''), created_at`

// Upsert inserts or updates a category node keyed on its CAP code.
func (s *CategoryStore) Upsert(ctx context.Context, c *domain.PolicyCategory) (*domain.PolicyCategory, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO policy_categories (cap_code, layer, title_ja, title_en, parent_id, airtable_id)
		VALUES ($1, $2, $3, nullif($4, ''), $5, nullif($6, ''))
		ON CONFLICT (cap_code) DO UPDATE SET
			title_ja    = EXCLUDED.title_ja,
			title_en    = coalesce(EXCLUDED.title_en, policy_categories.title_en),
			airtable_id = coalesce(EXCLUDED.airtable_id, policy_categories.airtable_id)
		RETURNING `+categoryColumns,
		c.CAPCode, c.Layer, c.TitleJA, c.TitleEN, c.ParentID, c.AirtableID)

	stored, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("upsert category %q: %w", c.CAPCode, err)
	}
	return stored, nil
}

// Get retrieves a category by ID.
func (s *CategoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.PolicyCategory, error) {
	row := s.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM policy_categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("get category %s: %w", id, notFound(err))
	}
	return c, nil
}

// GetByCAPCode retrieves a category by its CAP code, the key the
// classifier's LLM output carries.
func (s *CategoryStore) GetByCAPCode(ctx context.Context, code string) (*domain.PolicyCategory, error) {
	row := s.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM policy_categories WHERE cap_code = $1`, code)
	c, err := scanCategory(row)
	if err != nil {
		return nil, fmt.Errorf("get category by code %q: %w", code, notFound(err))
	}
	return c, nil
}

// Tree returns all categories as L1 roots with their L2 children, ordered
// by CAP code.
func (s *CategoryStore) Tree(ctx context.Context) ([]*domain.CategoryTree, error) {
	rows, err := s.db.Query(ctx, `SELECT `+categoryColumns+` FROM policy_categories ORDER BY cap_code`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var (
		roots  []*domain.CategoryTree
		byID   = map[uuid.UUID]*domain.CategoryTree{}
		orphan []domain.PolicyCategory
	)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if c.Layer == domain.LayerL1 {
			node := &domain.CategoryTree{PolicyCategory: *c}
			byID[c.ID] = node
			roots = append(roots, node)
			continue
		}
		orphan = append(orphan, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	// cap_code ordering puts every L1 before its L2s, but attach by parent
	// ID rather than relying on it.
	for _, c := range orphan {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Children = append(parent.Children, c)
				continue
			}
		}
		s.logger.Warn("L2 category without known parent", "cap_code", c.CAPCode)
	}
	return roots, nil
}

// LinkBill writes a bill ↔ category link. Manual links always win: an
// automatic (classifier) write never updates a row that an editor created,
// while a manual write takes the row over unconditionally.
func (s *CategoryStore) LinkBill(ctx context.Context, link domain.BillCategoryLink) error {
	var err error
	if link.IsManual {
		_, err = s.db.Exec(ctx, `
			INSERT INTO bills_issue_categories (bill_id, category_id, confidence_score, is_manual)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (bill_id, category_id) DO UPDATE SET
				confidence_score = EXCLUDED.confidence_score,
				is_manual        = TRUE,
				updated_at       = now()`,
			link.BillID, link.CategoryID, link.Confidence)
	} else {
		_, err = s.db.Exec(ctx, `
			INSERT INTO bills_issue_categories (bill_id, category_id, confidence_score, is_manual)
			VALUES ($1, $2, $3, FALSE)
			ON CONFLICT (bill_id, category_id) DO UPDATE SET
				confidence_score = EXCLUDED.confidence_score,
				updated_at       = now()
			WHERE NOT bills_issue_categories.is_manual`,
			link.BillID, link.CategoryID, link.Confidence)
	}
	if err != nil {
		return fmt.Errorf("link bill %s to category %s: %w", link.BillID, link.CategoryID, err)
	}
	s.logger.Debug("linked bill to category",
		"bill_id", link.BillID, "category_id", link.CategoryID,
		"confidence", link.Confidence, "manual", link.IsManual)
	return nil
}

// UnlinkBill removes a manual link. Automatic links are only replaced by
// reclassification, never deleted through the API.
func (s *CategoryStore) UnlinkBill(ctx context.Context, billID, categoryID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM bills_issue_categories
		WHERE bill_id = $1 AND category_id = $2 AND is_manual`,
		billID, categoryID)
	if err != nil {
		return fmt.Errorf("unlink bill %s from category %s: %w", billID, categoryID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unlink bill %s from category %s: %w", billID, categoryID, ErrNotFound)
	}
	return nil
}

// BillLinks returns all category links for a bill, highest confidence first.
func (s *CategoryStore) BillLinks(ctx context.Context, billID uuid.UUID) ([]domain.BillCategoryLink, error) {
	rows, err := s.db.Query(ctx, `
		SELECT bill_id, category_id, confidence_score, is_manual, created_at, updated_at
		FROM bills_issue_categories
		WHERE bill_id = $1
		ORDER BY is_manual DESC, confidence_score DESC`, billID)
	if err != nil {
		return nil, fmt.Errorf("list links for bill %s: %w", billID, err)
	}
	defer rows.Close()

	var links []domain.BillCategoryLink
	for rows.Next() {
		var l domain.BillCategoryLink
		if err := rows.Scan(&l.BillID, &l.CategoryID, &l.Confidence, &l.IsManual, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func scanCategory(row rowScanner) (*domain.PolicyCategory, error) {
	var c domain.PolicyCategory
	err := row.Scan(&c.ID, &c.CAPCode, &c.Layer, &c.TitleJA, &c.TitleEN,
		&c.ParentID, &c.AirtableID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
