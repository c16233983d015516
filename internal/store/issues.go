package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/domain"
)

// IssueStore persists editorial policy issues (the kanban board rows).
type IssueStore struct {
	db     DBTX
	logger *slog.Logger
}

// NewIssueStore creates an IssueStore.
func NewIssueStore(db DBTX, logger *slog.Logger) *IssueStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssueStore{db: db, logger: logger}
}

const issueColumns = `id, title, coalesce(summary, ''), status,
	coalesce(category_id, '00000000-0000-0000-0000-000000000000'::uuid),
	coalesce(airtable_id, ''), created_at, updated_at`

// Create inserts a new issue.
func (s *IssueStore) Create(ctx context.Context, in *domain.Issue) (*domain.Issue, error) {
	var categoryID any
	if in.CategoryID != uuid.Nil {
		categoryID = in.CategoryID
	}
	status := in.Status
	if status == "" {
		status = domain.StatusBacklog
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO issues (title, summary, status, category_id, airtable_id)
		VALUES ($1, nullif($2, ''), $3, $4, nullif($5, ''))
		RETURNING `+issueColumns,
		in.Title, in.Summary, status, categoryID, in.AirtableID)

	issue, err := scanIssue(row)
	if err != nil {
		return nil, fmt.Errorf("create issue %q: %w", in.Title, err)
	}
	s.logger.Debug("created issue", "id", issue.ID, "title", issue.Title)
	return issue, nil
}

// Get retrieves an issue by ID.
func (s *IssueStore) Get(ctx context.Context, id uuid.UUID) (*domain.Issue, error) {
	row := s.db.QueryRow(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id)
	issue, err := scanIssue(row)
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", id, notFound(err))
	}
	return issue, nil
}

// List returns issues, optionally filtered by status, newest first.
func (s *IssueStore) List(ctx context.Context, status domain.BillStatus, page Page) ([]*domain.Issue, int, error) {
	cond := ""
	args := []any{}
	if status != "" {
		cond = " WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM issues"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	limit, offset := page.limitOffset()
	args = append(args, limit, offset)
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		`SELECT `+issueColumns+` FROM issues%s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []*domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, total, rows.Err()
}

func scanIssue(row rowScanner) (*domain.Issue, error) {
	var i domain.Issue
	err := row.Scan(&i.ID, &i.Title, &i.Summary, &i.Status, &i.CategoryID,
		&i.AirtableID, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
