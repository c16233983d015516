// Package store implements PostgreSQL persistence for the tracker's
// entities. Each store takes a DBTX so production code passes a pgxpool
// while transactional code and tests can pass a pgx.Tx.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DBTX is the subset of pgx behavior the stores need. *pgxpool.Pool and
// pgx.Tx both satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pgx connection pool and verifies it with a ping.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// notFound maps pgx.ErrNoRows onto the package sentinel so callers never
// depend on pgx directly.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Page describes offset pagination. Zero values mean first page with the
// default size.
type Page struct {
	Number int // 1-based
	Size   int
}

// MaxPageSize caps the number of rows a single list call returns.
const MaxPageSize = 100

const defaultPageSize = 20

// limitOffset resolves a Page to SQL LIMIT/OFFSET values.
func (p Page) limitOffset() (limit, offset int) {
	size := p.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	number := p.Number
	if number < 1 {
		number = 1
	}
	return size, (number - 1) * size
}
