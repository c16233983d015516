package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestPageLimitOffset(t *testing.T) {
	tests := []struct {
		name       string
		page       Page
		wantLimit  int
		wantOffset int
	}{
		{"zero value", Page{}, defaultPageSize, 0},
		{"first page explicit", Page{Number: 1, Size: 20}, 20, 0},
		{"second page", Page{Number: 2, Size: 20}, 20, 20},
		{"custom size", Page{Number: 3, Size: 5}, 5, 10},
		{"size over cap", Page{Number: 1, Size: 500}, MaxPageSize, 0},
		{"negative number", Page{Number: -4, Size: 10}, 10, 0},
		{"negative size", Page{Number: 2, Size: -1}, defaultPageSize, defaultPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := tt.page.limitOffset()
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("limitOffset() = (%d, %d), want (%d, %d)",
					limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	if err := notFound(pgx.ErrNoRows); !errors.Is(err, ErrNotFound) {
		t.Errorf("notFound(pgx.ErrNoRows) = %v, want ErrNotFound", err)
	}

	wrapped := fmt.Errorf("get bill: %w", pgx.ErrNoRows)
	if err := notFound(wrapped); !errors.Is(err, ErrNotFound) {
		t.Errorf("notFound(wrapped ErrNoRows) = %v, want ErrNotFound", err)
	}

	other := errors.New("connection refused")
	if err := notFound(other); !errors.Is(err, other) || errors.Is(err, ErrNotFound) {
		t.Errorf("notFound(other) = %v, want the original error unchanged", err)
	}
}
