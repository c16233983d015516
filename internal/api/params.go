package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/store"
)

// pathID parses the {id} path segment named name as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// queryPage parses page and page_size parameters. Values above the store's
// cap are rejected rather than silently clamped.
func queryPage(r *http.Request) (store.Page, error) {
	var page store.Page

	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, fmt.Errorf("invalid page")
		}
		page.Number = n
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > store.MaxPageSize {
			return page, fmt.Errorf("page_size must be between 1 and %d", store.MaxPageSize)
		}
		page.Size = n
	}
	return page, nil
}

// queryInt parses an optional positive integer parameter, returning 0 when
// absent.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

// queryUUID parses an optional UUID parameter, returning uuid.Nil when
// absent.
func queryUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// listResponse is the common paged list envelope.
type listResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"page_size"`
}

func newListResponse(items any, total int, page store.Page) listResponse {
	number := page.Number
	if number < 1 {
		number = 1
	}
	size := page.Size
	if size < 1 {
		size = 20
	}
	return listResponse{Items: items, Total: total, Page: number, Size: size}
}
