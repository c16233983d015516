package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

const (
	categoryTreeCacheKey = "tree"
	categoryTreeTTL      = 5 * time.Minute
)

// categoryHandler serves the policy category taxonomy. The tree changes
// only when the taxonomy is reseeded, so responses are cached briefly.
type categoryHandler struct {
	categories CategoryStore
	cache      *cache.Cache
	logger     *slog.Logger
}

func newCategoryHandler(categories CategoryStore, logger *slog.Logger) *categoryHandler {
	return &categoryHandler{
		categories: categories,
		cache:      cache.New(categoryTreeTTL, 2*categoryTreeTTL),
		logger:     logger,
	}
}

// tree serves GET /api/policy-categories as L1 roots with nested L2
// children.
func (h *categoryHandler) tree(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.Get(categoryTreeCacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	tree, err := h.categories.Tree(r.Context())
	if err != nil {
		h.logger.Error("loading category tree", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load categories")
		return
	}
	if tree == nil {
		tree = []*domain.CategoryTree{}
	}

	h.cache.Set(categoryTreeCacheKey, tree, cache.DefaultExpiration)
	writeJSON(w, http.StatusOK, tree)
}

// get serves GET /api/policy-categories/{id}.
func (h *categoryHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	category, err := h.categories.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "category not found")
		return
	}
	if err != nil {
		h.logger.Error("getting category", "category", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get category")
		return
	}
	writeJSON(w, http.StatusOK, category)
}
