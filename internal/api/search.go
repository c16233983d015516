package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/search"
)

type searchHandler struct {
	searcher SpeechSearcher
	logger   *slog.Logger
}

type searchResponse struct {
	Results []search.Result `json:"results"`
	Count   int             `json:"count"`
}

// speeches serves GET /api/search/speeches?q= with optional top_k,
// session, and member filters.
func (h *searchHandler) speeches(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_param", "q is required")
		return
	}

	var opts []search.Option
	topK, err := queryInt(r, "top_k")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}
	if topK > 0 {
		opts = append(opts, search.WithTopK(topK))
	}
	session, err := queryInt(r, "session")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}
	if session > 0 {
		opts = append(opts, search.WithSession(session))
	}
	memberID, err := queryUUID(r, "member")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}
	if memberID != uuid.Nil {
		opts = append(opts, search.WithMember(memberID))
	}

	results, err := h.searcher.Query(r.Context(), query, opts...)
	if err != nil {
		h.logger.Error("searching speeches", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}
