package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/seiji-watch/diet-tracker/internal/store"
)

type speechHandler struct {
	speeches SpeechReader
	logger   *slog.Logger
}

// list serves GET /api/speeches with session, member, and meeting filters.
func (h *speechHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	var filter store.SpeechFilter
	if filter.Session, err = queryInt(r, "session"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}
	if filter.MemberID, err = queryUUID(r, "member"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}
	filter.Meeting = r.URL.Query().Get("meeting")

	speeches, total, err := h.speeches.List(r.Context(), filter, page)
	if err != nil {
		h.logger.Error("listing speeches", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list speeches")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(speeches, total, page))
}

// get serves GET /api/speeches/{id}.
func (h *speechHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	speech, err := h.speeches.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "speech not found")
		return
	}
	if err != nil {
		h.logger.Error("getting speech", "speech", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get speech")
		return
	}
	writeJSON(w, http.StatusOK, speech)
}
