package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

type memberHandler struct {
	members MemberReader
	logger  *slog.Logger
}

// list serves GET /api/members with an optional house filter.
func (h *memberHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	var house domain.House
	if raw := r.URL.Query().Get("house"); raw != "" {
		house = domain.House(raw)
		if house != domain.HouseRepresentatives && house != domain.HouseCouncillors {
			writeError(w, http.StatusBadRequest, "invalid_param", "invalid house")
			return
		}
	}

	members, total, err := h.members.List(r.Context(), house, page)
	if err != nil {
		h.logger.Error("listing members", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(members, total, page))
}

// get serves GET /api/members/{id}.
func (h *memberHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	member, err := h.members.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "member not found")
		return
	}
	if err != nil {
		h.logger.Error("getting member", "member", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get member")
		return
	}
	writeJSON(w, http.StatusOK, member)
}
