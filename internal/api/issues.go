package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

type issueHandler struct {
	issues IssueStore
	logger *slog.Logger
}

// list serves GET /api/issues with an optional status filter.
func (h *issueHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	var status domain.BillStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = domain.BillStatus(raw)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_param", "invalid status")
			return
		}
	}

	issues, total, err := h.issues.List(r.Context(), status, page)
	if err != nil {
		h.logger.Error("listing issues", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list issues")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(issues, total, page))
}

// get serves GET /api/issues/{id}.
func (h *issueHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	issue, err := h.issues.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "issue not found")
		return
	}
	if err != nil {
		h.logger.Error("getting issue", "issue", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get issue")
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

type createIssueRequest struct {
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Status     string    `json:"status"`
	CategoryID uuid.UUID `json:"category_id"`
}

// create serves POST /api/issues for the editorial kanban board.
func (h *issueHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "title is required")
		return
	}
	status := domain.StatusBacklog
	if req.Status != "" {
		status = domain.BillStatus(req.Status)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid status")
			return
		}
	}

	issue, err := h.issues.Create(r.Context(), &domain.Issue{
		Title:      req.Title,
		Summary:    strings.TrimSpace(req.Summary),
		Status:     status,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		h.logger.Error("creating issue", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create issue")
		return
	}

	subject, _ := subjectFromContext(r.Context())
	h.logger.Info("issue created", "issue", issue.ID, "editor", subject)
	writeJSON(w, http.StatusCreated, issue)
}
