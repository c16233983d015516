package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/seiji-watch/diet-tracker/internal/domain"
	"github.com/seiji-watch/diet-tracker/internal/store"
)

type billHandler struct {
	bills      BillReader
	categories CategoryStore
	logger     *slog.Logger
}

// list serves GET /api/bills with session, status, house, and category
// filters.
func (h *billHandler) list(w http.ResponseWriter, r *http.Request) {
	page, err := queryPage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	var filter store.BillFilter
	if filter.Session, err = queryInt(r, "session"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.BillStatus(raw)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_param", "invalid status")
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("house"); raw != "" {
		house := domain.House(raw)
		if house != domain.HouseRepresentatives && house != domain.HouseCouncillors {
			writeError(w, http.StatusBadRequest, "invalid_param", "invalid house")
			return
		}
		filter.House = house
	}
	if filter.CategoryID, err = queryUUID(r, "category"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	bills, total, err := h.bills.List(r.Context(), filter, page)
	if err != nil {
		h.logger.Error("listing bills", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list bills")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(bills, total, page))
}

type billDetail struct {
	*domain.Bill
	PolicyCategories []domain.BillCategoryLink `json:"policy_categories"`
}

// get serves GET /api/bills/{id}, including the bill's category links.
func (h *billHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	bill, err := h.bills.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "bill not found")
		return
	}
	if err != nil {
		h.logger.Error("getting bill", "bill", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get bill")
		return
	}

	links, err := h.categories.BillLinks(r.Context(), id)
	if err != nil {
		h.logger.Error("getting bill links", "bill", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get bill")
		return
	}
	if links == nil {
		links = []domain.BillCategoryLink{}
	}
	writeJSON(w, http.StatusOK, billDetail{Bill: bill, PolicyCategories: links})
}

type linkRequest struct {
	CategoryID uuid.UUID `json:"category_id"`
}

// linkCategory serves POST /api/bills/{id}/policy-categories. Links made
// here are manual: they always win over automatic classification and are
// never overwritten by it.
func (h *billHandler) linkCategory(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CategoryID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "category_id is required")
		return
	}

	if _, err := h.bills.Get(r.Context(), billID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "bill not found")
			return
		}
		h.logger.Error("getting bill", "bill", billID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to link category")
		return
	}
	if _, err := h.categories.Get(r.Context(), req.CategoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "category not found")
			return
		}
		h.logger.Error("getting category", "category", req.CategoryID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to link category")
		return
	}

	link := domain.BillCategoryLink{
		BillID:     billID,
		CategoryID: req.CategoryID,
		Confidence: 1.0,
		IsManual:   true,
	}
	if err := h.categories.LinkBill(r.Context(), link); err != nil {
		h.logger.Error("linking category", "bill", billID, "category", req.CategoryID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to link category")
		return
	}

	subject, _ := subjectFromContext(r.Context())
	h.logger.Info("manual category link created",
		"bill", billID, "category", req.CategoryID, "editor", subject)
	writeJSON(w, http.StatusCreated, link)
}

// unlinkCategory serves DELETE /api/bills/{id}/policy-categories/{categoryID}.
// Only manual links can be removed here; automatic ones are owned by the
// classifier.
func (h *billHandler) unlinkCategory(w http.ResponseWriter, r *http.Request) {
	billID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	if err := h.categories.UnlinkBill(r.Context(), billID, categoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "manual link not found")
			return
		}
		h.logger.Error("unlinking category", "bill", billID, "category", categoryID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to unlink category")
		return
	}

	subject, _ := subjectFromContext(r.Context())
	h.logger.Info("manual category link removed",
		"bill", billID, "category", categoryID, "editor", subject)
	w.WriteHeader(http.StatusNoContent)
}
