package handlers

import (
	"net/http"
	"strconv"

	"leaddesk/internal/models"
	"leaddesk/internal/repository"
	"leaddesk/internal/utils"

	"github.com/go-chi/chi/v5"
)

// AdminHTTP serves the read-mostly dashboard plus lead lifecycle
// actions (notes, status, delete).
type AdminHTTP struct {
	leads repository.LeadRepository
}

func NewAdminHTTP(leads repository.LeadRepository) *AdminHTTP {
	return &AdminHTTP{leads: leads}
}

// GET /api/customers/all
func (h *AdminHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := repository.LeadFilter{
			Status: q.Get("status"),
			Source: q.Get("source"),
			Limit:  utils.QueryInt(q, "limit", 200),
			Offset: utils.QueryInt(q, "offset", 0),
			Sort:   q.Get("sort"),
			Order:  q.Get("order"),
		}
		leads, err := h.leads.List(r.Context(), f)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if leads == nil {
			leads = []models.Lead{}
		}
		utils.JSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"count":     len(leads),
			"customers": leads,
		})
	}
}

// GET /api/customers/stats
func (h *AdminHTTP) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.leads.Stats(r.Context())
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
	}
}

// GET /api/customers/priority-queue
func (h *AdminHTTP) PriorityQueue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leads, err := h.leads.PriorityQueue(r.Context())
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if leads == nil {
			leads = []models.Lead{}
		}
		utils.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"count":   len(leads),
			"leads":   leads,
		})
	}
}

// PUT /api/customers/{id}/status?status=
func (h *AdminHTTP) UpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := leadID(r)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid id")
			return
		}
		status := r.URL.Query().Get("status")
		if !models.ValidStatus(status) {
			utils.Error(w, http.StatusBadRequest, "invalid status: must be one of new, contacted, in_progress, closed")
			return
		}
		if err := h.leads.UpdateStatus(r.Context(), id, status); err != nil {
			writeRepoError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "customer status updated to " + status,
		})
	}
}

// GET /api/customers/{id}/notes
func (h *AdminHTTP) GetNotes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := leadID(r)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid id")
			return
		}
		notes, err := h.leads.GetNotes(r.Context(), id)
		if err != nil {
			writeRepoError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "notes": notes})
	}
}

// PUT /api/customers/{id}/notes?notes=
func (h *AdminHTTP) UpdateNotes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := leadID(r)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid id")
			return
		}
		if err := h.leads.UpdateNotes(r.Context(), id, r.URL.Query().Get("notes")); err != nil {
			writeRepoError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "notes saved"})
	}
}

// DELETE /api/customers/{id}?confirm=true
// Deletion cascades to the lead's sessions and messages, so the caller
// must confirm explicitly.
func (h *AdminHTTP) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := leadID(r)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid id")
			return
		}
		if r.URL.Query().Get("confirm") != "true" {
			utils.Error(w, http.StatusBadRequest, "deletion cascades to chat history and session data; pass confirm=true")
			return
		}
		if err := h.leads.Delete(r.Context(), id); err != nil {
			writeRepoError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "customer deleted"})
	}
}

func leadID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
