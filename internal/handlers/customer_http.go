package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"leaddesk/internal/models"
	"leaddesk/internal/repository"
	"leaddesk/internal/utils"
)

// CustomerHTTP serves the widget-facing lead lifecycle: identity save,
// time heartbeat and the agent hand-off flag.
type CustomerHTTP struct {
	leads repository.LeadRepository
}

func NewCustomerHTTP(leads repository.LeadRepository) *CustomerHTTP {
	return &CustomerHTTP{leads: leads}
}

// POST /api/customer/save
// Creates the lead and opens its chat session in one call. The widget
// calls this exactly once, after the identity form.
func (h *CustomerHTTP) Save() http.HandlerFunc {
	type inDTO struct {
		Name       string            `json:"name"`
		Contact    string            `json:"contact"`
		Source     string            `json:"source"`
		DeviceInfo models.DeviceInfo `json:"device_info"`
		TimeSpent  int               `json:"time_spent"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		in.Name = strings.TrimSpace(in.Name)
		in.Contact = strings.TrimSpace(in.Contact)
		in.Source = strings.TrimSpace(in.Source)
		if in.Name == "" || in.Contact == "" || in.Source == "" {
			utils.Error(w, http.StatusBadRequest, "name, contact and source are required")
			return
		}

		l := &models.Lead{
			Name:         in.Name,
			Contact:      in.Contact,
			Source:       in.Source,
			IPAddress:    clientIP(r),
			DeviceType:   orUnknown(in.DeviceInfo.DeviceType),
			Browser:      orUnknown(in.DeviceInfo.Browser),
			OS:           orUnknown(in.DeviceInfo.OS),
			TimeSpentSec: in.TimeSpent,
		}
		if err := h.leads.Create(r.Context(), l); err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		s, err := h.leads.StartSession(r.Context(), l.ID)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"customer_id": l.ID,
			"session_id":  s.ID,
			"message":     "customer information saved",
		})
	}
}

// POST /api/customer/update-time?customer_id=&time_spent=
func (h *CustomerHTTP) UpdateTime() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		id := utils.QueryInt64(q, "customer_id", 0)
		if id == 0 {
			utils.Error(w, http.StatusBadRequest, "customer_id is required")
			return
		}
		spent := utils.QueryInt(q, "time_spent", 0)
		if err := h.leads.UpdateTime(r.Context(), id, spent); err != nil {
			writeRepoError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// POST /api/customer/request-agent?customer_id=&session_id=
// Idempotent: calling it twice leaves a single flag set and never
// errors. session_id is optional; unknown sessions are ignored.
func (h *CustomerHTTP) RequestAgent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		id := utils.QueryInt64(q, "customer_id", 0)
		if id == 0 {
			utils.Error(w, http.StatusBadRequest, "customer_id is required")
			return
		}
		if err := h.leads.RequestAgent(r.Context(), id, q.Get("session_id")); err != nil {
			writeRepoError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// POST /api/customer/end-session?session_id=
// Called by the widget on teardown. Best effort: ending an already
// ended or unknown session is not an error.
func (h *CustomerHTTP) EndSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			utils.Error(w, http.StatusBadRequest, "session_id is required")
			return
		}
		if err := h.leads.EndSession(r.Context(), sessionID); err != nil {
			writeRepoError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func writeRepoError(w http.ResponseWriter, err error) {
	switch err {
	case repository.ErrNotFound:
		utils.Error(w, http.StatusNotFound, "not found")
	case repository.ErrClosed:
		utils.Error(w, http.StatusConflict, "lead is closed")
	default:
		utils.Error(w, http.StatusInternalServerError, err.Error())
	}
}
