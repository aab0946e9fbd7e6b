package handlers

import (
	"net/http"

	"leaddesk/internal/events"
	"leaddesk/internal/models"
	"leaddesk/internal/repository"
	"leaddesk/internal/utils"
)

// AgentHTTP serves the console: the work queue and agent replies.
type AgentHTTP struct {
	leads    repository.LeadRepository
	messages repository.MessageRepository
	broker   *events.Broker
}

func NewAgentHTTP(leads repository.LeadRepository, messages repository.MessageRepository, broker *events.Broker) *AgentHTTP {
	return &AgentHTTP{leads: leads, messages: messages, broker: broker}
}

// GET /api/agent/queue
func (h *AgentHTTP) Queue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leads, err := h.leads.AgentQueue(r.Context())
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if leads == nil {
			leads = []models.Lead{}
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "queue": leads})
	}
}

// POST /api/agent/send-message?customer_id=&message=
func (h *AgentHTTP) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		leadID := utils.QueryInt64(q, "customer_id", 0)
		text := q.Get("message")
		if leadID == 0 || text == "" {
			utils.Error(w, http.StatusBadRequest, "customer_id and message are required")
			return
		}
		m := &models.Message{LeadID: leadID, Text: text, Sender: models.SenderAgent}
		if err := h.messages.Save(r.Context(), m); err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.broker.Publish(r.Context(), *m)
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "id": m.ID})
	}
}
