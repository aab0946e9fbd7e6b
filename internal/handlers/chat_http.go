package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leaddesk/internal/chatbot"
	"leaddesk/internal/events"
	"leaddesk/internal/models"
	"leaddesk/internal/repository"
	"leaddesk/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ChatHTTP serves the message plane: bot replies, message persistence,
// thread reads and the push stream.
type ChatHTTP struct {
	messages  repository.MessageRepository
	responder chatbot.Responder
	broker    *events.Broker
	log       zerolog.Logger
}

func NewChatHTTP(messages repository.MessageRepository, responder chatbot.Responder, broker *events.Broker, log zerolog.Logger) *ChatHTTP {
	return &ChatHTTP{messages: messages, responder: responder, broker: broker, log: log}
}

// POST /api/chatbot/message
func (h *ChatHTTP) BotMessage() http.HandlerFunc {
	type inDTO struct {
		Message string `json:"message"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(in.Message) == "" {
			utils.Error(w, http.StatusBadRequest, "message cannot be empty")
			return
		}
		reply, err := h.responder.Respond(r.Context(), in.Message)
		if err != nil {
			h.log.Error().Err(err).Msg("responder failed")
			utils.Error(w, http.StatusInternalServerError, "failed to generate response")
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{
			"success":                true,
			"response":               reply.Text,
			"context_used":           reply.ContextUsed,
			"knowledge_base_results": reply.KnowledgeResults,
			"model_used":             reply.ModelUsed,
		})
	}
}

// POST /api/chat/save-message?customer_id=&session_id=&message=&sender=
func (h *ChatHTTP) SaveMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		leadID := utils.QueryInt64(q, "customer_id", 0)
		text := q.Get("message")
		sender := q.Get("sender")
		if leadID == 0 || text == "" {
			utils.Error(w, http.StatusBadRequest, "customer_id and message are required")
			return
		}
		switch sender {
		case models.SenderUser, models.SenderBot, models.SenderAgent:
		default:
			utils.Error(w, http.StatusBadRequest, "invalid sender")
			return
		}

		m := &models.Message{
			LeadID:    leadID,
			SessionID: q.Get("session_id"),
			Text:      text,
			Sender:    sender,
		}
		if err := h.messages.Save(r.Context(), m); err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.broker.Publish(r.Context(), *m)
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "id": m.ID})
	}
}

// GET /api/customers/{id}/messages
func (h *ChatHTTP) Messages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leadID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid id")
			return
		}
		msgs, err := h.messages.ListByLead(r.Context(), leadID)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if msgs == nil {
			msgs = []models.Message{}
		}
		utils.JSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
	}
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// GET /api/customers/{id}/stream
// Push channel over WebSocket: every message saved to the lead's thread
// is forwarded as JSON. Polling remains the source of truth; the stream
// only shortens the latency between saves and views.
func (h *ChatHTTP) Stream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		leadID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid id")
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("stream upgrade failed")
			return
		}

		sub, cancel := h.broker.Subscribe(leadID)
		defer cancel()
		defer conn.Close()

		// Reader exists only to notice the peer going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case m := <-sub:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(m); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
