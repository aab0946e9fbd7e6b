package models

import "time"

// Message senders as stored. The console remaps "user" to "customer"
// for display only; the stored value never changes.
const (
	SenderUser  = "user"
	SenderBot   = "bot"
	SenderAgent = "agent"
)

// Message is append-only. IDs are backend-assigned and monotonic within
// a lead's thread; clients order by ID and never mutate a message.
type Message struct {
	ID        int64     `json:"id"`
	LeadID    int64     `json:"customer_id"`
	SessionID string    `json:"session_id,omitempty"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}
