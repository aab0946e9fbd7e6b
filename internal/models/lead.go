package models

import "time"

// Lead statuses. closed is terminal: there is no reopen path.
const (
	StatusNew        = "new"
	StatusContacted  = "contacted"
	StatusInProgress = "in_progress"
	StatusClosed     = "closed"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusContacted, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

type Lead struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Contact        string    `json:"contact"`
	Source         string    `json:"source"`
	IPAddress      string    `json:"ip_address,omitempty"`
	DeviceType     string    `json:"device_type"`
	Browser        string    `json:"browser"`
	OS             string    `json:"operating_system"`
	TimeSpentSec   int       `json:"time_spent_seconds"`
	CreatedAt      time.Time `json:"created_at"`
	LastActive     time.Time `json:"last_active"`
	Status         string    `json:"status"`
	AdminNotes     string    `json:"admin_notes,omitempty"`
	PriorityScore  int       `json:"priority_score"`
	AgentRequested bool      `json:"agent_requested"`
}

type DeviceInfo struct {
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
}

// Session tracks one widget visit. A lead gets a session id back from
// the save call and tags every message with it.
type Session struct {
	ID             string     `json:"id"`
	LeadID         int64      `json:"lead_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	TotalMessages  int        `json:"total_messages"`
	AgentRequested bool       `json:"agent_requested"`
}

type Stats struct {
	TotalCustomers  int            `json:"total_customers"`
	AvgTimeSpent    float64        `json:"avg_time_spent"`
	SourceBreakdown map[string]int `json:"source_breakdown"`
	DeviceBreakdown map[string]int `json:"device_breakdown"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
}
