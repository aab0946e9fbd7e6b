package service

import (
	"time"

	"leaddesk/internal/models"
)

// Lead scoring. The score is an opaque, non-negative integer to the
// clients; only the backend computes it. Engagement (time on site) and
// referral source carry most of the weight, an explicit agent request
// outranks both, and recent activity gets a small boost so stale leads
// sink in the queue.

const (
	agentRequestBonus = 30
	recentActiveBonus = 10
	recentWindow      = 30 * time.Minute
)

var sourceWeight = map[string]int{
	"Referral":      20,
	"Google Search": 15,
	"Advertisement": 12,
	"Social Media":  10,
	"Website":       8,
	"Other":         5,
}

func engagementPoints(timeSpentSec int) int {
	switch {
	case timeSpentSec >= 600:
		return 40
	case timeSpentSec >= 300:
		return 30
	case timeSpentSec >= 120:
		return 20
	case timeSpentSec >= 60:
		return 10
	case timeSpentSec > 0:
		return 5
	}
	return 0
}

// PriorityScore computes a lead's rank. Deterministic in its inputs and
// never negative.
func PriorityScore(l *models.Lead, now time.Time) int {
	score := engagementPoints(l.TimeSpentSec)
	score += sourceWeight[l.Source]
	if l.AgentRequested {
		score += agentRequestBonus
	}
	if !l.LastActive.IsZero() && now.Sub(l.LastActive) <= recentWindow {
		score += recentActiveBonus
	}
	if score < 0 {
		score = 0
	}
	return score
}
