package repository

import (
	"context"

	"leaddesk/internal/models"
)

type LeadRepository interface {
	Create(ctx context.Context, l *models.Lead) error
	Get(ctx context.Context, id int64) (*models.Lead, error)
	List(ctx context.Context, f LeadFilter) ([]models.Lead, error)
	Stats(ctx context.Context) (*models.Stats, error)
	UpdateTime(ctx context.Context, id int64, timeSpentSec int) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	UpdateNotes(ctx context.Context, id int64, notes string) error
	GetNotes(ctx context.Context, id int64) (string, error)
	Delete(ctx context.Context, id int64) error

	// PriorityQueue projects leads with status != closed ordered by
	// priority score descending. Scores are recomputed on read.
	PriorityQueue(ctx context.Context) ([]models.Lead, error)

	// AgentQueue is the console's work list: not-closed leads that have
	// requested an agent or are already in conversation.
	AgentQueue(ctx context.Context) ([]models.Lead, error)

	// RequestAgent flags lead (and session when known) as awaiting a
	// human. Idempotent: repeated calls leave one flag set.
	RequestAgent(ctx context.Context, leadID int64, sessionID string) error

	StartSession(ctx context.Context, leadID int64) (*models.Session, error)
	EndSession(ctx context.Context, sessionID string) error
}

type MessageRepository interface {
	// Save appends to the lead's thread and bumps the session message
	// counter when the session is known.
	Save(ctx context.Context, m *models.Message) error
	ListByLead(ctx context.Context, leadID int64) ([]models.Message, error)
}
