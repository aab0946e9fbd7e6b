package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema if it does not exist. Deleting a lead
// cascades to its sessions and messages.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS leads (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			contact TEXT NOT NULL,
			source TEXT NOT NULL,
			ip_address TEXT DEFAULT '',
			device_type TEXT DEFAULT 'Unknown',
			browser TEXT DEFAULT 'Unknown',
			operating_system TEXT DEFAULT 'Unknown',
			time_spent_seconds INT DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'new',
			admin_notes TEXT DEFAULT '',
			agent_requested BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			last_active TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			lead_id BIGINT REFERENCES leads(id) ON DELETE CASCADE,
			started_at TIMESTAMPTZ DEFAULT NOW(),
			ended_at TIMESTAMPTZ,
			total_messages INT DEFAULT 0,
			agent_requested BOOLEAN DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			lead_id BIGINT REFERENCES leads(id) ON DELETE CASCADE,
			session_id UUID REFERENCES sessions(id) ON DELETE SET NULL,
			text TEXT NOT NULL,
			sender TEXT NOT NULL CHECK (sender IN ('user', 'bot', 'agent')),
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_messages_lead ON messages (lead_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads (status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(ctx, q); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
