package postgres

import (
	"context"

	"leaddesk/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepo struct{ db *pgxpool.Pool }

func NewMessageRepo(db *pgxpool.Pool) *MessageRepo { return &MessageRepo{db: db} }

func (r *MessageRepo) Save(ctx context.Context, m *models.Message) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO messages (lead_id, session_id, text, sender)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4)
		RETURNING id, created_at
	`, m.LeadID, m.SessionID, m.Text, m.Sender).Scan(&m.ID, &m.Timestamp)
	if err != nil {
		return err
	}
	if m.SessionID != "" {
		_, err = r.db.Exec(ctx, `
			UPDATE sessions SET total_messages = total_messages + 1 WHERE id = $1
		`, m.SessionID)
	}
	return err
}

func (r *MessageRepo) ListByLead(ctx context.Context, leadID int64) ([]models.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, COALESCE(session_id::text, ''), text, sender, created_at
		FROM messages
		WHERE lead_id = $1
		ORDER BY id ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.LeadID, &m.SessionID, &m.Text, &m.Sender, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
