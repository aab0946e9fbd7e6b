package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"leaddesk/internal/models"
	"leaddesk/internal/repository"
	"leaddesk/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LeadRepo struct{ db *pgxpool.Pool }

func NewLeadRepo(db *pgxpool.Pool) *LeadRepo { return &LeadRepo{db: db} }

const leadColumns = `
	l.id, l.name, l.contact, l.source, COALESCE(l.ip_address, ''),
	l.device_type, l.browser, l.operating_system, l.time_spent_seconds,
	l.created_at, l.last_active, l.status, COALESCE(l.admin_notes, ''),
	l.agent_requested`

func scanLead(row pgx.Row) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(
		&l.ID, &l.Name, &l.Contact, &l.Source, &l.IPAddress,
		&l.DeviceType, &l.Browser, &l.OS, &l.TimeSpentSec,
		&l.CreatedAt, &l.LastActive, &l.Status, &l.AdminNotes,
		&l.AgentRequested,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepo) Create(ctx context.Context, l *models.Lead) error {
	if l.Status == "" {
		l.Status = models.StatusNew
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO leads (name, contact, source, ip_address, device_type, browser, operating_system, time_spent_seconds, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, last_active
	`,
		l.Name, l.Contact, l.Source, l.IPAddress, l.DeviceType, l.Browser, l.OS, l.TimeSpentSec, l.Status,
	).Scan(&l.ID, &l.CreatedAt, &l.LastActive)
}

func (r *LeadRepo) Get(ctx context.Context, id int64) (*models.Lead, error) {
	l, err := scanLead(r.db.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads l WHERE l.id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	l.PriorityScore = service.PriorityScore(l, time.Now())
	return l, nil
}

func (r *LeadRepo) List(ctx context.Context, f repository.LeadFilter) ([]models.Lead, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	args := []any{}
	conds := []string{"1=1"}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("l.status = $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		conds = append(conds, fmt.Sprintf("l.source = $%d", len(args)))
	}

	sortCol := sanitizeSort(f.Sort, "created_at")
	sortOrd := sanitizeOrder(f.Order, "desc")

	sql := fmt.Sprintf(`
		SELECT %s FROM leads l
		WHERE %s
		ORDER BY l.%s %s
		LIMIT $%d OFFSET $%d
	`, leadColumns, strings.Join(conds, " AND "), sortCol, sortOrd, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	return r.queryLeads(ctx, sql, args...)
}

func (r *LeadRepo) queryLeads(ctx context.Context, sql string, args ...any) ([]models.Lead, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var out []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		l.PriorityScore = service.PriorityScore(l, now)
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *LeadRepo) Stats(ctx context.Context) (*models.Stats, error) {
	s := &models.Stats{
		SourceBreakdown: map[string]int{},
		DeviceBreakdown: map[string]int{},
		StatusBreakdown: map[string]int{},
	}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(time_spent_seconds), 0) FROM leads`,
	).Scan(&s.TotalCustomers, &s.AvgTimeSpent)
	if err != nil {
		return nil, err
	}

	for col, dst := range map[string]map[string]int{
		"source":      s.SourceBreakdown,
		"device_type": s.DeviceBreakdown,
		"status":      s.StatusBreakdown,
	} {
		rows, err := r.db.Query(ctx,
			fmt.Sprintf(`SELECT %s, COUNT(*) FROM leads GROUP BY %s`, col, col))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var k string
			var n int
			if err := rows.Scan(&k, &n); err != nil {
				rows.Close()
				return nil, err
			}
			dst[k] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (r *LeadRepo) UpdateTime(ctx context.Context, id int64, timeSpentSec int) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE leads SET time_spent_seconds = $1, last_active = NOW() WHERE id = $2
	`, timeSpentSec, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *LeadRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	// closed is terminal: the guard refuses any write that would move a
	// closed lead back to an active status.
	ct, err := r.db.Exec(ctx, `
		UPDATE leads SET status = $1, last_active = NOW()
		WHERE id = $2 AND NOT (status = 'closed' AND $1 <> 'closed')
	`, status, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return repository.ErrClosed
	}
	return nil
}

func (r *LeadRepo) UpdateNotes(ctx context.Context, id int64, notes string) error {
	ct, err := r.db.Exec(ctx, `UPDATE leads SET admin_notes = $1 WHERE id = $2`, notes, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *LeadRepo) GetNotes(ctx context.Context, id int64) (string, error) {
	var notes string
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(admin_notes, '') FROM leads WHERE id = $1`, id,
	).Scan(&notes)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return notes, nil
}

func (r *LeadRepo) Delete(ctx context.Context, id int64) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *LeadRepo) PriorityQueue(ctx context.Context) ([]models.Lead, error) {
	leads, err := r.queryLeads(ctx,
		`SELECT`+leadColumns+` FROM leads l WHERE l.status <> 'closed'`)
	if err != nil {
		return nil, err
	}
	sortByScore(leads)
	return leads, nil
}

func (r *LeadRepo) AgentQueue(ctx context.Context) ([]models.Lead, error) {
	leads, err := r.queryLeads(ctx, `
		SELECT`+leadColumns+` FROM leads l
		WHERE l.status <> 'closed' AND (l.agent_requested OR l.status = 'in_progress')
	`)
	if err != nil {
		return nil, err
	}
	sortByScore(leads)
	return leads, nil
}

func (r *LeadRepo) RequestAgent(ctx context.Context, leadID int64, sessionID string) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE leads SET agent_requested = TRUE, last_active = NOW() WHERE id = $1
	`, leadID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	if sessionID != "" {
		// Best effort: an unknown session id must not fail the request.
		_, _ = r.db.Exec(ctx, `
			UPDATE sessions SET agent_requested = TRUE WHERE id = $1 AND lead_id = $2
		`, sessionID, leadID)
	}
	return nil
}

func (r *LeadRepo) StartSession(ctx context.Context, leadID int64) (*models.Session, error) {
	s := &models.Session{ID: uuid.NewString(), LeadID: leadID}
	err := r.db.QueryRow(ctx, `
		INSERT INTO sessions (id, lead_id) VALUES ($1, $2)
		RETURNING started_at
	`, s.ID, leadID).Scan(&s.StartedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *LeadRepo) EndSession(ctx context.Context, sessionID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET ended_at = NOW() WHERE id = $1 AND ended_at IS NULL`, sessionID)
	return err
}

// sortByScore orders leads by priority score descending, newest first on
// ties so fresh leads surface.
func sortByScore(leads []models.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].PriorityScore != leads[j].PriorityScore {
			return leads[i].PriorityScore > leads[j].PriorityScore
		}
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
}

func sanitizeSort(s, def string) string {
	switch s {
	case "created_at", "last_active", "time_spent_seconds":
		return s
	}
	return def
}

func sanitizeOrder(s, def string) string {
	switch strings.ToLower(s) {
	case "asc", "desc":
		return strings.ToLower(s)
	}
	return def
}
