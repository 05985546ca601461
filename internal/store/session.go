package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sessionRepo implements SessionRepo with raw SQL.
type sessionRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

func (r *sessionRepo) CreateSession(ctx context.Context, levelID string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, level_id, started_at) VALUES (?, ?, ?)`,
		id, levelID, toMillis(time.Now()))
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (r *sessionRepo) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO chat_messages (sequence, session_id, timestamp, role, content) VALUES (?, ?, ?, ?, ?)`,
		seqNum, sessionID, toMillis(time.Now()), role, content)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (r *sessionRepo) RecordGoals(ctx context.Context, sessionID string, goalIDs []string) error {
	for _, goalID := range goalIDs {
		seqNum, err := r.seq.Next(ctx)
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO goal_events (sequence, session_id, timestamp, goal_id) VALUES (?, ?, ?, ?)`,
			seqNum, sessionID, toMillis(time.Now()), goalID)
		if err != nil {
			return fmt.Errorf("save goal %s: %w", goalID, err)
		}
	}
	return nil
}

// CompleteSession keeps the first completion time when called again.
func (r *sessionRepo) CompleteSession(ctx context.Context, sessionID string) error {
	var completed sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT completed_at FROM chat_sessions WHERE id = ?`, sessionID,
	).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return fmt.Errorf("look up session %s: %w", sessionID, err)
	}
	if completed.Valid {
		return nil
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET completed_at = ? WHERE id = ?`,
		toMillis(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

func (r *sessionRepo) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	var (
		rec       SessionRecord
		started   int64
		completed sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, level_id, started_at, completed_at FROM chat_sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.LevelID, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	rec.StartedAt = fromMillis(started)
	rec.CompletedAt = nullTime(completed)

	rows, err := r.db.QueryContext(ctx,
		`SELECT sequence, timestamp, role, content FROM chat_messages WHERE session_id = ? ORDER BY sequence`, id)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m  MessageRecord
			ts int64
		)
		if err := rows.Scan(&m.Sequence, &ts, &m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Timestamp = fromMillis(ts)
		rec.Messages = append(rec.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	goalRows, err := r.db.QueryContext(ctx,
		`SELECT goal_id FROM goal_events WHERE session_id = ? ORDER BY sequence`, id)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer goalRows.Close()
	for goalRows.Next() {
		var g string
		if err := goalRows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		rec.GoalIDs = append(rec.GoalIDs, g)
	}
	return &rec, goalRows.Err()
}

func (r *sessionRepo) ListSessions(ctx context.Context, opts QueryOpts) ([]SessionSummary, error) {
	var (
		where []string
		args  []any
	)
	if opts.LevelID != "" {
		where = append(where, "s.level_id = ?")
		args = append(args, opts.LevelID)
	}
	if !opts.From.IsZero() {
		where = append(where, "s.started_at >= ?")
		args = append(args, toMillis(opts.From))
	}
	if !opts.To.IsZero() {
		where = append(where, "s.started_at <= ?")
		args = append(args, toMillis(opts.To))
	}

	q := `SELECT s.id, s.level_id, s.started_at, s.completed_at,
			(SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id),
			(SELECT COUNT(*) FROM goal_events g WHERE g.session_id = s.id)
		FROM chat_sessions s`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY s.started_at DESC, s.rowid DESC"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			s         SessionSummary
			started   int64
			completed sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.LevelID, &started, &completed, &s.MessageCount, &s.GoalCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.StartedAt = fromMillis(started)
		s.CompletedAt = nullTime(completed)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
