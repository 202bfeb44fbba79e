package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed persistence for assessment sessions.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
// dbPath may be ":memory:".
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Answer writes arrive from concurrent goroutines; a single connection
	// serializes them and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Settings ---

// GetSetting returns the value stored under key. ok is false when the key is unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at_ns) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at_ns = excluded.updated_at_ns`,
		key, value, s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// --- In-progress answers ---

// SaveAnswer upserts one in-progress rating.
func (s *Store) SaveAnswer(ctx context.Context, sessionID, questionID string, value int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO answers (session_id, question_id, value, updated_at_ns) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, question_id) DO UPDATE SET value = excluded.value, updated_at_ns = excluded.updated_at_ns`,
		sessionID, questionID, value, s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// LoadAnswers returns the in-progress ratings of a session keyed by question id.
// Values are returned as stored; callers validate them.
func (s *Store) LoadAnswers(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, value FROM answers WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	answers := make(map[string]int)
	for rows.Next() {
		var id string
		var v int
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return answers, nil
}

// ClearSession deletes every in-progress answer and the heartbeat of a session.
// Archived sessions are not touched.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete answers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_activity WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- Heartbeat ---

// LastActive returns the last heartbeat of a session. ok is false when none exists.
func (s *Store) LastActive(ctx context.Context, sessionID string) (time.Time, bool, error) {
	var ns int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_active_ns FROM session_activity WHERE session_id = ?`, sessionID).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last active: %w", err)
	}
	return time.Unix(0, ns), true, nil
}

// StartedAt returns when the session's first heartbeat was recorded.
func (s *Store) StartedAt(ctx context.Context, sessionID string) (time.Time, bool, error) {
	var ns int64
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at_ns FROM session_activity WHERE session_id = ?`, sessionID).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get started at: %w", err)
	}
	return time.Unix(0, ns), true, nil
}

// UpdateLastActive records a heartbeat at the given time. The first heartbeat
// of a session also sets its start time.
func (s *Store) UpdateLastActive(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_activity (session_id, started_at_ns, last_active_ns) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET last_active_ns = excluded.last_active_ns`,
		sessionID, at.UnixNano(), at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("update last active: %w", err)
	}
	return nil
}

// RestartActivity resets the session's start time and heartbeat to at.
func (s *Store) RestartActivity(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_activity (session_id, started_at_ns, last_active_ns) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET started_at_ns = excluded.started_at_ns, last_active_ns = excluded.last_active_ns`,
		sessionID, at.UnixNano(), at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("restart activity: %w", err)
	}
	return nil
}

// --- Historical sessions ---

// SaveHistoricalSession archives a completed assessment and returns its new id.
func (s *Store) SaveHistoricalSession(ctx context.Context, in HistoricalInput) (string, error) {
	id := uuid.NewString()
	completed := in.CompletedAt
	if completed.IsZero() {
		completed = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO historical_sessions (id, completed_at_ns, total_score, duration_seconds, notes)
		 VALUES (?, ?, ?, ?, ?)`,
		id, completed.UnixNano(), in.Score, in.DurationSeconds, in.Notes,
	)
	if err != nil {
		return "", fmt.Errorf("insert historical session: %w", err)
	}

	for _, r := range in.Responses {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO historical_responses (session_id, question_id, category, value)
			 VALUES (?, ?, ?, ?)`,
			id, r.QuestionID, r.Category, r.Value,
		)
		if err != nil {
			return "", fmt.Errorf("insert response %s: %w", r.QuestionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// LoadHistoricalSessions returns summaries of every archived session, most recent first.
func (s *Store) LoadHistoricalSessions(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id, h.completed_at_ns, h.total_score, h.duration_seconds, h.notes,
		        COALESCE(COUNT(r.question_id), 0)
		 FROM historical_sessions h
		 LEFT JOIN historical_responses r ON r.session_id = h.id
		 GROUP BY h.id
		 ORDER BY h.completed_at_ns DESC, h.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query historical sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var ns int64
		if err := rows.Scan(&sum.ID, &ns, &sum.TotalScore, &sum.DurationSeconds, &sum.Notes, &sum.ResponseCount); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.CompletedAt = time.Unix(0, ns)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return summaries, nil
}

// LoadSessionResponses returns the archived ratings of a historical session.
// An unknown id yields an empty slice.
func (s *Store) LoadSessionResponses(ctx context.Context, sessionID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, category, value FROM historical_responses
		 WHERE session_id = ? ORDER BY rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var responses []Response
	for rows.Next() {
		var r Response
		if err := rows.Scan(&r.QuestionID, &r.Category, &r.Value); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return responses, nil
}

// GetHistoricalSession returns one archived session with its responses.
func (s *Store) GetHistoricalSession(ctx context.Context, id string) (*HistoricalSession, error) {
	var hs HistoricalSession
	var ns int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, completed_at_ns, total_score, duration_seconds, notes
		 FROM historical_sessions WHERE id = ?`, id,
	).Scan(&hs.ID, &ns, &hs.TotalScore, &hs.DurationSeconds, &hs.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("historical session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan historical session: %w", err)
	}
	hs.CompletedAt = time.Unix(0, ns)

	hs.Responses, err = s.LoadSessionResponses(ctx, id)
	if err != nil {
		return nil, err
	}
	hs.ResponseCount = len(hs.Responses)
	return &hs, nil
}

// DeleteHistoricalSession removes one archived session and its responses.
func (s *Store) DeleteHistoricalSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM historical_responses WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete responses: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM historical_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete historical session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("historical session %s: %w", id, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteAllHistoricalSessions removes every archived session and returns how many were removed.
// In-progress answers are kept.
func (s *Store) DeleteAllHistoricalSessions(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM historical_responses`); err != nil {
		return 0, fmt.Errorf("delete responses: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM historical_sessions`)
	if err != nil {
		return 0, fmt.Errorf("delete historical sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
