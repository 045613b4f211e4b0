// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides durable session persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode keeps dashboard reads from blocking router writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			user_id          TEXT PRIMARY KEY,
			name             TEXT NOT NULL DEFAULT '',
			state            TEXT NOT NULL,
			sub_step         TEXT NOT NULL DEFAULT '',
			form_data        TEXT NOT NULL DEFAULT '{}',
			thread_ref       TEXT NOT NULL DEFAULT '',
			created_at       TEXT NOT NULL,
			last_activity_at TEXT NOT NULL,
			history          TEXT NOT NULL DEFAULT '[]',

			CHECK (state IN ('INITIAL', 'AWAITING_QUERY', 'TICKET_CREATION', 'LEAD_CREATION', 'CLOSED'))
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_last_activity
			ON sessions(last_activity_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// GetOrCreate returns the session for userID, creating it if needed.
// Creation is idempotent: a concurrent insert for the same user loses the
// race on the primary key and falls back to reading the winner's row.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, userID string) (*Session, error) {
	sess, err := s.Get(ctx, userID)
	if err == nil {
		return sess, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	sess = NewSession(userID, time.Now().UTC())
	if err := s.insert(ctx, sess); err != nil {
		if isConstraintViolation(err) {
			// Another request created the session between our lookup and insert
			s.logger.Debug("session creation hit duplicate, retrying lookup", "user_id", userID)
			return s.Get(ctx, userID)
		}
		return nil, err
	}

	s.logger.Debug("created session", "user_id", userID)
	return sess, nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

func (s *SQLiteStore) insert(ctx context.Context, sess *Session) error {
	formJSON, historyJSON, err := encodeSession(sess)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (user_id, name, state, sub_step, form_data, thread_ref, created_at, last_activity_at, history)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		sess.UserID,
		sess.Name,
		string(sess.State),
		sess.SubStep,
		formJSON,
		sess.ThreadRef,
		sess.CreatedAt.UTC().Format(time.RFC3339),
		sess.LastActivityAt.UTC().Format(time.RFC3339),
		historyJSON,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return err
		}
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get retrieves a session by user ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (*Session, error) {
	query := `
		SELECT user_id, name, state, sub_step, form_data, thread_ref, created_at, last_activity_at, history
		FROM sessions
		WHERE user_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, userID)
	sess, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return sess, nil
}

// Save persists the full session record using an upsert.
// Writers are serialized per user by the router, so last-writer-wins here
// is safe.
func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	formJSON, historyJSON, err := encodeSession(sess)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (user_id, name, state, sub_step, form_data, thread_ref, created_at, last_activity_at, history)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			state = excluded.state,
			sub_step = excluded.sub_step,
			form_data = excluded.form_data,
			thread_ref = excluded.thread_ref,
			last_activity_at = excluded.last_activity_at,
			history = excluded.history
	`

	_, err = s.db.ExecContext(ctx, query,
		sess.UserID,
		sess.Name,
		string(sess.State),
		sess.SubStep,
		formJSON,
		sess.ThreadRef,
		sess.CreatedAt.UTC().Format(time.RFC3339),
		sess.LastActivityAt.UTC().Format(time.RFC3339),
		historyJSON,
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.logger.Debug("saved session", "user_id", sess.UserID, "state", sess.State)
	return nil
}

// ListActive returns sessions with activity at or after cutoff,
// most recent first.
func (s *SQLiteStore) ListActive(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	query := `
		SELECT user_id, name, state, sub_step, form_data, thread_ref, created_at, last_activity_at, history
		FROM sessions
		WHERE last_activity_at >= ?
		ORDER BY last_activity_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}

	return sessions, nil
}

// Delete removes a session. Missing sessions are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	if n, _ := result.RowsAffected(); n > 0 {
		s.logger.Debug("deleted session", "user_id", userID)
	}
	return nil
}

func encodeSession(sess *Session) (formJSON, historyJSON string, err error) {
	form := sess.FormData
	if form == nil {
		form = map[string]string{}
	}
	fb, err := json.Marshal(form)
	if err != nil {
		return "", "", fmt.Errorf("encoding form data: %w", err)
	}

	history := sess.History
	if history == nil {
		history = []HistoryEntry{}
	}
	hb, err := json.Marshal(history)
	if err != nil {
		return "", "", fmt.Errorf("encoding history: %w", err)
	}

	return string(fb), string(hb), nil
}

// scanSession reads one row via the given scan function
func scanSession(scan func(dest ...any) error) (*Session, error) {
	var sess Session
	var state, formJSON, historyJSON string
	var createdAtStr, lastActivityStr string

	err := scan(
		&sess.UserID,
		&sess.Name,
		&state,
		&sess.SubStep,
		&formJSON,
		&sess.ThreadRef,
		&createdAtStr,
		&lastActivityStr,
		&historyJSON,
	)
	if err != nil {
		return nil, err
	}

	sess.State = State(state)

	sess.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	sess.LastActivityAt, err = time.Parse(time.RFC3339, lastActivityStr)
	if err != nil {
		return nil, fmt.Errorf("parsing last_activity_at: %w", err)
	}

	if err := json.Unmarshal([]byte(formJSON), &sess.FormData); err != nil {
		return nil, fmt.Errorf("decoding form data: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &sess.History); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}

	return &sess, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
