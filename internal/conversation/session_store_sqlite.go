package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var _ SessionStore = (*SQLiteSessionStore)(nil)

// sessionTimeLayout is fixed width so stored timestamps compare as text.
const sessionTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteSessionStore keeps sessions in the conversation_sessions table so
// flows survive a restart.
type SQLiteSessionStore struct {
	db     *sql.DB
	now    func() time.Time
	maxAge time.Duration
}

// NewSQLiteSessionStore creates a SQLite-backed session store. A non-positive
// maxAge uses DefaultSessionMaxAge.
func NewSQLiteSessionStore(db *sql.DB, maxAge time.Duration) *SQLiteSessionStore {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &SQLiteSessionStore{db: db, now: time.Now, maxAge: maxAge}
}

// Get retrieves a session, treating missing and expired rows as idle.
func (s *SQLiteSessionStore) Get(ctx context.Context, sessionID int64) (*State, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var step, data, updatedAtStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT step, data, updated_at
		FROM conversation_sessions
		WHERE session_id = ?`, sessionID).Scan(&step, &data, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return IdleState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	updatedAt, err := time.Parse(sessionTimeLayout, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if s.now().Sub(updatedAt) > s.maxAge {
		slog.Debug("conversation session expired", "session_id", sessionID)
		return IdleState(), nil
	}

	state := &State{Step: Step(step), UpdatedAt: updatedAt}
	if err := json.Unmarshal([]byte(data), &state.Draft); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}
	return state, nil
}

// Set upserts a session.
func (s *SQLiteSessionStore) Set(ctx context.Context, sessionID int64, state *State) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(state.Draft)
	if err != nil {
		return fmt.Errorf("failed to encode session data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_sessions (session_id, step, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			step = excluded.step,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		sessionID, string(state.Step), string(data), s.now().UTC().Format(sessionTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Reset deletes a session.
func (s *SQLiteSessionStore) Reset(ctx context.Context, sessionID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions untouched for longer than the max age.
func (s *SQLiteSessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.maxAge).UTC().Format(sessionTimeLayout)
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return result.RowsAffected()
}
