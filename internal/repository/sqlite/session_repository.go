package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/glebk/pomo-bot/internal/domain"
)

// SessionRepository implements domain.SessionRepository using SQLite
type SessionRepository struct {
	db *Database
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *Database) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	user_id, chat_id, work_duration, break_duration, long_break_duration,
	sessions_before_long_break, max_sessions, is_active, phase,
	completed_sessions, phase_duration, start_time, phase_ends_at,
	created_at, updated_at
`

// Create inserts a new session record for a user
func (r *SessionRepository) Create(session *domain.Session) error {
	query := `
		INSERT INTO sessions (
			user_id, chat_id, work_duration, break_duration, long_break_duration,
			sessions_before_long_break, max_sessions, is_active, phase,
			completed_sessions, phase_duration, start_time, phase_ends_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	_, err := r.db.GetDB().Exec(query,
		session.UserID,
		session.ChatID,
		session.Settings.WorkDuration,
		session.Settings.BreakDuration,
		session.Settings.LongBreakDuration,
		session.Settings.SessionsBeforeLongBreak,
		session.Settings.MaxSessions,
		session.IsActive,
		session.Phase,
		session.CompletedSessions,
		session.PhaseDuration,
		nullTime(session.StartTime),
		nullTime(session.PhaseEndsAt),
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	session.CreatedAt = now
	session.UpdatedAt = now

	return nil
}

// GetByUserID retrieves a user's session record, active or not
func (r *SessionRepository) GetByUserID(userID int64) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ?`

	session, err := scanSession(r.db.GetDB().QueryRow(query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// GetActiveByUserID retrieves a user's session only if it is running
func (r *SessionRepository) GetActiveByUserID(userID int64) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ? AND is_active = 1`

	session, err := scanSession(r.db.GetDB().QueryRow(query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	return session, nil
}

// GetAllActive retrieves every running session, used for restart recovery
func (r *SessionRepository) GetAllActive() ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE is_active = 1`

	rows, err := r.db.GetDB().Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// Update overwrites a user's session record
func (r *SessionRepository) Update(session *domain.Session) error {
	query := `
		UPDATE sessions
		SET chat_id = ?, work_duration = ?, break_duration = ?,
			long_break_duration = ?, sessions_before_long_break = ?,
			max_sessions = ?, is_active = ?, phase = ?, completed_sessions = ?,
			phase_duration = ?, start_time = ?, phase_ends_at = ?, updated_at = ?
		WHERE user_id = ?
	`

	now := time.Now()
	_, err := r.db.GetDB().Exec(query,
		session.ChatID,
		session.Settings.WorkDuration,
		session.Settings.BreakDuration,
		session.Settings.LongBreakDuration,
		session.Settings.SessionsBeforeLongBreak,
		session.Settings.MaxSessions,
		session.IsActive,
		session.Phase,
		session.CompletedSessions,
		session.PhaseDuration,
		nullTime(session.StartTime),
		nullTime(session.PhaseEndsAt),
		now,
		session.UserID,
	)

	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	session.UpdatedAt = now

	return nil
}

// PurgeIdle deletes inactive session records untouched since cutoff
func (r *SessionRepository) PurgeIdle(cutoff time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE is_active = 0 AND updated_at < ?`

	result, err := r.db.GetDB().Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idle sessions: %w", err)
	}

	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	session := &domain.Session{}
	var startTime, phaseEndsAt sql.NullTime

	err := row.Scan(
		&session.UserID,
		&session.ChatID,
		&session.Settings.WorkDuration,
		&session.Settings.BreakDuration,
		&session.Settings.LongBreakDuration,
		&session.Settings.SessionsBeforeLongBreak,
		&session.Settings.MaxSessions,
		&session.IsActive,
		&session.Phase,
		&session.CompletedSessions,
		&session.PhaseDuration,
		&startTime,
		&phaseEndsAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startTime.Valid {
		session.StartTime = startTime.Time
	}
	if phaseEndsAt.Valid {
		session.PhaseEndsAt = phaseEndsAt.Time
	}

	return session, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
