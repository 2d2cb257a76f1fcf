package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/glebk/pomo-bot/internal/domain"
)

// GroupSessionRepository implements domain.GroupSessionRepository using SQLite
type GroupSessionRepository struct {
	db *Database
}

// NewGroupSessionRepository creates a new GroupSessionRepository
func NewGroupSessionRepository(db *Database) *GroupSessionRepository {
	return &GroupSessionRepository{db: db}
}

const groupColumns = `
	session_id, chat_id, host_user_id, status, phase,
	work_duration, break_duration, long_break_duration,
	sessions_before_long_break, max_sessions, max_participants,
	completed_sessions, phase_duration, start_time, phase_ends_at,
	created_at, updated_at, completed_at
`

// Create inserts a new group session with its participants
func (r *GroupSessionRepository) Create(session *domain.GroupSession) error {
	tx, err := r.db.GetDB().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO group_sessions (
			session_id, chat_id, host_user_id, status, phase,
			work_duration, break_duration, long_break_duration,
			sessions_before_long_break, max_sessions, max_participants,
			completed_sessions, phase_duration, start_time, phase_ends_at,
			created_at, updated_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	_, err = tx.Exec(query,
		session.SessionID,
		session.ChatID,
		session.HostUserID,
		session.Status,
		session.Phase,
		session.Settings.WorkDuration,
		session.Settings.BreakDuration,
		session.Settings.LongBreakDuration,
		session.Settings.SessionsBeforeLongBreak,
		session.Settings.MaxSessions,
		session.MaxParticipants,
		session.CompletedSessions,
		session.PhaseDuration,
		nullTime(session.StartTime),
		nullTime(session.PhaseEndsAt),
		now,
		now,
		session.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create group session: %w", err)
	}

	if err := upsertParticipants(tx, session); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group session: %w", err)
	}

	session.CreatedAt = now
	session.UpdatedAt = now

	return nil
}

// GetBySessionID retrieves a group session with its participants
func (r *GroupSessionRepository) GetBySessionID(sessionID string) (*domain.GroupSession, error) {
	query := `SELECT ` + groupColumns + ` FROM group_sessions WHERE session_id = ?`

	session, err := scanGroupSession(r.db.GetDB().QueryRow(query, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group session: %w", err)
	}

	if err := r.loadParticipants(session); err != nil {
		return nil, err
	}

	return session, nil
}

// GetActiveByChatID retrieves the non-completed group session in a chat, if any
func (r *GroupSessionRepository) GetActiveByChatID(chatID int64) (*domain.GroupSession, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM group_sessions
		WHERE chat_id = ? AND status != 'completed'
		ORDER BY created_at DESC
		LIMIT 1
	`

	session, err := scanGroupSession(r.db.GetDB().QueryRow(query, chatID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group session by chat: %w", err)
	}

	if err := r.loadParticipants(session); err != nil {
		return nil, err
	}

	return session, nil
}

// GetActiveByParticipant retrieves the non-completed group session a user
// actively belongs to, if any
func (r *GroupSessionRepository) GetActiveByParticipant(userID int64) (*domain.GroupSession, error) {
	query := `
		SELECT ` + groupColumns + `
		FROM group_sessions
		WHERE status != 'completed' AND session_id IN (
			SELECT session_id FROM group_participants
			WHERE user_id = ? AND is_active = 1
		)
		LIMIT 1
	`

	session, err := scanGroupSession(r.db.GetDB().QueryRow(query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group session by participant: %w", err)
	}

	if err := r.loadParticipants(session); err != nil {
		return nil, err
	}

	return session, nil
}

// GetAllRunning retrieves every non-completed group session, used for
// restart recovery
func (r *GroupSessionRepository) GetAllRunning() ([]*domain.GroupSession, error) {
	query := `SELECT ` + groupColumns + ` FROM group_sessions WHERE status != 'completed'`

	rows, err := r.db.GetDB().Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get running group sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.GroupSession

	for rows.Next() {
		session, err := scanGroupSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, session := range sessions {
		if err := r.loadParticipants(session); err != nil {
			return nil, err
		}
	}

	return sessions, nil
}

// Update overwrites a group session record and upserts its participants
func (r *GroupSessionRepository) Update(session *domain.GroupSession) error {
	tx, err := r.db.GetDB().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE group_sessions
		SET status = ?, phase = ?, work_duration = ?, break_duration = ?,
			long_break_duration = ?, sessions_before_long_break = ?,
			max_sessions = ?, max_participants = ?, completed_sessions = ?,
			phase_duration = ?, start_time = ?, phase_ends_at = ?,
			updated_at = ?, completed_at = ?
		WHERE session_id = ?
	`

	now := time.Now()
	_, err = tx.Exec(query,
		session.Status,
		session.Phase,
		session.Settings.WorkDuration,
		session.Settings.BreakDuration,
		session.Settings.LongBreakDuration,
		session.Settings.SessionsBeforeLongBreak,
		session.Settings.MaxSessions,
		session.MaxParticipants,
		session.CompletedSessions,
		session.PhaseDuration,
		nullTime(session.StartTime),
		nullTime(session.PhaseEndsAt),
		now,
		session.CompletedAt,
		session.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group session: %w", err)
	}

	if err := upsertParticipants(tx, session); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group session: %w", err)
	}

	session.UpdatedAt = now

	return nil
}

// PurgeCompleted deletes completed group sessions finished before cutoff
func (r *GroupSessionRepository) PurgeCompleted(cutoff time.Time) (int64, error) {
	query := `DELETE FROM group_sessions WHERE status = 'completed' AND completed_at < ?`

	result, err := r.db.GetDB().Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge completed group sessions: %w", err)
	}

	return result.RowsAffected()
}

func (r *GroupSessionRepository) loadParticipants(session *domain.GroupSession) error {
	query := `
		SELECT user_id, joined_at, is_active
		FROM group_participants
		WHERE session_id = ?
		ORDER BY joined_at, id
	`

	rows, err := r.db.GetDB().Query(query, session.SessionID)
	if err != nil {
		return fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	session.Participants = nil
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.UserID, &p.JoinedAt, &p.IsActive); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		session.Participants = append(session.Participants, p)
	}

	return rows.Err()
}

func upsertParticipants(tx *sql.Tx, session *domain.GroupSession) error {
	query := `
		INSERT INTO group_participants (session_id, user_id, joined_at, is_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, user_id) DO UPDATE SET is_active = excluded.is_active
	`

	for _, p := range session.Participants {
		if _, err := tx.Exec(query, session.SessionID, p.UserID, p.JoinedAt, p.IsActive); err != nil {
			return fmt.Errorf("failed to upsert participant: %w", err)
		}
	}

	return nil
}

func scanGroupSession(row rowScanner) (*domain.GroupSession, error) {
	session := &domain.GroupSession{}
	var startTime, phaseEndsAt, completedAt sql.NullTime

	err := row.Scan(
		&session.SessionID,
		&session.ChatID,
		&session.HostUserID,
		&session.Status,
		&session.Phase,
		&session.Settings.WorkDuration,
		&session.Settings.BreakDuration,
		&session.Settings.LongBreakDuration,
		&session.Settings.SessionsBeforeLongBreak,
		&session.Settings.MaxSessions,
		&session.MaxParticipants,
		&session.CompletedSessions,
		&session.PhaseDuration,
		&startTime,
		&phaseEndsAt,
		&session.CreatedAt,
		&session.UpdatedAt,
		&completedAt,
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
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}

	return session, nil
}
