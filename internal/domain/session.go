package domain

import "time"

// Session represents one user's solo Pomodoro cycle. There is at most one
// record per user; a new run overwrites the previous record's state while
// keeping the user's configured settings.
type Session struct {
	UserID   int64
	ChatID   int64
	Settings Settings
	IsActive bool
	Phase    Phase
	// CompletedSessions counts finished study phases, 0..MaxSessions.
	CompletedSessions int
	// PhaseDuration is the length of the current phase in minutes.
	PhaseDuration int
	StartTime     time.Time
	// PhaseEndsAt is the absolute instant the current phase expires.
	PhaseEndsAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionRepository defines the interface for solo session storage.
type SessionRepository interface {
	Create(session *Session) error
	GetByUserID(userID int64) (*Session, error)
	GetActiveByUserID(userID int64) (*Session, error)
	GetAllActive() ([]*Session, error)
	Update(session *Session) error
	PurgeIdle(cutoff time.Time) (int64, error)
}
