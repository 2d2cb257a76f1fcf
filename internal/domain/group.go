package domain

import "time"

// GroupStatus is the coarse lifecycle state of a group session.
type GroupStatus string

const (
	GroupStatusWaiting   GroupStatus = "waiting"
	GroupStatusActive    GroupStatus = "active"
	GroupStatusCompleted GroupStatus = "completed"
)

// Participant is one member of a group session. A participant who leaves
// is marked inactive rather than deleted, so rejoining keeps history.
type Participant struct {
	UserID   int64
	JoinedAt time.Time
	IsActive bool
}

// GroupSession represents a shared Pomodoro cycle run by a host for a set
// of participants. The phase fields are only meaningful while Status is
// active.
type GroupSession struct {
	SessionID       string
	ChatID          int64
	HostUserID      int64
	Status          GroupStatus
	Phase           Phase
	Settings        Settings
	MaxParticipants int
	// CompletedSessions counts finished study phases, 0..MaxSessions.
	CompletedSessions int
	Participants      []Participant
	// PhaseDuration is the length of the current phase in minutes.
	PhaseDuration int
	StartTime     time.Time
	// PhaseEndsAt is the absolute instant the current phase expires.
	PhaseEndsAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// ActiveParticipants returns the currently active members.
func (g *GroupSession) ActiveParticipants() []Participant {
	var active []Participant
	for _, p := range g.Participants {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active
}

// FindParticipant returns the entry for userID, active or not.
func (g *GroupSession) FindParticipant(userID int64) *Participant {
	for i := range g.Participants {
		if g.Participants[i].UserID == userID {
			return &g.Participants[i]
		}
	}
	return nil
}

// IsHost reports whether userID is the session's host.
func (g *GroupSession) IsHost(userID int64) bool {
	return g.HostUserID == userID
}

// GroupSessionRepository defines the interface for group session storage.
type GroupSessionRepository interface {
	Create(session *GroupSession) error
	GetBySessionID(sessionID string) (*GroupSession, error)
	GetActiveByChatID(chatID int64) (*GroupSession, error)
	GetActiveByParticipant(userID int64) (*GroupSession, error)
	GetAllRunning() ([]*GroupSession, error)
	Update(session *GroupSession) error
	PurgeCompleted(cutoff time.Time) (int64, error)
}
