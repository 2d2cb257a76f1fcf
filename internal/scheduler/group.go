package scheduler

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glebk/pomo-bot/internal/domain"
)

const (
	sessionIDLength   = 6
	sessionIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// idGenerationAttempts bounds the uniqueness retry loop on create.
	idGenerationAttempts = 10

	defaultMaxParticipants = 5
)

// GroupScheduler orchestrates a shared Pomodoro lifecycle for the
// participants of one group session. Only the host may start, skip or end
// the cycle; join and leave touch membership but never timing.
type GroupScheduler struct {
	mu       sync.Mutex
	groups   domain.GroupSessionRepository
	sessions domain.SessionRepository
	timers   TimerRegistry
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger
}

// NewGroupScheduler creates a GroupScheduler. The solo repository is used
// for the cross-kind active-session check and for the host's stored
// settings as group defaults.
func NewGroupScheduler(groups domain.GroupSessionRepository, sessions domain.SessionRepository, timers TimerRegistry, log zerolog.Logger) *GroupScheduler {
	return &GroupScheduler{
		groups:   groups,
		sessions: sessions,
		timers:   timers,
		now:      time.Now,
		log:      log.With().Str("component", "group-scheduler").Logger(),
	}
}

// SetNotifier installs the transport that delivers phase notifications.
func (g *GroupScheduler) SetNotifier(n Notifier) {
	g.notifier = n
}

// hasAnySession reports whether userID holds a running solo session or is
// an active participant of a non-completed group session.
func (g *GroupScheduler) hasAnySession(userID int64) (bool, error) {
	solo, err := g.sessions.GetActiveByUserID(userID)
	if err != nil {
		return false, fmt.Errorf("failed to check solo session: %w", err)
	}
	if solo != nil {
		return true, nil
	}

	group, err := g.groups.GetActiveByParticipant(userID)
	if err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}
	return group != nil, nil
}

// defaultSettings returns the host's stored solo settings, or global
// defaults for a host who never configured any.
func (g *GroupScheduler) defaultSettings(hostID int64) (domain.Settings, error) {
	session, err := g.sessions.GetByUserID(hostID)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to load host settings: %w", err)
	}
	if session != nil {
		return session.Settings, nil
	}
	return domain.DefaultSettings(), nil
}

func generateSessionID() string {
	b := make([]byte, sessionIDLength)
	for i := range b {
		b[i] = sessionIDAlphabet[rand.Intn(len(sessionIDAlphabet))]
	}
	return string(b)
}

// Create makes a new waiting group session hosted by hostID in chatID.
// Nil settings means "use the host's stored solo settings". The host is
// auto-joined as the sole participant.
func (g *GroupScheduler) Create(hostID, chatID int64, settings *domain.Settings, maxParticipants int) (*domain.GroupSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	busy, err := g.hasAnySession(hostID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, domain.ErrAlreadyActive
	}

	existing, err := g.groups.GetActiveByChatID(chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to check chat: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyActive
	}

	var cfg domain.Settings
	if settings != nil {
		cfg = *settings
	} else {
		cfg, err = g.defaultSettings(hostID)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if maxParticipants == 0 {
		maxParticipants = defaultMaxParticipants
	}
	if maxParticipants < 2 || maxParticipants > 10 {
		return nil, &domain.ValidationError{Field: "max participants", Message: "must be between 2 and 10"}
	}

	var sessionID string
	for attempt := 0; ; attempt++ {
		if attempt >= idGenerationAttempts {
			return nil, domain.ErrIDGenerationExhausted
		}
		sessionID = generateSessionID()
		dup, err := g.groups.GetBySessionID(sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session id: %w", err)
		}
		if dup == nil {
			break
		}
	}

	now := g.now()
	session := &domain.GroupSession{
		SessionID:       sessionID,
		ChatID:          chatID,
		HostUserID:      hostID,
		Status:          domain.GroupStatusWaiting,
		Phase:           domain.PhaseStudy,
		Settings:        cfg,
		MaxParticipants: maxParticipants,
		Participants: []domain.Participant{
			{UserID: hostID, JoinedAt: now, IsActive: true},
		},
	}

	if err := g.groups.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create group session: %w", err)
	}

	g.log.Info().
		Str("session_id", sessionID).
		Int64("host_id", hostID).
		Int64("chat_id", chatID).
		Msg("group session created")

	return session, nil
}

// Join adds userID to the session, reactivating a soft-left entry when one
// exists. Membership changes never touch timing.
func (g *GroupScheduler) Join(sessionID string, userID int64) (*domain.GroupSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	session, err := g.loadRunning(sessionID)
	if err != nil {
		return nil, err
	}

	busy, err := g.hasAnySession(userID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, domain.ErrAlreadyActive
	}

	if existing := session.FindParticipant(userID); existing != nil {
		existing.IsActive = true
	} else {
		if len(session.ActiveParticipants()) >= session.MaxParticipants {
			return nil, domain.ErrSessionFull
		}
		session.Participants = append(session.Participants, domain.Participant{
			UserID:   userID,
			JoinedAt: g.now(),
			IsActive: true,
		})
	}

	if err := g.groups.Update(session); err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}

	g.log.Info().
		Str("session_id", sessionID).
		Int64("user_id", userID).
		Int("participants", len(session.ActiveParticipants())).
		Msg("participant joined")

	return session, nil
}

// Leave marks userID's entry inactive. A leaving host completes the whole
// session immediately, whatever its status.
func (g *GroupScheduler) Leave(sessionID string, userID int64) (*domain.GroupSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	session, err := g.loadRunning(sessionID)
	if err != nil {
		return nil, err
	}

	participant := session.FindParticipant(userID)
	if participant == nil || !participant.IsActive {
		return nil, domain.ErrNotAParticipant
	}
	participant.IsActive = false

	if session.IsHost(userID) {
		g.completeLocked(session)
		if err := g.groups.Update(session); err != nil {
			return nil, fmt.Errorf("failed to end session: %w", err)
		}

		g.log.Info().
			Str("session_id", sessionID).
			Msg("host left, group session ended")

		if g.notifier != nil {
			g.notifier.GroupEnded(session)
		}
		return session, nil
	}

	if err := g.groups.Update(session); err != nil {
		return nil, fmt.Errorf("failed to leave session: %w", err)
	}

	g.log.Info().
		Str("session_id", sessionID).
		Int64("user_id", userID).
		Msg("participant left")

	return session, nil
}

// StartSession transitions a waiting session to active and begins the
// first study phase. Host only.
func (g *GroupScheduler) StartSession(sessionID string, callerID int64) (*domain.GroupSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	session, err := g.loadRunning(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsHost(callerID) {
		return nil, domain.ErrNotHost
	}
	if session.Status != domain.GroupStatusWaiting {
		return nil, domain.ErrInvalidState
	}
	if len(session.ActiveParticipants()) == 0 {
		return nil, domain.ErrNoParticipants
	}

	now := g.now()
	session.Status = domain.GroupStatusActive
	session.Phase = domain.PhaseStudy
	session.CompletedSessions = 0
	session.PhaseDuration = session.Settings.WorkDuration
	session.StartTime = now
	session.PhaseEndsAt = now.Add(time.Duration(session.Settings.WorkDuration) * time.Minute)

	if err := g.groups.Update(session); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	g.timers.Cancel(sessionID)
	g.scheduleAdvance(sessionID, session.PhaseEndsAt.Sub(now))

	g.log.Info().
		Str("session_id", sessionID).
		Int("participants", len(session.ActiveParticipants())).
		Msg("group session started")

	if g.notifier != nil {
		g.notifier.GroupPhaseStarted(session)
	}
	return session, nil
}

func (g *GroupScheduler) scheduleAdvance(sessionID string, delay time.Duration) {
	g.timers.Schedule(sessionID, delay, func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		if err := g.advance(sessionID, true); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			g.log.Error().Err(err).Str("session_id", sessionID).Msg("timer-driven advance failed")
		}
	})
}

// AdvancePhase moves the session to its next phase, from either a timer
// expiry or a host skip. State is re-read from the store, so the two
// triggers can not double-advance.
func (g *GroupScheduler) AdvancePhase(sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.advance(sessionID, false)
}

func (g *GroupScheduler) advance(sessionID string, fromTimer bool) error {
	session, err := g.groups.GetBySessionID(sessionID)
	if err != nil {
		if fromTimer {
			g.scheduleAdvance(sessionID, advanceRetryDelay)
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || session.Status != domain.GroupStatusActive {
		return domain.ErrSessionNotFound
	}

	next := domain.NextPhase(session.Phase, session.CompletedSessions, session.Settings)
	previous := session.Phase

	if next.Done {
		session.CompletedSessions = next.CompletedSessions
		g.completeLocked(session)
		if err := g.groups.Update(session); err != nil {
			if fromTimer {
				g.scheduleAdvance(sessionID, advanceRetryDelay)
			}
			return fmt.Errorf("failed to complete session: %w", err)
		}

		g.log.Info().
			Str("session_id", sessionID).
			Int("completed", session.CompletedSessions).
			Msg("group session completed")

		if g.notifier != nil {
			g.notifier.GroupCompleted(session)
		}
		return nil
	}

	now := g.now()
	session.Phase = next.Phase
	session.CompletedSessions = next.CompletedSessions
	session.PhaseDuration = next.Duration
	session.PhaseEndsAt = now.Add(time.Duration(next.Duration) * time.Minute)

	if err := g.groups.Update(session); err != nil {
		if fromTimer {
			g.scheduleAdvance(sessionID, advanceRetryDelay)
		}
		return fmt.Errorf("failed to persist phase transition: %w", err)
	}

	g.scheduleAdvance(sessionID, session.PhaseEndsAt.Sub(now))

	g.log.Info().
		Str("session_id", sessionID).
		Str("from", string(previous)).
		Str("to", string(next.Phase)).
		Int("completed", next.CompletedSessions).
		Msg("group phase transition")

	if g.notifier != nil {
		g.notifier.GroupPhaseStarted(session)
	}
	return nil
}

// Skip ends the current phase early. Host only, active sessions only.
// A skip that finishes the final study phase goes straight to the
// completion notification; otherwise an explicit skip notice precedes the
// routine phase-start message.
func (g *GroupScheduler) Skip(sessionID string, callerID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	session, err := g.loadRunning(sessionID)
	if err != nil {
		return err
	}
	if !session.IsHost(callerID) {
		return domain.ErrNotHost
	}
	if session.Status != domain.GroupStatusActive {
		return domain.ErrInvalidState
	}

	g.timers.Cancel(sessionID)

	next := domain.NextPhase(session.Phase, session.CompletedSessions, session.Settings)
	if !next.Done && g.notifier != nil {
		g.notifier.GroupPhaseSkipped(session, session.Phase)
	}

	return g.advance(sessionID, false)
}

// End completes the session from any non-terminal status. Host only.
func (g *GroupScheduler) End(sessionID string, callerID int64) (*domain.GroupSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	session, err := g.loadRunning(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsHost(callerID) {
		return nil, domain.ErrNotHost
	}

	g.completeLocked(session)
	if err := g.groups.Update(session); err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	g.log.Info().
		Str("session_id", sessionID).
		Int("completed", session.CompletedSessions).
		Msg("group session ended by host")

	if g.notifier != nil {
		g.notifier.GroupEnded(session)
	}
	return session, nil
}

// Status returns a read-only snapshot. It never mutates state or re-arms
// timers.
func (g *GroupScheduler) Status(sessionID string) (*domain.GroupSession, error) {
	session, err := g.groups.GetBySessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// StatusByParticipant returns the running session userID belongs to.
func (g *GroupScheduler) StatusByParticipant(userID int64) (*domain.GroupSession, error) {
	session, err := g.groups.GetActiveByParticipant(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// completeLocked marks the session terminal and drops its timer. Callers
// persist the change.
func (g *GroupScheduler) completeLocked(session *domain.GroupSession) {
	now := g.now()
	session.Status = domain.GroupStatusCompleted
	session.CompletedAt = &now
	g.timers.Cancel(session.SessionID)
}

// loadRunning fetches a non-completed session or reports ErrSessionNotFound.
func (g *GroupScheduler) loadRunning(sessionID string) (*domain.GroupSession, error) {
	session, err := g.groups.GetBySessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil || session.Status == domain.GroupStatusCompleted {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Recover reconciles persisted group sessions with the empty timer
// registry after a restart, mirroring the solo scheduler's recovery.
func (g *GroupScheduler) Recover() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	running, err := g.groups.GetAllRunning()
	if err != nil {
		return fmt.Errorf("failed to list running sessions: %w", err)
	}

	now := g.now()
	for _, session := range running {
		if session.Status != domain.GroupStatusActive {
			continue
		}

		remaining := session.PhaseEndsAt.Sub(now)
		if remaining <= 0 {
			g.log.Info().
				Str("session_id", session.SessionID).
				Time("phase_end", session.PhaseEndsAt).
				Msg("recovering stale group session")
			if err := g.advance(session.SessionID, false); err != nil {
				g.log.Error().Err(err).Str("session_id", session.SessionID).Msg("recovery advance failed")
			}
			continue
		}

		g.log.Info().
			Str("session_id", session.SessionID).
			Dur("remaining", remaining).
			Msg("re-arming group session timer")
		g.scheduleAdvance(session.SessionID, remaining)
	}
	return nil
}
