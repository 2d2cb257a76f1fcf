// Package scheduler drives the Pomodoro phase lifecycle. The repositories
// are the sole owners of durable state: every operation re-reads the
// persisted record before acting, so timer callbacks, commands and buttons
// all converge on the same state no matter which fires first.
package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glebk/pomo-bot/internal/domain"
)

// advanceRetryDelay is how long a timer-driven advance waits before retrying
// after a store failure. The timer is not considered consumed on failure.
const advanceRetryDelay = 30 * time.Second

// SoloScheduler orchestrates one user's solo Pomodoro lifecycle.
type SoloScheduler struct {
	mu       sync.Mutex
	sessions domain.SessionRepository
	groups   domain.GroupSessionRepository
	timers   TimerRegistry
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger
}

// NewSoloScheduler creates a SoloScheduler. The group repository is used
// only for the cross-kind active-session check.
func NewSoloScheduler(sessions domain.SessionRepository, groups domain.GroupSessionRepository, timers TimerRegistry, log zerolog.Logger) *SoloScheduler {
	return &SoloScheduler{
		sessions: sessions,
		groups:   groups,
		timers:   timers,
		now:      time.Now,
		log:      log.With().Str("component", "solo-scheduler").Logger(),
	}
}

// SetNotifier installs the transport that delivers phase notifications.
func (s *SoloScheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

func timerKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Start begins a fresh solo run for userID in chatID. The user's stored
// settings are reused; a first-time user gets defaults. Fails with
// ErrAlreadyActive if the user already has a running solo or group session.
func (s *SoloScheduler) Start(userID, chatID int64) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.sessions.GetActiveByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check active session: %w", err)
	}
	if active != nil {
		return nil, domain.ErrAlreadyActive
	}

	group, err := s.groups.GetActiveByParticipant(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check group membership: %w", err)
	}
	if group != nil {
		return nil, domain.ErrAlreadyActive
	}

	session, err := s.sessions.GetByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	created := false
	if session == nil {
		session = &domain.Session{
			UserID:   userID,
			Settings: domain.DefaultSettings(),
		}
		created = true
	}

	now := s.now()
	session.ChatID = chatID
	session.IsActive = true
	session.Phase = domain.PhaseStudy
	session.CompletedSessions = 0
	session.PhaseDuration = session.Settings.WorkDuration
	session.StartTime = now
	session.PhaseEndsAt = now.Add(time.Duration(session.Settings.WorkDuration) * time.Minute)

	if created {
		err = s.sessions.Create(session)
	} else {
		err = s.sessions.Update(session)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	key := timerKey(userID)
	s.timers.Cancel(key)
	s.scheduleAdvance(userID, session.PhaseEndsAt.Sub(now))

	s.log.Info().
		Int64("user_id", userID).
		Int("work", session.Settings.WorkDuration).
		Int("max_sessions", session.Settings.MaxSessions).
		Msg("solo session started")

	return session, nil
}

func (s *SoloScheduler) scheduleAdvance(userID int64, delay time.Duration) {
	s.timers.Schedule(timerKey(userID), delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if err := s.advance(userID, true); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
			s.log.Error().Err(err).Int64("user_id", userID).Msg("timer-driven advance failed")
		}
	})
}

// AdvancePhase moves the user's session to its next phase. Safe to call
// from any trigger: the next state is derived from the persisted record,
// so a late skip racing its own timer recomputes rather than double-advances.
func (s *SoloScheduler) AdvancePhase(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.advance(userID, false)
}

func (s *SoloScheduler) advance(userID int64, fromTimer bool) error {
	session, err := s.sessions.GetActiveByUserID(userID)
	if err != nil {
		if fromTimer {
			s.scheduleAdvance(userID, advanceRetryDelay)
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return domain.ErrNoActiveSession
	}

	next := domain.NextPhase(session.Phase, session.CompletedSessions, session.Settings)
	previous := session.Phase

	if next.Done {
		session.IsActive = false
		session.CompletedSessions = next.CompletedSessions
		if err := s.sessions.Update(session); err != nil {
			if fromTimer {
				s.scheduleAdvance(userID, advanceRetryDelay)
			}
			return fmt.Errorf("failed to complete session: %w", err)
		}
		s.timers.Cancel(timerKey(userID))

		s.log.Info().
			Int64("user_id", userID).
			Int("completed", session.CompletedSessions).
			Msg("solo session completed")

		if s.notifier != nil {
			s.notifier.SoloCompleted(session)
		}
		return nil
	}

	now := s.now()
	session.Phase = next.Phase
	session.CompletedSessions = next.CompletedSessions
	session.PhaseDuration = next.Duration
	session.PhaseEndsAt = now.Add(time.Duration(next.Duration) * time.Minute)

	if err := s.sessions.Update(session); err != nil {
		if fromTimer {
			s.scheduleAdvance(userID, advanceRetryDelay)
		}
		return fmt.Errorf("failed to persist phase transition: %w", err)
	}

	s.scheduleAdvance(userID, session.PhaseEndsAt.Sub(now))

	s.log.Info().
		Int64("user_id", userID).
		Str("from", string(previous)).
		Str("to", string(next.Phase)).
		Int("completed", next.CompletedSessions).
		Msg("solo phase transition")

	if s.notifier != nil {
		s.notifier.SoloPhaseStarted(session)
	}
	return nil
}

// Skip ends the current phase immediately. The pending timer is cancelled
// first so the skip and the expiry can never both advance the phase.
func (s *SoloScheduler) Skip(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.GetActiveByUserID(userID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return domain.ErrNoActiveSession
	}

	s.timers.Cancel(timerKey(userID))
	return s.advance(userID, false)
}

// Stop ends the run and marks the session inactive.
func (s *SoloScheduler) Stop(userID int64) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.GetActiveByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrNoActiveSession
	}

	s.timers.Cancel(timerKey(userID))

	session.IsActive = false
	if err := s.sessions.Update(session); err != nil {
		return nil, fmt.Errorf("failed to stop session: %w", err)
	}

	s.log.Info().
		Int64("user_id", userID).
		Int("completed", session.CompletedSessions).
		Msg("solo session stopped")

	return session, nil
}

// Setup stores the user's timing configuration. A running session keeps
// its current phase and timer; the new settings apply from the next Start.
func (s *SoloScheduler) Setup(userID int64, settings domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.GetByUserID(userID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if session == nil {
		session = &domain.Session{
			UserID:   userID,
			Settings: settings,
			Phase:    domain.PhaseStudy,
		}
		session.PhaseDuration = settings.WorkDuration
		if err := s.sessions.Create(session); err != nil {
			return fmt.Errorf("failed to persist settings: %w", err)
		}
		return nil
	}

	session.Settings = settings
	if err := s.sessions.Update(session); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}

// Status returns the user's running session.
func (s *SoloScheduler) Status(userID int64) (*domain.Session, error) {
	session, err := s.sessions.GetActiveByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrNoActiveSession
	}
	return session, nil
}

// Recover reconciles persisted sessions with the empty timer registry after
// a restart. A phase whose end already passed is advanced exactly once; a
// phase still in the future gets a timer for the remaining delta.
func (s *SoloScheduler) Recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.sessions.GetAllActive()
	if err != nil {
		return fmt.Errorf("failed to list active sessions: %w", err)
	}

	now := s.now()
	for _, session := range active {
		remaining := session.PhaseEndsAt.Sub(now)
		if remaining <= 0 {
			s.log.Info().
				Int64("user_id", session.UserID).
				Time("phase_end", session.PhaseEndsAt).
				Msg("recovering stale solo session")
			if err := s.advance(session.UserID, false); err != nil {
				s.log.Error().Err(err).Int64("user_id", session.UserID).Msg("recovery advance failed")
			}
			continue
		}

		s.log.Info().
			Int64("user_id", session.UserID).
			Dur("remaining", remaining).
			Msg("re-arming solo session timer")
		s.scheduleAdvance(session.UserID, remaining)
	}
	return nil
}
