package scheduler

import (
	"time"

	"github.com/glebk/pomo-bot/internal/domain"
)

// Notifier delivers phase-transition messages to the chat a session was
// started in. Delivery failures are the implementation's problem: they are
// logged and swallowed, never surfaced to the schedulers, so a dropped
// message can not stall or corrupt the phase machine.
type Notifier interface {
	SoloPhaseStarted(session *domain.Session)
	SoloCompleted(session *domain.Session)

	GroupPhaseStarted(session *domain.GroupSession)
	GroupPhaseSkipped(session *domain.GroupSession, skipped domain.Phase)
	GroupCompleted(session *domain.GroupSession)
	GroupEnded(session *domain.GroupSession)
}

// TimerRegistry is the scheduling primitive the schedulers re-arm phase
// expiry callbacks with. Satisfied by timer.Registry; tests install a
// manual fake.
type TimerRegistry interface {
	Schedule(id string, delay time.Duration, fn func())
	Cancel(id string) bool
}
