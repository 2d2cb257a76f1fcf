package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glebk/pomo-bot/internal/domain"
)

const (
	testUser int64 = 100
	testChat int64 = 7
)

func TestSoloStartCreatesDefaultSession(t *testing.T) {
	rig := newSoloRig()

	session, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)

	assert.True(t, session.IsActive)
	assert.Equal(t, domain.PhaseStudy, session.Phase)
	assert.Equal(t, 0, session.CompletedSessions)
	assert.Equal(t, domain.DefaultSettings(), session.Settings)
	assert.Equal(t, testChat, session.ChatID)
	assert.Equal(t, rig.clock.Now().Add(25*time.Minute), session.PhaseEndsAt)

	delay, ok := rig.timers.delay(timerKey(testUser))
	require.True(t, ok)
	assert.Equal(t, 25*time.Minute, delay)
}

func TestSoloStartReusesStoredSettings(t *testing.T) {
	rig := newSoloRig()

	custom := domain.Settings{
		WorkDuration:            50,
		BreakDuration:           10,
		LongBreakDuration:       30,
		SessionsBeforeLongBreak: 2,
		MaxSessions:             4,
	}
	require.NoError(t, rig.scheduler.Setup(testUser, custom))

	session, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)
	assert.Equal(t, custom, session.Settings)
	assert.Equal(t, 50, session.PhaseDuration)
}

func TestSoloStartAlreadyActive(t *testing.T) {
	rig := newSoloRig()

	_, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)

	_, err = rig.scheduler.Start(testUser, testChat)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)
}

func TestSoloStartBlockedByGroupMembership(t *testing.T) {
	rig := newSoloRig()

	require.NoError(t, rig.groups.Create(&domain.GroupSession{
		SessionID:  "ABC123",
		ChatID:     testChat,
		HostUserID: testUser,
		Status:     domain.GroupStatusWaiting,
		Participants: []domain.Participant{
			{UserID: testUser, JoinedAt: rig.clock.Now(), IsActive: true},
		},
	}))

	_, err := rig.scheduler.Start(testUser, testChat)
	assert.ErrorIs(t, err, domain.ErrAlreadyActive)
}

// Full run with work=1 break=1 long=1, long break every 2 sessions, 2
// sessions max: study → break → study → done.
func TestSoloFullCycle(t *testing.T) {
	rig := newSoloRig()

	require.NoError(t, rig.scheduler.Setup(testUser, domain.Settings{
		WorkDuration:            1,
		BreakDuration:           1,
		LongBreakDuration:       1,
		SessionsBeforeLongBreak: 2,
		MaxSessions:             2,
	}))
	_, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)

	key := timerKey(testUser)

	rig.clock.advance(time.Minute)
	require.True(t, rig.timers.fire(key))
	session, err := rig.sessions.GetActiveByUserID(testUser)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseBreak, session.Phase)
	assert.Equal(t, 1, session.CompletedSessions)
	assert.Equal(t, rig.clock.Now().Add(time.Minute), session.PhaseEndsAt)

	rig.clock.advance(time.Minute)
	require.True(t, rig.timers.fire(key))
	session, err = rig.sessions.GetActiveByUserID(testUser)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseStudy, session.Phase)
	assert.Equal(t, 1, session.CompletedSessions)

	rig.clock.advance(time.Minute)
	require.True(t, rig.timers.fire(key))

	// Terminal: inactive, no timer armed, completion notified.
	session, err = rig.sessions.GetActiveByUserID(testUser)
	require.NoError(t, err)
	assert.Nil(t, session)

	stored, err := rig.sessions.GetByUserID(testUser)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 2, stored.CompletedSessions)
	assert.Equal(t, 0, rig.timers.size())
	assert.Equal(t,
		[]string{"solo-phase:break", "solo-phase:study", "solo-completed"},
		rig.notifier.events)
}

// Skipping the first study with a long break due every session lands
// directly in the long break with one completed session.
func TestSoloSkipToLongBreak(t *testing.T) {
	rig := newSoloRig()

	require.NoError(t, rig.scheduler.Setup(testUser, domain.Settings{
		WorkDuration:            25,
		BreakDuration:           5,
		LongBreakDuration:       15,
		SessionsBeforeLongBreak: 1,
		MaxSessions:             8,
	}))
	_, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)

	require.NoError(t, rig.scheduler.Skip(testUser))

	session, err := rig.sessions.GetActiveByUserID(testUser)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseLongBreak, session.Phase)
	assert.Equal(t, 1, session.CompletedSessions)
	assert.Equal(t, 15, session.PhaseDuration)

	// Still exactly one timer, now armed for the long break.
	assert.Equal(t, 1, rig.timers.size())
	delay, _ := rig.timers.delay(timerKey(testUser))
	assert.Equal(t, 15*time.Minute, delay)
}

func TestSoloSkipWithoutSession(t *testing.T) {
	rig := newSoloRig()

	assert.ErrorIs(t, rig.scheduler.Skip(testUser), domain.ErrNoActiveSession)
}

func TestSoloStop(t *testing.T) {
	rig := newSoloRig()

	_, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)

	session, err := rig.scheduler.Stop(testUser)
	require.NoError(t, err)
	assert.False(t, session.IsActive)
	assert.Equal(t, 0, rig.timers.size())

	_, err = rig.scheduler.Stop(testUser)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestSoloSetupRejectsBadValues(t *testing.T) {
	rig := newSoloRig()

	err := rig.scheduler.Setup(testUser, domain.Settings{
		WorkDuration:            0,
		BreakDuration:           5,
		LongBreakDuration:       15,
		SessionsBeforeLongBreak: 4,
		MaxSessions:             8,
	})

	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "work duration", validation.Field)
}

func TestSoloSetupDoesNotTouchRunningTimer(t *testing.T) {
	rig := newSoloRig()

	_, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)

	require.NoError(t, rig.scheduler.Setup(testUser, domain.Settings{
		WorkDuration:            1,
		BreakDuration:           1,
		LongBreakDuration:       1,
		SessionsBeforeLongBreak: 1,
		MaxSessions:             1,
	}))

	// The running phase keeps its original timer.
	delay, ok := rig.timers.delay(timerKey(testUser))
	require.True(t, ok)
	assert.Equal(t, 25*time.Minute, delay)

	session, err := rig.sessions.GetActiveByUserID(testUser)
	require.NoError(t, err)
	assert.True(t, session.IsActive)
	assert.Equal(t, 1, session.Settings.WorkDuration)
}

func TestSoloAdvanceAfterStopIsNoop(t *testing.T) {
	rig := newSoloRig()

	_, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)
	_, err = rig.scheduler.Stop(testUser)
	require.NoError(t, err)

	err = rig.scheduler.AdvancePhase(testUser)
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestSoloTimerRetryOnStoreFailure(t *testing.T) {
	rig := newSoloRig()

	_, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)

	rig.sessions.updateErr = errors.New("store unavailable")
	rig.clock.advance(25 * time.Minute)
	require.True(t, rig.timers.fire(timerKey(testUser)))

	// The advance was not consumed: a retry timer is armed and the
	// persisted phase is unchanged.
	delay, ok := rig.timers.delay(timerKey(testUser))
	require.True(t, ok)
	assert.Equal(t, advanceRetryDelay, delay)

	rig.sessions.updateErr = nil
	session, err := rig.sessions.GetActiveByUserID(testUser)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseStudy, session.Phase)

	require.True(t, rig.timers.fire(timerKey(testUser)))
	session, err = rig.sessions.GetActiveByUserID(testUser)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseBreak, session.Phase)
}

func TestSoloRecoverStalePhaseAdvancesOnce(t *testing.T) {
	rig := newSoloRig()

	_, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)

	// Simulate a restart: timers are gone, the phase end is long past.
	rig.timers = newFakeRegistry()
	rig.scheduler.timers = rig.timers
	rig.clock.advance(3 * time.Hour)

	require.NoError(t, rig.scheduler.Recover())

	session, err := rig.sessions.GetActiveByUserID(testUser)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseBreak, session.Phase)
	assert.Equal(t, 1, session.CompletedSessions)
	assert.Equal(t, rig.clock.Now().Add(5*time.Minute), session.PhaseEndsAt)
	assert.Equal(t, 1, rig.timers.size())
}

func TestSoloRecoverFuturePhaseRearmsRemainder(t *testing.T) {
	rig := newSoloRig()

	_, err := rig.scheduler.Start(testUser, testChat)
	require.NoError(t, err)

	rig.timers = newFakeRegistry()
	rig.scheduler.timers = rig.timers
	rig.clock.advance(10 * time.Minute)

	require.NoError(t, rig.scheduler.Recover())

	session, err := rig.sessions.GetActiveByUserID(testUser)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseStudy, session.Phase, "future phase must not advance")

	delay, ok := rig.timers.delay(timerKey(testUser))
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, delay)
}
