package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPhaseFromStudy(t *testing.T) {
	s := Settings{
		WorkDuration:            25,
		BreakDuration:           5,
		LongBreakDuration:       15,
		SessionsBeforeLongBreak: 4,
		MaxSessions:             8,
	}

	tests := []struct {
		name      string
		completed int
		wantPhase Phase
		wantDur   int
	}{
		{"first study ends in short break", 0, PhaseBreak, 5},
		{"second study ends in short break", 1, PhaseBreak, 5},
		{"fourth study ends in long break", 3, PhaseLongBreak, 15},
		{"fifth study ends in short break", 4, PhaseBreak, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextPhase(PhaseStudy, tt.completed, s)
			assert.False(t, got.Done)
			assert.Equal(t, tt.wantPhase, got.Phase)
			assert.Equal(t, tt.wantDur, got.Duration)
			assert.Equal(t, tt.completed+1, got.CompletedSessions)
		})
	}
}

func TestNextPhaseFromBreaks(t *testing.T) {
	s := DefaultSettings()

	for _, phase := range []Phase{PhaseBreak, PhaseLongBreak} {
		got := NextPhase(phase, 3, s)
		assert.False(t, got.Done)
		assert.Equal(t, PhaseStudy, got.Phase)
		assert.Equal(t, s.WorkDuration, got.Duration)
		// Break boundaries never change the session count.
		assert.Equal(t, 3, got.CompletedSessions)
	}
}

func TestNextPhaseCompletion(t *testing.T) {
	s := Settings{
		WorkDuration:            25,
		BreakDuration:           5,
		LongBreakDuration:       15,
		SessionsBeforeLongBreak: 4,
		MaxSessions:             2,
	}

	got := NextPhase(PhaseStudy, 1, s)
	require.True(t, got.Done)
	assert.Equal(t, 2, got.CompletedSessions)
}

func TestNextPhaseLongBreakCadence(t *testing.T) {
	// The phase after the k-th study completion is long_break iff k is a
	// multiple of SessionsBeforeLongBreak.
	s := Settings{
		WorkDuration:            25,
		BreakDuration:           5,
		LongBreakDuration:       15,
		SessionsBeforeLongBreak: 3,
		MaxSessions:             10,
	}

	for completed := 0; completed < 9; completed++ {
		got := NextPhase(PhaseStudy, completed, s)
		k := completed + 1
		if k%3 == 0 {
			assert.Equal(t, PhaseLongBreak, got.Phase, "after %d completions", k)
		} else {
			assert.Equal(t, PhaseBreak, got.Phase, "after %d completions", k)
		}
	}
}

func TestNextPhaseImmediateLongBreak(t *testing.T) {
	// With a long break after every session, the very first study
	// completion already earns the long break.
	s := Settings{
		WorkDuration:            25,
		BreakDuration:           5,
		LongBreakDuration:       15,
		SessionsBeforeLongBreak: 1,
		MaxSessions:             8,
	}

	got := NextPhase(PhaseStudy, 0, s)
	require.False(t, got.Done)
	assert.Equal(t, PhaseLongBreak, got.Phase)
	assert.Equal(t, 1, got.CompletedSessions)
}

func TestNextPhaseMonotonicSessions(t *testing.T) {
	s := Settings{
		WorkDuration:            1,
		BreakDuration:           1,
		LongBreakDuration:       1,
		SessionsBeforeLongBreak: 2,
		MaxSessions:             5,
	}

	phase := PhaseStudy
	completed := 0
	for i := 0; i < 20; i++ {
		got := NextPhase(phase, completed, s)
		require.GreaterOrEqual(t, got.CompletedSessions, completed)
		if phase == PhaseStudy {
			assert.Equal(t, completed+1, got.CompletedSessions)
		} else {
			assert.Equal(t, completed, got.CompletedSessions)
		}
		if got.Done {
			assert.Equal(t, s.MaxSessions, got.CompletedSessions)
			return
		}
		phase = got.Phase
		completed = got.CompletedSessions
	}
	t.Fatal("cycle never completed")
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Settings)
		wantField string
	}{
		{"defaults are valid", func(s *Settings) {}, ""},
		{"zero work duration", func(s *Settings) { s.WorkDuration = 0 }, "work duration"},
		{"work duration too long", func(s *Settings) { s.WorkDuration = 181 }, "work duration"},
		{"break too long", func(s *Settings) { s.BreakDuration = 61 }, "break duration"},
		{"zero long break", func(s *Settings) { s.LongBreakDuration = 0 }, "long break duration"},
		{"zero cadence", func(s *Settings) { s.SessionsBeforeLongBreak = 0 }, "sessions before long break"},
		{"zero max sessions", func(s *Settings) { s.MaxSessions = 0 }, "max sessions"},
		{"max sessions too high", func(s *Settings) { s.MaxSessions = 11 }, "max sessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)

			err := s.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.wantField, validation.Field)
		})
	}
}

func TestSettingsDuration(t *testing.T) {
	s := Settings{WorkDuration: 25, BreakDuration: 5, LongBreakDuration: 15}

	assert.Equal(t, 25, s.Duration(PhaseStudy))
	assert.Equal(t, 5, s.Duration(PhaseBreak))
	assert.Equal(t, 15, s.Duration(PhaseLongBreak))
}
