package domain

// Phase is one timed interval kind within a Pomodoro cycle.
type Phase string

const (
	PhaseStudy     Phase = "study"
	PhaseBreak     Phase = "break"
	PhaseLongBreak Phase = "long_break"
)

// Settings holds the timing configuration of a Pomodoro cycle.
// All durations are in minutes.
type Settings struct {
	WorkDuration            int
	BreakDuration           int
	LongBreakDuration       int
	SessionsBeforeLongBreak int
	MaxSessions             int
}

// DefaultSettings returns the standard 25/5/15 Pomodoro configuration.
func DefaultSettings() Settings {
	return Settings{
		WorkDuration:            25,
		BreakDuration:           5,
		LongBreakDuration:       15,
		SessionsBeforeLongBreak: 4,
		MaxSessions:             8,
	}
}

// Validate checks each field against its accepted range and reports
// the first rejected field.
func (s Settings) Validate() error {
	switch {
	case s.WorkDuration < 1 || s.WorkDuration > 180:
		return &ValidationError{Field: "work duration", Message: "must be between 1 and 180 minutes"}
	case s.BreakDuration < 1 || s.BreakDuration > 60:
		return &ValidationError{Field: "break duration", Message: "must be between 1 and 60 minutes"}
	case s.LongBreakDuration < 1 || s.LongBreakDuration > 120:
		return &ValidationError{Field: "long break duration", Message: "must be between 1 and 120 minutes"}
	case s.SessionsBeforeLongBreak < 1 || s.SessionsBeforeLongBreak > 10:
		return &ValidationError{Field: "sessions before long break", Message: "must be between 1 and 10"}
	case s.MaxSessions < 1 || s.MaxSessions > 10:
		return &ValidationError{Field: "max sessions", Message: "must be between 1 and 10"}
	}
	return nil
}

// Duration returns the configured duration in minutes for a phase.
func (s Settings) Duration(p Phase) int {
	switch p {
	case PhaseBreak:
		return s.BreakDuration
	case PhaseLongBreak:
		return s.LongBreakDuration
	default:
		return s.WorkDuration
	}
}

// Transition is the outcome of one phase boundary.
type Transition struct {
	Phase             Phase
	Duration          int // minutes
	CompletedSessions int
	Done              bool
}

// NextPhase computes the phase that follows the current one. Completing a
// study phase increments the session count; reaching MaxSessions that way
// terminates the cycle (Done is set and the remaining fields are zero).
// Break phases never change the count.
func NextPhase(current Phase, completedSessions int, s Settings) Transition {
	if current != PhaseStudy {
		return Transition{
			Phase:             PhaseStudy,
			Duration:          s.WorkDuration,
			CompletedSessions: completedSessions,
		}
	}

	completed := completedSessions + 1
	if completed >= s.MaxSessions {
		return Transition{Done: true, CompletedSessions: completed}
	}

	next := PhaseBreak
	if completed%s.SessionsBeforeLongBreak == 0 {
		next = PhaseLongBreak
	}

	return Transition{
		Phase:             next,
		Duration:          s.Duration(next),
		CompletedSessions: completed,
	}
}
