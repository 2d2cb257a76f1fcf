package bot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/pomo-bot/internal/domain"
)

func phaseLabel(p domain.Phase) string {
	switch p {
	case domain.PhaseBreak:
		return "☕ Short Break"
	case domain.PhaseLongBreak:
		return "🌴 Long Break"
	default:
		return "📚 Focus Time"
	}
}

func phaseMessage(p domain.Phase) string {
	switch p {
	case domain.PhaseBreak:
		return "☕ *Break time!* Take a short rest and recharge!"
	case domain.PhaseLongBreak:
		return "🌴 *Long break!* You've earned this extended rest!"
	default:
		return "🔥 *Focus time!* Time to concentrate and be productive!"
	}
}

func progressBar(completed, max int) string {
	if completed > max {
		completed = max
	}
	return strings.Repeat("█", completed) + strings.Repeat("░", max-completed)
}

// mention builds a Telegram text mention that works without a username
func mention(userID int64) string {
	return fmt.Sprintf("[·](tg://user?id=%d)", userID)
}

func mentions(participants []domain.Participant) string {
	parts := make([]string, 0, len(participants))
	for _, p := range participants {
		parts = append(parts, mention(p.UserID))
	}
	return strings.Join(parts, " ")
}

func formatSession(s *domain.Session) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "🍅 *Pomodoro — %s*\n\n", phaseLabel(s.Phase))
	fmt.Fprintf(&sb, "⏳ Duration: *%d mins*\n", s.PhaseDuration)
	if !s.PhaseEndsAt.IsZero() {
		fmt.Fprintf(&sb, "🕒 Ends at: *%s*\n", s.PhaseEndsAt.Local().Format("15:04"))
	}
	fmt.Fprintf(&sb, "\n📈 Progress:\n`%s`\n", progressBar(s.CompletedSessions, s.Settings.MaxSessions))
	fmt.Fprintf(&sb, "Session %d/%d", s.CompletedSessions, s.Settings.MaxSessions)

	return sb.String()
}

func formatGroupSession(g *domain.GroupSession) string {
	var sb strings.Builder

	switch g.Status {
	case domain.GroupStatusWaiting:
		fmt.Fprintf(&sb, "👥 *Group Pomodoro — waiting to start*\n\n")
	case domain.GroupStatusCompleted:
		fmt.Fprintf(&sb, "👥 *Group Pomodoro — finished*\n\n")
	default:
		fmt.Fprintf(&sb, "👥 *Group Pomodoro — %s*\n\n", phaseLabel(g.Phase))
	}

	fmt.Fprintf(&sb, "🆔 Session ID: `%s`\n", g.SessionID)

	active := g.ActiveParticipants()
	fmt.Fprintf(&sb, "🙋 Participants: *%d/%d*\n", len(active), g.MaxParticipants)

	if g.Status == domain.GroupStatusActive {
		fmt.Fprintf(&sb, "⏳ Duration: *%d mins*\n", g.PhaseDuration)
		if !g.PhaseEndsAt.IsZero() {
			fmt.Fprintf(&sb, "🕒 Ends at: *%s*\n", g.PhaseEndsAt.Local().Format("15:04"))
		}
	} else {
		fmt.Fprintf(&sb, "⚙️ %dm work / %dm break / %dm long break\n",
			g.Settings.WorkDuration, g.Settings.BreakDuration, g.Settings.LongBreakDuration)
	}

	fmt.Fprintf(&sb, "\n📈 Progress:\n`%s`\n", progressBar(g.CompletedSessions, g.Settings.MaxSessions))
	fmt.Fprintf(&sb, "Session %d/%d", g.CompletedSessions, g.Settings.MaxSessions)

	return sb.String()
}

func soloKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏭️ Skip Phase", "pomo_skip"),
			tgbotapi.NewInlineKeyboardButtonData("⛔ Stop Session", "pomo_stop"),
		),
	)
}

// groupKeyboard returns the session's control buttons. Callback data is
// group_<action>_<sessionId>.
func groupKeyboard(g *domain.GroupSession) tgbotapi.InlineKeyboardMarkup {
	if g.Status == domain.GroupStatusActive {
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("⏭️ Skip Phase", "group_skip_"+g.SessionID),
				tgbotapi.NewInlineKeyboardButtonData("⛔ Stop Session", "group_end_"+g.SessionID),
			),
		)
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🙋 Join", "group_join_"+g.SessionID),
			tgbotapi.NewInlineKeyboardButtonData("🚀 Start Session", "group_start_"+g.SessionID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👋 Leave", "group_leave_"+g.SessionID),
			tgbotapi.NewInlineKeyboardButtonData("⛔ End", "group_end_"+g.SessionID),
		),
	)
}

// userMessage maps a scheduler error to a specific, user-facing rejection.
// Validation-class failures always name their reason; only genuine
// infrastructure errors collapse into a generic message.
func userMessage(err error) string {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return "❌ " + validation.Error()
	}

	switch {
	case errors.Is(err, domain.ErrAlreadyActive):
		return "❌ You already have an active session. End it first before starting another."
	case errors.Is(err, domain.ErrNoActiveSession):
		return "❌ You don't have an active Pomodoro session."
	case errors.Is(err, domain.ErrSessionNotFound):
		return "❌ Session not found or no longer available."
	case errors.Is(err, domain.ErrNotHost):
		return "⛔ Only the host can do that."
	case errors.Is(err, domain.ErrNotAParticipant):
		return "❌ You're not a participant in this session."
	case errors.Is(err, domain.ErrSessionFull):
		return "❌ This session is full. Maximum participants reached."
	case errors.Is(err, domain.ErrInvalidState):
		return "❌ The session is in the wrong state for that."
	case errors.Is(err, domain.ErrNoParticipants):
		return "❌ No participants in the session."
	case errors.Is(err, domain.ErrIDGenerationExhausted):
		return "❌ Failed to generate a unique session ID. Please try again."
	default:
		return "❌ Something went wrong. Please try again."
	}
}
