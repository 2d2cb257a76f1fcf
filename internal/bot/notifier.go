package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/pomo-bot/internal/domain"
)

// The Bot is the schedulers' notification transport. Every method logs and
// swallows delivery failures; the phase machine never depends on a message
// reaching the chat.

// SoloPhaseStarted announces a solo phase transition
func (b *Bot) SoloPhaseStarted(session *domain.Session) {
	text := fmt.Sprintf("⏰ %s %s\n\n%s",
		mention(session.UserID), phaseMessage(session.Phase), formatSession(session))

	msg := tgbotapi.NewMessage(session.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = soloKeyboard()

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("user_id", session.UserID).Msg("failed to deliver phase notification")
	}
}

// SoloCompleted announces the natural end of a solo run
func (b *Bot) SoloCompleted(session *domain.Session) {
	text := fmt.Sprintf(
		"🏁 %s *Congratulations!* 🎉\n\n"+
			"Your Pomodoro session is complete! You finished all %d study sessions. Great job today! 💪✨\n\n"+
			"Ready for another round? Use /focus!",
		mention(session.UserID), session.CompletedSessions)

	msg := tgbotapi.NewMessage(session.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("user_id", session.UserID).Msg("failed to deliver completion notification")
	}
}

// GroupPhaseStarted announces a group phase transition to the session's chat
func (b *Bot) GroupPhaseStarted(session *domain.GroupSession) {
	text := fmt.Sprintf("⏰ %s %s\n\n%s",
		mentions(session.ActiveParticipants()), phaseMessage(session.Phase),
		formatGroupSession(session))

	msg := tgbotapi.NewMessage(session.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = groupKeyboard(session)

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Str("session_id", session.SessionID).Msg("failed to deliver group phase notification")
	}
}

// GroupPhaseSkipped announces an explicit host skip, distinct from the
// routine phase transition that follows it
func (b *Bot) GroupPhaseSkipped(session *domain.GroupSession, skipped domain.Phase) {
	text := fmt.Sprintf("%s\n\n⏭️ *%s* has been skipped by the host!\n🔄 Moving to the next phase...",
		mentions(session.ActiveParticipants()), phaseLabel(skipped))

	msg := tgbotapi.NewMessage(session.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Str("session_id", session.SessionID).Msg("failed to deliver skip notification")
	}
}

// GroupCompleted announces the natural end of a group run with a summary
func (b *Bot) GroupCompleted(session *domain.GroupSession) {
	text := fmt.Sprintf(
		"🏁 *Group Pomodoro completed!*\n\n"+
			"%s\n\nCongratulations everyone! 🎉 You completed *%d/%d* study sessions together. Amazing teamwork! 💪\n\n"+
			"🆔 Session ID: `%s`",
		mentions(session.ActiveParticipants()),
		session.CompletedSessions, session.Settings.MaxSessions,
		session.SessionID)

	msg := tgbotapi.NewMessage(session.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Str("session_id", session.SessionID).Msg("failed to deliver group completion notification")
	}
}

// GroupEnded announces an early end, by the host's command or departure
func (b *Bot) GroupEnded(session *domain.GroupSession) {
	text := fmt.Sprintf(
		"⛔ *Group session ended.*\n\n%s\nYou completed %d of %d study sessions.\n\n🆔 Session ID: `%s`",
		mentions(session.ActiveParticipants()),
		session.CompletedSessions, session.Settings.MaxSessions,
		session.SessionID)

	msg := tgbotapi.NewMessage(session.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Str("session_id", session.SessionID).Msg("failed to deliver group end notification")
	}
}
