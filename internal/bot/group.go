package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/glebk/pomo-bot/internal/domain"
)

// handleGroupCreate creates a group session.
// Usage: /group_create [work break longbreak sessions max]
func (b *Bot) handleGroupCreate(message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())

	var settings *domain.Settings
	if len(args) > 0 {
		if len(args) != 5 {
			b.sendMessage(message.Chat.ID,
				"Usage: /group_create [work break longbreak sessions max]\n"+
					"Example: /group_create 25 5 15 4 8\n"+
					"Without arguments your own /setup settings are used.")
			return
		}

		values := make([]int, len(args))
		for i, arg := range args {
			v, err := strconv.Atoi(arg)
			if err != nil {
				b.sendMessage(message.Chat.ID, fmt.Sprintf("❌ %q is not a number.", arg))
				return
			}
			values[i] = v
		}

		settings = &domain.Settings{
			WorkDuration:            values[0],
			BreakDuration:           values[1],
			LongBreakDuration:       values[2],
			SessionsBeforeLongBreak: values[3],
			MaxSessions:             values[4],
		}
	}

	session, err := b.group.Create(message.From.ID, message.Chat.ID, settings, 0)
	if err != nil {
		b.sendMessage(message.Chat.ID, userMessage(err))
		return
	}

	text := fmt.Sprintf(
		"🍅 *Group Pomodoro session created!*\n\n"+
			"*Session ID:* `%s`\n"+
			"You are the host. Others can join with the button below or `/group_join %s`\n\n"+
			"*Press \"Start\" when everyone has joined!*\n\n%s",
		session.SessionID, session.SessionID, formatGroupSession(session))

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = groupKeyboard(session)

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Msg("failed to send group create message")
	}
}

// handleGroupJoin joins a group session by id.
// Usage: /group_join <ID>
func (b *Bot) handleGroupJoin(message *tgbotapi.Message) {
	sessionID := strings.ToUpper(strings.TrimSpace(message.CommandArguments()))
	if sessionID == "" {
		b.sendMessage(message.Chat.ID, "Usage: /group_join <session ID>")
		return
	}

	session, err := b.group.Join(sessionID, message.From.ID)
	if err != nil {
		b.sendMessage(message.Chat.ID, userMessage(err))
		return
	}

	note := ""
	if session.Status == domain.GroupStatusWaiting {
		note = " Waiting for the host to start."
	}
	b.sendMessage(message.Chat.ID,
		fmt.Sprintf("✅ Joined group session %s!%s", sessionID, note))
	b.announceGroup(session)
}

// handleGroupLeave leaves the caller's group session
func (b *Bot) handleGroupLeave(message *tgbotapi.Message) {
	current, err := b.group.StatusByParticipant(message.From.ID)
	if err != nil {
		b.sendMessage(message.Chat.ID, "❌ You're not in any group session.")
		return
	}

	session, err := b.group.Leave(current.SessionID, message.From.ID)
	if err != nil {
		b.sendMessage(message.Chat.ID, userMessage(err))
		return
	}

	if session.Status == domain.GroupStatusCompleted {
		b.sendMessage(message.Chat.ID,
			"👋 You left the session. Since you were the host, the session has ended.")
		return
	}
	b.sendMessage(message.Chat.ID, "👋 You left the group session.")
}

// handleGroupStatus shows the caller's group session
func (b *Bot) handleGroupStatus(message *tgbotapi.Message) {
	session, err := b.group.StatusByParticipant(message.From.ID)
	if err != nil {
		b.sendMessage(message.Chat.ID, "❌ You're not in any group session.")
		return
	}

	b.sendMarkdown(message.Chat.ID, formatGroupSession(session))
}

// handleGroupEnd ends the caller's group session (host only)
func (b *Bot) handleGroupEnd(message *tgbotapi.Message) {
	current, err := b.group.StatusByParticipant(message.From.ID)
	if err != nil {
		b.sendMessage(message.Chat.ID, "❌ You're not in any group session.")
		return
	}

	if _, err := b.group.End(current.SessionID, message.From.ID); err != nil {
		b.sendMessage(message.Chat.ID, userMessage(err))
	}
}

// handleGroupCallback routes group button presses. Callback data is of the
// form group_<action>_<sessionId>.
func (b *Bot) handleGroupCallback(query *tgbotapi.CallbackQuery) {
	parts := strings.SplitN(strings.TrimPrefix(query.Data, "group_"), "_", 2)
	if len(parts) != 2 {
		b.answerCallback(query.ID, "Invalid action")
		return
	}

	action, sessionID := parts[0], parts[1]
	userID := query.From.ID

	switch action {
	case "join":
		session, err := b.group.Join(sessionID, userID)
		if err != nil {
			b.answerCallback(query.ID, userMessage(err))
			return
		}
		b.answerCallback(query.ID, "✅ Joined!")
		b.updateGroupMessage(query, session)
	case "start":
		session, err := b.group.StartSession(sessionID, userID)
		if err != nil {
			b.answerCallback(query.ID, userMessage(err))
			return
		}
		b.answerCallback(query.ID, "🚀 Session started!")
		b.updateGroupMessage(query, session)
	case "leave":
		session, err := b.group.Leave(sessionID, userID)
		if err != nil {
			b.answerCallback(query.ID, userMessage(err))
			return
		}
		if session.Status == domain.GroupStatusCompleted {
			b.answerCallback(query.ID, "👋 You left; the session has ended.")
		} else {
			b.answerCallback(query.ID, "👋 You left the session.")
		}
		b.updateGroupMessage(query, session)
	case "end":
		session, err := b.group.End(sessionID, userID)
		if err != nil {
			b.answerCallback(query.ID, userMessage(err))
			return
		}
		b.answerCallback(query.ID, "⛔ Session ended")
		b.updateGroupMessage(query, session)
	case "skip":
		if err := b.group.Skip(sessionID, userID); err != nil {
			b.answerCallback(query.ID, userMessage(err))
			return
		}
		b.answerCallback(query.ID, "⏭️ Phase skipped")
	default:
		b.answerCallback(query.ID, "Unknown action")
	}
}

// updateGroupMessage rewrites the message the pressed button was attached
// to with the session's current state
func (b *Bot) updateGroupMessage(query *tgbotapi.CallbackQuery, session *domain.GroupSession) {
	if query.Message == nil {
		return
	}

	edit := tgbotapi.NewEditMessageText(
		query.Message.Chat.ID,
		query.Message.MessageID,
		formatGroupSession(session),
	)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if session.Status != domain.GroupStatusCompleted {
		markup := groupKeyboard(session)
		edit.ReplyMarkup = &markup
	}

	if _, err := b.api.Send(edit); err != nil {
		b.log.Error().Err(err).Msg("failed to edit group message")
	}
}

// announceGroup posts the session's current state to its home chat
func (b *Bot) announceGroup(session *domain.GroupSession) {
	msg := tgbotapi.NewMessage(session.ChatID, formatGroupSession(session))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if session.Status != domain.GroupStatusCompleted {
		msg.ReplyMarkup = groupKeyboard(session)
	}

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Msg("failed to announce group session")
	}
}
