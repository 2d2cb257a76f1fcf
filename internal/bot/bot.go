package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/glebk/pomo-bot/internal/config"
	"github.com/glebk/pomo-bot/internal/domain"
	"github.com/glebk/pomo-bot/internal/scheduler"
)

const focusButtonText = "🍅 Start focusing!"

// Bot represents the Telegram bot
type Bot struct {
	api      *tgbotapi.BotAPI
	solo     *scheduler.SoloScheduler
	group    *scheduler.GroupScheduler
	sessions domain.SessionRepository
	groups   domain.GroupSessionRepository
	config   *config.Config
	log      zerolog.Logger
}

// New creates a new Bot instance and wires it in as the schedulers'
// notification transport
func New(token string, solo *scheduler.SoloScheduler, group *scheduler.GroupScheduler, sessions domain.SessionRepository, groups domain.GroupSessionRepository, cfg *config.Config, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info().Str("account", api.Self.UserName).Msg("authorized")

	b := &Bot{
		api:      api,
		solo:     solo,
		group:    group,
		sessions: sessions,
		groups:   groups,
		config:   cfg,
		log:      log.With().Str("component", "bot").Logger(),
	}

	solo.SetNotifier(b)
	group.SetNotifier(b)

	return b, nil
}

// Start starts the bot
func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	// Start background routine that purges stale records
	go b.maintenanceRoutine()

	for update := range updates {
		if update.Message != nil {
			b.handleMessage(update.Message)
		} else if update.CallbackQuery != nil {
			b.handleCallbackQuery(update.CallbackQuery)
		}
	}

	return nil
}

// maintenanceRoutine periodically deletes idle solo records and retired
// group sessions. A missed sweep is harmless; the next one catches up.
func (b *Bot) maintenanceRoutine() {
	ticker := time.NewTicker(b.config.Retention.SweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		purged, err := b.sessions.PurgeIdle(now.Add(-b.config.Retention.SoloIdleWindow))
		if err != nil {
			b.log.Error().Err(err).Msg("failed to purge idle sessions")
		} else if purged > 0 {
			b.log.Info().Int64("count", purged).Msg("purged idle solo sessions")
		}

		purged, err = b.groups.PurgeCompleted(now.Add(-b.config.Retention.GroupRetireWindow))
		if err != nil {
			b.log.Error().Err(err).Msg("failed to purge completed group sessions")
		} else if purged > 0 {
			b.log.Info().Int64("count", purged).Msg("purged completed group sessions")
		}
	}
}

// handleMessage handles incoming messages
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(message)
		return
	}

	// Handle keyboard button
	if message.Text == focusButtonText {
		b.handleFocus(message)
		return
	}
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "focus":
		b.handleFocus(message)
	case "stop":
		b.handleStop(message)
	case "skip":
		b.handleSkip(message)
	case "status":
		b.handleStatus(message)
	case "setup":
		b.handleSetup(message)
	case "group_create":
		b.handleGroupCreate(message)
	case "group_join":
		b.handleGroupJoin(message)
	case "group_leave":
		b.handleGroupLeave(message)
	case "group_status":
		b.handleGroupStatus(message)
	case "group_end":
		b.handleGroupEnd(message)
	case "help":
		b.handleHelp(message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see what I can do.")
	}
}

// handleStart handles the /start command
func (b *Bot) handleStart(message *tgbotapi.Message) {
	text := fmt.Sprintf(
		"👋 Welcome to the Pomodoro bot, %s!\n\n"+
			"I track focus sessions for you — solo or together with friends.\n\n"+
			"Use /focus or the button below to start a solo session\n"+
			"Use /group_create to start a group session\n"+
			"Use /help for the full command list",
		message.From.FirstName,
	)

	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(focusButtonText),
		),
	)

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = keyboard

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Msg("failed to send start message")
	}
}

// handleFocus starts a solo Pomodoro session
func (b *Bot) handleFocus(message *tgbotapi.Message) {
	session, err := b.solo.Start(message.From.ID, message.Chat.ID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyActive) {
			if current, statusErr := b.solo.Status(message.From.ID); statusErr == nil {
				b.sendMarkdown(message.Chat.ID,
					"⚠️ You already have an active session running!\n\n"+formatSession(current))
				return
			}
			b.sendMessage(message.Chat.ID,
				"⚠️ You already have an active session. End it first with /stop or /group_leave.")
			return
		}
		b.log.Error().Err(err).Int64("user_id", message.From.ID).Msg("failed to start session")
		b.sendMessage(message.Chat.ID, "❌ Failed to start your session. Please try again.")
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID,
		"🍅 *Pomodoro session started!* Time to focus! 🔥\n\n"+formatSession(session))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = soloKeyboard()

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Msg("failed to send focus message")
	}
}

// handleStop stops a solo session
func (b *Bot) handleStop(message *tgbotapi.Message) {
	session, err := b.solo.Stop(message.From.ID)
	if err != nil {
		b.sendMessage(message.Chat.ID, userMessage(err))
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"🛑 Session stopped. You finished %d of %d study sessions.",
		session.CompletedSessions, session.Settings.MaxSessions))
}

// handleSkip skips the current solo phase
func (b *Bot) handleSkip(message *tgbotapi.Message) {
	session, err := b.solo.Status(message.From.ID)
	if err != nil {
		b.sendMessage(message.Chat.ID, userMessage(err))
		return
	}

	skipped := session.Phase
	if err := b.solo.Skip(message.From.ID); err != nil {
		b.sendMessage(message.Chat.ID, userMessage(err))
		return
	}

	b.sendMessage(message.Chat.ID,
		fmt.Sprintf("⏭️ Skipped %s! Moving on...", phaseLabel(skipped)))
}

// handleStatus shows the current solo session
func (b *Bot) handleStatus(message *tgbotapi.Message) {
	session, err := b.solo.Status(message.From.ID)
	if err != nil {
		b.sendMessage(message.Chat.ID, userMessage(err))
		return
	}

	b.sendMarkdown(message.Chat.ID, formatSession(session))
}

// handleSetup stores the user's timing configuration.
// Usage: /setup <work> <break> <longbreak> <sessions> [max]
func (b *Bot) handleSetup(message *tgbotapi.Message) {
	args := strings.Fields(message.CommandArguments())
	if len(args) != 4 && len(args) != 5 {
		b.sendMessage(message.Chat.ID,
			"Usage: /setup <work> <break> <longbreak> <sessions> [max]\n"+
				"Example: /setup 25 5 15 4 8")
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

	settings := domain.Settings{
		WorkDuration:            values[0],
		BreakDuration:           values[1],
		LongBreakDuration:       values[2],
		SessionsBeforeLongBreak: values[3],
		MaxSessions:             domain.DefaultSettings().MaxSessions,
	}
	if len(values) == 5 {
		settings.MaxSessions = values[4]
	}

	if err := b.solo.Setup(message.From.ID, settings); err != nil {
		b.sendMessage(message.Chat.ID, userMessage(err))
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"✅ Settings saved: %dm work, %dm break, %dm long break, long break every %d sessions, %d sessions max.\n"+
			"They apply from your next /focus.",
		settings.WorkDuration, settings.BreakDuration, settings.LongBreakDuration,
		settings.SessionsBeforeLongBreak, settings.MaxSessions))
}

// handleHelp shows help information
func (b *Bot) handleHelp(message *tgbotapi.Message) {
	text := `*Pomodoro bot — help*

*Solo sessions:*
/focus - Start a Pomodoro session
/stop - Stop the running session
/skip - Skip the current phase
/status - Show the running session
/setup work break longbreak sessions \[max] - Configure your timings

*Group sessions:*
/group\_create \[work break longbreak sessions max] - Create a group session
/group\_join ID - Join a group session
/group\_leave - Leave your group session
/group\_status - Show your group session
/group\_end - End the group session (host only)

*How it works:*
1. Study phases alternate with breaks; every few sessions you get a long break
2. Group sessions run one shared timer controlled by the host
3. Use the buttons under session messages to skip, stop, join or leave`

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Msg("failed to send help")
	}
}

// handleCallbackQuery handles button callbacks
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	data := query.Data

	if strings.HasPrefix(data, "group_") {
		b.handleGroupCallback(query)
		return
	}

	switch data {
	case "pomo_skip":
		session, err := b.solo.Status(query.From.ID)
		if err != nil {
			b.answerCallback(query.ID, userMessage(err))
			return
		}
		skipped := session.Phase
		if err := b.solo.Skip(query.From.ID); err != nil {
			b.answerCallback(query.ID, userMessage(err))
			return
		}
		b.answerCallback(query.ID, fmt.Sprintf("⏭️ Skipped %s!", phaseLabel(skipped)))
	case "pomo_stop":
		session, err := b.solo.Stop(query.From.ID)
		if err != nil {
			b.answerCallback(query.ID, userMessage(err))
			return
		}
		b.answerCallback(query.ID, "🛑 Session stopped")
		b.sendMessage(session.ChatID, fmt.Sprintf(
			"🛑 Session stopped. You finished %d of %d study sessions.",
			session.CompletedSessions, session.Settings.MaxSessions))
	default:
		b.answerCallback(query.ID, "Unknown action")
	}
}

// sendMessage sends a simple text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

// sendMarkdown sends a Markdown-formatted message
func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.log.Error().Err(err).Msg("failed to answer callback")
	}
}
