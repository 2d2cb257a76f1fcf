package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/glebk/pomo-bot/internal/bot"
	"github.com/glebk/pomo-bot/internal/config"
	"github.com/glebk/pomo-bot/internal/repository/sqlite"
	"github.com/glebk/pomo-bot/internal/scheduler"
	"github.com/glebk/pomo-bot/internal/timer"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", "pomo-bot").
		Logger()
	zerolog.TimeFieldFormat = time.RFC3339

	// Initialize database
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	log.Info().Str("path", cfg.DatabasePath).Msg("database initialized")

	// Initialize repositories
	sessionRepo := sqlite.NewSessionRepository(db)
	groupRepo := sqlite.NewGroupSessionRepository(db)

	// Initialize schedulers, each owning its own timer registry
	solo := scheduler.NewSoloScheduler(sessionRepo, groupRepo, timer.NewRegistry(), log)
	group := scheduler.NewGroupScheduler(groupRepo, sessionRepo, timer.NewRegistry(), log)

	// Initialize bot (wires itself in as the schedulers' notifier)
	telegramBot, err := bot.New(cfg.TelegramToken, solo, group, sessionRepo, groupRepo, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize bot")
	}

	// Reconcile persisted sessions with the empty timer registries
	if err := solo.Recover(); err != nil {
		log.Error().Err(err).Msg("solo session recovery failed")
	}
	if err := group.Recover(); err != nil {
		log.Error().Err(err).Msg("group session recovery failed")
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start bot in goroutine
	go func() {
		log.Info().Msg("bot started, press Ctrl+C to stop")
		if err := telegramBot.Start(); err != nil {
			log.Fatal().Err(err).Msg("bot stopped with error")
		}
	}()

	// Wait for stop signal
	<-stop
	log.Info().Msg("shutting down gracefully")
}
