package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	TelegramToken string
	DatabasePath  string
	LogLevel      string
	Retention     Retention
}

// Retention defines how long stale records are kept before the
// maintenance loop purges them
type Retention struct {
	// SoloIdleWindow is how long an inactive solo session record survives.
	SoloIdleWindow time.Duration
	// GroupRetireWindow is how long a completed group session survives.
	GroupRetireWindow time.Duration
	// SweepInterval is how often the purge runs.
	SweepInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./pomo_bot.db"
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return &Config{
		TelegramToken: token,
		DatabasePath:  dbPath,
		LogLevel:      level,
		Retention: Retention{
			SoloIdleWindow:    10 * time.Hour,
			GroupRetireWindow: 2 * time.Hour,
			SweepInterval:     10 * time.Minute,
		},
	}, nil
}
