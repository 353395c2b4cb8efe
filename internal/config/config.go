package config

import (
	"captioncast/internal/backlog"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"false"`

	Queue QueueConfig

	AutoAdvance  bool          `env:"AUTO_ADVANCE" envDefault:"true"`
	ClientBuffer int           `env:"CLIENT_BUFFER" envDefault:"64"`
	LogBuffer    int           `env:"LOG_BUFFER" envDefault:"1000"`
	RoomIdleTTL  time.Duration `env:"ROOM_IDLE_TTL" envDefault:"0s"`
	DefaultRoom  string        `env:"DEFAULT_ROOM_ID"`

	Translation TranslationConfig
}

type QueueConfig struct {
	Warn         int `env:"QUEUE_WARN_THRESHOLD" envDefault:"500"`
	Critical     int `env:"QUEUE_CRITICAL_THRESHOLD" envDefault:"800"`
	Emergency    int `env:"QUEUE_EMERGENCY_THRESHOLD" envDefault:"1000"`
	ReturnMargin int `env:"QUEUE_RETURN_MARGIN" envDefault:"200"`
}

type TranslationConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	Model   string `env:"TRANSLATION_MODEL" envDefault:"gpt-4o-mini"`
	Target  string `env:"TRANSLATION_TARGET" envDefault:"en-US"`
	Enabled bool   `env:"TRANSLATION_ENABLED" envDefault:"false"`
	Rate    int    `env:"TRANSLATION_RATE" envDefault:"2"`
}

func (q QueueConfig) Thresholds() backlog.Thresholds {
	return backlog.Thresholds{
		Warn:         q.Warn,
		Critical:     q.Critical,
		Emergency:    q.Emergency,
		ReturnMargin: q.ReturnMargin,
	}
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Queue.Thresholds().Validate(); err != nil {
		return Config{}, fmt.Errorf("queue thresholds: %w", err)
	}
	if cfg.ClientBuffer <= 0 {
		return Config{}, fmt.Errorf("CLIENT_BUFFER must be positive, got %d", cfg.ClientBuffer)
	}
	if cfg.LogBuffer <= 0 {
		return Config{}, fmt.Errorf("LOG_BUFFER must be positive, got %d", cfg.LogBuffer)
	}
	return cfg, nil
}
