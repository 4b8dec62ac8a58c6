package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port  string
	DBDSN string

	Log LogConfig

	// Zona horaria en la que se interpretan los HH:MM de las tomas.
	Timezone string

	JWTSecret     string
	TelegramToken string

	Reminders RemindersConfig
	RateLimit RateLimitConfig

	WebhookTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	App    string
}

type RemindersConfig struct {
	ReminderSchedule   string // cron, cada minuto
	MissedDoseSchedule string // cron, cada hora
	Concurrency        int
	StockDecrementOnce bool
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load lee configuración de variables de entorno (después de que main cargue .env).
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Port:  strings.TrimSpace(v.GetString("PORT")),
		DBDSN: strings.TrimSpace(v.GetString("DB_DSN")),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			App:    v.GetString("APP_NAME"),
		},
		Timezone:      strings.TrimSpace(v.GetString("APP_TIMEZONE")),
		JWTSecret:     v.GetString("JWT_SECRET"),
		TelegramToken: strings.TrimSpace(v.GetString("TELEGRAM_BOT_TOKEN")),
		Reminders: RemindersConfig{
			ReminderSchedule:   v.GetString("REMINDER_SCHEDULE"),
			MissedDoseSchedule: v.GetString("MISSED_DOSE_SCHEDULE"),
			Concurrency:        v.GetInt("REMINDER_CONCURRENCY"),
			StockDecrementOnce: v.GetBool("STOCK_DECREMENT_ONCE"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
			Burst: v.GetInt("RATE_LIMIT_BURST"),
		},
		WebhookTimeout: v.GetDuration("WEBHOOK_TIMEOUT"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("APP_NAME", "panacea")
	v.SetDefault("APP_TIMEZONE", "Local")
	v.SetDefault("REMINDER_SCHEDULE", "* * * * *")
	v.SetDefault("MISSED_DOSE_SCHEDULE", "0 * * * *")
	v.SetDefault("REMINDER_CONCURRENCY", 4)
	v.SetDefault("STOCK_DECREMENT_ONCE", false)
	// Equivalente a 100 req / 15 min por IP, con ráfaga.
	v.SetDefault("RATE_LIMIT_RPS", 100.0/900.0)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("WEBHOOK_TIMEOUT", "5s")
}

func (c Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("config: PORT is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: APP_TIMEZONE: %w", err)
	}
	if c.Reminders.Concurrency <= 0 {
		return fmt.Errorf("config: REMINDER_CONCURRENCY must be > 0")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate limit must be >= 0")
	}
	return nil
}

// Location resuelve APP_TIMEZONE ("Local", "UTC", "America/Argentina/Buenos_Aires", ...).
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Timezone)
	}
}

// Addr es la dirección de escucha del servidor HTTP.
func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}
