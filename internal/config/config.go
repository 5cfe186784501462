// Package config reads process settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	Backend        string `env:"LEDGER_BACKEND" envDefault:"csv" validate:"oneof=csv postgres sqlite memory"`
	LedgerFile     string `env:"LEDGER_FILE" envDefault:"data/customers.csv" validate:"required_if=Backend csv"`
	BackupDir      string `env:"BACKUP_DIR" envDefault:"data/backups" validate:"required_if=Backend csv"`
	AttachmentsDir string `env:"ATTACHMENTS_DIR" envDefault:"data/customer_files" validate:"required"`
	DatabaseURL    string `env:"DATABASE_URL" validate:"required_if=Backend postgres"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"data/ledger.db" validate:"required_if=Backend sqlite"`

	KafkaBrokers     []string `env:"KAFKA_BROKERS"` // empty disables Kafka
	KafkaEventsTopic string   `env:"KAFKA_EVENTS_TOPIC" envDefault:"installment_events" validate:"required_with=KafkaBrokers"`
	KafkaSMSTopic    string   `env:"KAFKA_SMS_TOPIC" envDefault:"sms_outbound" validate:"required_with=KafkaBrokers"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`

	// The notifier reads a zero duration or count as "use the default", so
	// zero is rejected here rather than silently replaced.
	NotifyEnabled      bool          `env:"NOTIFY_ENABLED" envDefault:"true"`
	NotifyInterval     time.Duration `env:"NOTIFY_INTERVAL" envDefault:"1h" validate:"gt=0"`
	NotifyWindowDays   int           `env:"NOTIFY_WINDOW_DAYS" envDefault:"3" validate:"gte=1"`
	NotifyMaxAttempts  int           `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"2" validate:"gte=1"`
	NotifyRetryBackoff time.Duration `env:"NOTIFY_RETRY_BACKOFF" envDefault:"10s" validate:"gt=0"`
	NotifySendGap      time.Duration `env:"NOTIFY_SEND_GAP" envDefault:"2s" validate:"gt=0"`
	ReminderTemplate   string        `env:"REMINDER_TEMPLATE"`

	SchedulePolicy string        `env:"SCHEDULE_POLICY" envDefault:"calendar-month" validate:"oneof=calendar-month fixed-30-day"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"60s" validate:"gt=0"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

// Load reads .env from the working directory, if there is one, and then the
// process environment. Variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	return parse(env.Options{})
}

// FromEnv builds a Config from the given variables only, applying defaults
// for unset keys.
func FromEnv(vars map[string]string) (Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var conf Config
	if err := env.ParseWithOptions(&conf, opts); err != nil {
		return Config{}, fmt.Errorf("bad config: %w", err)
	}
	conf.Backend = strings.ToLower(strings.TrimSpace(conf.Backend))
	conf.LogLevel = strings.ToLower(strings.TrimSpace(conf.LogLevel))
	conf.KafkaBrokers = trimList(conf.KafkaBrokers)

	if err := validator.New().Struct(conf); err != nil {
		return Config{}, fmt.Errorf("bad config: %w", err)
	}
	return conf, nil
}

// KafkaEnabled reports whether events and reminders go through Kafka.
func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// trimList drops blanks left by "a, b," style lists.
func trimList(in []string) []string {
	var out []string
	for _, part := range in {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
