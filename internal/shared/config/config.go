package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// State backends.
const (
	BackendKeyring  = "keyring"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv      string
	MicroStudio MicroStudioConfig
	Bus         BusConfig
	State       StateConfig
	Postgres    PostgresConfig
	Telegram    TelegramConfig
	// EncryptionKey is a 64-char hex AES-256 key sealing persisted state.
	EncryptionKey string
}

type MicroStudioConfig struct {
	URL         string
	Nick        string
	Password    string
	CallTimeout time.Duration
}

type BusConfig struct {
	// MaxListeners warns past this many handlers per topic; 0 disables.
	MaxListeners int
}

type StateConfig struct {
	Backend        string
	KeyringService string
}

type PostgresConfig struct {
	URL string
}

// TelegramConfig enables push forwarding when BotToken is set.
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// Enabled reports whether pushes should be forwarded.
func (t TelegramConfig) Enabled() bool { return t.BotToken != "" }

var bindings = map[string]string{
	"app.env":                  "APP_ENV",
	"microstudio.url":          "MICROSTUDIO_URL",
	"microstudio.nick":         "MICROSTUDIO_NICK",
	"microstudio.password":     "MICROSTUDIO_PASSWORD",
	"microstudio.call_timeout": "MICROSTUDIO_CALL_TIMEOUT",
	"bus.max_listeners":        "BUS_MAX_LISTENERS",
	"state.backend":            "STATE_BACKEND",
	"state.keyring_service":    "STATE_KEYRING_SERVICE",
	"postgres.url":             "DATABASE_URL",
	"encryption.key":           "ENCRYPTION_KEY",
	"telegram.bot_token":       "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":         "TELEGRAM_CHAT_ID",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	v.SetDefault("app.env", "dev")
	v.SetDefault("microstudio.url", "wss://microstudio.dev/ws")
	v.SetDefault("microstudio.call_timeout", 30*time.Second)
	v.SetDefault("bus.max_listeners", 0)
	v.SetDefault("state.backend", BackendKeyring)
	v.SetDefault("state.keyring_service", "microstudio")

	cfg := Config{
		AppEnv: v.GetString("app.env"),
		MicroStudio: MicroStudioConfig{
			URL:         v.GetString("microstudio.url"),
			Nick:        v.GetString("microstudio.nick"),
			Password:    v.GetString("microstudio.password"),
			CallTimeout: v.GetDuration("microstudio.call_timeout"),
		},
		Bus: BusConfig{MaxListeners: v.GetInt("bus.max_listeners")},
		State: StateConfig{
			Backend:        v.GetString("state.backend"),
			KeyringService: v.GetString("state.keyring_service"),
		},
		Postgres:      PostgresConfig{URL: v.GetString("postgres.url")},
		EncryptionKey: v.GetString("encryption.key"),
		Telegram: TelegramConfig{
			BotToken: v.GetString("telegram.bot_token"),
			ChatID:   v.GetInt64("telegram.chat_id"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MicroStudio.URL == "" {
		return errors.New("MICROSTUDIO_URL must not be empty")
	}
	if c.MicroStudio.CallTimeout <= 0 {
		return fmt.Errorf("MICROSTUDIO_CALL_TIMEOUT must be positive, got %s", c.MicroStudio.CallTimeout)
	}
	if c.Bus.MaxListeners < 0 {
		return fmt.Errorf("BUS_MAX_LISTENERS must not be negative, got %d", c.Bus.MaxListeners)
	}

	switch c.State.Backend {
	case BackendKeyring:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("DATABASE_URL is required when STATE_BACKEND is postgres")
		}
		if c.EncryptionKey == "" {
			return errors.New("ENCRYPTION_KEY is required when STATE_BACKEND is postgres")
		}
		if len(c.EncryptionKey) != 64 {
			return fmt.Errorf("ENCRYPTION_KEY must be a 64-character hex string (32 bytes), but got %d chars", len(c.EncryptionKey))
		}
		if _, err := hex.DecodeString(c.EncryptionKey); err != nil {
			return fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q (want %s or %s)", c.State.Backend, BackendKeyring, BackendPostgres)
	}

	if c.Telegram.Enabled() && c.Telegram.ChatID == 0 {
		return errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}
