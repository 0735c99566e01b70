package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultSQLitePath = "data/access.db"

type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Translator TranslatorConfig `mapstructure:"translator"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	AdminUserID    int64         `mapstructure:"admin_user_id"`
	PollingTimeout int           `mapstructure:"polling_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type TranslatorConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PromptTemplate string        `mapstructure:"prompt_template"`
	// MaxConcurrent caps translations across all users, 0 = no cap
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ApprovalConfig struct {
	// PendingTTL of zero keeps pending requests open until decided
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
}

// Load reads the full bot configuration and validates it
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadForStore reads the configuration but only validates the storage section.
// Used by tooling that talks to the access store without running the bot.
func LoadForStore() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func load() (*Config, error) {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	v.SetDefault("telegram.polling_timeout", 60)
	v.SetDefault("telegram.request_timeout", "2m")
	v.SetDefault("translator.base_url", "https://api.openai.com/v1")
	v.SetDefault("translator.model", "gpt-3.5-turbo")
	v.SetDefault("translator.timeout", "60s")
	v.SetDefault("translator.prompt_template", "{{TEXT}}")
	v.SetDefault("translator.max_concurrent", 0)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("approval.pending_ttl", "0s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)

	// Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/translate-tg-bot")

	// Environment variables
	v.SetEnvPrefix("TRANSLATE_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound to be picked up by Unmarshal.
	// The short names are the ones the bot has always been deployed with.
	bindings := map[string]string{
		"telegram.bot_token":     "TELEGRAM_TOKEN",
		"telegram.admin_user_id": "ADMIN_USER_ID",
		"translator.api_key":     "OPENAI_API_KEY",
	}
	for key, short := range bindings {
		long := "TRANSLATE_BOT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, long, short); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found is OK, use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The file path default only makes sense for sqlite
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = defaultSQLitePath
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.AdminUserID == 0 {
		return fmt.Errorf("telegram.admin_user_id is required")
	}
	if c.Translator.APIKey == "" {
		return fmt.Errorf("translator.api_key is required")
	}
	if c.Translator.BaseURL == "" {
		return fmt.Errorf("translator.base_url is required")
	}
	if !strings.Contains(c.Translator.PromptTemplate, "{{TEXT}}") {
		return fmt.Errorf("translator.prompt_template must contain {{TEXT}}")
	}
	if c.Translator.MaxConcurrent < 0 {
		return fmt.Errorf("translator.max_concurrent must not be negative")
	}
	if c.Approval.PendingTTL < 0 {
		return fmt.Errorf("approval.pending_ttl must not be negative")
	}
	return c.Storage.Validate()
}

func (s StorageConfig) Validate() error {
	switch s.Driver {
	case "memory":
		return nil
	case "sqlite":
		if s.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", s.Driver)
		}
		return nil
	case "postgres":
		if s.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", s.Driver)
		}
		if !isPostgresDSN(s.DSN) {
			return fmt.Errorf("storage.dsn for postgres must be a postgres:// URL or key=value list")
		}
		return nil
	default:
		return fmt.Errorf("storage.driver must be one of sqlite, postgres, memory")
	}
}

// isPostgresDSN accepts the two connection string forms lib/pq parses
func isPostgresDSN(dsn string) bool {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return true
	}
	for _, field := range strings.Fields(dsn) {
		if key, _, ok := strings.Cut(field, "="); !ok || key == "" {
			return false
		}
	}
	return strings.Contains(dsn, "=")
}
