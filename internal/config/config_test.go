package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromShortEnvNames(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_TOKEN", "tg-token")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ADMIN_USER_ID", "1001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tg-token", cfg.Telegram.BotToken)
	assert.Equal(t, int64(1001), cfg.Telegram.AdminUserID)
	assert.Equal(t, "sk-test", cfg.Translator.APIKey)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Translator.Model)
	assert.Equal(t, 60*time.Second, cfg.Translator.Timeout)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "data/access.db", cfg.Storage.DSN)
	assert.Zero(t, cfg.Translator.MaxConcurrent)
	assert.Equal(t, time.Duration(0), cfg.Approval.PendingTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRANSLATE_BOT_TELEGRAM_BOT_TOKEN", "prefixed")
	t.Setenv("TELEGRAM_TOKEN", "short")
	t.Setenv("TRANSLATE_BOT_TRANSLATOR_API_KEY", "sk-test")
	t.Setenv("TRANSLATE_BOT_TELEGRAM_ADMIN_USER_ID", "7")
	t.Setenv("TRANSLATE_BOT_APPROVAL_PENDING_TTL", "24h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prefixed", cfg.Telegram.BotToken)
	assert.Equal(t, int64(7), cfg.Telegram.AdminUserID)
	assert.Equal(t, 24*time.Hour, cfg.Approval.PendingTTL)
}

func TestLoadTranslatorCap(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_TOKEN", "tg-token")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ADMIN_USER_ID", "1")
	t.Setenv("TRANSLATE_BOT_TRANSLATOR_MAX_CONCURRENT", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Translator.MaxConcurrent)
}

func TestLoadPostgresWithoutDSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRANSLATE_BOT_STORAGE_DRIVER", "postgres")

	_, err := LoadForStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.dsn is required")
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := `
telegram:
  bot_token: file-token
  admin_user_id: 55
translator:
  api_key: sk-file
  prompt_template: "Translate to English: {{TEXT}}"
storage:
  driver: memory
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Telegram.BotToken)
	assert.Equal(t, int64(55), cfg.Telegram.AdminUserID)
	assert.Equal(t, "Translate to English: {{TEXT}}", cfg.Translator.PromptTemplate)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestLoadMissingAdmin(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_TOKEN", "tg-token")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin_user_id")
}

func TestLoadForStoreSkipsBotKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRANSLATE_BOT_STORAGE_DSN", "/tmp/other.db")

	cfg, err := LoadForStore()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Storage.DSN)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Telegram:   TelegramConfig{BotToken: "t", AdminUserID: 1},
			Translator: TranslatorConfig{APIKey: "k", BaseURL: "http://x", PromptTemplate: "{{TEXT}}"},
			Storage:    StorageConfig{Driver: "sqlite", DSN: "a.db"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.BotToken = "" }, wantErr: "bot_token"},
		{name: "missing api key", mutate: func(c *Config) { c.Translator.APIKey = "" }, wantErr: "api_key"},
		{name: "no placeholder", mutate: func(c *Config) { c.Translator.PromptTemplate = "hi" }, wantErr: "prompt_template"},
		{name: "negative ttl", mutate: func(c *Config) { c.Approval.PendingTTL = -time.Second }, wantErr: "pending_ttl"},
		{name: "bad driver", mutate: func(c *Config) { c.Storage.Driver = "mysql" }, wantErr: "storage.driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage = StorageConfig{Driver: "postgres"} }, wantErr: "storage.dsn"},
		{name: "memory without dsn", mutate: func(c *Config) { c.Storage = StorageConfig{Driver: "memory"} }},
		{name: "negative cap", mutate: func(c *Config) { c.Translator.MaxConcurrent = -1 }, wantErr: "max_concurrent"},
		{name: "postgres with file path", mutate: func(c *Config) { c.Storage = StorageConfig{Driver: "postgres", DSN: "data/access.db"} }, wantErr: "postgres:// URL"},
		{name: "postgres url", mutate: func(c *Config) {
			c.Storage = StorageConfig{Driver: "postgres", DSN: "postgres://bot:secret@db:5432/bot?sslmode=disable"}
		}},
		{name: "postgres key value", mutate: func(c *Config) {
			c.Storage = StorageConfig{Driver: "postgres", DSN: "host=db user=bot dbname=bot sslmode=disable"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
