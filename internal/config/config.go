// Package config provides configuration loading, validation, and defaults
// for veritybot. Values come from defaults, an optional YAML file, an
// optional .env file and VERITY_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/edgard/veritybot/internal/errors"
)

// EnvPrefix is the prefix for environment overrides, e.g. VERITY_TELEGRAM_TOKEN.
const EnvPrefix = "VERITY"

// Config holds the complete application configuration.
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Completion    CompletionConfig    `mapstructure:"completion"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Messages      MessagesConfig      `mapstructure:"messages"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// HTTPConfig configures the inbound HTTP server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds bot credentials and webhook limits. An empty token
// disables the webhook and turns outbound sends into no-ops.
type TelegramConfig struct {
	Token           string        `mapstructure:"token"`
	ServerURL       string        `mapstructure:"server_url"       validate:"required,url"`
	WebhookSecret   string        `mapstructure:"webhook_secret"`
	MaxVoiceBytes   int64         `mapstructure:"max_voice_bytes"  validate:"gt=0"`
	SendTimeout     time.Duration `mapstructure:"send_timeout"     validate:"min=1s,max=1m"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout" validate:"min=1s,max=5m"`
}

// CompletionConfig selects and configures the language-model backend.
type CompletionConfig struct {
	Provider     string        `mapstructure:"provider"      validate:"oneof=openai gemini"`
	BaseURL      string        `mapstructure:"base_url"      validate:"required,url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"         validate:"required"`
	GeminiModel  string        `mapstructure:"gemini_model"`
	Temperature  float32       `mapstructure:"temperature"   validate:"min=0,max=2"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"min=1s,max=10m"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	// BreakerFailures consecutive upstream failures open the circuit for
	// BreakerCooldown. Zero disables the breaker.
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"min=0"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"min=1s"`
}

// TranscriptionConfig configures the speech-to-text endpoint.
type TranscriptionConfig struct {
	BaseURL  string        `mapstructure:"base_url" validate:"required,url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"    validate:"required"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"  validate:"min=1s,max=10m"`
}

// AnalysisConfig decides whether analysis runs in-process or on a remote
// instance of the analyze endpoint.
type AnalysisConfig struct {
	RemoteURL     string        `mapstructure:"remote_url"     validate:"omitempty,url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout" validate:"min=1s,max=5m"`
}

// MessagesConfig holds every user-facing text the bot sends.
type MessagesConfig struct {
	Welcome        string `mapstructure:"welcome"         validate:"required"`
	PromptContent  string `mapstructure:"prompt_content"  validate:"required"`
	StartReturning string `mapstructure:"start_returning" validate:"required"`
	Unsupported    string `mapstructure:"unsupported"     validate:"required"`
	GeneralError   string `mapstructure:"general_error"   validate:"required"`
	TooLong        string `mapstructure:"too_long"        validate:"required"`
	Transcribing   string `mapstructure:"transcribing"    validate:"required"`
	NotRecognized  string `mapstructure:"not_recognized"  validate:"required"`
}

// SchedulerConfig lists the scheduled maintenance tasks.
type SchedulerConfig struct {
	StaleDialogAfter time.Duration         `mapstructure:"stale_dialog_after" validate:"min=1m"`
	Tasks            map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a task and sets its cron schedule (seconds field allowed).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// WebhookEnabled reports whether inbound Telegram updates can be processed.
func (c *Config) WebhookEnabled() bool {
	return c.Telegram.Token != ""
}

// RemoteAnalysis reports whether analysis is delegated over HTTP.
func (c *Config) RemoteAnalysis() bool {
	return c.Analysis.RemoteURL != ""
}

// voiceSends counts the Telegram API round trips on the longest webhook
// path: welcome, transcribing notice, getFile and the final reply.
const voiceSends = 4

// UpdateBudget is the worst-case time one voice update spends in external
// calls. The webhook answers only after processing, so http.write_timeout
// must cover it or Telegram sees a dropped response and redelivers.
func (c *Config) UpdateBudget() time.Duration {
	analysis := c.Completion.Timeout
	if c.RemoteAnalysis() {
		analysis = c.Analysis.RemoteTimeout
	}
	return voiceSends*c.Telegram.SendTimeout +
		c.Telegram.DownloadTimeout +
		c.Transcription.Timeout +
		analysis
}

// LoadConfig reads configuration from the given YAML path (optional), a .env
// file in the working directory (optional) and VERITY_* environment variables.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, apperrors.NewConfigError("failed to read config file", err)
			}
			slog.Info("Config file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to parse config", err)
	}

	if cfg.Transcription.APIKey == "" {
		cfg.Transcription.APIKey = cfg.Completion.APIKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		"http_addr", cfg.HTTP.Addr,
		"db_path", cfg.Database.Path,
		"completion_provider", cfg.Completion.Provider,
		"remote_analysis", cfg.RemoteAnalysis(),
		"webhook_enabled", cfg.WebhookEnabled())
	return cfg, nil
}

// Validate checks struct constraints and the cross-field rules validator
// tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return apperrors.NewConfigError("invalid configuration", err)
	}

	if !c.RemoteAnalysis() && c.Completion.APIKey == "" {
		return apperrors.NewConfigError("completion.api_key is required when analysis runs in-process", nil)
	}
	if c.Completion.Provider == "gemini" && c.Completion.GeminiModel == "" {
		return apperrors.NewConfigError("completion.gemini_model is required for the gemini provider", nil)
	}
	if c.WebhookEnabled() && c.HTTP.WriteTimeout < c.UpdateBudget() {
		return apperrors.NewConfigError(fmt.Sprintf(
			"http.write_timeout %s is shorter than the webhook update budget %s", c.HTTP.WriteTimeout, c.UpdateBudget()), nil)
	}
	for name, task := range c.Scheduler.Tasks {
		if task.Enabled && task.Schedule == "" {
			return apperrors.NewConfigError(fmt.Sprintf("scheduler task %q is enabled without a schedule", name), nil)
		}
	}

	return nil
}
