package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultHTTPAddr            = ":8080"
	DefaultHTTPReadTimeout     = 15 * time.Second
	DefaultHTTPWriteTimeout    = 3 * time.Minute // covers UpdateBudget with the default per-call timeouts
	DefaultHTTPShutdownTimeout = 30 * time.Second

	DefaultDBPath = "veritybot.db"

	DefaultTelegramServerURL       = "https://api.telegram.org"
	DefaultTelegramMaxVoiceBytes   = 15000000
	DefaultTelegramSendTimeout     = 10 * time.Second
	DefaultTelegramDownloadTimeout = 30 * time.Second

	DefaultCompletionProvider    = "openai"
	DefaultCompletionBaseURL     = "https://api.openai.com/v1"
	DefaultCompletionModel       = "gpt-4.1"
	DefaultCompletionGeminiModel = "gemini-2.0-flash"
	DefaultCompletionTemperature = 0.2
	DefaultCompletionTimeout     = 30 * time.Second
	DefaultBreakerFailures       = 5
	DefaultBreakerCooldown       = 30 * time.Second

	DefaultTranscriptionModel    = "gpt-4o-mini-transcribe"
	DefaultTranscriptionLanguage = "ru"
	DefaultTranscriptionTimeout  = 40 * time.Second

	DefaultAnalysisRemoteTimeout = 20 * time.Second

	DefaultStaleDialogAfter = 15 * time.Minute
)

// DefaultMessages are the user-facing texts used unless overridden.
var DefaultMessages = MessagesConfig{
	Welcome: "👋 Hi.\n\n" +
		"I analyze speech and show where the words do not sound the way they usually sound when someone tells the truth.\n\n" +
		"🧪 I look for:\n" +
		"— contradictions and logical gaps\n" +
		"— signs of manipulation\n" +
		"— inconsistencies in delivery\n" +
		"— hesitant wording\n" +
		"— sudden shifts in confidence\n" +
		"— tremor and tension in the voice 🎤\n\n" +
		"📩 Send a text or a voice message and see the result.",
	PromptContent:  "Send audio or text to analyze",
	StartReturning: "Send audio or text to analyze",
	Unsupported:    "For now I only understand text and audio",
	GeneralError:   "Processing error, please try again",
	TooLong:        "The audio is too long for now",
	Transcribing:   "Transcribing audio...",
	NotRecognized:  "Could not recognize speech, please try again",
}

// setDefaults registers every key with viper so environment overrides are
// picked up by Unmarshal even when no config file exists.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)

	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("http.read_timeout", DefaultHTTPReadTimeout)
	v.SetDefault("http.write_timeout", DefaultHTTPWriteTimeout)
	v.SetDefault("http.shutdown_timeout", DefaultHTTPShutdownTimeout)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.server_url", DefaultTelegramServerURL)
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.max_voice_bytes", DefaultTelegramMaxVoiceBytes)
	v.SetDefault("telegram.send_timeout", DefaultTelegramSendTimeout)
	v.SetDefault("telegram.download_timeout", DefaultTelegramDownloadTimeout)

	v.SetDefault("completion.provider", DefaultCompletionProvider)
	v.SetDefault("completion.base_url", DefaultCompletionBaseURL)
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.model", DefaultCompletionModel)
	v.SetDefault("completion.gemini_model", DefaultCompletionGeminiModel)
	v.SetDefault("completion.temperature", DefaultCompletionTemperature)
	v.SetDefault("completion.timeout", DefaultCompletionTimeout)
	v.SetDefault("completion.system_prompt", "")
	v.SetDefault("completion.breaker_failures", DefaultBreakerFailures)
	v.SetDefault("completion.breaker_cooldown", DefaultBreakerCooldown)

	v.SetDefault("transcription.base_url", DefaultCompletionBaseURL)
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.model", DefaultTranscriptionModel)
	v.SetDefault("transcription.language", DefaultTranscriptionLanguage)
	v.SetDefault("transcription.timeout", DefaultTranscriptionTimeout)

	v.SetDefault("analysis.remote_url", "")
	v.SetDefault("analysis.remote_timeout", DefaultAnalysisRemoteTimeout)

	v.SetDefault("messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("messages.prompt_content", DefaultMessages.PromptContent)
	v.SetDefault("messages.start_returning", DefaultMessages.StartReturning)
	v.SetDefault("messages.unsupported", DefaultMessages.Unsupported)
	v.SetDefault("messages.general_error", DefaultMessages.GeneralError)
	v.SetDefault("messages.too_long", DefaultMessages.TooLong)
	v.SetDefault("messages.transcribing", DefaultMessages.Transcribing)
	v.SetDefault("messages.not_recognized", DefaultMessages.NotRecognized)

	v.SetDefault("scheduler.stale_dialog_after", DefaultStaleDialogAfter)
	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance": map[string]any{"enabled": false, "schedule": "0 0 4 * * *"},
		"stale_dialogs":   map[string]any{"enabled": false, "schedule": "0 */5 * * * *"},
	})
}
