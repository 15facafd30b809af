// Package transcribe turns downloaded voice messages into text using an
// OpenAI-compatible audio transcription endpoint.
package transcribe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/veritybot/internal/config"
	apperrors "github.com/edgard/veritybot/internal/errors"
)

const service = "transcription"

// Client converts an audio file on disk to text. An empty string means the
// service recognized no speech.
type Client interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// OpenAIClient implements Client with go-openai.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	language string
	timeout  time.Duration
	log      *slog.Logger
}

// New creates a transcription client from configuration.
func New(cfg config.TranscriptionConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}

	aiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		aiConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(aiConfig),
		model:    cfg.Model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		log:      logger.With("component", "transcribe_client"),
	}
}

// Transcribe uploads the file and returns the trimmed recognized text.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: audioPath,
		Language: c.language,
	})
	if err != nil {
		c.log.ErrorContext(ctx, "Transcription failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return "", apperrors.NewExternalServiceError(service, "transcription request failed", err)
	}

	// A response without a text field decodes as empty, which callers
	// treat as unrecognized speech.
	text := strings.TrimSpace(resp.Text)
	c.log.DebugContext(ctx, "Transcription completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len([]rune(text)))
	return text, nil
}
