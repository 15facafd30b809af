package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/veritybot/internal/config"
	apperrors "github.com/edgard/veritybot/internal/errors"
)

const geminiService = "gemini"

// GeminiClient produces verdicts through the Gemini API in JSON mode.
type GeminiClient struct {
	models        generator
	model         string
	contentConfig *genai.GenerateContentConfig
	log           *slog.Logger
}

// generator is the part of genai.Models the client uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates a Gemini-backed completion client.
func NewGeminiClient(ctx context.Context, cfg config.CompletionConfig, prompt string, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.NewConfigError("gemini API key is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log := logger.With("component", "gemini_client")
	log.Info("Gemini client initialized", "model", cfg.GeminiModel)
	return newGeminiClient(gi.Models, cfg, prompt, log), nil
}

func newGeminiClient(models generator, cfg config.CompletionConfig, prompt string, log *slog.Logger) *GeminiClient {
	temperature := cfg.Temperature
	return &GeminiClient{
		models: models,
		model:  cfg.GeminiModel,
		contentConfig: &genai.GenerateContentConfig{
			Temperature:       &temperature,
			ResponseMIMEType:  "application/json",
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prompt}}},
		},
		log: log,
	}
}

// Analyze makes a single GenerateContent call and returns its text.
func (c *GeminiClient) Analyze(ctx context.Context, text string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, c.contentConfig)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini call failed", "error", err)
		return "", apperrors.NewExternalServiceError(geminiService, "generate content failed", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.WarnContext(ctx, "Gemini request blocked", "reason", reason)
		return "", apperrors.NewExternalServiceError(geminiService, "request blocked: "+reason, nil)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		return "", apperrors.NewExternalServiceError(geminiService, "empty response, finish reason: "+finishReason, nil)
	}

	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", apperrors.NewExternalServiceError(geminiService, "response has no text output", nil)
	}
	return out, nil
}
