package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/edgard/veritybot/internal/config"
	apperrors "github.com/edgard/veritybot/internal/errors"
)

const (
	openAIService = "openai"

	// errorSnippetBytes bounds how much of a failed response body ends up in
	// the error message.
	errorSnippetBytes = 500
)

// OpenAIClient calls the Responses endpoint of an OpenAI-compatible API.
type OpenAIClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	prompt      string
	log         *slog.Logger
}

// NewOpenAIClient creates a Responses API client. A nil httpClient gets one
// with the configured timeout.
func NewOpenAIClient(cfg config.CompletionConfig, prompt string, httpClient *http.Client, logger *slog.Logger) *OpenAIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		prompt:      prompt,
		log:         logger.With("component", "openai_client"),
	}
}

type responsesInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model       string           `json:"model"`
	Input       []responsesInput `json:"input"`
	Temperature float32          `json:"temperature"`
	Text        struct {
		Format struct {
			Type string `json:"type"`
		} `json:"format"`
	} `json:"text"`
}

// Analyze sends the system prompt and the statement and returns the model's
// text output.
func (c *OpenAIClient) Analyze(ctx context.Context, text string) (string, error) {
	req := responsesRequest{
		Model: c.model,
		Input: []responsesInput{
			{Role: "system", Content: c.prompt},
			{Role: "user", Content: text},
		},
		Temperature: c.temperature,
	}
	req.Text.Format.Type = "json_object"

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode responses request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewExternalServiceError(openAIService, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.ErrorContext(ctx, "Responses request failed", "error", err)
		return "", apperrors.NewExternalServiceError(openAIService, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewExternalServiceError(openAIService, "failed to read response body", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.WarnContext(ctx, "Responses API returned an error status", "status", resp.StatusCode)
		return "", apperrors.NewExternalServiceError(openAIService,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(raw, errorSnippetBytes)), nil)
	}

	out, err := extractOutputText(raw)
	if err != nil {
		return "", err
	}

	c.log.DebugContext(ctx, "Responses call completed", "model", c.model, "duration", time.Since(start), "output_bytes", len(out))
	return out, nil
}

// outputExtractor pulls the text payload out of a decoded response. ok is
// false when the shape it looks for is absent.
type outputExtractor func(doc map[string]any) (text string, ok bool)

// outputExtractors are tried in order; the first match wins.
var outputExtractors = []outputExtractor{
	topLevelOutputText,
	firstOutputContentText,
}

func extractOutputText(raw []byte) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", apperrors.NewExternalServiceError(openAIService, "response is not valid JSON", err)
	}

	for _, extract := range outputExtractors {
		if text, ok := extract(doc); ok {
			return text, nil
		}
	}
	return "", apperrors.NewExternalServiceError(openAIService, "response has no text output", nil)
}

func topLevelOutputText(doc map[string]any) (string, bool) {
	s, ok := doc["output_text"].(string)
	return s, ok
}

// firstOutputContentText reads output[0].content[0].text.
func firstOutputContentText(doc map[string]any) (string, bool) {
	output, ok := doc["output"].([]any)
	if !ok || len(output) == 0 {
		return "", false
	}
	item, ok := output[0].(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := item["content"].([]any)
	if !ok || len(content) == 0 {
		return "", false
	}
	part, ok := content[0].(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := part["text"].(string)
	return s, ok
}

// snippet returns at most limit bytes of b without splitting a UTF-8 sequence.
func snippet(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	s := string(b[:limit])
	return strings.ToValidUTF8(s, "")
}
