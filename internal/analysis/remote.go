package analysis

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

	apperrors "github.com/edgard/veritybot/internal/errors"
	"github.com/edgard/veritybot/internal/metrics"
	"github.com/edgard/veritybot/internal/render"
)

const remoteService = "analysis_api"

// RemoteAnalyzer delegates to the /api/analyze endpoint of another instance.
type RemoteAnalyzer struct {
	endpoint   string
	httpClient *http.Client
	log        *slog.Logger
}

// NewRemoteAnalyzer creates an analyzer that posts to baseURL + /api/analyze.
func NewRemoteAnalyzer(baseURL string, timeout time.Duration, logger *slog.Logger) *RemoteAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteAnalyzer{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/analyze",
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("component", "remote_analysis"),
	}
}

type remoteRequest struct {
	TelegramUserID int64  `json:"telegram_user_id"`
	Text           string `json:"text"`
	Welcomed       bool   `json:"welcomed"`
}

func (r *RemoteAnalyzer) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	body, err := json.Marshal(remoteRequest{TelegramUserID: req.UserID, Text: req.Text, Welcomed: req.Welcomed})
	if err != nil {
		return nil, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewExternalServiceError(remoteService, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.httpClient.Do(httpReq)
	metrics.ExternalCallDuration.WithLabelValues("remote_analysis").Observe(time.Since(start).Seconds())
	if err != nil {
		r.log.ErrorContext(ctx, "Analyze request failed", "error", err)
		return nil, apperrors.NewExternalServiceError(remoteService, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.NewExternalServiceError(remoteService, "failed to read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewExternalServiceError(remoteService, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	obj, err := decodeObject(raw)
	if err != nil {
		return nil, apperrors.NewExternalServiceError(remoteService, "response is not a JSON object", err)
	}

	// Either {"dialog_id":..,"analysis":{..}} or the bare result object.
	payload := obj
	if wrapped, ok := obj["analysis"].(map[string]any); ok {
		payload = wrapped
	}

	result, err := resultFromObject(payload)
	if err != nil {
		return nil, apperrors.NewExternalServiceError(remoteService, "unusable analysis in response", err)
	}
	result.Signals = nonBlank(result.Signals)

	outcome := &Outcome{Result: result, Answer: render.Answer(result, "")}
	if id, ok := integer(obj["dialog_id"]); ok {
		outcome.DialogID = int64(id)
	}
	return outcome, nil
}

func nonBlank(items []string) []string {
	out := items[:0]
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
