package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edgard/veritybot/internal/analysis"
	"github.com/edgard/veritybot/internal/database"
)

// maxAnalyzeBodyBytes bounds the analyze request body.
const maxAnalyzeBodyBytes = 1 << 20

// APIHandler serves the JSON endpoints.
type APIHandler struct {
	store    database.Store
	analyzer analysis.Analyzer
	log      *slog.Logger
}

// AnalyzeRequest is the analyze endpoint body. Welcomed is optional.
type AnalyzeRequest struct {
	TelegramUserID int64
	Text           string
	Welcomed       bool
}

// AnalyzeResponse is returned on success.
type AnalyzeResponse struct {
	DialogID int64           `json:"dialog_id"`
	Analysis analysis.Result `json:"analysis"`
	Answer   string          `json:"answer"`
}

// DialogResponse is the dialog inspection payload.
type DialogResponse struct {
	Dialog     *database.Dialog   `json:"dialog"`
	FinishedAt *string            `json:"finished_at"`
	Messages   []database.Message `json:"messages"`
}

func (h *APIHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAnalyzeRequest(io.LimitReader(r.Body, maxAnalyzeBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.analyzer.Analyze(r.Context(), analysis.Request{
		UserID:   req.TelegramUserID,
		Text:     req.Text,
		Welcomed: req.Welcomed,
	})
	if err != nil {
		h.log.ErrorContext(r.Context(), "Analyze request failed", "user_id", req.TelegramUserID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		DialogID: out.DialogID,
		Analysis: out.Result,
		Answer:   out.Answer,
	})
}

// decodeAnalyzeRequest enforces a JSON integer user id and a non-blank text.
func decodeAnalyzeRequest(body io.Reader) (AnalyzeRequest, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return AnalyzeRequest{}, errors.New("request body must be a JSON object")
	}

	num, ok := raw["telegram_user_id"].(json.Number)
	if !ok {
		return AnalyzeRequest{}, errors.New("telegram_user_id must be an integer")
	}
	userID, err := num.Int64()
	if err != nil || userID <= 0 {
		return AnalyzeRequest{}, errors.New("telegram_user_id must be an integer")
	}

	text, ok := raw["text"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return AnalyzeRequest{}, errors.New("text must be a non-empty string")
	}

	req := AnalyzeRequest{TelegramUserID: userID, Text: text}
	if v, present := raw["welcomed"]; present {
		b, ok := v.(bool)
		if !ok {
			return AnalyzeRequest{}, errors.New("welcomed must be a boolean")
		}
		req.Welcomed = b
	}
	return req, nil
}

func (h *APIHandler) DialogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "dialogID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "dialog id must be a positive integer")
		return
	}

	dialog, err := h.store.GetDialog(r.Context(), id)
	if err != nil {
		h.log.ErrorContext(r.Context(), "Failed to load dialog", "dialog_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load dialog")
		return
	}
	if dialog == nil {
		writeError(w, http.StatusNotFound, "dialog not found")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), id)
	if err != nil {
		h.log.ErrorContext(r.Context(), "Failed to load messages", "dialog_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	resp := DialogResponse{Dialog: dialog, Messages: messages}
	if dialog.FinishedAt.Valid {
		ts := dialog.FinishedAt.Time.UTC().Format(time.RFC3339)
		resp.FinishedAt = &ts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.log.WarnContext(r.Context(), "Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
