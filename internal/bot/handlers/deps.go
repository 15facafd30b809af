package handlers

import (
	"log/slog"

	"github.com/edgard/veritybot/internal/analysis"
	"github.com/edgard/veritybot/internal/config"
	"github.com/edgard/veritybot/internal/database"
	"github.com/edgard/veritybot/internal/telegram"
	"github.com/edgard/veritybot/internal/transcribe"
)

// HandlerDeps provides dependencies for the webhook handlers.
type HandlerDeps struct {
	Logger      *slog.Logger
	Config      *config.Config
	Store       database.Store
	Transport   telegram.Transport
	Transcriber transcribe.Client
	Analyzer    analysis.Analyzer
}
