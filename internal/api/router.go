// Package api exposes the HTTP surface: the analyze endpoint, dialog
// inspection, the Telegram webhook, health and metrics.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/edgard/veritybot/internal/analysis"
	"github.com/edgard/veritybot/internal/database"
	"github.com/edgard/veritybot/internal/logger"
	"github.com/edgard/veritybot/internal/metrics"
)

// RouterDeps are the collaborators behind the HTTP routes. Webhook may be nil
// when no bot token is configured.
type RouterDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Analyzer analysis.Analyzer
	Webhook  http.Handler
}

// NewRouter builds the chi router.
func NewRouter(deps RouterDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &APIHandler{
		store:    deps.Store,
		analyzer: deps.Analyzer,
		log:      deps.Logger.With("component", "api"),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.HTTPMiddleware(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", h.HealthHandler)
	r.Handle("/metrics", metrics.Handler())

	if deps.Webhook != nil {
		r.Post("/webhook", deps.Webhook.ServeHTTP)
	} else {
		r.Post("/webhook", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Missing bot config.", http.StatusInternalServerError)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Use POST.")
		})
		r.Post("/analyze", h.AnalyzeHandler)
		r.Get("/dialogs/{dialogID}", h.DialogHandler)
	})

	return r
}
