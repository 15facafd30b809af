// Package main is the entrypoint for the veritybot service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgard/veritybot/internal/analysis"
	"github.com/edgard/veritybot/internal/api"
	"github.com/edgard/veritybot/internal/bot"
	"github.com/edgard/veritybot/internal/bot/handlers"
	"github.com/edgard/veritybot/internal/bot/tasks"
	"github.com/edgard/veritybot/internal/completion"
	"github.com/edgard/veritybot/internal/config"
	"github.com/edgard/veritybot/internal/database"
	"github.com/edgard/veritybot/internal/logger"
	"github.com/edgard/veritybot/internal/telegram"
	"github.com/edgard/veritybot/internal/transcribe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run builds every component, serves until ctx is cancelled and returns the
// process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	analyzer, err := newAnalyzer(ctx, cfg, store, log)
	if err != nil {
		log.Error("Failed to initialize analyzer", "error", err)
		return 1
	}

	routerDeps := api.RouterDeps{
		Logger:   log,
		Store:    store,
		Analyzer: analyzer,
	}

	if cfg.WebhookEnabled() {
		tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, cfg.Telegram.ServerURL, log)
		if err != nil {
			log.Error("Failed to create Telegram bot", "error", err)
			return 1
		}
		webhook, err := handlers.NewWebhook(handlers.HandlerDeps{
			Logger:      log,
			Config:      cfg,
			Store:       store,
			Transport:   telegram.NewClient(tg, cfg.Telegram, log),
			Transcriber: transcribe.New(cfg.Transcription, log),
			Analyzer:    analyzer,
		})
		if err != nil {
			log.Error("Failed to create webhook handler", "error", err)
			return 1
		}
		routerDeps.Webhook = webhook
	} else {
		log.Warn("Telegram token not configured, webhook disabled")
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, api.NewRouter(routerDeps), sched)
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Service stopped due to error", "error", err)
		return 1
	}

	log.Info("Service stopped gracefully.")
	return 0
}

// newAnalyzer returns the remote analyzer when analysis.remote_url is set,
// otherwise the in-process service backed by the configured model.
func newAnalyzer(ctx context.Context, cfg *config.Config, store database.Store, log *slog.Logger) (analysis.Analyzer, error) {
	if cfg.RemoteAnalysis() {
		log.Info("Using remote analysis", "url", cfg.Analysis.RemoteURL)
		return analysis.NewRemoteAnalyzer(cfg.Analysis.RemoteURL, cfg.Analysis.RemoteTimeout, log), nil
	}

	client, err := completion.New(ctx, cfg.Completion, log)
	if err != nil {
		return nil, err
	}
	return analysis.NewService(store, client, log), nil
}
