// Package tasks holds the scheduled maintenance jobs.
package tasks

import (
	"log/slog"

	"github.com/edgard/veritybot/internal/config"
	"github.com/edgard/veritybot/internal/database"
)

// TaskDeps are the collaborators shared by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
