package tasks

import "context"

// ScheduledTaskFunc is one run of a scheduled task. It should stop when ctx
// is cancelled.
type ScheduledTaskFunc func(ctx context.Context) error

// Task names as used in the scheduler.tasks config section.
const (
	SQLMaintenance = "sql_maintenance"
	StaleDialogs   = "stale_dialogs"
)

// RegisterAllTasks returns every known task keyed by config name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		SQLMaintenance: newSQLMaintenanceTask(deps),
		StaleDialogs:   newStaleDialogsTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
