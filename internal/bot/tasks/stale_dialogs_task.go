package tasks

import (
	"context"
	"fmt"
)

// newStaleDialogsTask marks dialogs that stayed pending longer than
// scheduler.stale_dialog_after as failed. These are left behind when the
// process dies between creating a dialog and finishing it.
func newStaleDialogsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", StaleDialogs)

	return func(ctx context.Context) error {
		after := deps.Config.Scheduler.StaleDialogAfter

		n, err := deps.Store.FailStaleDialogs(ctx, after)
		if err != nil {
			return fmt.Errorf("failed to close stale dialogs: %w", err)
		}

		if n > 0 {
			log.WarnContext(ctx, "Closed stale pending dialogs", "count", n, "older_than", after)
		} else {
			log.DebugContext(ctx, "No stale dialogs found")
		}
		return nil
	}
}
