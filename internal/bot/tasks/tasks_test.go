package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/edgard/veritybot/internal/config"
	"github.com/edgard/veritybot/internal/database"
)

// fakeStore overrides only the maintenance calls; anything else panics.
type fakeStore struct {
	database.Store
	maintenanceErr error
	maintenanceRun int
	staleAfter     time.Duration
	staleCount     int64
	staleErr       error
}

func (f *fakeStore) RunSQLMaintenance(context.Context) error {
	f.maintenanceRun++
	return f.maintenanceErr
}

func (f *fakeStore) FailStaleDialogs(_ context.Context, olderThan time.Duration) (int64, error) {
	f.staleAfter = olderThan
	return f.staleCount, f.staleErr
}

func testDeps(store database.Store) TaskDeps {
	return TaskDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:  store,
		Config: &config.Config{Scheduler: config.SchedulerConfig{StaleDialogAfter: 15 * time.Minute}},
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	tasks := RegisterAllTasks(testDeps(&fakeStore{}))
	for _, name := range []string{SQLMaintenance, StaleDialogs} {
		if tasks[name] == nil {
			t.Errorf("task %q not registered", name)
		}
	}
	if len(tasks) != 2 {
		t.Errorf("registered %d tasks, want 2", len(tasks))
	}
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	if err := newSQLMaintenanceTask(testDeps(store))(context.Background()); err != nil {
		t.Fatalf("task error = %v", err)
	}
	if store.maintenanceRun != 1 {
		t.Errorf("RunSQLMaintenance called %d times, want 1", store.maintenanceRun)
	}

	boom := errors.New("disk full")
	store.maintenanceErr = boom
	if err := newSQLMaintenanceTask(testDeps(store))(context.Background()); !errors.Is(err, boom) {
		t.Errorf("task error = %v, want wrapped %v", err, boom)
	}
}

func TestStaleDialogsTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		count   int64
		err     error
		wantErr bool
	}{
		{name: "nothing stale"},
		{name: "closes dialogs", count: 3},
		{name: "store failure", err: errors.New("locked"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeStore{staleCount: tt.count, staleErr: tt.err}
			err := newStaleDialogsTask(testDeps(store))(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("task error = %v, wantErr %v", err, tt.wantErr)
			}
			if store.staleAfter != 15*time.Minute {
				t.Errorf("olderThan = %v, want 15m", store.staleAfter)
			}
		})
	}
}

func TestStaleDialogsTask_RealStore(t *testing.T) {
	t.Parallel()

	db, err := database.NewDB(t.TempDir() + "/tasks.db")
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	deps := testDeps(nil)
	deps.Store = database.NewStore(db, deps.Logger)
	ctx := context.Background()

	id, err := deps.Store.CreateDialog(ctx, 7, false)
	if err != nil {
		t.Fatalf("CreateDialog() error = %v", err)
	}

	// A fresh dialog is younger than the threshold and must stay pending.
	if err := newStaleDialogsTask(deps)(ctx); err != nil {
		t.Fatalf("task error = %v", err)
	}
	d, err := deps.Store.GetDialog(ctx, id)
	if err != nil || d == nil || d.Status != database.StatusPending {
		t.Errorf("dialog = %+v, %v, want pending", d, err)
	}
}
