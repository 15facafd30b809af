package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/veritybot/internal/errors"
)

// Store defines the dialog persistence operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// EnsureSchema applies pending migrations. Repeated calls are no-ops.
	EnsureSchema(ctx context.Context) error

	// CreateDialog inserts a pending dialog for the user and returns its id.
	CreateDialog(ctx context.Context, userID int64, welcomed bool) (int64, error)

	// AddMessage appends a message to a dialog and returns its id.
	AddMessage(ctx context.Context, dialogID int64, role Role, content string) (int64, error)

	// FinishDialog moves a pending dialog to done or error.
	FinishDialog(ctx context.Context, dialogID int64, status Status) error

	// LastWelcomed returns the welcomed flag of the user's most recent dialog,
	// or nil if the user has none.
	LastWelcomed(ctx context.Context, userID int64) (*bool, error)

	// GetDialog returns a dialog by id, or nil, nil if it does not exist.
	GetDialog(ctx context.Context, dialogID int64) (*Dialog, error)

	// ListMessages returns the messages of a dialog in insertion order.
	ListMessages(ctx context.Context, dialogID int64) ([]Message, error)

	// FailStaleDialogs marks dialogs pending for longer than olderThan as
	// error and returns how many were changed.
	FailStaleDialogs(ctx context.Context, olderThan time.Duration) (int64, error)

	// RunSQLMaintenance performs database maintenance like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore implements Store using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewPersistenceError("database ping failed", err)
	}
	return nil
}

func (s *sqlxStore) EnsureSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := applyMigrations(s.db.DB); err != nil {
		s.logger.ErrorContext(ctx, "Schema migration failed", "error", err)
		return apperrors.NewPersistenceError("failed to ensure schema", err)
	}
	return nil
}

func (s *sqlxStore) CreateDialog(ctx context.Context, userID int64, welcomed bool) (int64, error) {
	query := `
        INSERT INTO dialogs (telegram_user_id, status, welcomed, created_at)
        VALUES (?, ?, ?, ?);
    `

	result, err := s.db.ExecContext(ctx, query, userID, StatusPending, welcomed, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating dialog", "user_id", userID, "error", err)
		return 0, apperrors.NewPersistenceError(fmt.Sprintf("failed to create dialog for user %d", userID), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, apperrors.NewPersistenceError("failed to read dialog id", err)
	}

	s.logger.DebugContext(ctx, "Dialog created", "dialog_id", id, "user_id", userID, "welcomed", welcomed)
	return id, nil
}

func (s *sqlxStore) AddMessage(ctx context.Context, dialogID int64, role Role, content string) (int64, error) {
	if !role.Valid() {
		return 0, apperrors.NewValidationError(fmt.Sprintf("unknown message role %q", role), nil)
	}
	if strings.TrimSpace(content) == "" {
		return 0, apperrors.NewValidationError("message content is empty", nil)
	}

	query := `
        INSERT INTO messages (dialog_id, role, content, created_at)
        VALUES (?, ?, ?, ?);
    `

	result, err := s.db.ExecContext(ctx, query, dialogID, role, content, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error adding message", "dialog_id", dialogID, "role", role, "error", err)
		return 0, apperrors.NewPersistenceError(fmt.Sprintf("failed to add %s message to dialog %d", role, dialogID), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, apperrors.NewPersistenceError("failed to read message id", err)
	}
	return id, nil
}

func (s *sqlxStore) FinishDialog(ctx context.Context, dialogID int64, status Status) error {
	if !status.Final() {
		return apperrors.NewValidationError(fmt.Sprintf("cannot finish dialog with status %q", status), nil)
	}

	// Only pending rows move; a finished dialog is never re-opened or rewritten.
	query := `
        UPDATE dialogs SET status = ?, finished_at = ?
        WHERE id = ? AND status = ?;
    `

	result, err := s.db.ExecContext(ctx, query, status, s.now(), dialogID, StatusPending)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error finishing dialog", "dialog_id", dialogID, "status", status, "error", err)
		return apperrors.NewPersistenceError(fmt.Sprintf("failed to finish dialog %d", dialogID), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewPersistenceError("failed to read affected rows", err)
	}
	if rows == 0 {
		return apperrors.NewPersistenceError(fmt.Sprintf("dialog %d does not exist or is already finished", dialogID), nil)
	}

	s.logger.DebugContext(ctx, "Dialog finished", "dialog_id", dialogID, "status", status)
	return nil
}

func (s *sqlxStore) LastWelcomed(ctx context.Context, userID int64) (*bool, error) {
	query := `
        SELECT welcomed FROM dialogs
        WHERE telegram_user_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT 1;
    `

	var welcomed bool
	if err := s.db.GetContext(ctx, &welcomed, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "Error reading welcomed flag", "user_id", userID, "error", err)
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to read welcomed flag for user %d", userID), err)
	}
	return &welcomed, nil
}

func (s *sqlxStore) GetDialog(ctx context.Context, dialogID int64) (*Dialog, error) {
	query := `
        SELECT id, telegram_user_id, status, welcomed, created_at, finished_at
        FROM dialogs WHERE id = ?;
    `

	var d Dialog
	if err := s.db.GetContext(ctx, &d, query, dialogID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to load dialog %d", dialogID), err)
	}
	return &d, nil
}

func (s *sqlxStore) ListMessages(ctx context.Context, dialogID int64) ([]Message, error) {
	query := `
        SELECT id, dialog_id, role, content, created_at
        FROM messages WHERE dialog_id = ?
        ORDER BY id ASC;
    `

	messages := []Message{}
	if err := s.db.SelectContext(ctx, &messages, query, dialogID); err != nil {
		return nil, apperrors.NewPersistenceError(fmt.Sprintf("failed to list messages of dialog %d", dialogID), err)
	}
	return messages, nil
}

func (s *sqlxStore) FailStaleDialogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, apperrors.NewValidationError("stale threshold must be positive", nil)
	}

	now := s.now()
	cutoff := now.Add(-olderThan)

	query := `
        UPDATE dialogs SET status = ?, finished_at = ?
        WHERE status = ? AND created_at < ?;
    `

	result, err := s.db.ExecContext(ctx, query, StatusError, now, StatusPending, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error failing stale dialogs", "cutoff", cutoff, "error", err)
		return 0, apperrors.NewPersistenceError("failed to finalize stale dialogs", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewPersistenceError("failed to read affected rows", err)
	}
	if rows > 0 {
		s.logger.InfoContext(ctx, "Finalized stale dialogs", "count", rows, "cutoff", cutoff)
	}
	return rows, nil
}

// RunSQLMaintenance runs ANALYZE and VACUUM. VACUUM cannot run inside a
// transaction, so both go straight to the pool.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context done before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance")
	start := time.Now()

	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		s.logger.ErrorContext(ctx, "ANALYZE failed", "error", err)
		return apperrors.NewPersistenceError("failed to analyze database", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return apperrors.NewPersistenceError("failed to vacuum database", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed", "duration", time.Since(start))
	return nil
}
