package database

import (
	"database/sql"
	"time"
)

// Role identifies the author of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Status is the lifecycle state of a dialog. A dialog starts pending and is
// finalized exactly once as done or error.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Final reports whether s is a terminal status.
func (s Status) Final() bool {
	return s == StatusDone || s == StatusError
}

// Dialog is one analysis attempt by a Telegram user.
type Dialog struct {
	ID             int64        `db:"id"               json:"id"`
	TelegramUserID int64        `db:"telegram_user_id" json:"telegram_user_id"`
	Status         Status       `db:"status"           json:"status"`
	Welcomed       bool         `db:"welcomed"         json:"welcomed"`
	CreatedAt      time.Time    `db:"created_at"       json:"created_at"`
	FinishedAt     sql.NullTime `db:"finished_at"      json:"-"`
}

// Message is a single utterance stored under a dialog.
type Message struct {
	ID        int64     `db:"id"         json:"id"`
	DialogID  int64     `db:"dialog_id"  json:"dialog_id"`
	Role      Role      `db:"role"       json:"role"`
	Content   string    `db:"content"    json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
