package database

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the users table row.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Email        string    `bun:"email,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

// LogEntry is the logs table row. Rows are insert-only.
type LogEntry struct {
	bun.BaseModel `bun:"table:logs,alias:l"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Timestamp time.Time `bun:"timestamp,notnull"`
	Action    string    `bun:"action,notnull"`
	Details   *string   `bun:"details"`
	UserID    int64     `bun:"user_id,notnull"`
}
