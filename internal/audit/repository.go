package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskauth/internal/database"
)

var ErrInvalidEntry = errors.New("invalid audit entry")

// MaxListLimit caps ListByUser page size.
const MaxListLimit = 100

// Repository appends and reads audit entries. There is deliberately no update
// or delete path.
type Repository struct {
	db  bun.IDB
	now func() time.Time
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create inserts one entry stamped with the current server time in UTC.
func (r *Repository) Create(ctx context.Context, userID int64, action Action, details *string) (*Entry, error) {
	if userID <= 0 || action == "" {
		return nil, ErrInvalidEntry
	}

	row := &database.LogEntry{
		Timestamp: r.now().UTC().Truncate(time.Microsecond),
		Action:    string(action),
		Details:   details,
		UserID:    userID,
	}

	if _, err := r.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return mapDBEntry(row), nil
}

// ListByUser returns the newest entries for userID, at most limit of them.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	var rows []database.LogEntry
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("? DESC, id DESC", bun.Ident("timestamp")).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *mapDBEntry(&rows[i]))
	}
	return entries, nil
}

func mapDBEntry(row *database.LogEntry) *Entry {
	return &Entry{
		ID:        row.ID,
		Timestamp: row.Timestamp.UTC(),
		Action:    Action(row.Action),
		Details:   row.Details,
		UserID:    row.UserID,
	}
}
