package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskauth/internal/database"
	"github.com/redmonkez12/taskauth/internal/database/dbtest"
)

func TestMigrate_IsIdempotent(t *testing.T) {
	db := dbtest.New(t)

	require.NoError(t, database.Migrate(context.Background(), db))
}

func TestEmailUniqueIgnoresCase(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	first := &database.User{Email: "a@b.com", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	_, err := db.NewInsert().Model(first).Exec(ctx)
	require.NoError(t, err)

	second := &database.User{Email: "A@B.com", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	_, err = db.NewInsert().Model(second).Exec(ctx)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestLogEntryRequiresUser(t *testing.T) {
	db := dbtest.New(t)

	entry := &database.LogEntry{Timestamp: time.Now().UTC(), Action: "x", UserID: 999}
	_, err := db.NewInsert().Model(entry).Exec(context.Background())
	require.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres unique", &pq.Error{Code: "23505"}, true},
		{"postgres other", &pq.Error{Code: "23503"}, false},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), true},
		{"other", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.IsUniqueViolation(tt.err))
		})
	}
}
