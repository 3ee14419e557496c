package audit

import (
	"context"

	"github.com/redmonkez12/taskauth/internal/logging"
)

// Writer is the strict append operation Recorder delegates to.
type Writer interface {
	Create(ctx context.Context, userID int64, action Action, details *string) (*Entry, error)
}

// Recorder writes audit entries fail-open: a failed write is logged at error
// level and never returned, so the action that triggered it still succeeds.
type Recorder struct {
	writer Writer
	logger *logging.Logger
}

func NewRecorder(writer Writer, logger *logging.Logger) *Recorder {
	return &Recorder{writer: writer, logger: logger}
}

// Record appends one entry synchronously. It always returns nil.
func (r *Recorder) Record(ctx context.Context, userID int64, action Action, details *string) error {
	if _, err := r.writer.Create(ctx, userID, action, details); err != nil {
		r.logger.ErrorContext(ctx, "audit write failed",
			"user_id", userID,
			"action", string(action),
			"error", err.Error(),
		)
	}
	return nil
}

// Details is a convenience for the optional details column.
func Details(s string) *string {
	return &s
}
