package audit

import (
	"context"
	"log/slog"
)

// Worker drains the sink's inbox into the store. Append failures are logged
// and the entry is abandoned: the audit trail is best-effort and must never
// take the service down with it.
type Worker struct {
	store  Store
	inbox  <-chan Entry
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Entry, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.inbox:
			if err := w.store.Append(ctx, entry); err != nil {
				w.logger.Error("audit append failed",
					"action", string(entry.Action),
					"user_id", entry.UserID,
					"error", err,
				)
			}
		}
	}
}
