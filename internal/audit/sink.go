package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"lifecert/internal/identity"
)

const defaultBufferSize = 256

// Sink accepts audit records from domain services. Record never blocks and
// never returns an error: entries go onto a buffered channel that the worker
// drains into the store. When the buffer is full the entry is dropped, the
// drop is counted, and the caller proceeds untouched.
type Sink struct {
	inbox   chan Entry
	logger  *slog.Logger
	dropped prometheus.Counter
	clock   func() time.Time
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithDroppedCounter wires the drop metric.
func WithDroppedCounter(c prometheus.Counter) SinkOption {
	return func(s *Sink) { s.dropped = c }
}

// WithSinkClock sets the clock function for testability.
func WithSinkClock(clock func() time.Time) SinkOption {
	return func(s *Sink) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewSink(logger *slog.Logger, opts ...SinkOption) *Sink {
	s := &Sink{
		inbox:  make(chan Entry, defaultBufferSize),
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record enqueues an audit entry. The user agent is taken from the request
// context when the identity middleware captured one.
func (s *Sink) Record(ctx context.Context, userID string, action Action, resourceID, details string) {
	entry := Entry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     action,
		ResourceID: resourceID,
		Details:    details,
		Timestamp:  s.clock(),
		UserAgent:  identity.UserAgentFrom(ctx),
	}

	select {
	case s.inbox <- entry:
	default:
		if s.dropped != nil {
			s.dropped.Inc()
		}
		s.logger.Warn("audit sink buffer full, entry dropped",
			"action", string(action),
			"user_id", userID,
		)
	}
}

// Inbox exposes the channel for the worker.
func (s *Sink) Inbox() <-chan Entry { return s.inbox }
